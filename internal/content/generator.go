package content

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"flap/internal/decorate"
	"flap/internal/llm"
	"flap/internal/logging"
)

// Generator produces board content for one cycle. The binding is the AI
// provider to use; generators that need no provider ignore it.
type Generator interface {
	ID() string
	Name() string
	Generate(ctx context.Context, genCtx GenerationContext, binding *llm.Binding) (*GeneratedContent, error)

	// Validate reports whether the generator is currently usable. Selection
	// skips generators whose preconditions are not met.
	Validate() error
}

// Registration carries a generator's selection priority and formatting.
type Registration struct {
	ID       string
	Name     string
	Priority int
	Format   decorate.Options
}

// Selector picks the generator for a cycle.
type Selector interface {
	Select(ctx context.Context, genCtx GenerationContext) (Generator, Registration, error)
}

// Registry is the stock selector: generators ordered by ascending priority
// number, first usable one wins. An explicit GeneratorID override skips both
// the ordering and the Validate check.
type Registry struct {
	mu      sync.RWMutex
	entries []registryEntry
	logger  logging.Logger
}

type registryEntry struct {
	gen Generator
	reg Registration
}

var _ Selector = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{logger: logging.NewComponentLogger("content")}
}

// Register adds a generator. Registration.ID and Name default to the
// generator's own.
func (r *Registry) Register(gen Generator, reg Registration) {
	if reg.ID == "" {
		reg.ID = gen.ID()
	}
	if reg.Name == "" {
		reg.Name = gen.Name()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, registryEntry{gen: gen, reg: reg})
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].reg.Priority < r.entries[j].reg.Priority
	})
}

// Registrations returns the registered generators in selection order.
func (r *Registry) Registrations() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.reg)
	}
	return out
}

func (r *Registry) Select(_ context.Context, genCtx GenerationContext) (Generator, Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if genCtx.GeneratorID != "" {
		for _, e := range r.entries {
			if e.reg.ID == genCtx.GeneratorID {
				return e.gen, e.reg, nil
			}
		}
		return nil, Registration{}, fmt.Errorf("generator %q is not registered", genCtx.GeneratorID)
	}

	for _, e := range r.entries {
		if err := e.gen.Validate(); err != nil {
			r.logger.Debug("skipping generator %s: %v", e.reg.ID, err)
			continue
		}
		return e.gen, e.reg, nil
	}
	return nil, Registration{}, fmt.Errorf("no usable generator registered")
}
