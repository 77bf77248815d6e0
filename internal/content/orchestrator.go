package content

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"flap/internal/breaker"
	"flap/internal/decorate"
	"flap/internal/display"
	"flap/internal/llm"
	"flap/internal/logging"
)

// ErrDisabled is returned when the global kill switch is off. It is an
// operator action, not a failure; callers log it and move on.
var ErrDisabled = errors.New("content pipeline disabled by kill switch")

// CircuitGate is the slice of the circuit breaker the orchestrator needs.
type CircuitGate interface {
	IsOpen(ctx context.Context, circuitID string) bool
	IsProviderAvailable(ctx context.Context, circuitID string) bool
}

// OrchestratorConfig wires the pipeline's collaborators.
type OrchestratorConfig struct {
	Selector       Selector
	Fallback       Generator
	FallbackFormat decorate.Options
	Failover       *FailoverRunner
	Gate           CircuitGate
	Preferred      *llm.Binding
	Alternate      *llm.Binding
	Decorator      decorate.Decorator
	Display        display.Client
	History        *History
	Logger         logging.Logger
	Metrics        *Metrics

	// OnFrame observes every frame that reaches the display path, sent or
	// not. Used by the web UI's live feed.
	OnFrame func(display.Layout, *GeneratedContent)
}

// Orchestrator runs the full cycle: select a generator, generate with
// failover, validate, fall back if needed, decorate, cache, send. Cycles are
// serialized; the cache holds exactly the last thing shown.
type Orchestrator struct {
	cfg     OrchestratorConfig
	logger  logging.Logger
	metrics *Metrics
	tracer  trace.Tracer

	mu           sync.Mutex
	cached       *GeneratedContent
	cachedFormat decorate.Options
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = defaultMetrics()
	}
	return &Orchestrator{
		cfg:     cfg,
		logger:  logging.OrNop(cfg.Logger),
		metrics: metrics,
		tracer:  otel.Tracer("flap/content"),
	}
}

// GenerateAndSend runs one major update cycle. The returned content is a copy
// the caller may inspect freely. Provider and display failures inside the
// cycle degrade to fallback content or a logged skip; only a cycle that
// cannot produce any content at all returns an error.
func (o *Orchestrator) GenerateAndSend(ctx context.Context, genCtx GenerationContext) (*GeneratedContent, error) {
	if genCtx.Timestamp.IsZero() {
		genCtx.Timestamp = time.Now()
	}
	if genCtx.UpdateType == "" {
		genCtx.UpdateType = UpdateMajor
	}

	ctx, span := o.tracer.Start(ctx, "content.generate_and_send",
		trace.WithAttributes(attribute.String("update_type", string(genCtx.UpdateType))))
	defer span.End()

	if o.cfg.Gate != nil && o.cfg.Gate.IsOpen(ctx, breaker.CircuitKillSwitchGlobal) {
		o.logger.Info("global kill switch is off, skipping cycle")
		return nil, ErrDisabled
	}

	start := time.Now()
	content, format, err := o.produce(ctx, genCtx)
	if err != nil {
		o.metrics.IncGeneration(string(genCtx.UpdateType), "error")
		return nil, err
	}
	o.metrics.IncGeneration(string(genCtx.UpdateType), "ok")
	o.metrics.ObserveDuration(string(genCtx.UpdateType), time.Since(start))

	if genCtx.PromptsOnly {
		return content.Clone(), nil
	}

	layout, err := o.frame(ctx, content, genCtx.Timestamp, format)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.cached = content
	o.cachedFormat = format
	o.deliver(ctx, layout, content)

	if content.OutputMode == ModeText {
		o.cfg.History.Remember(content.Text)
	}
	return content.Clone(), nil
}

// produce selects a generator and runs it through failover and validation,
// degrading to the static fallback when anything upstream fails.
func (o *Orchestrator) produce(ctx context.Context, genCtx GenerationContext) (*GeneratedContent, decorate.Options, error) {
	if o.cfg.Gate != nil && o.cfg.Gate.IsOpen(ctx, breaker.CircuitKillSwitchAI) {
		o.logger.Info("ai kill switch is off, using fallback content")
		return o.fallback(ctx, genCtx, "ai_kill_switch")
	}

	gen, reg, err := o.cfg.Selector.Select(ctx, genCtx)
	if err != nil {
		o.logger.Warn("generator selection failed: %v", err)
		return o.fallback(ctx, genCtx, "no_generator")
	}

	preferred, alternate := o.availableBindings(ctx)

	if genCtx.PromptsOnly {
		content, err := gen.Generate(ctx, genCtx, preferred)
		if err != nil {
			return nil, decorate.Options{}, err
		}
		return content, reg.Format, nil
	}

	if preferred == nil {
		o.logger.Warn("no provider binding available, using fallback content")
		return o.fallback(ctx, genCtx, "no_provider")
	}

	content, err := o.cfg.Failover.Run(ctx, gen, genCtx, preferred, alternate)
	if err != nil {
		o.logger.Warn("generator %s failed: %v", reg.ID, err)
		return o.fallback(ctx, genCtx, "generation_failed")
	}

	switch content.OutputMode {
	case ModeLayout:
		if err := ValidateLayout(content.Layout); err != nil {
			o.logger.Warn("generator %s produced an invalid layout: %v", reg.ID, err)
			return o.fallback(ctx, genCtx, "invalid_content")
		}
	default:
		normalized, verr := NormalizeText(content.Text)
		if verr != nil {
			o.logger.Warn("generator %s produced invalid text: %v", reg.ID, verr)
			return o.fallback(ctx, genCtx, "invalid_content")
		}
		content.Text = normalized
	}

	content.SetMeta(MetaGenerator, reg.ID)
	return content, reg.Format, nil
}

// fallback is the pipeline floor. An error here means even canned content is
// unavailable, which is the one unrecoverable outcome.
func (o *Orchestrator) fallback(ctx context.Context, genCtx GenerationContext, reason string) (*GeneratedContent, decorate.Options, error) {
	o.metrics.IncFallback(reason)
	content, err := o.cfg.Fallback.Generate(ctx, genCtx, nil)
	if err != nil {
		return nil, decorate.Options{}, fmt.Errorf("fallback generation failed: %w", err)
	}
	content.SetMeta(MetaFallback, true)
	content.SetMeta(MetaFallbackReason, reason)
	return content, o.cfg.FallbackFormat, nil
}

// availableBindings filters the configured bindings through circuit state.
// If only the alternate survives it is promoted to the primary slot.
func (o *Orchestrator) availableBindings(ctx context.Context) (*llm.Binding, *llm.Binding) {
	preferred, alternate := o.cfg.Preferred, o.cfg.Alternate
	if o.cfg.Gate != nil {
		if preferred != nil && !o.cfg.Gate.IsProviderAvailable(ctx, preferred.CircuitID) {
			o.logger.Info("provider %s unavailable per circuit state", preferred.Name)
			preferred = nil
		}
		if alternate != nil && !o.cfg.Gate.IsProviderAvailable(ctx, alternate.CircuitID) {
			o.logger.Info("provider %s unavailable per circuit state", alternate.Name)
			alternate = nil
		}
	}
	if preferred == nil {
		preferred, alternate = alternate, nil
	}
	return preferred, alternate
}

// frame turns content into a board layout, decorating text mode content.
func (o *Orchestrator) frame(ctx context.Context, content *GeneratedContent, ts time.Time, format decorate.Options) (display.Layout, error) {
	if content.OutputMode == ModeLayout {
		return *content.Layout, nil
	}
	layout, warnings, err := o.cfg.Decorator.Decorate(ctx, content.Text, ts, format)
	if err != nil {
		return display.Layout{}, fmt.Errorf("decorate: %w", err)
	}
	for _, w := range warnings {
		o.logger.Warn("decorate: %s", w)
	}
	return layout, nil
}

// deliver pushes a frame to the display unless the display kill switch is
// off. Send failures are logged and absorbed; the cache already holds the
// content and the next cycle will try again. Callers hold o.mu.
func (o *Orchestrator) deliver(ctx context.Context, layout display.Layout, content *GeneratedContent) {
	if o.cfg.OnFrame != nil {
		o.cfg.OnFrame(layout, content.Clone())
	}
	if o.cfg.Gate != nil && o.cfg.Gate.IsOpen(ctx, breaker.CircuitKillSwitchDisplay) {
		o.logger.Info("display kill switch is off, skipping send")
		o.metrics.IncSend("skipped")
		return
	}
	if o.cfg.Display == nil {
		o.metrics.IncSend("skipped")
		return
	}
	if err := o.cfg.Display.SendLayout(ctx, layout); err != nil {
		o.logger.Error("display send failed: %v", err)
		o.metrics.IncSend("error")
		return
	}
	o.metrics.IncSend("ok")
}

// RedecorateCached re-renders the cached content with a fresh timestamp and
// pushes it, without touching a provider. Layout mode content embeds its own
// chrome and is skipped. skipped=true means there was nothing to do.
func (o *Orchestrator) RedecorateCached(ctx context.Context, ts time.Time) (bool, error) {
	ctx, span := o.tracer.Start(ctx, "content.redecorate_cached")
	defer span.End()

	if o.cfg.Gate != nil && o.cfg.Gate.IsOpen(ctx, breaker.CircuitKillSwitchGlobal) {
		return true, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cached == nil || o.cached.OutputMode == ModeLayout {
		return true, nil
	}

	layout, warnings, err := o.cfg.Decorator.Decorate(ctx, o.cached.Text, ts, o.cachedFormat)
	if err != nil {
		return false, fmt.Errorf("redecorate: %w", err)
	}
	for _, w := range warnings {
		o.logger.Warn("redecorate: %s", w)
	}

	content := o.cached.Clone()
	content.SetMeta(MetaMinorUpdate, true)
	content.SetMeta(MetaUpdatedAt, ts.UTC().Format("15:04:05.000Z07:00"))
	o.cached = content

	o.metrics.IncGeneration(string(UpdateMinor), "ok")
	o.deliver(ctx, layout, content)
	return false, nil
}

// CachedContent returns a copy of the last shown content, or nil.
func (o *Orchestrator) CachedContent() *GeneratedContent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cached.Clone()
}

// ClearCache drops the cached content. The next minor tick becomes a no-op
// until a major update repopulates the cache.
func (o *Orchestrator) ClearCache() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cached = nil
	o.cachedFormat = decorate.Options{}
}
