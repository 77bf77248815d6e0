package content

import (
	"context"
	"fmt"
	"testing"
	"time"

	"flap/internal/llm"
)

type namedStub struct {
	id          string
	validateErr error
}

func (s *namedStub) ID() string      { return s.id }
func (s *namedStub) Name() string    { return s.id }
func (s *namedStub) Validate() error { return s.validateErr }

func (s *namedStub) Generate(context.Context, GenerationContext, *llm.Binding) (*GeneratedContent, error) {
	return &GeneratedContent{Text: s.id, OutputMode: ModeText}, nil
}

func TestRegistrySelectsByPriority(t *testing.T) {
	r := NewRegistry()
	r.Register(&namedStub{id: "low"}, Registration{Priority: 3})
	r.Register(&namedStub{id: "high"}, Registration{Priority: 1})
	r.Register(&namedStub{id: "mid"}, Registration{Priority: 2})

	_, reg, err := r.Select(context.Background(), GenerationContext{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if reg.ID != "high" {
		t.Errorf("selected %q", reg.ID)
	}
}

func TestRegistrySkipsUnusableGenerators(t *testing.T) {
	r := NewRegistry()
	r.Register(&namedStub{id: "broken", validateErr: fmt.Errorf("missing config")}, Registration{Priority: 1})
	r.Register(&namedStub{id: "ok"}, Registration{Priority: 2})

	_, reg, err := r.Select(context.Background(), GenerationContext{})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if reg.ID != "ok" {
		t.Errorf("selected %q", reg.ID)
	}
}

func TestRegistryHonorsExplicitOverride(t *testing.T) {
	r := NewRegistry()
	r.Register(&namedStub{id: "high"}, Registration{Priority: 1})
	r.Register(&namedStub{id: "low", validateErr: fmt.Errorf("not ready")}, Registration{Priority: 9})

	// The override wins even over a higher-priority generator, and skips the
	// usability check.
	_, reg, err := r.Select(context.Background(), GenerationContext{GeneratorID: "low"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if reg.ID != "low" {
		t.Errorf("selected %q", reg.ID)
	}

	if _, _, err := r.Select(context.Background(), GenerationContext{GeneratorID: "ghost"}); err == nil {
		t.Error("unknown override must error")
	}
}

func TestRegistryErrorsWhenEmpty(t *testing.T) {
	if _, _, err := NewRegistry().Select(context.Background(), GenerationContext{}); err == nil {
		t.Error("empty registry must error")
	}
}

func TestStaticFallbackIsDeterministicPerDay(t *testing.T) {
	fb := NewStaticFallback(nil)
	day := GenerationContext{Timestamp: time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)}
	later := GenerationContext{Timestamp: time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC)}

	first, err := fb.Generate(context.Background(), day, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := fb.Generate(context.Background(), later, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if first.Text != second.Text {
		t.Errorf("same day picked %q then %q", first.Text, second.Text)
	}
	if _, verr := NormalizeText(first.Text); verr != nil {
		t.Errorf("stock fallback message is invalid: %v", verr)
	}
}

func TestHistoryRemembersRecentFirst(t *testing.T) {
	h, err := NewHistory(3)
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	for _, text := range []string{"ONE", "TWO", "THREE", "FOUR"} {
		h.Remember(text)
	}

	recent := h.Recent(2)
	if len(recent) != 2 || recent[0] != "FOUR" || recent[1] != "THREE" {
		t.Errorf("Recent = %v", recent)
	}
	if all := h.Recent(10); len(all) != 3 {
		t.Errorf("history not bounded: %v", all)
	}
}
