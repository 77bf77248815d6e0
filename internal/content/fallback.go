package content

import (
	"context"
	"fmt"

	"flap/internal/llm"
)

// StaticFallback serves canned messages when everything above it fails. It
// never errors and needs no provider, so it is the pipeline's floor.
type StaticFallback struct {
	messages []string
}

var _ Generator = (*StaticFallback)(nil)

var defaultFallbackMessages = []string{
	"MAKE TODAY COUNT",
	"ONE STEP AT A TIME",
	"STAY CURIOUS",
	"BREATHE AND BEGIN",
	"SMALL WINS ADD UP",
	"KEEP IT SIMPLE",
	"DO THE NEXT THING",
}

// NewStaticFallback uses the stock message list when none is given.
func NewStaticFallback(messages []string) *StaticFallback {
	if len(messages) == 0 {
		messages = defaultFallbackMessages
	}
	return &StaticFallback{messages: messages}
}

func (s *StaticFallback) ID() string   { return "static-fallback" }
func (s *StaticFallback) Name() string { return "Static fallback" }

func (s *StaticFallback) Validate() error {
	if len(s.messages) == 0 {
		return fmt.Errorf("no fallback messages configured")
	}
	return nil
}

// Generate picks a message deterministically by day of year, so the board
// does not flicker between messages across retries on the same day.
func (s *StaticFallback) Generate(_ context.Context, genCtx GenerationContext, _ *llm.Binding) (*GeneratedContent, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	msg := s.messages[genCtx.Timestamp.YearDay()%len(s.messages)]
	content := &GeneratedContent{Text: msg, OutputMode: ModeText}
	content.SetMeta(MetaGenerator, s.ID())
	return content, nil
}
