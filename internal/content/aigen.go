package content

import (
	"context"
	"fmt"
	"strings"

	"flap/internal/llm"
	"flap/internal/logging"
)

// PromptConfig describes one AI-backed generator.
type PromptConfig struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	SystemPrompt string  `yaml:"system_prompt"`
	UserPrompt   string  `yaml:"user_prompt"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
}

// PromptGenerator asks an AI provider for board text. With a negotiator it
// uses the tool loop; otherwise it takes the completion text as-is.
type PromptGenerator struct {
	config     PromptConfig
	history    *History
	negotiator *Negotiator
	logger     logging.Logger
}

var _ Generator = (*PromptGenerator)(nil)

// NewPromptGenerator builds a generator; history and negotiator may be nil.
func NewPromptGenerator(config PromptConfig, history *History, negotiator *Negotiator) *PromptGenerator {
	return &PromptGenerator{
		config:     config,
		history:    history,
		negotiator: negotiator,
		logger:     logging.NewComponentLogger("aigen"),
	}
}

func (g *PromptGenerator) ID() string   { return g.config.ID }
func (g *PromptGenerator) Name() string { return g.config.Name }

func (g *PromptGenerator) Validate() error {
	if g.config.SystemPrompt == "" && g.config.UserPrompt == "" {
		return fmt.Errorf("generator %s has no prompts", g.config.ID)
	}
	return nil
}

func (g *PromptGenerator) Generate(ctx context.Context, genCtx GenerationContext, binding *llm.Binding) (*GeneratedContent, error) {
	system, user := g.buildPrompts(genCtx)

	if genCtx.PromptsOnly {
		content := &GeneratedContent{OutputMode: ModeText}
		content.SetMeta(MetaGenerator, g.config.ID)
		content.SetMeta(MetaPromptSystem, system)
		content.SetMeta(MetaPromptUser, user)
		return content, nil
	}

	if binding == nil || binding.Client == nil {
		return nil, fmt.Errorf("generator %s: no provider binding", g.config.ID)
	}

	req := llm.NewRequest(system, user)
	req.Temperature = g.config.Temperature
	req.MaxTokens = g.config.MaxTokens

	content := &GeneratedContent{OutputMode: ModeText}
	content.SetMeta(MetaGenerator, g.config.ID)
	content.SetMeta(MetaModel, binding.Client.Model())

	if genCtx.UseToolGeneration && g.negotiator != nil {
		result, err := g.negotiator.Negotiate(ctx, binding.Client, req)
		if err != nil {
			return nil, err
		}
		content.Text = result.Text
		content.SetMeta(MetaToolAttempts, result.Attempts)
		content.SetMeta(MetaToolAccepted, result.Accepted)
		if result.Direct {
			content.SetMeta(MetaToolDirect, true)
		}
		if result.Exhausted {
			content.SetMeta(MetaToolExhausted, true)
		}
		if result.ForceAccepted {
			content.SetMeta(MetaToolForceAccepted, true)
		}
		return content, nil
	}

	resp, err := binding.Client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	content.Text = strings.TrimSpace(resp.Content)
	return content, nil
}

// buildPrompts fills in cycle context: the timestamp and recently shown
// texts, so the model avoids repeating itself.
func (g *PromptGenerator) buildPrompts(genCtx GenerationContext) (string, string) {
	system := g.config.SystemPrompt
	if system == "" {
		system = fmt.Sprintf(
			"You write short messages for a split-flap display. Reply with at most %d lines of at most %d characters each. Only plain uppercase letters, digits, and basic punctuation are available.",
			MaxTextLines, MaxLineLength)
	}

	var b strings.Builder
	b.WriteString(g.config.UserPrompt)
	fmt.Fprintf(&b, "\n\nCurrent time: %s.", genCtx.Timestamp.Format("Monday 15:04"))
	if recent := g.history.Recent(5); len(recent) > 0 {
		b.WriteString("\nDo not repeat these recent messages:\n")
		for _, text := range recent {
			fmt.Fprintf(&b, "- %s\n", strings.ReplaceAll(text, "\n", " / "))
		}
	}
	return system, b.String()
}
