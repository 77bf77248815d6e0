package content

import (
	"time"

	"flap/internal/display"
)

// UpdateType distinguishes full regenerations from cheap re-decorations.
type UpdateType string

const (
	UpdateMajor UpdateType = "major"
	UpdateMinor UpdateType = "minor"
)

// OutputMode says whether a generator produced plain text (to be decorated)
// or a finished layout.
type OutputMode string

const (
	ModeText   OutputMode = "text"
	ModeLayout OutputMode = "layout"
)

// GenerationContext is the ephemeral value passed through the pipeline for
// one cycle.
type GenerationContext struct {
	UpdateType UpdateType
	Timestamp  time.Time

	// GeneratorID forces a specific generator, bypassing priority selection.
	GeneratorID string

	// UseToolGeneration routes AI generators through the tool negotiation
	// loop instead of free-text completion.
	UseToolGeneration bool

	// PromptsOnly is a dry run: build prompts, skip the provider call and
	// everything downstream.
	PromptsOnly bool
}

// Metadata keys recorded on generated content for provenance.
const (
	MetaGenerator         = "generator"
	MetaProvider          = "provider"
	MetaModel             = "model"
	MetaTier              = "tier"
	MetaFailover          = "failover"
	MetaFallback          = "fallback"
	MetaFallbackReason    = "fallbackReason"
	MetaToolAttempts      = "toolAttempts"
	MetaToolAccepted      = "toolAccepted"
	MetaToolDirect        = "toolDirect"
	MetaToolExhausted     = "toolExhausted"
	MetaToolForceAccepted = "toolForceAccepted"
	MetaMinorUpdate       = "minorUpdate"
	MetaUpdatedAt         = "updatedAt"
	MetaPromptSystem      = "promptSystem"
	MetaPromptUser        = "promptUser"
)

// GeneratedContent is the pipeline's unit of output.
type GeneratedContent struct {
	Text       string          `json:"text"`
	OutputMode OutputMode      `json:"output_mode"`
	Layout     *display.Layout `json:"layout,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}

// SetMeta records a provenance entry, allocating the map on first use.
func (c *GeneratedContent) SetMeta(key string, value any) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[key] = value
}

// Clone returns a deep-enough copy: callers may mutate the copy's metadata
// without affecting the original.
func (c *GeneratedContent) Clone() *GeneratedContent {
	if c == nil {
		return nil
	}
	copied := *c
	if c.Metadata != nil {
		copied.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			copied.Metadata[k] = v
		}
	}
	return &copied
}
