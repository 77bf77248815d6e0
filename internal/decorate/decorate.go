package decorate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"flap/internal/display"
	"flap/internal/logging"
)

// Align controls horizontal placement of content lines.
type Align string

const (
	AlignCenter Align = "center"
	AlignLeft   Align = "left"
)

// Options are per-generator formatting knobs carried on the generator
// registration.
type Options struct {
	Align       Align `json:"align,omitempty" yaml:"align,omitempty"`
	AccentColor int   `json:"accent_color,omitempty" yaml:"accent_color,omitempty"`
	// HideStatusRow drops the bottom clock/weather row, freeing it for text.
	HideStatusRow bool `json:"hide_status_row,omitempty" yaml:"hide_status_row,omitempty"`
}

// Conditions is the weather snapshot shown on the status row.
type Conditions struct {
	Glyph string
	Color int
}

// ConditionsProvider supplies current weather for the status row. Optional;
// a nil provider simply leaves the weather cells blank.
type ConditionsProvider interface {
	Current(ctx context.Context) (Conditions, error)
}

// Decorator renders validated text into a full board frame.
type Decorator interface {
	Decorate(ctx context.Context, text string, timestamp time.Time, opts Options) (display.Layout, []string, error)
}

// FrameDecorator is the stock decorator: up to five content lines placed in
// the top rows, a status row with clock, weather glyph, and accent chips at
// the bottom.
type FrameDecorator struct {
	conditions ConditionsProvider
	logger     logging.Logger
}

var _ Decorator = (*FrameDecorator)(nil)

// NewFrameDecorator builds a decorator; conditions may be nil.
func NewFrameDecorator(conditions ConditionsProvider) *FrameDecorator {
	return &FrameDecorator{
		conditions: conditions,
		logger:     logging.NewComponentLogger("decorate"),
	}
}

// ContentRows is how many rows are available for content when the status row
// is shown.
const ContentRows = display.Rows - 1

// Decorate renders text into a frame. Warnings report non-fatal issues (a
// failed weather lookup); the frame is still usable.
func (d *FrameDecorator) Decorate(ctx context.Context, text string, timestamp time.Time, opts Options) (display.Layout, []string, error) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	maxLines := ContentRows
	if opts.HideStatusRow {
		maxLines = display.Rows
	}
	if len(lines) > maxLines {
		return display.Layout{}, nil, fmt.Errorf("decorate: %d lines do not fit %d content rows", len(lines), maxLines)
	}
	for i, line := range lines {
		if len([]rune(line)) > display.Columns {
			return display.Layout{}, nil, fmt.Errorf("decorate: line %d exceeds %d columns", i+1, display.Columns)
		}
	}

	layout := display.NewLayout()
	var warnings []string

	// Center the block vertically within the content rows.
	top := (maxLines - len(lines)) / 2
	for i, line := range lines {
		offset := 0
		if opts.Align != AlignLeft {
			offset = (display.Columns - len([]rune(line))) / 2
		}
		layout.SetRow(top+i, offset, strings.ToUpper(line))
	}

	if !opts.HideStatusRow {
		d.statusRow(ctx, &layout, timestamp, opts, &warnings)
	}

	return layout, warnings, nil
}

func (d *FrameDecorator) statusRow(ctx context.Context, layout *display.Layout, timestamp time.Time, opts Options, warnings *[]string) {
	row := display.Rows - 1

	accent := opts.AccentColor
	if accent == 0 {
		accent = display.CodeWhite
	}
	layout.SetCell(row, 0, accent)

	if d.conditions != nil {
		conditions, err := d.conditions.Current(ctx)
		if err != nil {
			d.logger.Warn("weather lookup failed, leaving status cells blank: %v", err)
			*warnings = append(*warnings, fmt.Sprintf("weather unavailable: %v", err))
		} else {
			if conditions.Color != 0 {
				layout.SetCell(row, 1, conditions.Color)
			}
			if conditions.Glyph != "" {
				layout.SetRow(row, 3, conditions.Glyph)
			}
		}
	}

	// HH:MM clock, right-aligned.
	clock := timestamp.Format("15:04")
	layout.SetRow(row, display.Columns-len(clock), clock)
	layout.SetCell(row, display.Columns-len(clock)-2, accent)
}
