package decorate

import (
	"context"
	"errors"
	"testing"
	"time"

	"flap/internal/display"
)

type fakeConditions struct {
	conditions Conditions
	err        error
}

func (f *fakeConditions) Current(context.Context) (Conditions, error) {
	return f.conditions, f.err
}

var noon = time.Date(2026, 8, 29, 12, 30, 0, 0, time.UTC)

func TestDecorateProducesDeviceDimensions(t *testing.T) {
	d := NewFrameDecorator(nil)
	layout, warnings, err := d.Decorate(context.Background(), "HELLO\nWORLD", noon, Options{})
	if err != nil {
		t.Fatalf("Decorate: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
	if err := layout.Validate(); err != nil {
		t.Fatalf("layout invalid: %v", err)
	}
}

func TestDecorateCentersContent(t *testing.T) {
	d := NewFrameDecorator(nil)
	layout, _, err := d.Decorate(context.Background(), "HI", noon, Options{})
	if err != nil {
		t.Fatalf("Decorate: %v", err)
	}

	// One line over five content rows centers on row 2; "HI" centers at
	// column 10.
	if layout.Cells[2][10] != 8 || layout.Cells[2][11] != 9 {
		t.Errorf("content row 2 = %v", layout.Cells[2])
	}
}

func TestDecorateStatusRowClock(t *testing.T) {
	d := NewFrameDecorator(nil)
	layout, _, err := d.Decorate(context.Background(), "HI", noon, Options{})
	if err != nil {
		t.Fatalf("Decorate: %v", err)
	}

	// "12:30" right-aligned in the bottom row.
	want := display.Encode("12:30")
	got := layout.Cells[display.Rows-1][display.Columns-5:]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("clock cells = %v, want %v", got, want)
		}
	}
}

func TestDecorateWeatherWarningIsNonFatal(t *testing.T) {
	d := NewFrameDecorator(&fakeConditions{err: errors.New("api down")})
	layout, warnings, err := d.Decorate(context.Background(), "HI", noon, Options{})
	if err != nil {
		t.Fatalf("Decorate: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want one weather warning", warnings)
	}
	if err := layout.Validate(); err != nil {
		t.Fatalf("layout invalid despite warning: %v", err)
	}
}

func TestDecorateWeatherChip(t *testing.T) {
	d := NewFrameDecorator(&fakeConditions{conditions: Conditions{Glyph: "SUN", Color: display.CodeYellow}})
	layout, _, err := d.Decorate(context.Background(), "HI", noon, Options{})
	if err != nil {
		t.Fatalf("Decorate: %v", err)
	}
	if layout.Cells[display.Rows-1][1] != display.CodeYellow {
		t.Errorf("weather chip cell = %d", layout.Cells[display.Rows-1][1])
	}
}

func TestDecorateRejectsOversizedText(t *testing.T) {
	d := NewFrameDecorator(nil)
	if _, _, err := d.Decorate(context.Background(), "A\nB\nC\nD\nE\nF", noon, Options{}); err == nil {
		t.Error("six lines must not fit above the status row")
	}
	if _, _, err := d.Decorate(context.Background(), "THIS LINE IS FAR TOO LONG FOR THE BOARD", noon, Options{}); err == nil {
		t.Error("an over-wide line must be rejected")
	}

	// Hiding the status row frees the sixth row.
	if _, _, err := d.Decorate(context.Background(), "A\nB\nC\nD\nE\nF", noon, Options{HideStatusRow: true}); err != nil {
		t.Errorf("six lines with hidden status row: %v", err)
	}
}
