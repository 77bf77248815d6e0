package content

import (
	"fmt"
	"strings"

	"flap/internal/display"
)

// Text limits for board content. One row and one column are reserved by the
// frame, so text content is smaller than the raw board.
const (
	MaxTextLines  = 5
	MaxLineLength = 21
)

// ValidationError reports why a piece of text cannot be shown on the board.
// Its message doubles as rejection feedback in the tool negotiation loop.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid content: " + e.Reason
}

func invalidf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NormalizeText prepares raw generator output for the board: trims
// surrounding whitespace, re-wraps over-long lines at word boundaries, and
// checks the line count and character set. It returns the normalized text or
// a ValidationError describing the first problem found.
func NormalizeText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", invalidf("text is empty")
	}

	var lines []string
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if len([]rune(line)) <= MaxLineLength {
			lines = append(lines, line)
			continue
		}
		wrapped, err := wrapLine(line)
		if err != nil {
			return "", err
		}
		lines = append(lines, wrapped...)
	}

	if len(lines) > MaxTextLines {
		return "", invalidf("%d lines exceed the %d-line limit", len(lines), MaxTextLines)
	}
	if bad := display.UnsupportedRunes(trimmed); len(bad) > 0 {
		return "", invalidf("unsupported characters: %q", string(bad))
	}

	return strings.Join(lines, "\n"), nil
}

// wrapLine splits a long line on spaces so every piece fits a board row. A
// single word wider than a row cannot be wrapped and is rejected.
func wrapLine(line string) ([]string, error) {
	var out []string
	current := ""
	for _, word := range strings.Fields(line) {
		if len([]rune(word)) > MaxLineLength {
			return nil, invalidf("word %q exceeds %d characters", word, MaxLineLength)
		}
		switch {
		case current == "":
			current = word
		case len([]rune(current))+1+len([]rune(word)) <= MaxLineLength:
			current += " " + word
		default:
			out = append(out, current)
			current = word
		}
	}
	if current != "" {
		out = append(out, current)
	}
	return out, nil
}

// TruncateToLimits force-fits arbitrary text onto the board: unsupported
// characters are dropped, surplus lines cut, over-long lines chopped. Used by
// the use-last exhaustion policy, where showing something beats failing.
func TruncateToLimits(text string) string {
	sanitized := display.Sanitize(text)
	var lines []string
	for _, line := range strings.Split(sanitized, "\n") {
		line = strings.TrimSpace(line)
		if runes := []rune(line); len(runes) > MaxLineLength {
			line = string(runes[:MaxLineLength])
		}
		lines = append(lines, line)
		if len(lines) == MaxTextLines {
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ValidateLayout checks a generator-supplied finished frame.
func ValidateLayout(layout *display.Layout) error {
	if layout == nil {
		return invalidf("layout mode without a layout")
	}
	if err := layout.Validate(); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}
