package display

import "strings"

// Flap codes for the non-character modules. 0 is blank; 63-71 are solid color
// chips used by the frame decorator.
const (
	CodeBlank  = 0
	CodeRed    = 63
	CodeOrange = 64
	CodeYellow = 65
	CodeGreen  = 66
	CodeBlue   = 67
	CodeViolet = 68
	CodeWhite  = 69
	CodeBlack  = 70
	CodeFilled = 71
)

// charCodes maps every rune the device can physically show to its flap code.
// The character set is uppercase-only.
var charCodes = map[rune]int{
	' ': CodeBlank,
	'A': 1, 'B': 2, 'C': 3, 'D': 4, 'E': 5, 'F': 6, 'G': 7, 'H': 8, 'I': 9,
	'J': 10, 'K': 11, 'L': 12, 'M': 13, 'N': 14, 'O': 15, 'P': 16, 'Q': 17,
	'R': 18, 'S': 19, 'T': 20, 'U': 21, 'V': 22, 'W': 23, 'X': 24, 'Y': 25,
	'Z': 26,
	'1': 27, '2': 28, '3': 29, '4': 30, '5': 31, '6': 32, '7': 33, '8': 34,
	'9': 35, '0': 36,
	'!': 37, '@': 38, '#': 39, '$': 40, '(': 41, ')': 42, '-': 44, '+': 46,
	'&': 47, '=': 48, ';': 49, ':': 50, '\'': 52, '"': 53, '%': 54, ',': 55,
	'.': 56, '/': 59, '?': 60, '°': 62,
}

// CodeFor returns the flap code for a rune, matching case-insensitively.
func CodeFor(r rune) (int, bool) {
	if r >= 'a' && r <= 'z' {
		r = r - 'a' + 'A'
	}
	code, ok := charCodes[r]
	return code, ok
}

// IsSupported reports whether the device can show the rune.
func IsSupported(r rune) bool {
	_, ok := CodeFor(r)
	return ok
}

// UnsupportedRunes returns the distinct runes in text the device cannot show.
func UnsupportedRunes(text string) []rune {
	seen := make(map[rune]bool)
	var out []rune
	for _, r := range text {
		if r == '\n' {
			continue
		}
		if !IsSupported(r) && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// Encode converts a line of text to flap codes. Unsupported runes become
// blanks; validation upstream is responsible for rejecting them.
func Encode(line string) []int {
	codes := make([]int, 0, len(line))
	for _, r := range line {
		code, ok := CodeFor(r)
		if !ok {
			code = CodeBlank
		}
		codes = append(codes, code)
	}
	return codes
}

// Sanitize uppercases text and strips runes outside the character set. Used
// only by force-accept truncation; the validation path rejects instead.
func Sanitize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(text) {
		if r == '\n' || IsSupported(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
