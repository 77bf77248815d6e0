package display

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ConsoleClient renders frames to a terminal instead of a physical board.
// Useful for local development and the `flapd generate` one-shot command.
type ConsoleClient struct {
	mu  sync.Mutex
	out io.Writer
}

var _ Client = (*ConsoleClient)(nil)

// NewConsoleClient writes frames to stdout.
func NewConsoleClient() *ConsoleClient {
	return &ConsoleClient{out: os.Stdout}
}

var chipColors = map[int]*color.Color{
	CodeRed:    color.New(color.BgRed),
	CodeOrange: color.New(color.BgHiRed),
	CodeYellow: color.New(color.BgYellow),
	CodeGreen:  color.New(color.BgGreen),
	CodeBlue:   color.New(color.BgBlue),
	CodeViolet: color.New(color.BgMagenta),
	CodeWhite:  color.New(color.BgWhite),
	CodeBlack:  color.New(color.BgBlack),
	CodeFilled: color.New(color.BgHiWhite),
}

var codeRunes = func() map[int]rune {
	inverse := make(map[int]rune, len(charCodes))
	for r, code := range charCodes {
		inverse[code] = r
	}
	return inverse
}()

func (c *ConsoleClient) SendLayout(_ context.Context, layout Layout) error {
	if err := layout.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	border := "+" + strings.Repeat("-", Columns) + "+"
	fmt.Fprintln(c.out, border)
	for _, row := range layout.Cells {
		fmt.Fprint(c.out, "|")
		for _, code := range row {
			if chip, ok := chipColors[code]; ok && code != CodeBlank {
				fmt.Fprint(c.out, chip.Sprint(" "))
				continue
			}
			r, ok := codeRunes[code]
			if !ok {
				r = ' '
			}
			fmt.Fprintf(c.out, "%c", r)
		}
		fmt.Fprintln(c.out, "|")
	}
	fmt.Fprintln(c.out, border)
	return nil
}
