package display

import "fmt"

// Board geometry. The split-flap unit is a fixed 6x22 grid of character
// modules; every frame sent to it must match exactly.
const (
	Rows    = 6
	Columns = 22
)

// Layout is one complete frame: a grid of flap codes plus the row strings the
// codes were rendered from (kept for logging and the dashboard preview).
type Layout struct {
	Cells   [][]int  `json:"cells"`
	RowText []string `json:"row_text"`
}

// NewLayout returns an all-blank frame.
func NewLayout() Layout {
	cells := make([][]int, Rows)
	for i := range cells {
		cells[i] = make([]int, Columns)
	}
	return Layout{
		Cells:   cells,
		RowText: make([]string, Rows),
	}
}

// SetRow renders text into row i, left-padded by offset cells. Unsupported
// runes map to blank.
func (l *Layout) SetRow(i int, offset int, text string) {
	if i < 0 || i >= Rows {
		return
	}
	codes := Encode(text)
	for j, code := range codes {
		col := offset + j
		if col < 0 || col >= Columns {
			break
		}
		l.Cells[i][col] = code
	}
	l.RowText[i] = text
}

// SetCell writes a single flap code, used for color chips.
func (l *Layout) SetCell(row, col, code int) {
	if row < 0 || row >= Rows || col < 0 || col >= Columns {
		return
	}
	l.Cells[row][col] = code
}

// Validate checks the frame has the device's exact dimensions.
func (l Layout) Validate() error {
	if len(l.Cells) != Rows {
		return fmt.Errorf("layout has %d rows, device needs exactly %d", len(l.Cells), Rows)
	}
	for i, row := range l.Cells {
		if len(row) != Columns {
			return fmt.Errorf("layout row %d has %d columns, device needs exactly %d", i, len(row), Columns)
		}
	}
	return nil
}
