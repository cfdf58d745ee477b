package display

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lusush/lusush/pkg/geometry"
)

// fakeDevice simulates a terminal screen so tests can verify that the
// shadow model matches rendered reality exactly, and count the operations
// a reconcile emits.
type fakeDevice struct {
	width  int
	height int

	screen [][]rune
	row    int
	col    int

	ops      []string
	failNext error
}

func newFakeDevice(width, height int) *fakeDevice {
	return &fakeDevice{width: width, height: height, screen: [][]rune{{}}}
}

func (f *fakeDevice) op(format string, args ...any) error {
	f.ops = append(f.ops, fmt.Sprintf(format, args...))
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	return nil
}

func (f *fakeDevice) ensureRow(r int) {
	for len(f.screen) <= r {
		f.screen = append(f.screen, []rune{})
	}
}

func (f *fakeDevice) WriteText(text string) error {
	if err := f.op("write:%s", text); err != nil {
		return err
	}
	if strings.ContainsAny(text, "\r\n") {
		// Wrapping and line breaks must arrive as Newline operations; a
		// raw LF would desync a real terminal from the shadow.
		return errors.New("fake: control byte written through WriteText")
	}
	f.ensureRow(f.row)
	line := f.screen[f.row]
	for _, r := range text {
		for len(line) <= f.col {
			line = append(line, ' ')
		}
		line[f.col] = r
		f.col += geometry.StringWidth(string(r))
		if f.col > f.width {
			return errors.New("fake: write ran past terminal width")
		}
	}
	f.screen[f.row] = line
	return nil
}

func (f *fakeDevice) Newline() error {
	if err := f.op("newline"); err != nil {
		return err
	}
	f.row++
	f.col = 0
	f.ensureRow(f.row)
	return nil
}

func (f *fakeDevice) CursorUp(n int) error {
	if n <= 0 {
		return nil
	}
	if err := f.op("up:%d", n); err != nil {
		return err
	}
	f.row -= n
	if f.row < 0 {
		return errors.New("fake: cursor moved above the screen")
	}
	return nil
}

func (f *fakeDevice) CursorDown(n int) error {
	if n <= 0 {
		return nil
	}
	if err := f.op("down:%d", n); err != nil {
		return err
	}
	f.row += n
	f.ensureRow(f.row)
	return nil
}

func (f *fakeDevice) CursorToColumn(col int) error {
	if err := f.op("col:%d", col); err != nil {
		return err
	}
	f.col = col
	return nil
}

func (f *fakeDevice) ClearToEndOfLine() error {
	if err := f.op("clearEOL"); err != nil {
		return err
	}
	f.ensureRow(f.row)
	if f.col < len(f.screen[f.row]) {
		f.screen[f.row] = f.screen[f.row][:f.col]
	}
	return nil
}

func (f *fakeDevice) ClearToEndOfScreen() error {
	if err := f.op("clearEOS"); err != nil {
		return err
	}
	f.ensureRow(f.row)
	if f.col < len(f.screen[f.row]) {
		f.screen[f.row] = f.screen[f.row][:f.col]
	}
	f.screen = f.screen[:f.row+1]
	return nil
}

func (f *fakeDevice) ClearScreen() error {
	if err := f.op("clearScreen"); err != nil {
		return err
	}
	f.screen = [][]rune{{}}
	f.row = 0
	f.col = 0
	return nil
}

func (f *fakeDevice) Bell() error {
	// Audible only; no screen state changes.
	return f.op("bell")
}

func (f *fakeDevice) Size() (int, int, error) {
	return f.width, f.height, nil
}

// rows returns the visible screen content with trailing blanks trimmed and
// trailing empty rows dropped.
func (f *fakeDevice) rows() []string {
	out := make([]string, len(f.screen))
	for i, line := range f.screen {
		out[i] = strings.TrimRight(string(line), " ")
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

func (f *fakeDevice) resetOps() { f.ops = nil }

func (f *fakeDevice) countOps(prefix string) int {
	n := 0
	for _, op := range f.ops {
		if strings.HasPrefix(op, prefix) {
			n++
		}
	}
	return n
}
