// Package display keeps the physical terminal in agreement with the
// desired prompt/buffer state.
//
// The synchronizer maintains a shadow model of what it believes is on
// screen. Every reconcile computes the desired rendering, diffs it against
// the shadow, and emits the minimal closed-set operations through the
// termio.Device to close the gap. There is exactly one code path for "make
// the terminal match the buffer": single-character typing, interior edits,
// wrap-boundary changes, history recall and completion menus all go through
// Reconcile. When the shadow is uncertain (session start, resize, a failed
// write) the next reconcile clears the maximal plausible input region and
// redraws from scratch rather than guessing.
package display

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/ansi"
	"go.uber.org/zap"

	"github.com/lusush/lusush/pkg/geometry"
	"github.com/lusush/lusush/pkg/termio"
)

// Frame is the desired state handed to Reconcile.
type Frame struct {
	// Prompt is the full prompt text, possibly multi-line and styled with
	// color codes. The editor treats it as opaque content with a display
	// width.
	Prompt string
	// Content is the current buffer content (plain text, single logical
	// line).
	Content string
	// CursorOffset is the rune offset of the cursor within Content.
	CursorOffset int
	// Overlay holds extra rows rendered below the input, used for the
	// completion menu. Overlay rows count toward the input region.
	Overlay []string
}

// shadow is the synchronizer's belief about the terminal. The core
// invariant: whenever valid is true, rows and the cursor position exactly
// match what the terminal displays.
type shadow struct {
	valid     bool
	width     int
	rows      []string
	cursorRow int
	cursorCol int
}

// Synchronizer reconciles frames against a terminal device. Not safe for
// concurrent use; the editor loop is single-threaded by design.
type Synchronizer struct {
	dev    termio.Device
	logger *zap.Logger
	shadow shadow
}

// New returns a synchronizer whose shadow starts invalid, so the first
// reconcile performs a full draw.
func New(dev termio.Device, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{dev: dev, logger: logger}
}

// LastKnownGood reports whether the shadow is trusted to match the screen.
func (s *Synchronizer) LastKnownGood() bool { return s.shadow.valid }

// Invalidate marks the shadow untrusted. The next reconcile will clear the
// whole input region and redraw. Called on resize and after any operation
// with platform-ambiguous effects.
func (s *Synchronizer) Invalidate() {
	if s.shadow.valid {
		s.logger.Debug("shadow state invalidated")
	}
	s.shadow.valid = false
}

// Reconcile brings the terminal in line with the frame. On any device
// failure the shadow is invalidated and the error returned; the editing
// session continues and the next reconcile resyncs from scratch.
func (s *Synchronizer) Reconcile(frame Frame) error {
	width, _, err := s.dev.Size()
	if err != nil {
		s.shadow.valid = false
		return err
	}
	if width <= 0 {
		s.shadow.valid = false
		return geometry.ErrBadWidth
	}

	rows, cursorRow, cursorCol, err := render(frame, width)
	if err != nil {
		s.shadow.valid = false
		return err
	}

	if err := s.apply(width, rows, cursorRow, cursorCol); err != nil {
		s.shadow.valid = false
		return err
	}

	s.shadow = shadow{
		valid:     true,
		width:     width,
		rows:      rows,
		cursorRow: cursorRow,
		cursorCol: cursorCol,
	}
	return nil
}

// ClearScreen wipes the whole screen and restarts the input region at the
// top. The shadow resets to the fresh-region state, so the next reconcile
// draws from the first row with the cursor known to sit at the region
// origin.
func (s *Synchronizer) ClearScreen() error {
	err := s.dev.ClearScreen()
	s.shadow = shadow{}
	return err
}

// FinishLine moves the cursor below the input region and emits a newline,
// leaving the terminal ready for command output (or the next prompt). The
// shadow resets: the region no longer belongs to the editor.
func (s *Synchronizer) FinishLine() error {
	last := len(s.shadow.rows) - 1
	if last >= 0 && s.shadow.cursorRow < last {
		if err := s.dev.CursorDown(last - s.shadow.cursorRow); err != nil {
			s.shadow = shadow{}
			return err
		}
	}
	err := s.dev.Newline()
	s.shadow = shadow{}
	return err
}

// render computes the desired region rows and cursor position. Row 0 is the
// first line of the prompt; the cursor position is region-relative.
func render(frame Frame, width int) (rows []string, cursorRow, cursorCol int, err error) {
	promptLines := strings.Split(frame.Prompt, "\n")
	lastPrompt := promptLines[len(promptLines)-1]
	promptWidth := geometry.StringWidth(lastPrompt)

	if promptWidth >= width {
		// A prompt line wider than the terminal defeats column tracking;
		// the terminal would wrap it on its own terms.
		return nil, 0, 0, fmt.Errorf("display: prompt width %d exceeds terminal width %d: %w",
			promptWidth, width, geometry.ErrBadWidth)
	}

	contentRows, err := geometry.SplitRows(frame.Content, promptWidth, width)
	if err != nil {
		return nil, 0, 0, err
	}

	rows = append(rows, promptLines[:len(promptLines)-1]...)
	rows = append(rows, lastPrompt+contentRows[0])
	rows = append(rows, contentRows[1:]...)
	rows = append(rows, frame.Overlay...)

	runes := []rune(frame.Content)
	offset := frame.CursorOffset
	if offset < 0 {
		offset = 0
	}
	if offset > len(runes) {
		offset = len(runes)
	}

	// Content may hold embedded newlines (a recalled multi-line command).
	// Walk the logical lines before the cursor; only the first one shares a
	// row with the prompt.
	rowsBefore := 0
	lineStart := 0
	linePrompt := promptWidth
	for i := 0; i < offset; i++ {
		if runes[i] != '\n' {
			continue
		}
		lineWidth := geometry.StringWidth(string(runes[lineStart:i]))
		adv, err := geometry.RowAdvance(linePrompt, lineWidth, width)
		if err != nil {
			return nil, 0, 0, err
		}
		rowsBefore += adv
		lineStart = i + 1
		linePrompt = 0
	}

	beforeWidth := geometry.StringWidth(string(runes[lineStart:offset]))
	crow, ccol, err := geometry.CursorPosition(linePrompt, beforeWidth, width)
	if err != nil {
		return nil, 0, 0, err
	}
	cursorRow = len(promptLines) - 1 + rowsBefore + crow
	cursorCol = ccol
	return rows, cursorRow, cursorCol, nil
}

// apply emits the device operations that turn the shadow into the desired
// state.
func (s *Synchronizer) apply(width int, rows []string, cursorRow, cursorCol int) error {
	sh := &s.shadow

	if !sh.valid || sh.width != width || len(sh.rows) != len(rows) {
		return s.fullResync(rows, cursorRow, cursorCol)
	}

	// Locate the first row that changed.
	first := -1
	for i := range rows {
		if rows[i] != sh.rows[i] {
			first = i
			break
		}
	}

	cur := cursorTracker{dev: s.dev, row: sh.cursorRow, col: sh.cursorCol}

	if first == -1 {
		// Content identical; at most the cursor moved.
		return cur.moveTo(cursorRow, cursorCol)
	}

	// Suffix-append fast path: exactly one row changed, by growing at its
	// end. The common case of typing at the end of the line — emit only
	// the new characters, nothing cleared.
	if suffix, ok := appendOnlyChange(sh.rows, rows, first); ok {
		if err := cur.moveTo(first, geometry.StringWidth(sh.rows[first])); err != nil {
			return err
		}
		if err := cur.write(suffix); err != nil {
			return err
		}
		return cur.moveTo(cursorRow, cursorCol)
	}

	// Interior change: rewrite each changed row from its first differing
	// column. Rows before the edit point are never touched.
	for i := first; i < len(rows); i++ {
		if rows[i] == sh.rows[i] {
			continue
		}
		col := 0
		if i == first {
			col = commonPrefixWidth(sh.rows[i], rows[i])
		}
		if err := cur.moveTo(i, col); err != nil {
			return err
		}
		if err := s.dev.ClearToEndOfLine(); err != nil {
			return err
		}
		if err := cur.write(trimToWidth(rows[i], col)); err != nil {
			return err
		}
	}
	return cur.moveTo(cursorRow, cursorCol)
}

// fullResync clears the maximal plausible region and redraws everything.
// The region spans the larger of the old and new row counts so no stale
// characters from a taller previous state survive — but it never extends
// above the first prompt row: everything above is the shell's own history
// and touching it would be a correctness violation.
func (s *Synchronizer) fullResync(rows []string, cursorRow, cursorCol int) error {
	sh := &s.shadow
	s.logger.Debug("full resync",
		zap.Int("oldRows", len(sh.rows)),
		zap.Int("newRows", len(rows)),
		zap.Bool("wasValid", sh.valid),
	)

	cur := cursorTracker{dev: s.dev, row: sh.cursorRow, col: sh.cursorCol}

	// Move to the first row of the input region and drop everything from
	// there to the end of the screen; that covers max(old, new) rows and
	// anything a confused terminal may have left behind.
	if err := cur.moveTo(0, 0); err != nil {
		return err
	}
	if err := s.dev.ClearToEndOfScreen(); err != nil {
		return err
	}

	for i, row := range rows {
		if i > 0 {
			if err := s.dev.Newline(); err != nil {
				return err
			}
			cur.row++
			cur.col = 0
		}
		if row == "" {
			continue
		}
		if err := cur.write(row); err != nil {
			return err
		}
	}
	return cur.moveTo(cursorRow, cursorCol)
}

// cursorTracker mirrors the physical cursor while operations are emitted,
// so each movement is expressed relative to the last one.
type cursorTracker struct {
	dev      termio.Device
	row, col int
}

func (c *cursorTracker) moveTo(row, col int) error {
	if row < c.row {
		if err := c.dev.CursorUp(c.row - row); err != nil {
			return err
		}
	} else if row > c.row {
		if err := c.dev.CursorDown(row - c.row); err != nil {
			return err
		}
	}
	c.row = row
	if col != c.col {
		if err := c.dev.CursorToColumn(col); err != nil {
			return err
		}
		c.col = col
	}
	return nil
}

func (c *cursorTracker) write(text string) error {
	if text == "" {
		return nil
	}
	if err := c.dev.WriteText(text); err != nil {
		return err
	}
	c.col += geometry.StringWidth(text)
	return nil
}

// appendOnlyChange reports whether the only difference is that row `first`
// grew at its end, and returns the appended suffix.
func appendOnlyChange(old, new []string, first int) (string, bool) {
	for i := first + 1; i < len(new); i++ {
		if new[i] != old[i] {
			return "", false
		}
	}
	if !strings.HasPrefix(new[first], old[first]) {
		return "", false
	}
	suffix := new[first][len(old[first]):]
	if suffix == "" {
		return "", false
	}
	return suffix, true
}

// commonPrefixWidth returns the display width of the longest common rune
// prefix of a and b.
func commonPrefixWidth(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	i := 0
	for i < len(ra) && i < len(rb) && ra[i] == rb[i] {
		i++
	}
	return geometry.StringWidth(string(ra[:i]))
}

// trimToWidth drops the leading runes of row up to display column col,
// returning what must be rewritten from there. Escape sequences inside the
// row (styled prompt or overlay) occupy zero columns.
func trimToWidth(row string, col int) string {
	if col == 0 {
		return row
	}
	runes := []rune(row)
	w := 0
	inSeq := false
	for i, r := range runes {
		if w >= col && !inSeq {
			return string(runes[i:])
		}
		switch {
		case inSeq:
			if ansi.IsTerminator(r) {
				inSeq = false
			}
		case r == ansi.Marker:
			inSeq = true
		default:
			w += geometry.StringWidth(string(r))
		}
	}
	return ""
}
