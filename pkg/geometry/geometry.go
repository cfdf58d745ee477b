// Package geometry maps prompt and buffer content to terminal rows and
// columns. Everything here is pure: no I/O, no escape sequences, fully
// unit-testable.
package geometry

import (
	"errors"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/rivo/uniseg"
)

// ErrBadWidth is returned when a terminal width of zero or less is supplied.
var ErrBadWidth = errors.New("geometry: terminal width must be positive")

// ForceWrapAtBoundary documents the wrap policy at the exact width boundary.
//
// xterm-family terminals defer the wrap: writing the last column leaves the
// cursor in a pending state on the same row until the next character
// arrives. That pending state is exactly the kind of ambiguity the display
// synchronizer cannot track, so this engine never relies on it. When content
// fills a row exactly, the renderer emits an explicit carriage-return +
// line-feed and the cursor lives at column 0 of the following row. The
// functions below count that extra row.
const ForceWrapAtBoundary = true

// StringWidth returns the number of terminal columns the string occupies.
// Width is computed per grapheme cluster, so combining marks contribute
// zero columns and east-asian wide characters contribute two. ANSI escape
// sequences (styled prompts) contribute zero.
func StringWidth(s string) int {
	if s == "" {
		return 0
	}
	if strings.ContainsRune(s, ansi.Marker) {
		s = stripANSI(s)
	}
	width := 0
	state := -1
	var cluster string
	for len(s) > 0 {
		cluster, s, _, state = uniseg.FirstGraphemeClusterInString(s, state)
		width += clusterWidth(cluster)
	}
	return width
}

// stripANSI removes escape sequences so only printable content is measured.
// Terminator detection matches reflow's ANSI-aware writers.
func stripANSI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSeq := false
	for _, r := range s {
		switch {
		case inSeq:
			if ansi.IsTerminator(r) {
				inSeq = false
			}
		case r == ansi.Marker:
			inSeq = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// clusterWidth returns the column width of one grapheme cluster. The first
// non-zero-width rune decides; trailing combining marks add nothing.
func clusterWidth(cluster string) int {
	for _, r := range cluster {
		if w := runewidth.RuneWidth(r); w > 0 {
			return w
		}
	}
	return 0
}

// WrappedLineCount returns the number of terminal rows occupied by a prompt
// of promptWidth columns followed by contentWidth columns of input,
// including the row the cursor lands on when the content fills the final
// row exactly (see ForceWrapAtBoundary).
func WrappedLineCount(promptWidth, contentWidth, termWidth int) (int, error) {
	if termWidth <= 0 {
		return 0, ErrBadWidth
	}
	total := promptWidth + contentWidth
	return total/termWidth + 1, nil
}

// CursorPosition returns the screen position of the cursor for the given
// width of content preceding it. The row is relative to the row containing
// the end of the prompt (0 = same row as the prompt); col is zero-based.
func CursorPosition(promptWidth, widthBeforeCursor, termWidth int) (row, col int, err error) {
	if termWidth <= 0 {
		return 0, 0, ErrBadWidth
	}
	total := promptWidth + widthBeforeCursor
	return total / termWidth, total % termWidth, nil
}

// SplitRows chunks plain content into row-sized pieces for a terminal of
// termWidth columns whose first row already has promptWidth columns
// consumed. A chunk never splits a grapheme cluster; a wide character that
// does not fit in the remaining columns of a row starts the next row. An
// embedded newline forces a row break and is never stored in a row, so the
// renderer realizes it through its own newline operation instead of writing
// a raw LF. The returned slice always has at least one element (the first
// row may be empty when the content is empty).
func SplitRows(content string, promptWidth, termWidth int) ([]string, error) {
	if termWidth <= 0 {
		return nil, ErrBadWidth
	}
	rows := []string{""}
	remaining := termWidth - promptWidth
	if remaining <= 0 {
		remaining = termWidth
	}
	state := -1
	atWrap := false
	var cluster string
	for len(content) > 0 {
		cluster, content, _, state = uniseg.FirstGraphemeClusterInString(content, state)
		if strings.ContainsRune(cluster, '\n') {
			// A forced wrap already opened a fresh row; the newline and
			// the wrap land on the same row, never two.
			if !atWrap {
				rows = append(rows, "")
			}
			remaining = termWidth
			atWrap = false
			continue
		}
		w := clusterWidth(cluster)
		if w > remaining {
			rows = append(rows, "")
			remaining = termWidth
		}
		rows[len(rows)-1] += cluster
		remaining -= w
		atWrap = false
		if remaining == 0 {
			rows = append(rows, "")
			remaining = termWidth
			atWrap = true
		}
	}
	return rows, nil
}

// RowAdvance returns how many rows a logical line pushes the line after it
// down: at least one, more when the line wraps. A line that fills its last
// row exactly does not add a row beyond the fill, since the following line
// occupies the row the forced wrap opened.
func RowAdvance(promptWidth, contentWidth, termWidth int) (int, error) {
	if termWidth <= 0 {
		return 0, ErrBadWidth
	}
	total := promptWidth + contentWidth
	if total == 0 {
		return 1, nil
	}
	rows := total / termWidth
	if total%termWidth != 0 {
		rows++
	}
	return rows, nil
}
