package lle

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/lusush/lusush/internal/completion"
	"github.com/lusush/lusush/pkg/keys"
)

// menuMaxRows caps the overlay height so a huge candidate set never pushes
// the prompt off screen. The visible window slides with the selection.
const menuMaxRows = 8

var (
	menuItemStyle     = lipgloss.NewStyle().Faint(true)
	menuSelectedStyle = lipgloss.NewStyle().Reverse(true)
)

// menuState is the active completion menu. start is the rune offset where
// the completed word begins; the buffer text in [start, cursor) is always
// the currently selected candidate, so cycling replaces that range.
type menuState struct {
	active     bool
	candidates []completion.Candidate
	selected   int
	start      int
	original   string
}

func (m *menuState) reset() {
	*m = menuState{}
}

func (m *menuState) next() {
	m.selected = (m.selected + 1) % len(m.candidates)
}

func (m *menuState) prev() {
	m.selected--
	if m.selected < 0 {
		m.selected = len(m.candidates) - 1
	}
}

// handleMenuKey processes a key while the completion menu is open. It
// reports false for keys the menu does not consume; the caller then closes
// the menu and handles the key as a plain editing key.
func (e *Editor) handleMenuKey(ev keys.Event) bool {
	switch {
	case ev.Key == keys.KeyTab || (ev.Key == keys.KeyDown && !ev.Alt):
		e.menu.next()
		e.applySelected()
		return true

	case ev.Key == keys.KeyUp && !ev.Alt:
		e.menu.prev()
		e.applySelected()
		return true

	case ev.Key == keys.KeyEnter:
		// Keep the selected candidate; Enter closes the menu rather than
		// accepting the whole line.
		e.closeMenu()
		return true

	case ev.Key == keys.KeyEscape:
		e.buf.ReplaceRange(e.menu.start, e.buf.Cursor(), e.menu.original)
		e.closeMenu()
		return true
	}

	e.closeMenu()
	return false
}

func (e *Editor) applySelected() {
	cand := e.menu.candidates[e.menu.selected]
	e.buf.ReplaceRange(e.menu.start, e.buf.Cursor(), cand.Value)
}

func (e *Editor) closeMenu() {
	e.menu.reset()
	e.state = stateEditing
}

// overlay renders the rows drawn below the input: the search status line
// during a reverse history search, the completion menu while it is open.
// An empty result means no overlay.
func (e *Editor) overlay() []string {
	if e.search.active {
		return e.searchOverlay()
	}
	if !e.menu.active {
		return nil
	}
	width, _, err := e.dev.Size()
	if err != nil || width <= 1 {
		return nil
	}

	// Slide a fixed-height window so the selection stays visible.
	first := 0
	count := len(e.menu.candidates)
	if count > menuMaxRows {
		first = e.menu.selected - menuMaxRows/2
		if first < 0 {
			first = 0
		}
		if first > count-menuMaxRows {
			first = count - menuMaxRows
		}
		count = menuMaxRows
	}

	rows := make([]string, 0, count)
	for i := first; i < first+count; i++ {
		label := e.menu.candidates[i].Display
		if label == "" {
			label = e.menu.candidates[i].Value
		}
		label = truncate.String(label, uint(width-1))
		if i == e.menu.selected {
			label = menuSelectedStyle.Render(label)
		} else {
			label = menuItemStyle.Render(label)
		}
		rows = append(rows, label)
	}
	return rows
}
