package lle

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/lusush/lusush/pkg/keys"
)

// searchLimit bounds how many matches one query pulls from the archive.
const searchLimit = 50

var searchStatusStyle = lipgloss.NewStyle().Faint(true)

// searchState is an active reverse history search. original is the line
// that was being edited when the search began; it comes back when the
// search is abandoned.
type searchState struct {
	active   bool
	query    []rune
	matches  []string
	idx      int
	original string
}

func (s *searchState) reset() {
	*s = searchState{}
}

// enterSearch opens a reverse history search over the current line.
func (e *Editor) enterSearch() {
	e.search = searchState{active: true, original: e.buf.String()}
	e.state = stateHistorySearch
}

// handleSearchKey processes a key while a reverse search is active. It
// reports false for keys the search does not consume; the caller then ends
// the search keeping the found line and re-dispatches the key, which is
// how Enter accepts a found command directly.
func (e *Editor) handleSearchKey(ev keys.Event) bool {
	if ev.Alt {
		e.endSearch()
		return false
	}
	switch ev.Key {
	case keys.KeyRune:
		e.search.query = append(e.search.query, ev.Rune)
		e.refreshSearch()
		return true

	case keys.KeyBackspace:
		if n := len(e.search.query); n > 0 {
			e.search.query = e.search.query[:n-1]
		}
		e.refreshSearch()
		return true

	case keys.KeyCtrlR:
		// Step to the next older match.
		if e.search.idx+1 < len(e.search.matches) {
			e.search.idx++
			e.buf.Replace(e.search.matches[e.search.idx])
		} else {
			e.bell()
		}
		return true

	case keys.KeyEscape, keys.KeyCtrlG:
		// Abandon the search and put the original line back.
		e.buf.Replace(e.search.original)
		e.endSearch()
		return true
	}

	e.endSearch()
	return false
}

func (e *Editor) endSearch() {
	e.search.reset()
	e.state = stateEditing
}

// refreshSearch recomputes the match set for the current query and shows
// the newest match in the buffer. An empty query restores the original
// line rather than matching everything.
func (e *Editor) refreshSearch() {
	if len(e.search.query) == 0 {
		e.search.matches = nil
		e.search.idx = 0
		e.buf.Replace(e.search.original)
		return
	}
	e.search.matches = e.searchMatches(string(e.search.query))
	e.search.idx = 0
	if len(e.search.matches) == 0 {
		e.bell()
		return
	}
	e.buf.Replace(e.search.matches[0])
}

// searchMatches returns commands starting with prefix, newest first, with
// duplicates collapsed. The archive-backed hook is preferred; without one
// the in-memory store is scanned.
func (e *Editor) searchMatches(prefix string) []string {
	if e.opts.Search != nil {
		matches, err := e.opts.Search(prefix, searchLimit)
		if err == nil {
			return lo.Uniq(matches)
		}
		e.logger.Debug("history search failed", zap.Error(err))
	}
	if e.opts.History == nil {
		return nil
	}
	entries := e.opts.History.Entries()
	var matches []string
	for i := len(entries) - 1; i >= 0 && len(matches) < searchLimit; i-- {
		if strings.HasPrefix(entries[i].Text, prefix) {
			matches = append(matches, entries[i].Text)
		}
	}
	return lo.Uniq(matches)
}

// searchOverlay renders the search status row below the input. The found
// command itself lives in the edit buffer, so only the query is shown.
func (e *Editor) searchOverlay() []string {
	width, _, err := e.dev.Size()
	if err != nil || width <= 1 {
		return nil
	}
	label := "(reverse-i-search)"
	if len(e.search.query) > 0 && len(e.search.matches) == 0 {
		label = "(failed reverse-i-search)"
	}
	line := label + "`" + string(e.search.query) + "': "
	line = truncate.String(line, uint(width-1))
	return []string{searchStatusStyle.Render(line)}
}
