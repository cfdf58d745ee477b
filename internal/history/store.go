// Package history keeps the ordered list of previously entered commands
// and the navigation state for Up/Down recall. Entries persist to a
// newline-delimited text file; multi-line commands are escaped losslessly
// (see codec.go). A richer sqlite archive with timestamps and exit codes
// lives alongside in archive.go.
package history

import (
	"bufio"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Entry is one remembered command. Text is stored exactly as entered,
// embedded newlines included. Entries are owned by the Store; recall copies
// the text, it never aliases.
type Entry struct {
	Text string
	Seq  int
}

// Options configures the store.
type Options struct {
	// DedupAdjacent drops an Add that repeats the most recent entry.
	DedupAdjacent bool
}

// Store holds history in memory and mirrors accepted entries to a file.
// Navigation state is explicit and must be reset at line acceptance or
// cancellation so no stale position leaks into the next command.
type Store struct {
	path   string
	opts   Options
	logger *zap.Logger

	entries []Entry
	nextSeq int

	// nav points at the entry currently recalled; len(entries) means the
	// newest position, where the in-progress pending line lives.
	nav      int
	pending  string
	browsing bool
}

// NewStore creates a store backed by the file at path and loads whatever
// the file holds. Corrupt lines are skipped, never fatal: a damaged
// history file must not prevent session start.
func NewStore(path string, opts Options, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{path: path, opts: opts, logger: logger}
	s.nav = 0
	if err := s.load(); err != nil {
		logger.Warn("could not load history file", zap.String("path", path), zap.Error(err))
	}
	s.ResetNavigation()
	return s
}

// Len returns the number of entries.
func (s *Store) Len() int { return len(s.entries) }

// Entries returns the stored entries, oldest first.
func (s *Store) Entries() []Entry { return s.entries }

// Add appends an accepted command and mirrors it to the history file.
// Empty commands are ignored, as are adjacent duplicates when configured.
func (s *Store) Add(text string) {
	if text == "" {
		return
	}
	if s.opts.DedupAdjacent && len(s.entries) > 0 && s.entries[len(s.entries)-1].Text == text {
		s.ResetNavigation()
		return
	}
	s.entries = append(s.entries, Entry{Text: text, Seq: s.nextSeq})
	s.nextSeq++
	s.ResetNavigation()

	if s.path == "" {
		return
	}
	if err := s.appendToFile(text); err != nil {
		s.logger.Warn("could not append to history file", zap.Error(err))
	}
}

// BeginBrowse snapshots the in-progress line before the first navigation
// step, so navigating back past the newest entry restores it exactly.
func (s *Store) BeginBrowse(pending string) {
	if s.browsing {
		return
	}
	s.browsing = true
	s.pending = pending
	s.nav = len(s.entries)
}

// Browsing reports whether a navigation session is active.
func (s *Store) Browsing() bool { return s.browsing }

// Prev steps toward older entries. At the oldest entry it reports false
// and moves nothing.
func (s *Store) Prev() (string, bool) {
	if !s.browsing || s.nav == 0 {
		return "", false
	}
	s.nav--
	return s.entries[s.nav].Text, true
}

// Next steps toward newer entries. Stepping past the newest entry returns
// the pending in-progress line; at the pending position it reports false.
func (s *Store) Next() (string, bool) {
	if !s.browsing || s.nav >= len(s.entries) {
		return "", false
	}
	s.nav++
	if s.nav == len(s.entries) {
		return s.pending, true
	}
	return s.entries[s.nav].Text, true
}

// AtPending reports whether navigation sits at the in-progress line.
func (s *Store) AtPending() bool { return s.nav >= len(s.entries) }

// ResetNavigation clears browsing state. Called on line acceptance and
// cancellation; stale navigation state must never survive into an
// unrelated command.
func (s *Store) ResetNavigation() {
	s.browsing = false
	s.pending = ""
	s.nav = len(s.entries)
}

func (s *Store) load() error {
	if s.path == "" {
		return nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text, err := Decode(scanner.Text())
		if err != nil {
			s.logger.Warn("skipping corrupt history line",
				zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		if text == "" {
			continue
		}
		s.entries = append(s.entries, Entry{Text: text, Seq: s.nextSeq})
		s.nextSeq++
	}
	return scanner.Err()
}

func (s *Store) appendToFile(text string) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, Encode(text)); err != nil {
		return err
	}
	return nil
}
