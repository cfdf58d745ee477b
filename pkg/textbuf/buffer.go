// Package textbuf holds the line of input currently being edited.
//
// The buffer stores the content as a rune slice and the cursor as a rune
// index, so the cursor can never land inside a multi-byte encoding. All
// mutating operations clamp the cursor into [0, Len()].
package textbuf

import (
	"strings"
	"unicode"
)

// Buffer is an editable sequence of runes with a cursor.
// The zero value is an empty buffer with the cursor at offset 0.
type Buffer struct {
	content  []rune
	cursor   int
	modified bool
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// Len returns the number of runes in the buffer.
func (b *Buffer) Len() int { return len(b.content) }

// Cursor returns the cursor offset in runes.
func (b *Buffer) Cursor() int { return b.cursor }

// Modified reports whether the buffer has been mutated since the last Reset.
func (b *Buffer) Modified() bool { return b.modified }

// String returns the buffer content as a string.
func (b *Buffer) String() string { return string(b.content) }

// Runes returns a read-only view of the content. Callers must not retain
// the slice across mutations; render passes copy what they need.
func (b *Buffer) Runes() []rune { return b.content }

// BeforeCursor returns the content before the cursor.
func (b *Buffer) BeforeCursor() string { return string(b.content[:b.cursor]) }

// AfterCursor returns the content at and after the cursor.
func (b *Buffer) AfterCursor() string { return string(b.content[b.cursor:]) }

// Insert inserts a single rune at the cursor and advances the cursor past it.
func (b *Buffer) Insert(r rune) {
	b.content = append(b.content, 0)
	copy(b.content[b.cursor+1:], b.content[b.cursor:])
	b.content[b.cursor] = r
	b.cursor++
	b.modified = true
}

// InsertString inserts a string at the cursor and advances the cursor past it.
func (b *Buffer) InsertString(s string) {
	if s == "" {
		return
	}
	runes := []rune(s)
	b.content = append(b.content[:b.cursor], append(runes, b.content[b.cursor:]...)...)
	b.cursor += len(runes)
	b.modified = true
}

// DeleteBefore removes the rune immediately before the cursor.
// At offset 0 it is a no-op and reports false.
func (b *Buffer) DeleteBefore() bool {
	if b.cursor == 0 {
		return false
	}
	b.content = append(b.content[:b.cursor-1], b.content[b.cursor:]...)
	b.cursor--
	b.modified = true
	return true
}

// DeleteAfter removes the rune at the cursor.
// At the end of the buffer it is a no-op and reports false.
func (b *Buffer) DeleteAfter() bool {
	if b.cursor >= len(b.content) {
		return false
	}
	b.content = append(b.content[:b.cursor], b.content[b.cursor+1:]...)
	b.modified = true
	return true
}

// Move shifts the cursor by delta runes, clamped to [0, Len()].
func (b *Buffer) Move(delta int) {
	b.cursor = clamp(b.cursor+delta, 0, len(b.content))
}

// MoveToStart places the cursor at offset 0.
func (b *Buffer) MoveToStart() { b.cursor = 0 }

// MoveToEnd places the cursor after the last rune.
func (b *Buffer) MoveToEnd() { b.cursor = len(b.content) }

// WordBackward moves the cursor to the start of the previous word.
func (b *Buffer) WordBackward() {
	i := b.cursor
	for i > 0 && !isWordRune(b.content[i-1]) {
		i--
	}
	for i > 0 && isWordRune(b.content[i-1]) {
		i--
	}
	b.cursor = i
}

// WordForward moves the cursor past the end of the next word.
func (b *Buffer) WordForward() {
	i := b.cursor
	for i < len(b.content) && !isWordRune(b.content[i]) {
		i++
	}
	for i < len(b.content) && isWordRune(b.content[i]) {
		i++
	}
	b.cursor = i
}

// DeleteWordBackward removes from the start of the previous word to the
// cursor and returns the removed text.
func (b *Buffer) DeleteWordBackward() string {
	end := b.cursor
	b.WordBackward()
	start := b.cursor
	removed := string(b.content[start:end])
	b.content = append(b.content[:start], b.content[end:]...)
	if removed != "" {
		b.modified = true
	}
	return removed
}

// DeleteWordForward removes from the cursor to the end of the next word and
// returns the removed text.
func (b *Buffer) DeleteWordForward() string {
	start := b.cursor
	b.WordForward()
	end := b.cursor
	removed := string(b.content[start:end])
	b.content = append(b.content[:start], b.content[end:]...)
	b.cursor = start
	if removed != "" {
		b.modified = true
	}
	return removed
}

// DeleteToStart removes everything before the cursor and returns it.
func (b *Buffer) DeleteToStart() string {
	removed := string(b.content[:b.cursor])
	b.content = append(b.content[:0], b.content[b.cursor:]...)
	b.cursor = 0
	if removed != "" {
		b.modified = true
	}
	return removed
}

// DeleteToEnd removes everything at and after the cursor and returns it.
func (b *Buffer) DeleteToEnd() string {
	removed := string(b.content[b.cursor:])
	b.content = b.content[:b.cursor]
	if removed != "" {
		b.modified = true
	}
	return removed
}

// Replace swaps the whole content and places the cursor at the end.
// Used for history recall and completion acceptance.
func (b *Buffer) Replace(s string) {
	b.content = []rune(s)
	b.cursor = len(b.content)
	b.modified = true
}

// Reset empties the buffer and clears the modification flag.
func (b *Buffer) Reset() {
	b.content = b.content[:0]
	b.cursor = 0
	b.modified = false
}

// WordUnderCursor returns the word the cursor is in or immediately after,
// along with the rune offset of its first rune. Completion uses this to
// know what to replace.
func (b *Buffer) WordUnderCursor() (word string, start int) {
	start = b.cursor
	for start > 0 && !unicode.IsSpace(b.content[start-1]) {
		start--
	}
	return string(b.content[start:b.cursor]), start
}

// ReplaceRange replaces the runes in [start, end) with s and places the
// cursor after the inserted text.
func (b *Buffer) ReplaceRange(start, end int, s string) {
	start = clamp(start, 0, len(b.content))
	end = clamp(end, start, len(b.content))
	runes := []rune(s)
	b.content = append(b.content[:start], append(runes, b.content[end:]...)...)
	b.cursor = start + len(runes)
	b.modified = true
}

func isWordRune(r rune) bool {
	return !unicode.IsSpace(r) && !strings.ContainsRune("/=+:;,.'\"`~!@#$%^&*()[]{}|\\<>?", r)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
