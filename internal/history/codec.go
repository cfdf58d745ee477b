package history

import (
	"errors"
	"strings"
)

// The history file is newline-delimited: one logical entry per record.
// Multi-line commands are escaped so no information is lost: backslash
// becomes `\\` and a newline becomes `\n`. Decode reverses both. Any other
// escape, or a dangling backslash, marks the record corrupt.

// ErrCorruptEntry is returned by Decode for records that are not valid
// output of Encode.
var ErrCorruptEntry = errors.New("history: corrupt entry")

// Encode escapes one command for storage as a single line.
func Encode(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Decode reverses Encode.
func Decode(line string) (string, error) {
	if !strings.ContainsRune(line, '\\') {
		return line, nil
	}
	var b strings.Builder
	b.Grow(len(line))
	escaped := false
	for _, r := range line {
		if !escaped {
			if r == '\\' {
				escaped = true
			} else {
				b.WriteRune(r)
			}
			continue
		}
		switch r {
		case '\\':
			b.WriteRune('\\')
		case 'n':
			b.WriteRune('\n')
		default:
			return "", ErrCorruptEntry
		}
		escaped = false
	}
	if escaped {
		return "", ErrCorruptEntry
	}
	return b.String(), nil
}
