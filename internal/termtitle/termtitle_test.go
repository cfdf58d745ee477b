package termtitle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetEmitsOSCSequence(t *testing.T) {
	var buf strings.Builder
	s := &Setter{out: &buf, supported: true}

	s.Set("lusush: ~/src")
	assert.Equal(t, "\x1b]2;lusush: ~/src\x07", buf.String())
}

func TestSetWrapsForTmux(t *testing.T) {
	var buf strings.Builder
	s := &Setter{out: &buf, supported: true, tmux: true}

	s.Set("lusush")
	assert.True(t, strings.HasPrefix(buf.String(), "\x1bPtmux;"))
	assert.True(t, strings.HasSuffix(buf.String(), "\x1b\\"))
}

func TestUnsupportedTerminalIsNoOp(t *testing.T) {
	var buf strings.Builder
	s := &Setter{out: &buf, supported: false}

	s.Set("anything")
	assert.Empty(t, buf.String())
}

func TestSanitizeStripsControlCharacters(t *testing.T) {
	assert.Equal(t, "ab", sanitize("a\x1b]2;evil\x07b"))
	assert.Len(t, sanitize(strings.Repeat("x", 500)), maxTitleLength)
}

func TestTitleSupported(t *testing.T) {
	assert.False(t, titleSupported("dumb", false))
	assert.False(t, titleSupported("", false))
	assert.True(t, titleSupported("xterm-256color", false))
	assert.True(t, titleSupported("screen", false))
	assert.True(t, titleSupported("vt100", true))
	assert.False(t, titleSupported("vt100", false))
}
