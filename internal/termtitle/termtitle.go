// Package termtitle sets the terminal window title. Title updates are
// best-effort: on terminals without title support every call is a silent
// no-op, and a failed write never disturbs the session.
package termtitle

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// maxTitleLength keeps window titles readable in taskbars and tab strips.
const maxTitleLength = 128

// Setter writes OSC title sequences when the terminal is known to honor
// them.
type Setter struct {
	out       io.Writer
	supported bool
	tmux      bool
}

// New builds a setter for the given output, detecting support from the
// environment.
func New(out io.Writer) *Setter {
	if out == nil {
		out = os.Stdout
	}
	term := strings.ToLower(os.Getenv("TERM"))
	tmux := os.Getenv("TMUX") != ""
	return &Setter{
		out:       out,
		supported: titleSupported(term, tmux),
		tmux:      tmux,
	}
}

// Supported reports whether title updates will actually be emitted.
func (s *Setter) Supported() bool { return s.supported }

// Set updates the window title.
func (s *Setter) Set(title string) {
	if !s.supported {
		return
	}
	title = sanitize(title)
	if s.tmux {
		// tmux needs the OSC sequence wrapped in a passthrough envelope.
		fmt.Fprintf(s.out, "\x1bPtmux;\x1b\x1b]2;%s\x07\x1b\\", title)
		return
	}
	fmt.Fprintf(s.out, "\x1b]2;%s\x07", title)
}

func titleSupported(term string, tmux bool) bool {
	if term == "" || term == "dumb" {
		return false
	}
	if tmux {
		return true
	}
	for _, prefix := range []string{"xterm", "screen", "tmux", "rxvt", "alacritty", "foot", "st", "kitty", "wezterm"} {
		if strings.HasPrefix(term, prefix) {
			return true
		}
	}
	return strings.Contains(term, "color")
}

// sanitize strips control characters so a hostile directory name cannot
// inject escape sequences through the title.
func sanitize(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		if b.Len() >= maxTitleLength {
			break
		}
	}
	return b.String()
}
