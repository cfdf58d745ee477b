package termio

import (
	"os"
	"strings"

	"github.com/muesli/termenv"
	"go.uber.org/zap"
)

// Capabilities is detected once per session at Open and cached.
type Capabilities struct {
	// ColorProfile is the termenv color profile of the attached terminal.
	ColorProfile termenv.Profile
	// TermType is the terminal family, from LUSUSH_TERM if set, else TERM.
	TermType string
	// SupportsReliableCursorQuery reports whether DSR cursor position
	// queries can be trusted on this terminal. When false the display
	// synchronizer tracks the cursor purely by computation.
	SupportsReliableCursorQuery bool
}

// Terminals whose DSR behavior is absent or too erratic to trust.
var unreliableQueryTerms = map[string]bool{
	"dumb":   true,
	"cons25": true,
	"emacs":  true,
}

// DetectCapabilities probes the terminal once. The LUSUSH_TERM environment
// variable overrides TERM for terminal-type classification.
func DetectCapabilities(out *os.File, logger *zap.Logger) Capabilities {
	if logger == nil {
		logger = zap.NewNop()
	}

	termType := os.Getenv("LUSUSH_TERM")
	if termType == "" {
		termType = os.Getenv("TERM")
	}

	family := termType
	if i := strings.IndexByte(family, '-'); i > 0 {
		family = family[:i]
	}

	caps := Capabilities{
		ColorProfile:                termenv.NewOutput(out).Profile,
		TermType:                    termType,
		SupportsReliableCursorQuery: termType != "" && !unreliableQueryTerms[family],
	}

	logger.Debug("terminal capabilities detected",
		zap.String("term", caps.TermType),
		zap.Int("colorProfile", int(caps.ColorProfile)),
		zap.Bool("reliableCursorQuery", caps.SupportsReliableCursorQuery),
	)
	return caps
}
