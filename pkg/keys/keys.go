// Package keys turns the raw terminal byte stream into structured key
// events. Escape sequences are disambiguated from a bare Escape press with
// a short timeout, standard CSI/SS3 sequences are decoded through a static
// lookup table, and unknown sequences are surfaced (never dropped, never a
// crash) so callers can log them.
package keys

import "time"

// Key identifies a decoded key.
type Key int

const (
	KeyNone Key = iota
	// KeyRune is a printable character; the codepoint is in Event.Rune.
	KeyRune
	KeyEnter
	KeyTab
	KeyBackspace
	KeyDelete
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyEscape
	// KeyFunction is F1..F12; the number is in Event.Fn.
	KeyFunction
	// KeyUnknownEscape is an escape sequence outside the lookup table;
	// the literal bytes are in Event.Raw.
	KeyUnknownEscape

	KeyCtrlA
	KeyCtrlB
	KeyCtrlC
	KeyCtrlD
	KeyCtrlE
	KeyCtrlF
	KeyCtrlG
	KeyCtrlK
	KeyCtrlL
	KeyCtrlN
	KeyCtrlP
	KeyCtrlR
	KeyCtrlT
	KeyCtrlU
	KeyCtrlV
	KeyCtrlW
	KeyCtrlY
)

// Event is one decoded key press. Events are ephemeral: produced by the
// decoder and consumed within a single dispatch cycle.
type Event struct {
	Key  Key
	Rune rune   // valid when Key == KeyRune
	Alt  bool   // ESC-prefixed rune (Alt-b, Alt-f, ...)
	Fn   int    // valid when Key == KeyFunction
	Raw  []byte // valid when Key == KeyUnknownEscape
	Time time.Time
}

// controlKeys maps the C0 bytes the editor binds. Control characters decode
// independently of escape handling.
var controlKeys = map[byte]Key{
	0x01: KeyCtrlA,
	0x02: KeyCtrlB,
	0x03: KeyCtrlC,
	0x04: KeyCtrlD,
	0x05: KeyCtrlE,
	0x06: KeyCtrlF,
	0x07: KeyCtrlG,
	0x08: KeyBackspace, // Ctrl-H
	0x09: KeyTab,
	0x0a: KeyEnter, // LF
	0x0b: KeyCtrlK,
	0x0c: KeyCtrlL,
	0x0d: KeyEnter, // CR
	0x0e: KeyCtrlN,
	0x10: KeyCtrlP,
	0x12: KeyCtrlR,
	0x14: KeyCtrlT,
	0x15: KeyCtrlU,
	0x16: KeyCtrlV,
	0x17: KeyCtrlW,
	0x19: KeyCtrlY,
	0x7f: KeyBackspace, // DEL
}

// sequences is the static escape-sequence table, keyed by the literal bytes
// following ESC.
var sequences = map[string]Event{
	"[A": {Key: KeyUp},
	"[B": {Key: KeyDown},
	"[C": {Key: KeyRight},
	"[D": {Key: KeyLeft},
	"[H": {Key: KeyHome},
	"[F": {Key: KeyEnd},
	"OA": {Key: KeyUp},
	"OB": {Key: KeyDown},
	"OC": {Key: KeyRight},
	"OD": {Key: KeyLeft},
	"OH": {Key: KeyHome},
	"OF": {Key: KeyEnd},

	"[1~": {Key: KeyHome},
	"[2~": {Key: KeyNone}, // insert, unbound
	"[3~": {Key: KeyDelete},
	"[4~": {Key: KeyEnd},
	"[5~": {Key: KeyPageUp},
	"[6~": {Key: KeyPageDown},
	"[7~": {Key: KeyHome},
	"[8~": {Key: KeyEnd},

	"OP": {Key: KeyFunction, Fn: 1},
	"OQ": {Key: KeyFunction, Fn: 2},
	"OR": {Key: KeyFunction, Fn: 3},
	"OS": {Key: KeyFunction, Fn: 4},

	"[11~": {Key: KeyFunction, Fn: 1},
	"[12~": {Key: KeyFunction, Fn: 2},
	"[13~": {Key: KeyFunction, Fn: 3},
	"[14~": {Key: KeyFunction, Fn: 4},
	"[15~": {Key: KeyFunction, Fn: 5},
	"[17~": {Key: KeyFunction, Fn: 6},
	"[18~": {Key: KeyFunction, Fn: 7},
	"[19~": {Key: KeyFunction, Fn: 8},
	"[20~": {Key: KeyFunction, Fn: 9},
	"[21~": {Key: KeyFunction, Fn: 10},
	"[23~": {Key: KeyFunction, Fn: 11},
	"[24~": {Key: KeyFunction, Fn: 12},
}
