package keys

import (
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/lusush/lusush/pkg/termio"
)

// escTimeout is how long the decoder waits for an escape sequence to
// continue before treating the ESC byte as a bare Escape press. 50ms
// matches standard terminal escape timing: shorter risks splitting
// legitimate sequences, longer delays plain-Escape responsiveness.
const escTimeout = 50 * time.Millisecond

// utf8Timeout bounds the wait for continuation bytes of a multi-byte rune;
// they arrive back to back, so a short wait suffices.
const utf8Timeout = 20 * time.Millisecond

// Decoder reads bytes from a termio.ByteSource and produces key events.
// It is not safe for concurrent use; the editor loop is its only caller.
type Decoder struct {
	src    termio.ByteSource
	logger *zap.Logger
}

// NewDecoder returns a decoder over src.
func NewDecoder(src termio.ByteSource, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{src: src, logger: logger}
}

// Next blocks until a key event is available. ok is false when the input
// stream has ended.
func (d *Decoder) Next() (Event, bool) {
	for {
		b, open := d.src.ReadByte(0)
		if !open {
			return Event{}, false
		}
		if ev, ok := d.decode(b); ok {
			ev.Time = time.Now()
			return ev, true
		}
		// Malformed byte dropped; resume at the next one.
	}
}

func (d *Decoder) decode(b byte) (Event, bool) {
	if b == 0x1b {
		return d.decodeEscape(), true
	}
	if k, ok := controlKeys[b]; ok {
		return Event{Key: k}, true
	}
	if b < 0x20 {
		// Unbound control byte.
		return Event{}, false
	}
	return d.decodeRune(b)
}

// decodeRune assembles a UTF-8 sequence starting at first. A malformed
// sequence drops the offending byte so buffer invariants can never be
// corrupted by wire garbage.
func (d *Decoder) decodeRune(first byte) (Event, bool) {
	if first < utf8.RuneSelf {
		return Event{Key: KeyRune, Rune: rune(first)}, true
	}
	var n int
	switch {
	case first&0xe0 == 0xc0:
		n = 1
	case first&0xf0 == 0xe0:
		n = 2
	case first&0xf8 == 0xf0:
		n = 3
	default:
		d.logger.Debug("dropping malformed utf-8 lead byte", zap.Uint8("byte", first))
		return Event{}, false
	}

	buf := make([]byte, 1, n+1)
	buf[0] = first
	for i := 0; i < n; i++ {
		b, ok := d.src.ReadByte(utf8Timeout)
		if !ok {
			d.logger.Debug("dropping truncated utf-8 sequence", zap.Binary("bytes", buf))
			return Event{}, false
		}
		buf = append(buf, b)
	}
	r, size := utf8.DecodeRune(buf)
	if r == utf8.RuneError && size <= 1 {
		d.logger.Debug("dropping malformed utf-8 sequence", zap.Binary("bytes", buf))
		return Event{}, false
	}
	return Event{Key: KeyRune, Rune: r}, true
}

// decodeEscape handles everything after an ESC byte: bare Escape on
// timeout, Alt-modified runes, and CSI/SS3 sequences via the static table.
func (d *Decoder) decodeEscape() Event {
	b, ok := d.src.ReadByte(escTimeout)
	if !ok {
		return Event{Key: KeyEscape}
	}

	if b != '[' && b != 'O' {
		// ESC <rune> is an Alt chord (Alt-b, Alt-f, Alt-d, ...).
		if ev, ok := d.decodeRune(b); ok && ev.Key == KeyRune {
			ev.Alt = true
			return ev
		}
		if k, ok := controlKeys[b]; ok {
			return Event{Key: k, Alt: true}
		}
		return Event{Key: KeyUnknownEscape, Raw: []byte{0x1b, b}}
	}

	seq := []byte{b}
	for {
		b, ok := d.src.ReadByte(escTimeout)
		if !ok {
			// Sequence stalled mid-way; report what we saw.
			return d.lookup(seq)
		}
		seq = append(seq, b)
		// A CSI sequence ends at its final byte; SS3 ends after one byte.
		if seq[0] == 'O' || (b >= 0x40 && b <= 0x7e) {
			return d.lookup(seq)
		}
		if len(seq) > 16 {
			return d.lookup(seq)
		}
	}
}

func (d *Decoder) lookup(seq []byte) Event {
	if ev, ok := sequences[string(seq)]; ok {
		return ev
	}
	raw := append([]byte{0x1b}, seq...)
	d.logger.Debug("unknown escape sequence", zap.ByteString("seq", raw))
	return Event{Key: KeyUnknownEscape, Raw: raw}
}
