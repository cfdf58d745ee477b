// Package termio is the sole owner of the terminal device. Every byte the
// editor writes to the screen funnels through the closed operation set on
// Terminal, which is what makes shadow-state tracking in pkg/display
// possible: any new terminal effect must be added here, never assembled
// ad hoc elsewhere.
package termio

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	// ErrWriteFailed wraps any failure to emit bytes to the terminal.
	// Callers treat it as non-fatal and invalidate their shadow state.
	ErrWriteFailed = errors.New("termio: terminal write failed")

	// ErrQueryTimeout is returned when the terminal does not answer a
	// cursor position report within the deadline.
	ErrQueryTimeout = errors.New("termio: cursor position query timed out")

	// ErrNotATerminal is returned when stdin or stdout is not a tty.
	ErrNotATerminal = errors.New("termio: not a terminal")
)

// Device is the operation set the display synchronizer reconciles with.
// Implementations must account for every cursor movement and clear exactly,
// since the caller mirrors each call into its shadow model.
type Device interface {
	// WriteText writes printable text at the cursor. The caller guarantees
	// the text fits in the current row; wrapping is realized with Newline.
	WriteText(text string) error
	// Newline moves the cursor to column 0 of the next row (CR + LF),
	// scrolling if the cursor is on the last row.
	Newline() error
	CursorUp(n int) error
	CursorDown(n int) error
	// CursorToColumn moves to the zero-based column on the current row.
	CursorToColumn(col int) error
	ClearToEndOfLine() error
	ClearToEndOfScreen() error
	// ClearScreen wipes the whole screen and homes the cursor.
	ClearScreen() error
	// Bell sounds the terminal alert. It moves nothing and prints
	// nothing, so shadow state is unaffected.
	Bell() error
	// Size returns the terminal dimensions in columns and rows.
	Size() (cols, rows int, err error)
}

// ByteSource delivers raw input bytes with a bounded wait. The key decoder
// and the cursor-position query share one source so a DSR response can
// never leak into the key stream.
type ByteSource interface {
	// ReadByte waits up to timeout for the next input byte. A timeout of
	// zero or less waits indefinitely. ok is false on timeout or closed
	// input.
	ReadByte(timeout time.Duration) (b byte, ok bool)
}

// cursorQueryDeadline bounds how long we wait for a DSR response. An
// unresponsive terminal must never hang the editor.
const cursorQueryDeadline = 50 * time.Millisecond

// Terminal talks to the real tty. Create one per interactive session with
// Open, and always pair EnterRawMode with RestoreMode.
type Terminal struct {
	in     *os.File
	out    *os.File
	logger *zap.Logger

	caps     Capabilities
	oldState *term.State

	bytes    chan byte
	pushback []byte

	resize chan struct{}
	sigch  chan os.Signal
}

// Open prepares the terminal adapter on the given tty files and starts the
// input pump. Capabilities are detected once here, never per keystroke.
func Open(in, out *os.File, logger *zap.Logger) (*Terminal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !term.IsTerminal(int(in.Fd())) || !term.IsTerminal(int(out.Fd())) {
		return nil, ErrNotATerminal
	}

	t := &Terminal{
		in:     in,
		out:    out,
		logger: logger,
		caps:   DetectCapabilities(out, logger),
		bytes:  make(chan byte, 256),
		resize: make(chan struct{}, 1),
		sigch:  make(chan os.Signal, 1),
	}

	go t.pump()

	signal.Notify(t.sigch, syscall.SIGWINCH)
	go func() {
		for range t.sigch {
			// Only a non-blocking flag set; the editor loop picks the
			// event up at the top of its next iteration.
			select {
			case t.resize <- struct{}{}:
			default:
			}
		}
	}()

	return t, nil
}

// pump moves bytes from the tty into the channel so reads can use real
// timeouts.
func (t *Terminal) pump() {
	buf := make([]byte, 64)
	for {
		n, err := t.in.Read(buf)
		if err != nil {
			close(t.bytes)
			return
		}
		for i := 0; i < n; i++ {
			t.bytes <- buf[i]
		}
	}
}

// ReadByte implements ByteSource. Pushed-back bytes (input that arrived
// interleaved with a DSR response) are delivered first.
func (t *Terminal) ReadByte(timeout time.Duration) (byte, bool) {
	if len(t.pushback) > 0 {
		b := t.pushback[0]
		t.pushback = t.pushback[1:]
		return b, true
	}
	if timeout <= 0 {
		b, ok := <-t.bytes
		return b, ok
	}
	select {
	case b, ok := <-t.bytes:
		return b, ok
	case <-time.After(timeout):
		return 0, false
	}
}

// Resize delivers one event per terminal size change, coalesced.
func (t *Terminal) Resize() <-chan struct{} { return t.resize }

// Capabilities returns the capabilities detected at Open.
func (t *Terminal) Capabilities() Capabilities { return t.caps }

// EnterRawMode switches the tty to raw mode. The previous state is kept so
// RestoreMode can undo it; callers must guarantee RestoreMode runs on every
// exit path.
func (t *Terminal) EnterRawMode() error {
	state, err := term.MakeRaw(int(t.in.Fd()))
	if err != nil {
		return fmt.Errorf("termio: enter raw mode: %w", err)
	}
	t.oldState = state
	return nil
}

// RestoreMode undoes EnterRawMode. Safe to call more than once.
func (t *Terminal) RestoreMode() {
	if t.oldState == nil {
		return
	}
	if err := term.Restore(int(t.in.Fd()), t.oldState); err != nil {
		t.logger.Warn("failed to restore terminal mode", zap.Error(err))
	}
	t.oldState = nil
}

// Close restores the terminal mode and stops signal delivery.
func (t *Terminal) Close() {
	signal.Stop(t.sigch)
	close(t.sigch)
	t.RestoreMode()
}

func (t *Terminal) write(s string) error {
	if _, err := t.out.WriteString(s); err != nil {
		t.logger.Warn("terminal write failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// WriteText implements Device.
func (t *Terminal) WriteText(text string) error { return t.write(text) }

// Newline implements Device.
func (t *Terminal) Newline() error { return t.write("\r\n") }

// CursorUp implements Device.
func (t *Terminal) CursorUp(n int) error {
	if n <= 0 {
		return nil
	}
	return t.write(fmt.Sprintf("\x1b[%dA", n))
}

// CursorDown implements Device.
func (t *Terminal) CursorDown(n int) error {
	if n <= 0 {
		return nil
	}
	return t.write(fmt.Sprintf("\x1b[%dB", n))
}

// CursorToColumn implements Device. col is zero-based; CHA is one-based.
func (t *Terminal) CursorToColumn(col int) error {
	return t.write(fmt.Sprintf("\x1b[%dG", col+1))
}

// ClearToEndOfLine implements Device.
func (t *Terminal) ClearToEndOfLine() error { return t.write("\x1b[K") }

// ClearToEndOfScreen implements Device.
func (t *Terminal) ClearToEndOfScreen() error { return t.write("\x1b[J") }

// ClearScreen clears the whole screen and homes the cursor (Ctrl-L).
func (t *Terminal) ClearScreen() error { return t.write("\x1b[2J\x1b[H") }

// Bell rings the terminal bell.
func (t *Terminal) Bell() error { return t.write("\a") }

// Size implements Device.
func (t *Terminal) Size() (cols, rows int, err error) {
	cols, rows, err = term.GetSize(int(t.out.Fd()))
	if err != nil {
		return 0, 0, fmt.Errorf("termio: get size: %w", err)
	}
	return cols, rows, nil
}

// CursorPosition issues a DSR (ESC[6n) and waits for the ESC[row;colR
// response, both one-based. The whole response is consumed before
// returning, and any user input that raced ahead of the response is pushed
// back for the key decoder — on some terminals the two interleave if the
// timing is wrong. On timeout the caller must fall back to computed
// positions.
func (t *Terminal) CursorPosition() (row, col int, err error) {
	if !t.caps.SupportsReliableCursorQuery {
		return 0, 0, ErrQueryTimeout
	}
	if err := t.write("\x1b[6n"); err != nil {
		return 0, 0, err
	}

	deadline := time.Now().Add(cursorQueryDeadline)
	var stashed []byte
	var resp []byte
	inResponse := false
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.pushback = append(t.pushback, stashed...)
			return 0, 0, ErrQueryTimeout
		}
		b, ok := t.ReadByte(remaining)
		if !ok {
			t.pushback = append(t.pushback, stashed...)
			return 0, 0, ErrQueryTimeout
		}
		if !inResponse {
			if b == 0x1b {
				inResponse = true
				resp = append(resp[:0], b)
				continue
			}
			stashed = append(stashed, b)
			continue
		}
		resp = append(resp, b)
		if b == 'R' {
			row, col, perr := parseDSR(resp)
			t.pushback = append(t.pushback, stashed...)
			if perr != nil {
				t.logger.Debug("malformed DSR response", zap.ByteString("resp", resp))
				return 0, 0, perr
			}
			return row, col, nil
		}
		if len(resp) > 16 {
			// Not a DSR response after all; treat it as pending input.
			t.pushback = append(t.pushback, stashed...)
			t.pushback = append(t.pushback, resp...)
			return 0, 0, ErrQueryTimeout
		}
	}
}

// AlignToRowStart makes sure the next prompt begins in column 0. A
// foreground command that exits without a trailing newline leaves the
// cursor mid-row, which would skew the region origin the display shadow is
// anchored to. Terminals without a reliable cursor query are left alone.
// Call only while nothing else is consuming input bytes: once a key
// decoder is draining ReadByte, the query would race it for the response.
func (t *Terminal) AlignToRowStart() error {
	if !t.caps.SupportsReliableCursorQuery {
		return nil
	}
	_, col, err := t.CursorPosition()
	if err != nil {
		return err
	}
	if col > 1 {
		return t.Newline()
	}
	return nil
}

// parseDSR parses ESC[row;colR.
func parseDSR(resp []byte) (row, col int, err error) {
	if len(resp) < 6 || resp[0] != 0x1b || resp[1] != '[' || resp[len(resp)-1] != 'R' {
		return 0, 0, ErrQueryTimeout
	}
	parsingCol := false
	for _, b := range resp[2 : len(resp)-1] {
		switch {
		case b == ';':
			parsingCol = true
		case b >= '0' && b <= '9':
			if parsingCol {
				col = col*10 + int(b-'0')
			} else {
				row = row*10 + int(b-'0')
			}
		default:
			return 0, 0, ErrQueryTimeout
		}
	}
	if row == 0 || col == 0 {
		return 0, 0, ErrQueryTimeout
	}
	return row, col, nil
}
