// Package lle is the line editor's public surface. ReadLine owns the
// terminal for the duration of one logical line: it decodes keys, updates
// the edit buffer, and drives the display synchronizer, then hands the
// terminal back with the cursor below the input region.
//
// The dispatcher is a small state machine. Plain editing, history browsing
// and an active completion menu are distinct states; every key is handled
// by the current state's handler, and every handler funnels screen updates
// through the one reconcile path.
package lle

import (
	"context"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/lusush/lusush/internal/completion"
	"github.com/lusush/lusush/internal/history"
	"github.com/lusush/lusush/pkg/display"
	"github.com/lusush/lusush/pkg/keys"
	"github.com/lusush/lusush/pkg/termio"
	"github.com/lusush/lusush/pkg/textbuf"
)

// ResultKind says how a ReadLine call ended.
type ResultKind int

const (
	// Accepted means the user submitted the line with Enter.
	Accepted ResultKind = iota
	// Cancelled means the user abandoned the line with Ctrl-C. The
	// session continues with a fresh prompt.
	Cancelled
	// EndOfInput means Ctrl-D on an empty line or input exhaustion; the
	// session should end.
	EndOfInput
)

// LineResult is the outcome of one ReadLine call. Text is meaningful only
// when Kind is Accepted.
type LineResult struct {
	Kind ResultKind
	Text string
}

// PromptSpec describes the prompt drawn ahead of the input. Text may span
// multiple lines and carry color codes; only its last line shares a row
// with the buffer content.
type PromptSpec struct {
	Text string
}

// EventSource delivers decoded key events. keys.Decoder satisfies it;
// tests script events directly.
type EventSource interface {
	Next() (keys.Event, bool)
}

// RawModer is the raw-mode slice of a terminal. When present, ReadLine
// enters raw mode on entry and guarantees restoration on every return
// path.
type RawModer interface {
	EnterRawMode() error
	RestoreMode()
}

// Options wires the editor's collaborators. Any of them may be nil; the
// corresponding feature is simply inert.
type Options struct {
	History    *history.Store
	Completion *completion.Manager
	// Raw, when set, brackets every ReadLine call in raw mode.
	Raw RawModer
	// Resize delivers window-size-change notifications; each one
	// invalidates the shadow state and forces a full redraw.
	Resize <-chan struct{}
	// SystemClipboard routes kill/yank text through the OS clipboard in
	// addition to the editor's own kill buffer.
	SystemClipboard bool
	// Search answers reverse history search with commands starting with
	// prefix, newest first. When nil the search falls back to the
	// in-memory history store.
	Search func(prefix string, limit int) ([]string, error)
	Logger *zap.Logger
}

type editorState int

const (
	stateEditing editorState = iota
	stateHistoryBrowsing
	stateCompletionActive
	stateHistorySearch
)

// completionTimeout bounds how long providers may take; a slow provider
// must never freeze typing.
const completionTimeout = 500 * time.Millisecond

// Editor reads lines interactively. Create one per session with New; it is
// not safe for concurrent use.
type Editor struct {
	dev    termio.Device
	sync   *display.Synchronizer
	events <-chan keys.Event
	opts   Options
	logger *zap.Logger

	buf    *textbuf.Buffer
	state  editorState
	menu   menuState
	search searchState
	kill   string
	prompt string
}

// New builds an editor over a device and a key-event source. A goroutine
// pumps events into a channel so ReadLine can select between keys and
// resize notifications.
func New(dev termio.Device, src EventSource, opts Options) *Editor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	events := make(chan keys.Event, 16)
	go func() {
		defer close(events)
		for {
			ev, ok := src.Next()
			if !ok {
				return
			}
			events <- ev
		}
	}()
	return &Editor{
		dev:    dev,
		sync:   display.New(dev, opts.Logger),
		events: events,
		opts:   opts,
		logger: opts.Logger,
		buf:    textbuf.New(),
	}
}

// ReadLine edits one line to completion. It blocks until the user accepts,
// cancels, or ends input, and always leaves the cursor on a fresh row
// below the input region.
func (e *Editor) ReadLine(prompt PromptSpec) (LineResult, error) {
	if e.opts.Raw != nil {
		if err := e.opts.Raw.EnterRawMode(); err != nil {
			return LineResult{}, err
		}
		defer e.opts.Raw.RestoreMode()
	}

	e.buf.Reset()
	e.state = stateEditing
	e.menu.reset()
	e.search.reset()
	e.prompt = prompt.Text
	e.redraw()

	for {
		select {
		case <-e.opts.Resize:
			e.drainResize()
			e.sync.Invalidate()
			e.redraw()
		case ev, ok := <-e.events:
			if !ok {
				e.finishLine()
				return LineResult{Kind: EndOfInput}, nil
			}
			if res, done := e.handle(ev); done {
				return res, nil
			}
			e.redraw()
		}
	}
}

// drainResize collapses a burst of resize notifications into one redraw.
func (e *Editor) drainResize() {
	for {
		select {
		case <-e.opts.Resize:
		default:
			return
		}
	}
}

func (e *Editor) redraw() {
	frame := display.Frame{
		Prompt:       e.prompt,
		Content:      e.buf.String(),
		CursorOffset: e.buf.Cursor(),
		Overlay:      e.overlay(),
	}
	if err := e.sync.Reconcile(frame); err != nil {
		// The shadow is already invalidated; the next reconcile recovers
		// with a full resync. The session must survive a flaky terminal.
		e.logger.Warn("reconcile failed", zap.Error(err))
	}
}

func (e *Editor) finishLine() {
	if err := e.sync.FinishLine(); err != nil {
		e.logger.Warn("finish line failed", zap.Error(err))
	}
}

// handle dispatches one key event. done is true when ReadLine should
// return res.
func (e *Editor) handle(ev keys.Event) (res LineResult, done bool) {
	switch e.state {
	case stateCompletionActive:
		if handled := e.handleMenuKey(ev); handled {
			return LineResult{}, false
		}
		// Any other key dismisses the menu, keeping the selected text,
		// and is then processed as a normal editing key.
	case stateHistorySearch:
		if handled := e.handleSearchKey(ev); handled {
			return LineResult{}, false
		}
		// Any other key ends the search, keeping the found line, and is
		// then processed as a normal editing key.
	}
	return e.handleEditing(ev)
}

func (e *Editor) handleEditing(ev keys.Event) (LineResult, bool) {
	if ev.Alt {
		e.handleAltChord(ev)
		return LineResult{}, false
	}

	switch ev.Key {
	case keys.KeyRune:
		e.exitBrowse()
		e.buf.Insert(ev.Rune)

	case keys.KeyEnter:
		return e.accept()

	case keys.KeyCtrlC:
		return e.cancel()

	case keys.KeyCtrlD:
		if e.buf.Len() == 0 {
			e.finishLine()
			return LineResult{Kind: EndOfInput}, true
		}
		e.exitBrowse()
		e.buf.DeleteAfter()

	case keys.KeyBackspace:
		e.exitBrowse()
		e.buf.DeleteBefore()

	case keys.KeyDelete:
		e.exitBrowse()
		e.buf.DeleteAfter()

	case keys.KeyLeft, keys.KeyCtrlB:
		e.buf.Move(-1)

	case keys.KeyRight, keys.KeyCtrlF:
		e.buf.Move(1)

	case keys.KeyHome, keys.KeyCtrlA:
		e.buf.MoveToStart()

	case keys.KeyEnd, keys.KeyCtrlE:
		e.buf.MoveToEnd()

	case keys.KeyUp, keys.KeyCtrlP:
		e.historyPrev()

	case keys.KeyDown, keys.KeyCtrlN:
		e.historyNext()

	case keys.KeyCtrlR:
		e.exitBrowse()
		e.enterSearch()

	case keys.KeyTab:
		e.exitBrowse()
		e.startCompletion()

	case keys.KeyCtrlW:
		e.exitBrowse()
		e.setKill(e.buf.DeleteWordBackward())

	case keys.KeyCtrlU:
		e.exitBrowse()
		e.setKill(e.buf.DeleteToStart())

	case keys.KeyCtrlK:
		e.exitBrowse()
		e.setKill(e.buf.DeleteToEnd())

	case keys.KeyCtrlY:
		e.exitBrowse()
		e.yank()

	case keys.KeyCtrlL:
		if err := e.sync.ClearScreen(); err != nil {
			e.logger.Warn("clear screen failed", zap.Error(err))
		}

	case keys.KeyUnknownEscape:
		e.logger.Debug("ignoring unknown escape", zap.ByteString("raw", ev.Raw))

	default:
		// Unbound key; nothing changes, nothing breaks.
	}
	return LineResult{}, false
}

func (e *Editor) handleAltChord(ev keys.Event) {
	if ev.Key != keys.KeyRune {
		return
	}
	switch ev.Rune {
	case 'b':
		e.buf.WordBackward()
	case 'f':
		e.buf.WordForward()
	case 'd':
		e.exitBrowse()
		e.setKill(e.buf.DeleteWordForward())
	}
}

func (e *Editor) accept() (LineResult, bool) {
	text := e.buf.String()
	if e.opts.History != nil {
		e.opts.History.ResetNavigation()
		if strings.TrimSpace(text) != "" {
			e.opts.History.Add(text)
		}
	}
	e.state = stateEditing
	e.search.reset()
	e.finishLine()
	return LineResult{Kind: Accepted, Text: text}, true
}

func (e *Editor) cancel() (LineResult, bool) {
	e.buf.Reset()
	e.menu.reset()
	e.search.reset()
	e.state = stateEditing
	if e.opts.History != nil {
		e.opts.History.ResetNavigation()
	}
	e.finishLine()
	return LineResult{Kind: Cancelled}, true
}

// exitBrowse ends a history-browsing session when the user starts editing
// the recalled line. The recalled text stays in the buffer.
func (e *Editor) exitBrowse() {
	if e.state != stateHistoryBrowsing {
		return
	}
	e.state = stateEditing
	if e.opts.History != nil {
		e.opts.History.ResetNavigation()
	}
}

func (e *Editor) historyPrev() {
	h := e.opts.History
	if h == nil {
		return
	}
	if !h.Browsing() {
		h.BeginBrowse(e.buf.String())
	}
	if text, ok := h.Prev(); ok {
		e.buf.Replace(text)
		e.state = stateHistoryBrowsing
		return
	}
	// Already at the oldest entry.
	e.bell()
}

func (e *Editor) historyNext() {
	h := e.opts.History
	if h == nil || !h.Browsing() {
		return
	}
	text, ok := h.Next()
	if !ok {
		return
	}
	e.buf.Replace(text)
	if h.AtPending() {
		// Past the newest entry the in-progress line is restored and the
		// browsing session is over.
		h.ResetNavigation()
		e.state = stateEditing
	}
}

// bell signals a boundary hit without changing the screen.
func (e *Editor) bell() {
	if err := e.dev.Bell(); err != nil {
		e.logger.Debug("bell failed", zap.Error(err))
	}
}

func (e *Editor) setKill(text string) {
	if text == "" {
		return
	}
	e.kill = text
	if e.opts.SystemClipboard {
		if err := clipboard.WriteAll(text); err != nil {
			e.logger.Debug("clipboard write failed", zap.Error(err))
		}
	}
}

func (e *Editor) yank() {
	text := e.kill
	if e.opts.SystemClipboard {
		if s, err := clipboard.ReadAll(); err == nil && s != "" {
			text = s
		}
	}
	if text != "" {
		e.buf.InsertString(text)
	}
}

func (e *Editor) startCompletion() {
	if e.opts.Completion == nil {
		return
	}
	word, start := e.buf.WordUnderCursor()
	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()
	cands := e.opts.Completion.Complete(ctx, e.buf.String(), e.buf.Cursor(), word)

	switch len(cands) {
	case 0:
		e.bell()
		return
	case 1:
		e.buf.ReplaceRange(start, e.buf.Cursor(), cands[0].Value)
	default:
		e.menu = menuState{
			active:     true,
			candidates: cands,
			start:      start,
			original:   word,
		}
		e.buf.ReplaceRange(start, e.buf.Cursor(), cands[0].Value)
		e.state = stateCompletionActive
	}
}
