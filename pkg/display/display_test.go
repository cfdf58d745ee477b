package display

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialReconcileDrawsPromptAndContent(t *testing.T) {
	dev := newFakeDevice(80, 24)
	s := New(dev, nil)

	require.False(t, s.LastKnownGood(), "shadow starts untrusted")
	require.NoError(t, s.Reconcile(Frame{Prompt: "$ ", Content: "ls -la", CursorOffset: 6}))

	assert.True(t, s.LastKnownGood())
	assert.Equal(t, []string{"$ ls -la"}, dev.rows())
	assert.Equal(t, 0, dev.row)
	assert.Equal(t, 8, dev.col)
}

func TestReconcileIdempotence(t *testing.T) {
	dev := newFakeDevice(80, 24)
	s := New(dev, nil)
	frame := Frame{Prompt: "$ ", Content: "echo hi", CursorOffset: 7}
	require.NoError(t, s.Reconcile(frame))

	dev.resetOps()
	require.NoError(t, s.Reconcile(frame))
	assert.Empty(t, dev.ops, "reconciling an unchanged frame must emit nothing")
}

func TestIncrementalTypingEmitsSingleCharacterWrites(t *testing.T) {
	dev := newFakeDevice(80, 24)
	s := New(dev, nil)
	prompt := "lusush %> " // 10 columns
	require.NoError(t, s.Reconcile(Frame{Prompt: prompt, CursorOffset: 0}))

	text := "echo hello"
	dev.resetOps()
	for i := 1; i <= len(text); i++ {
		require.NoError(t, s.Reconcile(Frame{
			Prompt:       prompt,
			Content:      text[:i],
			CursorOffset: i,
		}))
	}

	assert.Equal(t, 10, dev.countOps("write:"), "one write per typed character")
	for _, op := range dev.ops {
		if strings.HasPrefix(op, "write:") {
			assert.Len(t, op, len("write:")+1, "each write carries exactly the new character")
		}
	}
	assert.Zero(t, dev.countOps("clear"), "incremental typing never clears")
	assert.Equal(t, []string{prompt + "echo hello"}, dev.rows())
}

func TestInteriorDeleteRewritesOnlyTheTail(t *testing.T) {
	dev := newFakeDevice(80, 24)
	s := New(dev, nil)
	require.NoError(t, s.Reconcile(Frame{Prompt: "$ ", Content: "echo hello", CursorOffset: 10}))

	dev.resetOps()
	require.NoError(t, s.Reconcile(Frame{Prompt: "$ ", Content: "echo hllo", CursorOffset: 6}))

	assert.Equal(t, 1, dev.countOps("clearEOL"))
	assert.Zero(t, dev.countOps("clearEOS"))
	assert.Equal(t, 1, dev.countOps("write:"))
	assert.Contains(t, dev.ops, "write:llo", "only the tail after the edit point is rewritten")
	assert.Equal(t, []string{"$ echo hllo"}, dev.rows())
	assert.Equal(t, 8, dev.col, "cursor parked at the deletion point")
}

// The "content overlay" regression: content wrapping two rows is deleted
// character by character down to nothing. After every deletion the screen
// must show exactly the prompt plus the remaining content — no residue from
// the taller earlier state.
func TestWrapBoundaryShrinkLeavesNoResidue(t *testing.T) {
	dev := newFakeDevice(80, 24)
	s := New(dev, nil)
	prompt := strings.Repeat("#", 77)
	content := "hello"

	require.NoError(t, s.Reconcile(Frame{Prompt: prompt, Content: content, CursorOffset: 5}))
	assert.Equal(t, []string{prompt + "hel", "lo"}, dev.rows())

	for i := len(content) - 1; i >= 0; i-- {
		remaining := content[:i]
		require.NoError(t, s.Reconcile(Frame{Prompt: prompt, Content: remaining, CursorOffset: i}))
		assert.True(t, s.LastKnownGood())

		want := []string{prompt + remaining}
		if len(prompt)+len(remaining) > 80 {
			want = []string{prompt + remaining[:3], remaining[3:]}
		}
		assert.Equal(t, want, dev.rows(), "after deleting to %q", remaining)
	}
	assert.Equal(t, []string{prompt}, dev.rows())
}

func TestGrowingAcrossWrapBoundary(t *testing.T) {
	dev := newFakeDevice(80, 24)
	s := New(dev, nil)
	prompt := strings.Repeat("#", 77)

	for i := 1; i <= 6; i++ {
		content := "abcdef"[:i]
		require.NoError(t, s.Reconcile(Frame{Prompt: prompt, Content: content, CursorOffset: i}))
		require.True(t, s.LastKnownGood())
	}
	assert.Equal(t, []string{prompt + "abc", "def"}, dev.rows())
	assert.Equal(t, 1, dev.row)
	assert.Equal(t, 3, dev.col)
}

func TestHistoryRecallGoesThroughTheSamePath(t *testing.T) {
	dev := newFakeDevice(80, 24)
	s := New(dev, nil)
	require.NoError(t, s.Reconcile(Frame{Prompt: "$ ", Content: "short", CursorOffset: 5}))

	// Recall a longer entry, then a shorter one; arbitrary replacement is
	// just another frame.
	require.NoError(t, s.Reconcile(Frame{Prompt: "$ ", Content: "a much longer recalled command", CursorOffset: 30}))
	assert.Equal(t, []string{"$ a much longer recalled command"}, dev.rows())

	require.NoError(t, s.Reconcile(Frame{Prompt: "$ ", Content: "ls", CursorOffset: 2}))
	assert.Equal(t, []string{"$ ls"}, dev.rows())
	assert.True(t, s.LastKnownGood())
}

func TestMultiLineRecallRendersRowBreaks(t *testing.T) {
	dev := newFakeDevice(80, 24)
	s := New(dev, nil)

	// A recalled heredoc: embedded newlines become row breaks realized by
	// the device's newline operation, never raw LF bytes inside a write.
	content := "cat <<EOF\nmulti\nEOF"
	require.NoError(t, s.Reconcile(Frame{
		Prompt:       "$ ",
		Content:      content,
		CursorOffset: len([]rune(content)),
	}))

	assert.Equal(t, []string{"$ cat <<EOF", "multi", "EOF"}, dev.rows())
	assert.Equal(t, 2, dev.row)
	assert.Equal(t, 3, dev.col)
	assert.True(t, s.LastKnownGood())

	// Editing after the recall stays on the same reconcile path.
	require.NoError(t, s.Reconcile(Frame{Prompt: "$ ", Content: "ls", CursorOffset: 2}))
	assert.Equal(t, []string{"$ ls"}, dev.rows())
}

func TestMultiLineCursorOnInteriorLine(t *testing.T) {
	dev := newFakeDevice(80, 24)
	s := New(dev, nil)

	// Cursor between "mu" and "lti" on the middle line.
	require.NoError(t, s.Reconcile(Frame{
		Prompt:       "$ ",
		Content:      "cat <<EOF\nmulti\nEOF",
		CursorOffset: 12,
	}))

	assert.Equal(t, 1, dev.row)
	assert.Equal(t, 2, dev.col)
}

func TestMultiLineContentWithWrappingLine(t *testing.T) {
	dev := newFakeDevice(10, 24)
	s := New(dev, nil)

	// First logical line fills its row exactly; the second starts on the
	// row the forced wrap opened.
	content := "abcdefgh\nxy"
	require.NoError(t, s.Reconcile(Frame{
		Prompt:       "$ ",
		Content:      content,
		CursorOffset: len([]rune(content)),
	}))

	assert.Equal(t, []string{"$ abcdefgh", "xy"}, dev.rows())
	assert.Equal(t, 1, dev.row)
	assert.Equal(t, 2, dev.col)
}

func TestDeviceFailureInvalidatesAndRecovers(t *testing.T) {
	dev := newFakeDevice(80, 24)
	s := New(dev, nil)
	require.NoError(t, s.Reconcile(Frame{Prompt: "$ ", Content: "abc", CursorOffset: 3}))

	dev.failNext = errors.New("wedged")
	err := s.Reconcile(Frame{Prompt: "$ ", Content: "abcd", CursorOffset: 4})
	require.Error(t, err)
	assert.False(t, s.LastKnownGood(), "a failed write must not be assumed to have succeeded")

	// The session continues: the next reconcile resyncs in full.
	dev.resetOps()
	require.NoError(t, s.Reconcile(Frame{Prompt: "$ ", Content: "abcd", CursorOffset: 4}))
	assert.True(t, s.LastKnownGood())
	assert.Equal(t, 1, dev.countOps("clearEOS"), "recovery goes through a full resync")
	assert.Equal(t, []string{"$ abcd"}, dev.rows())
}

func TestResizeForcesFullResync(t *testing.T) {
	dev := newFakeDevice(80, 24)
	s := New(dev, nil)
	prompt := strings.Repeat("#", 40)
	require.NoError(t, s.Reconcile(Frame{Prompt: prompt, Content: "hello world", CursorOffset: 11}))

	// Narrower terminal: geometry dirty, shadow invalidated by the loop.
	dev.width = 45
	s.Invalidate()

	dev.resetOps()
	require.NoError(t, s.Reconcile(Frame{Prompt: prompt, Content: "hello world", CursorOffset: 11}))
	assert.True(t, s.LastKnownGood())
	assert.Equal(t, 1, dev.countOps("clearEOS"))
	assert.Equal(t, []string{prompt + "hello", " world"}, dev.rows())
}

func TestMultiLinePrompt(t *testing.T) {
	dev := newFakeDevice(80, 24)
	s := New(dev, nil)
	require.NoError(t, s.Reconcile(Frame{Prompt: "user@host:~/code\n$ ", Content: "make", CursorOffset: 4}))

	assert.Equal(t, []string{"user@host:~/code", "$ make"}, dev.rows())
	assert.Equal(t, 1, dev.row, "cursor on the prompt's last row")
	assert.Equal(t, 6, dev.col)
}

func TestOverlayMenuAppearsAndClears(t *testing.T) {
	dev := newFakeDevice(80, 24)
	s := New(dev, nil)
	require.NoError(t, s.Reconcile(Frame{Prompt: "$ ", Content: "git ch", CursorOffset: 6}))

	menu := []string{"checkout  cherry", "cherry-pick"}
	require.NoError(t, s.Reconcile(Frame{Prompt: "$ ", Content: "git ch", CursorOffset: 6, Overlay: menu}))
	assert.Equal(t, []string{"$ git ch", "checkout  cherry", "cherry-pick"}, dev.rows())
	assert.Equal(t, 0, dev.row, "cursor stays in the input area while the menu is shown")

	// Dismissing the menu shrinks the region; the menu rows must vanish.
	require.NoError(t, s.Reconcile(Frame{Prompt: "$ ", Content: "git ch", CursorOffset: 6}))
	assert.Equal(t, []string{"$ git ch"}, dev.rows())
	assert.True(t, s.LastKnownGood())
}

func TestCursorOnlyMoveWritesNothing(t *testing.T) {
	dev := newFakeDevice(80, 24)
	s := New(dev, nil)
	require.NoError(t, s.Reconcile(Frame{Prompt: "$ ", Content: "hello", CursorOffset: 5}))

	dev.resetOps()
	require.NoError(t, s.Reconcile(Frame{Prompt: "$ ", Content: "hello", CursorOffset: 0}))
	assert.Zero(t, dev.countOps("write:"))
	assert.Zero(t, dev.countOps("clear"))
	assert.Equal(t, 2, dev.col, "cursor sits right after the prompt")
}

func TestCursorAtExactRowBoundary(t *testing.T) {
	dev := newFakeDevice(80, 24)
	s := New(dev, nil)
	prompt := strings.Repeat("#", 77)

	require.NoError(t, s.Reconcile(Frame{Prompt: prompt, Content: "abc", CursorOffset: 3}))
	assert.Equal(t, []string{prompt + "abc"}, dev.rows())
	assert.Equal(t, 1, dev.row, "cursor forced onto the next row at the exact boundary")
	assert.Equal(t, 0, dev.col)
	assert.True(t, s.LastKnownGood())
}

func TestFinishLineMovesBelowRegion(t *testing.T) {
	dev := newFakeDevice(80, 24)
	s := New(dev, nil)
	require.NoError(t, s.Reconcile(Frame{
		Prompt:       "$ ",
		Content:      "git ch",
		CursorOffset: 6,
		Overlay:      []string{"checkout", "cherry-pick"},
	}))

	require.NoError(t, s.FinishLine())
	assert.Equal(t, 3, dev.row, "cursor ends on a fresh row below the whole region")
	assert.Equal(t, 0, dev.col)
	assert.False(t, s.LastKnownGood(), "the finished region no longer belongs to the editor")
}

func TestPromptWiderThanTerminalIsAnError(t *testing.T) {
	dev := newFakeDevice(10, 24)
	s := New(dev, nil)
	err := s.Reconcile(Frame{Prompt: strings.Repeat("#", 10), Content: "x", CursorOffset: 1})
	assert.Error(t, err)
	assert.False(t, s.LastKnownGood())
}
