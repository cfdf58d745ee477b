package completion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	candidates []Candidate
	err        error
}

func (p staticProvider) Complete(_ context.Context, _ string, _ int, _ string) ([]Candidate, error) {
	return p.candidates, p.err
}

func TestManagerRanksPrefixMatchesFirst(t *testing.T) {
	m := NewManager(nil, staticProvider{candidates: []Candidate{
		{Value: "pick-cherry"},
		{Value: "checkout"},
		{Value: "cherry-pick"},
	}})

	got := m.Complete(context.Background(), "git ch", 6, "ch")
	require.NotEmpty(t, got)
	assert.Equal(t, "checkout", got[0].Value)
	assert.Equal(t, "cherry-pick", got[1].Value)
}

func TestManagerDropsNonMatches(t *testing.T) {
	m := NewManager(nil, staticProvider{candidates: []Candidate{
		{Value: "status"},
		{Value: "log"},
	}})
	got := m.Complete(context.Background(), "git st", 6, "st")
	require.Len(t, got, 1)
	assert.Equal(t, "status", got[0].Value)
}

func TestProviderErrorMeansNoCandidatesNotFailure(t *testing.T) {
	m := NewManager(nil,
		staticProvider{err: errors.New("backend down")},
		staticProvider{candidates: []Candidate{{Value: "ok"}}},
	)
	got := m.Complete(context.Background(), "o", 1, "o")
	require.Len(t, got, 1, "a failing provider is skipped, the rest still answer")
	assert.Equal(t, "ok", got[0].Value)
}

func TestManagerDeduplicates(t *testing.T) {
	m := NewManager(nil,
		staticProvider{candidates: []Candidate{{Value: "ls"}}},
		staticProvider{candidates: []Candidate{{Value: "ls"}}},
	)
	got := m.Complete(context.Background(), "l", 1, "l")
	assert.Len(t, got, 1)
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main_test.go"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "maps"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), nil, 0o644))

	p := &FileProvider{Dir: func() string { return dir }}

	got, err := p.Complete(context.Background(), "cat ma", 6, "ma")
	require.NoError(t, err)
	values := make([]string, len(got))
	for i, c := range got {
		values[i] = c.Value
	}
	assert.ElementsMatch(t, []string{"main.go", "main_test.go", "maps" + string(filepath.Separator)}, values)

	// Hidden files only appear when explicitly asked for.
	got, err = p.Complete(context.Background(), "cat ", 4, "")
	require.NoError(t, err)
	for _, c := range got {
		assert.NotEqual(t, ".hidden", c.Value)
	}
	got, err = p.Complete(context.Background(), "cat .h", 6, ".h")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ".hidden", got[0].Value)
}

func TestCommandProviderNonASCIIWord(t *testing.T) {
	p := &CommandProvider{Builtins: []string{"cd"}}

	// pos counts runes; a multi-byte word must not push the first-word
	// bound negative.
	got, err := p.Complete(context.Background(), "é", 1, "é")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = p.Complete(context.Background(), "日本語 cd", 6, "cd")
	require.NoError(t, err)
	assert.Empty(t, got, "multi-byte first word makes cd an argument")
}

type panickyProvider struct{}

func (panickyProvider) Complete(_ context.Context, line string, pos int, _ string) ([]Candidate, error) {
	_ = line[pos*10]
	return nil, nil
}

func TestManagerSurvivesPanickingProvider(t *testing.T) {
	m := NewManager(nil,
		panickyProvider{},
		staticProvider{candidates: []Candidate{{Value: "ok"}}},
	)

	got := m.Complete(context.Background(), "o", 1, "o")
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Value)
}

func TestCommandProviderOnlyFirstWord(t *testing.T) {
	p := &CommandProvider{Builtins: []string{"cd", "exit", "export"}}
	got, err := p.Complete(context.Background(), "echo ex", 7, "ex")
	require.NoError(t, err)
	assert.Empty(t, got, "argument positions are not command completions")

	got, err = p.Complete(context.Background(), "ex", 2, "ex")
	require.NoError(t, err)
	values := make([]string, 0, len(got))
	for _, c := range got {
		values = append(values, c.Value)
	}
	assert.Contains(t, values, "exit")
	assert.Contains(t, values, "export")
	assert.NotContains(t, values, "cd")
}
