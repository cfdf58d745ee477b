package completion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CommandProvider completes command names from $PATH plus a static builtin
// list. It only fires for the first word of the line; anything after that
// is an argument and belongs to other providers. The $PATH scan runs once
// and is cached for the session.
type CommandProvider struct {
	// Builtins lists interpreter builtins to offer alongside executables.
	Builtins []string

	once  sync.Once
	names []string
}

func (p *CommandProvider) Complete(ctx context.Context, line string, pos int, word string) ([]Candidate, error) {
	// pos is a rune offset, so the byte length of word must not be mixed
	// into the arithmetic.
	runes := []rune(line)
	start := pos - len([]rune(word))
	if start < 0 || start > len(runes) {
		return nil, nil
	}
	if strings.TrimSpace(string(runes[:start])) != "" {
		// Not the first word.
		return nil, nil
	}
	if strings.ContainsRune(word, filepath.Separator) {
		// Path-shaped input is FileProvider territory.
		return nil, nil
	}

	p.once.Do(p.scanPath)

	var candidates []Candidate
	for _, name := range p.Builtins {
		if strings.HasPrefix(name, word) {
			candidates = append(candidates, Candidate{Value: name})
		}
	}
	for _, name := range p.names {
		if strings.HasPrefix(name, word) {
			candidates = append(candidates, Candidate{Value: name})
		}
	}
	return candidates, nil
}

func (p *CommandProvider) scanPath() {
	seen := map[string]bool{}
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if seen[name] {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
				continue
			}
			seen[name] = true
			p.names = append(p.names, name)
		}
	}
}
