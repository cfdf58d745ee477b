package completion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// FileProvider completes filesystem paths relative to a working directory,
// with ~ expansion. Directories get a trailing slash so completion can
// continue into them.
type FileProvider struct {
	// Dir resolves relative paths. The interpreter tracks its own working
	// directory without chdir-ing the process, so the shell wires this to
	// the interpreter. Defaults to the process working directory when nil.
	Dir func() string
}

func (p *FileProvider) Complete(ctx context.Context, line string, pos int, word string) ([]Candidate, error) {
	dirPart, filePart := filepath.Split(word)

	searchDir := dirPart
	if strings.HasPrefix(searchDir, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			searchDir = home + searchDir[1:]
		}
	}
	if !filepath.IsAbs(searchDir) {
		var base string
		if p.Dir != nil {
			base = p.Dir()
		}
		if base == "" {
			base, _ = os.Getwd()
		}
		searchDir = filepath.Join(base, searchDir)
	}

	entries, err := os.ReadDir(searchDir)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, entry := range entries {
		name := entry.Name()
		if filePart == "" && strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.HasPrefix(name, filePart) {
			continue
		}
		value := dirPart + name
		display := name
		if entry.IsDir() {
			value += string(filepath.Separator)
			display += string(filepath.Separator)
		}
		candidates = append(candidates, Candidate{Value: value, Display: display})
	}
	return candidates, nil
}
