// Package completion supplies candidate completions for the word under
// the cursor. Providers are pluggable; the Manager fans a request out to
// all of them, ranks with fuzzy matching and deduplicates. Provider
// failures surface as "no completions" — they never block editing.
package completion

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Candidate is one completion suggestion.
type Candidate struct {
	// Value is the text that replaces the current word when accepted.
	Value string
	// Display is what the menu shows; defaults to Value.
	Display string
}

// Provider produces candidates for the word being completed. line and pos
// describe the whole input line and cursor so providers can use context
// (first word vs argument position).
type Provider interface {
	Complete(ctx context.Context, line string, pos int, word string) ([]Candidate, error)
}

// Manager aggregates providers.
type Manager struct {
	providers []Provider
	logger    *zap.Logger
}

// NewManager returns a manager over the given providers.
func NewManager(logger *zap.Logger, providers ...Provider) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{providers: providers, logger: logger}
}

// Complete gathers candidates from every provider. A failing provider is
// logged and skipped. Results are unique by Value and ordered by fuzzy
// match quality against word, exact-prefix matches first.
func (m *Manager) Complete(ctx context.Context, line string, pos int, word string) []Candidate {
	var all []Candidate
	for _, p := range m.providers {
		candidates, err := m.complete(ctx, p, line, pos, word)
		if err != nil {
			m.logger.Debug("completion provider failed", zap.Error(err))
			continue
		}
		all = append(all, candidates...)
	}

	all = lo.UniqBy(all, func(c Candidate) string { return c.Value })
	for i := range all {
		if all[i].Display == "" {
			all[i].Display = all[i].Value
		}
	}
	if word == "" {
		sort.Slice(all, func(i, j int) bool { return all[i].Value < all[j].Value })
		return all
	}
	return rank(all, word)
}

// complete calls one provider, converting a panic into an error so a
// misbehaving provider can never take the editing session down with it.
func (m *Manager) complete(ctx context.Context, p Provider, line string, pos int, word string) (candidates []Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			candidates = nil
			err = fmt.Errorf("completion provider panicked: %v", r)
		}
	}()
	return p.Complete(ctx, line, pos, word)
}

// rank orders candidates by fuzzy score against the typed word, dropping
// candidates that do not match at all.
func rank(candidates []Candidate, word string) []Candidate {
	values := make([]string, len(candidates))
	for i, c := range candidates {
		values[i] = c.Value
	}
	matches := fuzzy.Find(word, values)

	// fuzzy.Find sorts by score but loses prefix affinity; exact prefixes
	// belong on top for shell completion.
	sort.SliceStable(matches, func(i, j int) bool {
		pi := strings.HasPrefix(matches[i].Str, word)
		pj := strings.HasPrefix(matches[j].Str, word)
		if pi != pj {
			return pi
		}
		return matches[i].Score > matches[j].Score
	})

	ranked := make([]Candidate, 0, len(matches))
	for _, match := range matches {
		ranked = append(ranked, candidates[match.Index])
	}
	return ranked
}
