// Package pattern matches narrations against taxonomy keywords.
package pattern

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/model"
)

// Match is a successful keyword hit.
type Match struct {
	Keyword string
	Path    model.CategoryPath
}

type compiledEntry struct {
	re    *regexp.Regexp
	entry model.TaxonomyEntry
}

// KeywordMatcher finds the taxonomy category whose keyword occurs in a text.
// Longer keywords are tried first so "mutual fund" wins over "fund". It is
// immutable after construction and safe for concurrent use.
type KeywordMatcher struct {
	entries []compiledEntry
}

// NewKeywordMatcher precompiles whole-word patterns for every entry.
func NewKeywordMatcher(entries []model.TaxonomyEntry) *KeywordMatcher {
	m := &KeywordMatcher{
		entries: make([]compiledEntry, 0, len(entries)),
	}

	for _, e := range entries {
		kw := strings.ToLower(strings.TrimSpace(e.Keyword))
		if kw == "" {
			continue
		}
		e.Keyword = kw
		m.entries = append(m.entries, compiledEntry{
			entry: e,
			re:    common.WordPattern(kw),
		})
	}

	// Stable so equal-length keywords keep taxonomy order.
	sort.SliceStable(m.entries, func(i, j int) bool {
		return len(m.entries[i].entry.Keyword) > len(m.entries[j].entry.Keyword)
	})

	return m
}

// Find returns the first keyword hit in text.
func (m *KeywordMatcher) Find(text string) (Match, bool) {
	if m == nil || strings.TrimSpace(text) == "" {
		return Match{}, false
	}

	lowered := strings.ToLower(text)
	for _, ce := range m.entries {
		if ce.re.MatchString(lowered) {
			slog.Debug("Keyword match",
				"keyword", ce.entry.Keyword,
				"category", ce.entry.Path.String())
			return Match{Keyword: ce.entry.Keyword, Path: ce.entry.Path}, true
		}
	}

	return Match{}, false
}

// Match returns the category of the first keyword hit in text.
func (m *KeywordMatcher) Match(text string) (model.CategoryPath, bool) {
	hit, ok := m.Find(text)
	return hit.Path, ok
}

// Len returns the number of usable keywords.
func (m *KeywordMatcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}
