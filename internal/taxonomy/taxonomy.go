// Package taxonomy loads the category tree, its keywords and the
// preprocessing noise-word list from a YAML document.
package taxonomy

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/Veraticus/narration-resolver/internal/normalize"
	"gopkg.in/yaml.v3"
)

// Category is one node of the two-level category tree.
type Category struct {
	Name          string     `yaml:"name"`
	Keywords      []string   `yaml:"keywords,omitempty"`
	Subcategories []Category `yaml:"subcategories,omitempty"`
}

// Preprocessing holds normalizer settings.
type Preprocessing struct {
	NoiseWords []string `yaml:"noise_words,omitempty"`
}

// Document is the on-disk layout of categories.yml.
type Document struct {
	Preprocessing Preprocessing `yaml:"preprocessing"`
	Categories    []Category    `yaml:"categories"`
}

// Taxonomy is the flattened form used by the matcher and normalizer.
type Taxonomy struct {
	ValidPaths map[string]bool
	Categories []Category
	Entries    []model.TaxonomyEntry
	NoiseWords []string
}

// Empty returns a taxonomy with no categories and the default noise words.
func Empty() *Taxonomy {
	return &Taxonomy{
		ValidPaths: map[string]bool{},
		NoiseWords: normalize.DefaultNoiseWords,
	}
}

// Load reads the taxonomy at path. A missing file yields an empty taxonomy
// and no error. A malformed file yields an empty taxonomy together with an
// error wrapping common.ErrConfigMalformed so callers can log and degrade.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Taxonomy file not found, continuing without keywords", "path", path)
			return Empty(), nil
		}
		return Empty(), fmt.Errorf("failed to read taxonomy %s: %w", path, err)
	}

	tax, err := Parse(data)
	if err != nil {
		return Empty(), fmt.Errorf("%s: %w", path, err)
	}

	slog.Debug("Loaded taxonomy",
		"path", path,
		"categories", len(tax.Categories),
		"keywords", len(tax.Entries),
		"noise_words", len(tax.NoiseWords))

	return tax, nil
}

// Parse builds a taxonomy from YAML bytes.
func Parse(data []byte) (*Taxonomy, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Empty(), fmt.Errorf("%w: %v", common.ErrConfigMalformed, err)
	}
	return FromDocument(doc), nil
}

// FromDocument flattens a parsed document. Categories with subcategories
// contribute "Top / Sub" leaves; categories without them are leaves
// themselves. Keywords are lower-cased and trimmed, blanks are dropped and
// identical keyword/path pairs are kept once.
func FromDocument(doc Document) *Taxonomy {
	tax := Empty()
	if len(doc.Preprocessing.NoiseWords) > 0 {
		tax.NoiseWords = doc.Preprocessing.NoiseWords
	}

	seen := make(map[model.TaxonomyEntry]bool)
	add := func(keywords []string, path model.CategoryPath) {
		tax.ValidPaths[path.String()] = true
		for _, kw := range keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			entry := model.TaxonomyEntry{Keyword: kw, Path: path}
			if seen[entry] {
				continue
			}
			seen[entry] = true
			tax.Entries = append(tax.Entries, entry)
		}
	}

	for _, cat := range doc.Categories {
		top := strings.TrimSpace(cat.Name)
		if top == "" {
			continue
		}

		if len(cat.Subcategories) == 0 {
			add(cat.Keywords, model.CategoryPath{Top: top})
			tax.Categories = append(tax.Categories, cat)
			continue
		}

		for _, sub := range cat.Subcategories {
			name := strings.TrimSpace(sub.Name)
			if name == "" {
				continue
			}
			add(sub.Keywords, model.CategoryPath{Top: top, Sub: name})
		}
		tax.Categories = append(tax.Categories, cat)
	}

	return tax
}

// IsValid reports whether path names a leaf of the taxonomy.
func (t *Taxonomy) IsValid(path string) bool {
	return t.ValidPaths[path]
}

// Paths returns every valid category path in sorted order.
func (t *Taxonomy) Paths() []string {
	paths := make([]string, 0, len(t.ValidPaths))
	for p := range t.ValidPaths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// KeywordCount returns the number of keywords mapped to path.
func (t *Taxonomy) KeywordCount(path string) int {
	count := 0
	for _, e := range t.Entries {
		if e.Path.String() == path {
			count++
		}
	}
	return count
}
