package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/narration-resolver/internal/taxonomy"
	"gopkg.in/yaml.v3"
)

// StandardTaxonomyYAML is a small categories.yml covering common Indian
// bank narrations.
const StandardTaxonomyYAML = `preprocessing:
  noise_words: [upi, neft, imps, txn, ref, pvt, ltd]
categories:
  - name: Dining
    subcategories:
      - name: Food Delivery
        keywords: [zomato, swiggy]
      - name: Cafes
        keywords: [starbucks, blue tokai]
  - name: Investments
    subcategories:
      - name: Mutual Funds
        keywords: [mutual fund, sip]
      - name: Stocks
        keywords: [zerodha, fund]
  - name: Bank Charges
    keywords: [ach debit, sms charges]
  - name: Salary
    keywords: [salary]
`

// TaxonomyBuilder assembles a taxonomy document for a test.
type TaxonomyBuilder struct {
	t   *testing.T
	doc taxonomy.Document
}

// NewTaxonomyBuilder starts an empty document.
func NewTaxonomyBuilder(t *testing.T) *TaxonomyBuilder {
	t.Helper()
	return &TaxonomyBuilder{t: t}
}

// WithStandardCategories adds every category from StandardTaxonomyYAML.
func (b *TaxonomyBuilder) WithStandardCategories() *TaxonomyBuilder {
	b.t.Helper()
	var doc taxonomy.Document
	if err := yaml.Unmarshal([]byte(StandardTaxonomyYAML), &doc); err != nil {
		b.t.Fatalf("standard taxonomy fixture is invalid: %v", err)
	}
	b.doc.Categories = append(b.doc.Categories, doc.Categories...)
	b.doc.Preprocessing.NoiseWords = append(b.doc.Preprocessing.NoiseWords, doc.Preprocessing.NoiseWords...)
	return b
}

// WithLeaf adds a top-level category without subcategories.
func (b *TaxonomyBuilder) WithLeaf(name string, keywords ...string) *TaxonomyBuilder {
	b.doc.Categories = append(b.doc.Categories, taxonomy.Category{Name: name, Keywords: keywords})
	return b
}

// WithSubcategory adds sub under top, creating top when needed.
func (b *TaxonomyBuilder) WithSubcategory(top, sub string, keywords ...string) *TaxonomyBuilder {
	child := taxonomy.Category{Name: sub, Keywords: keywords}
	for i := range b.doc.Categories {
		if b.doc.Categories[i].Name == top {
			b.doc.Categories[i].Subcategories = append(b.doc.Categories[i].Subcategories, child)
			return b
		}
	}
	b.doc.Categories = append(b.doc.Categories, taxonomy.Category{Name: top, Subcategories: []taxonomy.Category{child}})
	return b
}

// WithNoiseWords replaces the preprocessing noise-word list.
func (b *TaxonomyBuilder) WithNoiseWords(words ...string) *TaxonomyBuilder {
	b.doc.Preprocessing.NoiseWords = words
	return b
}

// Document returns the assembled document.
func (b *TaxonomyBuilder) Document() taxonomy.Document {
	return b.doc
}

// Build flattens the document into a taxonomy.
func (b *TaxonomyBuilder) Build() *taxonomy.Taxonomy {
	return taxonomy.FromDocument(b.doc)
}

// WriteFile writes the document as categories.yml under a temp dir and
// returns its path.
func (b *TaxonomyBuilder) WriteFile() string {
	b.t.Helper()
	data, err := yaml.Marshal(b.doc)
	if err != nil {
		b.t.Fatalf("failed to marshal taxonomy: %v", err)
	}
	return WriteTaxonomy(b.t, string(data))
}

// WriteTaxonomy writes content as categories.yml under a temp dir and
// returns its path.
func WriteTaxonomy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "categories.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write taxonomy: %v", err)
	}
	return path
}
