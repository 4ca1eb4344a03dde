package model

import "strings"

const (
	// CategorySeparator joins a top-level category and its subcategory.
	CategorySeparator = " / "
	// DefaultCategory is used when no resolution tier produced a category.
	DefaultCategory = "Uncategorized"
	// NotAvailable marks transaction type and intent fields with no signal.
	NotAvailable = "N/A"
)

// CategoryPath is a two-level taxonomy location such as "Dining / Cafes".
// An empty Sub means the top-level category is itself the leaf.
type CategoryPath struct {
	Top string
	Sub string
}

// ParseCategoryPath splits s once on CategorySeparator.
func ParseCategoryPath(s string) CategoryPath {
	top, sub, found := strings.Cut(s, CategorySeparator)
	if !found {
		return CategoryPath{Top: s}
	}
	return CategoryPath{Top: top, Sub: sub}
}

// String composes the external "Top / Sub" form.
func (p CategoryPath) String() string {
	if p.Sub == "" {
		return p.Top
	}
	return p.Top + CategorySeparator + p.Sub
}

// IsZero reports whether the path carries no category at all.
func (p CategoryPath) IsZero() bool {
	return p.Top == "" && p.Sub == ""
}

// HasSub reports whether the path names a subcategory.
func (p CategoryPath) HasSub() bool {
	return p.Sub != ""
}

// TaxonomyEntry maps a lower-cased keyword to a category path.
type TaxonomyEntry struct {
	Keyword string
	Path    CategoryPath
}
