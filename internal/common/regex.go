package common

import (
	"regexp"
	"strings"
)

// WordPattern compiles a case-insensitive whole-word pattern for phrase.
// Inner whitespace in the phrase matches any run of whitespace.
func WordPattern(phrase string) *regexp.Regexp {
	words := strings.Fields(phrase)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b` + strings.Join(words, `\s+`) + `\b`)
}

// CollapseSpaces replaces whitespace runs with a single space and trims.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
