package normalize

import (
	"regexp"
	"strings"
)

// p2pPhrases are user-added clues that mark person-to-person transfers.
var p2pPhrases = []string{
	"friend", "friends",
	"dinner", "lunch", "outing", "hangout", "social",
	"group expense", "shared", "shared expense",
	"reimbursed", "reimburse",
	"lent", "borrowed", "loan to", "given to", "received from",
	"sent to", "paid to",
	"gift", "birthday", "wedding", "anniversary", "party",
	"split", "contribution",
}

var (
	p2pPhrasePattern = compilePhrases(p2pPhrases)

	// A capitalized name of three or more letters after a directional
	// word, or two capitalized names joined by and/&.
	personNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?i:to|from|with|paid)[-/ ]+[A-Z][A-Za-z]{2,}\b`),
		regexp.MustCompile(`\b[A-Z][A-Za-z]{2,}[-/ ]+(?i:paid)\b`),
		regexp.MustCompile(`\b[A-Z][A-Za-z]{2,}[-/ ]+(?:(?i:and)|&)[-/ ]+[A-Z][A-Za-z]{2,}\b`),
	}

	separatorRun      = regexp.MustCompile(`[-/]+`)
	capitalizedLeader = regexp.MustCompile(`^\s*[A-Z][A-Za-z]{2,}\b`)
)

// compilePhrases builds one case-insensitive whole-word alternation.
func compilePhrases(phrases []string) *regexp.Regexp {
	alts := make([]string, 0, len(phrases))
	for _, p := range phrases {
		words := strings.Fields(p)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alts = append(alts, strings.Join(words, `\s+`))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
}

// IsLikelyP2P reports whether text carries person-to-person clues such as
// social phrases or a recipient name. Dash and slash separated forms like
// "TO-JOHN" are checked the same as "to John".
func IsLikelyP2P(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	spaced := separatorRun.ReplaceAllString(text, " ")
	for _, candidate := range []string{text, spaced} {
		if p2pPhrasePattern.MatchString(candidate) {
			return true
		}
		for _, re := range personNamePatterns {
			if re.MatchString(candidate) {
				return true
			}
		}
	}

	return false
}

// startsCapitalized reports whether text opens with a capitalized word of
// at least three letters, which usually means a name follows a bank handle.
func startsCapitalized(text string) bool {
	return capitalizedLeader.MatchString(text)
}
