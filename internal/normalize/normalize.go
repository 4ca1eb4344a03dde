// Package normalize turns noisy payment-rail narrations into clean text
// suitable for keyword matching, correction keys and the classifier.
package normalize

import (
	"regexp"
	"strings"

	"github.com/Veraticus/narration-resolver/internal/common"
)

// DefaultNoiseWords are removed from non-P2P narrations when the taxonomy
// does not configure its own list.
var DefaultNoiseWords = []string{
	"YOU ARE PAYING FOR",
	"PAYMENT FOR",
	"TRANSACTION",
	"GENERATING DYNAMIC",
	"REF NO",
	"TXN",
	"TXNID",
}

// criticalNoiseWords are the only noise words removed from P2P narrations.
var criticalNoiseWords = []string{"TXN", "TXNID", "REF NO", "GENERATING DYNAMIC"}

// maxPasses bounds the fixed-point loop for non-P2P normalization.
const maxPasses = 8

type substitution struct {
	re   *regexp.Regexp
	repl string
}

var (
	upiPrefix  = regexp.MustCompile(`(?i)^UPI[-/]`)
	bankHandle = regexp.MustCompile(`(?i)^[A-Z0-9]+(?:-[A-Z0-9]+)*`)

	// Transaction and reference identifiers, applied in order.
	idPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[-/]\d{9,}`),
		regexp.MustCompile(`\s+\d{9,}`),
		regexp.MustCompile(`(?i)[A-Z]+\.\d{12,}`),
		regexp.MustCompile(`(?i)PAYTM\.[A-Z0-9]+`),
		regexp.MustCompile(`(?i)[-/]PAYTMQR[A-Z0-9]+`),
		regexp.MustCompile(`(?i)\bPAYTMQR[A-Z0-9]+\b`),
		regexp.MustCompile(`[-/][A-Z]{8,}[0-9]{6,}`),
		regexp.MustCompile(`[-/][A-Z]*[0-9][A-Z0-9]{14,}`),
		regexp.MustCompile(`[-/]\d{6,}[A-Z0-9]{4,}`),
	}

	// Clearing corporation names stay untouched so keywords can find them.
	domainRewrites = []substitution{
		{regexp.MustCompile(`(?i)\bACH\s+D\b`), "ACH DEBIT"},
		{regexp.MustCompile(`(?i)\bCHQ\s+PAID\b`), "CHEQUE PAYMENT"},
		{regexp.MustCompile(`(?i)\bCHEQUE\s+PAID\b`), "CHEQUE PAYMENT"},
		{regexp.MustCompile(`(?i)\bTRANSFER\s+IN\b`), "BANK TRANSFER"},
		{regexp.MustCompile(`(?i)\bTRANSFER\s+OUT\b`), "BANK TRANSFER"},
		{regexp.MustCompile(`(?i)\b(?:BANK\s+)?LTD\b\.?`), ""},
		{regexp.MustCompile(`(?i)\bgrocies\b`), "grocery"},
		{regexp.MustCompile(`(?i)\bgroc(\s|[-/]|$)`), "grocery${1}"},
		{regexp.MustCompile(`(?i)\bgrocerie\b`), "grocery"},
		{regexp.MustCompile(`(?i)\bgrocerys\b`), "grocery"},
		{regexp.MustCompile(`(?i)\bfoods\b`), "food"},
	}
)

// Normalizer cleans narrations with a configured noise-word list. It is
// immutable after construction and safe for concurrent use.
type Normalizer struct {
	noise    []*regexp.Regexp
	critical []*regexp.Regexp
}

// New creates a Normalizer. An empty list selects DefaultNoiseWords.
func New(noiseWords []string) *Normalizer {
	if len(noiseWords) == 0 {
		noiseWords = DefaultNoiseWords
	}

	return &Normalizer{
		noise:    compileNoise(noiseWords),
		critical: compileNoise(criticalNoiseWords),
	}
}

func compileNoise(words []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		if strings.TrimSpace(w) == "" {
			continue
		}
		patterns = append(patterns, common.WordPattern(w))
	}
	return patterns
}

// Normalize returns the canonical form of raw. With preserveP2P set,
// narrations that look like person-to-person transfers keep their
// descriptive text and only lose technical noise. The result may be empty
// when the input is pure noise.
func (n *Normalizer) Normalize(raw string, preserveP2P bool) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	if preserveP2P {
		return n.pass(text, true)
	}

	// Without P2P detection every pass is a plain rewrite, so iterate to a
	// fixed point to make the output stable under re-normalization.
	for i := 0; i < maxPasses; i++ {
		next := n.pass(text, false)
		if next == text {
			break
		}
		text = next
	}
	return text
}

// pass applies every normalization step once.
func (n *Normalizer) pass(text string, preserveP2P bool) string {
	isP2P := preserveP2P && IsLikelyP2P(text)

	if loc := upiPrefix.FindStringIndex(text); loc != nil {
		text = text[loc[1]:]
		if preserveP2P && !isP2P {
			isP2P = IsLikelyP2P(text)
		}
	}

	text = stripBankTag(text, isP2P)

	for _, re := range idPatterns {
		text = re.ReplaceAllString(text, "")
	}

	for _, sub := range domainRewrites {
		text = sub.re.ReplaceAllString(text, sub.repl)
	}

	text = separatorRun.ReplaceAllString(text, " ")

	if isP2P {
		text = removeNoise(text, n.critical)
	} else {
		text = removeNoise(text, n.noise)
	}

	return strings.Trim(common.CollapseSpaces(text), " -/")
}

// stripBankTag drops the bank handle after the first '@'. P2P narrations
// keep readable text that follows the handle.
func stripBankTag(text string, isP2P bool) string {
	before, after, found := strings.Cut(text, "@")
	if !found {
		return text
	}

	handle := bankHandle.FindString(after)

	if isP2P && (IsLikelyP2P(after) || startsCapitalized(after)) {
		if handle != "" {
			remaining := strings.TrimSpace(after[len(handle):])
			if remaining == "" {
				return before
			}
			return before + " " + remaining
		}
		return before + " " + after
	}

	if handle != "" {
		return before + after[len(handle):]
	}
	return before
}

// removeNoise deletes noise phrases until none remain, since a removal can
// bring two words of another phrase together.
func removeNoise(text string, patterns []*regexp.Regexp) string {
	for {
		prev := text
		for _, re := range patterns {
			text = re.ReplaceAllString(text, "")
		}
		text = common.CollapseSpaces(text)
		if text == prev {
			return text
		}
	}
}
