package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxSeqLen matches the max_length the model was trained with.
const maxSeqLen = 128

// maxWordRunes is the longest word WordPiece will try to split.
const maxWordRunes = 100

// encoding is one tokenized text ready for inference.
type encoding struct {
	inputIDs      []int64
	attentionMask []int64
}

// tokenizer is an uncased BERT WordPiece tokenizer.
type tokenizer struct {
	vocab *vocab
}

func newTokenizer(vocabPath string) (*tokenizer, error) {
	v, err := loadVocab(vocabPath)
	if err != nil {
		return nil, err
	}
	return &tokenizer{vocab: v}, nil
}

// encode wraps the word pieces of text in [CLS] ... [SEP], truncating to
// maxSeqLen. Single texts are not padded.
func (t *tokenizer) encode(text string) encoding {
	pieces := t.wordpieces(basicTokens(text))
	if len(pieces) > maxSeqLen-2 {
		pieces = pieces[:maxSeqLen-2]
	}

	ids := make([]int64, 0, len(pieces)+2)
	ids = append(ids, t.vocab.clsID)
	for _, piece := range pieces {
		ids = append(ids, t.vocab.lookup(piece))
	}
	ids = append(ids, t.vocab.sepID)

	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return encoding{inputIDs: ids, attentionMask: mask}
}

// basicTokens lowercases, strips accents, and splits on whitespace and
// punctuation.
func basicTokens(text string) []string {
	var cleaned strings.Builder
	cleaned.Grow(len(text))
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar:
		case r == '\t' || r == '\n' || r == '\r' || unicode.Is(unicode.Zs, r):
			cleaned.WriteRune(' ')
		case unicode.IsControl(r):
		default:
			cleaned.WriteRune(r)
		}
	}

	var tokens []string
	for _, word := range strings.Fields(stripAccents(strings.ToLower(cleaned.String()))) {
		tokens = append(tokens, splitPunctuation(word)...)
	}
	return tokens
}

func stripAccents(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range norm.NFD.String(text) {
		if !unicode.Is(unicode.Mn, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func splitPunctuation(word string) []string {
	var tokens []string
	start := -1
	for i, r := range word {
		if !isPunctuation(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, word[start:i])
			start = -1
		}
		tokens = append(tokens, string(r))
	}
	if start >= 0 {
		tokens = append(tokens, word[start:])
	}
	return tokens
}

// isPunctuation treats all non-alphanumeric printable ASCII as punctuation,
// as BERT does.
func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

// wordpieces greedily splits each token into the longest known prefixes,
// continuing pieces marked with "##".
func (t *tokenizer) wordpieces(tokens []string) []string {
	var out []string
	for _, token := range tokens {
		runes := []rune(token)
		if len(runes) > maxWordRunes {
			out = append(out, "[UNK]")
			continue
		}

		var pieces []string
		for start := 0; start < len(runes); {
			end := len(runes)
			piece := ""
			for ; end > start; end-- {
				candidate := string(runes[start:end])
				if start > 0 {
					candidate = "##" + candidate
				}
				if t.vocab.has(candidate) {
					piece = candidate
					break
				}
			}
			if piece == "" {
				pieces = []string{"[UNK]"}
				break
			}
			pieces = append(pieces, piece)
			start = end
		}
		out = append(out, pieces...)
	}
	return out
}
