package classifier

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVocab = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]",
	"starbucks", "coffee", "cafe", "##s", "pay", "-", "@",
}

func writeVocab(t *testing.T, tokens []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(tokens, "\n")+"\n"), 0o600))
	return path
}

func TestLoadVocab(t *testing.T) {
	v, err := loadVocab(writeVocab(t, testVocab))
	require.NoError(t, err)
	assert.Equal(t, len(testVocab), v.size())
	assert.Equal(t, int64(0), v.padID)
	assert.Equal(t, int64(1), v.unkID)
	assert.Equal(t, int64(2), v.clsID)
	assert.Equal(t, int64(3), v.sepID)
	assert.Equal(t, int64(1), v.lookup("zomato"))

	_, err = loadVocab(writeVocab(t, []string{"[PAD]", "[UNK]"}))
	assert.ErrorContains(t, err, "[CLS]")

	_, err = loadVocab(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestTokenizer_Encode(t *testing.T) {
	tok, err := newTokenizer(writeVocab(t, testVocab))
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
		ids  []int64
	}{
		{name: "empty", text: "", ids: []int64{2, 3}},
		{name: "case folded", text: "STARBUCKS", ids: []int64{2, 4, 3}},
		{name: "continuation piece", text: "coffees", ids: []int64{2, 5, 7, 3}},
		{name: "accents stripped", text: "Café", ids: []int64{2, 6, 3}},
		{name: "punctuation split", text: "pay-starbucks@x", ids: []int64{2, 8, 9, 4, 10, 1, 3}},
		{name: "unknown word", text: "zomato coffee", ids: []int64{2, 1, 5, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := tok.encode(tt.text)
			assert.Equal(t, tt.ids, enc.inputIDs)
			require.Len(t, enc.attentionMask, len(tt.ids))
			for _, m := range enc.attentionMask {
				assert.Equal(t, int64(1), m)
			}
		})
	}
}

func TestTokenizer_Truncates(t *testing.T) {
	tok, err := newTokenizer(writeVocab(t, testVocab))
	require.NoError(t, err)

	enc := tok.encode(strings.Repeat("coffee ", 300))
	require.Len(t, enc.inputIDs, maxSeqLen)
	assert.Equal(t, int64(2), enc.inputIDs[0])
	assert.Equal(t, int64(3), enc.inputIDs[maxSeqLen-1])
}
