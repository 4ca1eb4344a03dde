package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/Veraticus/narration-resolver/internal/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBatch_EmptyAndKeywordItems(t *testing.T) {
	classifier := NewMockClassifier()
	r := NewResolver(&stubCorrections{}, testMatcher(), classifier, nil)

	results := r.ResolveBatch(context.Background(), []string{"", "UPI-ZOMATO-1@ybl"}, DefaultBatchOptions())
	require.Len(t, results, 2)

	assert.ErrorIs(t, results[0].Err, common.ErrEmptyNarration)
	assert.Equal(t, model.DefaultCategory, results[0].Category)
	assert.Equal(t, model.NotAvailable, results[0].TransactionType)

	require.NoError(t, results[1].Err)
	assert.Equal(t, "UPI-ZOMATO-1@ybl", results[1].RawText)
	assert.Equal(t, "Dining", results[1].Category)
	assert.Equal(t, "Food Delivery", results[1].Subcategory)
	assert.Equal(t, model.SourceKeywordMatch, results[1].Source)
}

func TestResolveBatch_PreservesOrder(t *testing.T) {
	n := normalize.New(nil)
	classifier := NewMockClassifier()
	narrations := make([]string, 200)
	for i := range narrations {
		narrations[i] = fmt.Sprintf("UPI-MERCHANT%03d-1@ybl", i)
		classifier.Predictions[n.Normalize(narrations[i], true)] = model.Prediction{Category: fmt.Sprintf("Cat%03d", i)}
	}

	r := NewResolver(nil, nil, classifier, n)
	results := r.ResolveBatch(context.Background(), narrations, BatchOptions{Workers: 8})

	require.Len(t, results, len(narrations))
	for i, res := range results {
		assert.Equal(t, narrations[i], res.RawText)
		assert.Equal(t, fmt.Sprintf("Cat%03d", i), res.Category)
	}
}

func TestResolveBatch_IsolatesFailures(t *testing.T) {
	classifier := NewMockClassifier()
	classifier.PanicOn = "BOOM"
	r := NewResolver(nil, nil, classifier, nil)

	results := r.ResolveBatch(context.Background(), []string{"AMAZON", "BOOM", "   ", "FLIPKART"}, BatchOptions{Workers: 2})
	require.Len(t, results, 4)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, "Shopping", results[0].Category)
	assert.ErrorIs(t, results[1].Err, ErrResolutionPanic)
	assert.ErrorIs(t, results[2].Err, common.ErrEmptyNarration)
	assert.NoError(t, results[3].Err)
	assert.Equal(t, "Shopping", results[3].Category)

	assert.True(t, HasFailure(results...))
	assert.False(t, HasFailure(results[0], results[2], results[3]))
}

func TestResolveBatch_Progress(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []int
	)
	opts := BatchOptions{
		Workers: 3,
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 5, total)
			seen = append(seen, done)
		},
	}

	results := NewResolver(nil, nil, NewMockClassifier(), nil).ResolveBatch(context.Background(), []string{"a", "b", "c", "d", "e"}, opts)
	require.Len(t, results, 5)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, seen)
}

func TestResolveBatch_Empty(t *testing.T) {
	results := NewResolver(nil, nil, nil, nil).ResolveBatch(context.Background(), nil, BatchOptions{})
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestParseBatchEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{name: "array", raw: `["", "UPI-ZOMATO-1@ybl"]`, want: []string{"", "UPI-ZOMATO-1@ybl"}},
		{name: "empty array", raw: ` [] `, want: []string{}},
		{name: "null", raw: `null`, wantErr: true},
		{name: "object", raw: `{"description": "x"}`, wantErr: true},
		{name: "truncated", raw: `["a", `, wantErr: true},
		{name: "non-string items", raw: `[1, 2]`, wantErr: true},
		{name: "plain text", raw: `STARBUCKS`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBatchEnvelope(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidBatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsBatchArgument(t *testing.T) {
	assert.True(t, IsBatchArgument(`["a"]`))
	assert.True(t, IsBatchArgument(`  [`))
	assert.False(t, IsBatchArgument(`UPI-[weird]`))
	assert.False(t, IsBatchArgument(``))
}
