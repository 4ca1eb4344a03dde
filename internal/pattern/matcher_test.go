package pattern

import (
	"testing"

	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/stretchr/testify/assert"
)

func path(top, sub string) model.CategoryPath {
	return model.CategoryPath{Top: top, Sub: sub}
}

func TestKeywordMatcher_Match(t *testing.T) {
	entries := []model.TaxonomyEntry{
		{Keyword: "fund", Path: path("Investments", "Savings")},
		{Keyword: "mutual fund", Path: path("Investments", "Mutual Funds")},
		{Keyword: "starbucks", Path: path("Dining", "Cafes")},
		{Keyword: "indian clearing corp", Path: path("Investments", "Stocks")},
		{Keyword: "salary", Path: path("Salary", "")},
		{Keyword: "amazon", Path: path("Shopping", "")},
		{Keyword: "videos", Path: path("Entertainment", "Streaming")},
		{Keyword: "c++", Path: path("Education", "Books")},
	}
	m := NewKeywordMatcher(entries)

	tests := []struct {
		name   string
		text   string
		want   model.CategoryPath
		wantOK bool
	}{
		{
			name:   "longest keyword wins",
			text:   "mutual fund deposit",
			want:   path("Investments", "Mutual Funds"),
			wantOK: true,
		},
		{
			name:   "shorter keyword alone",
			text:   "emergency fund",
			want:   path("Investments", "Savings"),
			wantOK: true,
		},
		{
			name:   "case insensitive",
			text:   "UPI-STARBUCKS-123",
			want:   path("Dining", "Cafes"),
			wantOK: true,
		},
		{
			name:   "multi word keyword",
			text:   "ACH DEBIT INDIAN CLEARING CORP",
			want:   path("Investments", "Stocks"),
			wantOK: true,
		},
		{
			name:   "whole word only",
			text:   "FUNDRAISER DINNER",
			wantOK: false,
		},
		{
			name:   "top level category",
			text:   "NEFT SALARY OCT",
			want:   path("Salary", ""),
			wantOK: true,
		},
		{
			name:   "equal length keeps taxonomy order",
			text:   "AMAZON VIDEOS",
			want:   path("Shopping", ""),
			wantOK: true,
		},
		{
			name:   "no match",
			text:   "RANDOM MERCHANT",
			wantOK: false,
		},
		{
			name:   "empty text",
			text:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Match(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeywordMatcher_Find(t *testing.T) {
	m := NewKeywordMatcher([]model.TaxonomyEntry{
		{Keyword: "  Zomato ", Path: path("Dining", "Food Delivery")},
		{Keyword: "   ", Path: path("Ignored", "")},
	})

	assert.Equal(t, 1, m.Len())

	hit, ok := m.Find("Zomato order 42")
	assert.True(t, ok)
	assert.Equal(t, "zomato", hit.Keyword)
	assert.Equal(t, path("Dining", "Food Delivery"), hit.Path)
}

func TestKeywordMatcher_Deterministic(t *testing.T) {
	entries := []model.TaxonomyEntry{
		{Keyword: "uber", Path: path("Transport", "Rides")},
		{Keyword: "eats", Path: path("Dining", "Food Delivery")},
	}

	first, _ := NewKeywordMatcher(entries).Match("UBER EATS")
	for i := 0; i < 20; i++ {
		got, ok := NewKeywordMatcher(entries).Match("UBER EATS")
		assert.True(t, ok)
		assert.Equal(t, first, got)
	}
}

func TestKeywordMatcher_Nil(t *testing.T) {
	var m *KeywordMatcher
	_, ok := m.Match("anything")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}
