package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/engine"
	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/Veraticus/narration-resolver/internal/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	err   error
	saved []model.Correction
	mu    sync.Mutex
}

func (w *recordingWriter) Upsert(_ context.Context, narration, category string, meta model.CorrectionMeta) error {
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.saved = append(w.saved, model.Correction{
		Narration:     narration,
		Category:      category,
		UserID:        meta.UserID,
		TransactionID: meta.TransactionID,
	})
	return nil
}

func testServer(t *testing.T, writer *recordingWriter) http.Handler {
	t.Helper()
	matcher := pattern.NewKeywordMatcher([]model.TaxonomyEntry{
		{Keyword: "zomato", Path: model.CategoryPath{Top: "Dining", Sub: "Food Delivery"}},
	})
	classifier := engine.NewMockClassifier()
	deps := Deps{
		Resolver:   engine.NewResolver(nil, matcher, classifier, nil),
		Keywords:   matcher,
		Classifier: classifier,
	}
	if writer != nil {
		deps.Corrections = writer
	}
	return New(deps, WithBatchOptions(engine.BatchOptions{Workers: 2})).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_RootAndHealth(t *testing.T) {
	h := testServer(t, nil)

	rec := do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Narration resolution API")

	rec = do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, true, health["classifier_ready"])
	assert.Equal(t, "mock", health["classifier"])
	assert.InDelta(t, 1, health["keywords"], 0)

	rec = do(t, h, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Predict(t *testing.T) {
	h := testServer(t, nil)

	tests := []struct {
		name      string
		body      string
		status    int
		category  string
		errorText string
	}{
		{name: "keyword", body: `{"description": "UPI-ZOMATO-1@ybl"}`, status: http.StatusOK, category: "Dining"},
		{name: "model", body: `{"description": "AMAZON PAY"}`, status: http.StatusOK, category: "Shopping"},
		{name: "empty description", body: `{"description": ""}`, status: http.StatusOK, category: model.DefaultCategory, errorText: "Empty description"},
		{name: "missing field", body: `{}`, status: http.StatusBadRequest, errorText: "Missing 'description' field"},
		{name: "not json", body: `STARBUCKS`, status: http.StatusBadRequest, errorText: "JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/predict", tt.body)
			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var got engine.Result
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.category, got.PredictedCategory)
			assert.Contains(t, got.Error, tt.errorText)
		})
	}
}

func TestServer_PredictBatch(t *testing.T) {
	h := testServer(t, nil)

	rec := do(t, h, http.MethodPost, "/predict/batch", `["", "UPI-ZOMATO-1@ybl"]`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []engine.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Empty description", got[0].Error)
	assert.Equal(t, "Dining", got[1].PredictedCategory)
	assert.Equal(t, "Food Delivery", got[1].PredictedSubcategory)
	assert.Equal(t, string(model.SourceKeywordMatch), got[1].Source)

	rec = do(t, h, http.MethodPost, "/predict/batch", `{"description": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), common.ErrInvalidBatch.Error())
}

func TestServer_Feedback(t *testing.T) {
	writer := &recordingWriter{}
	h := testServer(t, writer)

	rec := do(t, h, http.MethodPost, "/feedback", `{"description": " Starbucks ", "correct_category": "Dining / Cafes", "user_id": "u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp feedbackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "Starbucks", resp.Description)
	assert.Equal(t, "Dining / Cafes", resp.CorrectCategory)

	require.Len(t, writer.saved, 1)
	assert.Equal(t, "u1", writer.saved[0].UserID)

	rec = do(t, h, http.MethodPost, "/feedback", `{"description": "Starbucks"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing 'description' or 'correct_category' field")
}

func TestServer_FeedbackErrors(t *testing.T) {
	rec := do(t, testServer(t, nil), http.MethodPost, "/feedback", `{"description": "a", "correct_category": "b"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	invalid := &recordingWriter{err: common.ErrInvalidCorrection}
	rec = do(t, testServer(t, invalid), http.MethodPost, "/feedback", `{"description": "a", "correct_category": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	broken := &recordingWriter{err: assert.AnError}
	rec = do(t, testServer(t, broken), http.MethodPost, "/feedback", `{"description": "a", "correct_category": "b"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestServer_MethodNotAllowed(t *testing.T) {
	rec := do(t, testServer(t, nil), http.MethodGet, "/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_RequestID(t *testing.T) {
	h := testServer(t, nil)

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "caller-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "caller-123", rec.Header().Get(RequestIDHeader))
}

func TestServer_ListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	srv := New(Deps{Resolver: engine.NewResolver(nil, nil, nil, nil)})

	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0", nil) }()
	cancel()

	assert.NoError(t, <-done)
}
