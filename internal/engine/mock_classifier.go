package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/Veraticus/narration-resolver/internal/service"
)

// MockClassifier is a deterministic classifier for tests. Predictions are
// looked up by exact text; unknown texts get the fallback prediction.
type MockClassifier struct {
	Predictions map[string]model.Prediction
	Err         error
	PanicOn     string
	Fallback    model.Prediction
	calls       []string
	mu          sync.Mutex
	NotReady    bool
}

var _ service.Classifier = (*MockClassifier)(nil)

// NewMockClassifier creates a mock answering "Shopping" for unknown texts.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{
		Predictions: make(map[string]model.Prediction),
		Fallback: model.Prediction{
			TransactionType: "P2C",
			Category:        "Shopping",
			Intent:          "purchase",
			ModelType:       "Mock",
			Confidence: map[string]float64{
				"transaction_type": 0.9,
				"category":         0.6,
				"intent":           0.8,
			},
		},
	}
}

// Classify records the call and returns the configured prediction.
func (m *MockClassifier) Classify(_ context.Context, text string) (model.Prediction, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if m.PanicOn != "" && strings.Contains(text, m.PanicOn) {
		panic("mock classifier: " + text)
	}
	if m.Err != nil {
		return model.Prediction{}, m.Err
	}
	if p, ok := m.Predictions[text]; ok {
		return p, nil
	}
	return m.Fallback, nil
}

// Ready reports whether the mock accepts calls.
func (m *MockClassifier) Ready() bool {
	return !m.NotReady
}

// Name returns "mock".
func (m *MockClassifier) Name() string {
	return "mock"
}

// Calls returns the texts classified so far.
func (m *MockClassifier) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
