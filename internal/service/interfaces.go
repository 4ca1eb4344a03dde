// Package service defines the interfaces shared between the resolution
// pipeline and its collaborators.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/narration-resolver/internal/model"
)

// Classifier is the statistical model capability. Implementations must be
// safe for concurrent use.
type Classifier interface {
	// Classify predicts type, category and intent for normalized text.
	Classify(ctx context.Context, text string) (model.Prediction, error)
	// Ready reports whether the model is loaded and able to answer.
	Ready() bool
	// Name identifies the model in result payloads.
	Name() string
}

// CorrectionIndex answers user-correction lookups for raw narrations.
type CorrectionIndex interface {
	Lookup(narration string) (model.CategoryPath, bool)
	Len() int
}

// CorrectionWriter records new user corrections.
type CorrectionWriter interface {
	Upsert(ctx context.Context, narration, category string, meta model.CorrectionMeta) error
}

// KeywordMatcher finds the taxonomy category for a text.
type KeywordMatcher interface {
	Match(text string) (model.CategoryPath, bool)
	Len() int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
