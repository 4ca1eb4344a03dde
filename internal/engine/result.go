package engine

import (
	"errors"

	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/model"
)

// emptyDescriptionMessage is the error text callers already match on.
const emptyDescriptionMessage = "Empty description"

// Result is the JSON form of a resolution shared by the CLI and the HTTP
// API.
type Result struct {
	Confidence           map[string]float64            `json:"confidence"`
	AllProbabilities     map[string]map[string]float64 `json:"all_probabilities,omitempty"`
	Description          string                        `json:"description"`
	Normalized           string                        `json:"normalized"`
	ModelType            string                        `json:"model_type"`
	TransactionType      string                        `json:"transaction_type"`
	PredictedCategory    string                        `json:"predicted_category"`
	PredictedSubcategory string                        `json:"predicted_subcategory,omitempty"`
	Intent               string                        `json:"intent"`
	Reason               string                        `json:"reason"`
	Source               string                        `json:"source"`
	ModelCategory        string                        `json:"model_category,omitempty"`
	Error                string                        `json:"error,omitempty"`
}

// NewResult converts a resolution into its JSON form.
func NewResult(r model.ResolutionResult) Result {
	confidence := r.Confidence
	if confidence == nil {
		confidence = map[string]float64{}
	}

	out := Result{
		Description:          r.RawText,
		Normalized:           r.Normalized,
		ModelType:            r.ModelType,
		TransactionType:      r.TransactionType,
		PredictedCategory:    r.Category,
		PredictedSubcategory: r.Subcategory,
		Intent:               r.Intent,
		Confidence:           confidence,
		AllProbabilities:     r.Probabilities,
		Reason:               r.Reason,
		Source:               string(r.Source),
		ModelCategory:        r.ModelCategory,
	}

	switch {
	case r.Err == nil:
	case errors.Is(r.Err, common.ErrEmptyNarration):
		out.Error = emptyDescriptionMessage
	default:
		out.Error = r.Err.Error()
	}
	return out
}

// NewResults converts a batch of resolutions.
func NewResults(results []model.ResolutionResult) []Result {
	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = NewResult(r)
	}
	return out
}

// HasFailure reports whether any result carries an error other than an
// empty description.
func HasFailure(results ...model.ResolutionResult) bool {
	for _, r := range results {
		if !common.IsTrivial(r.Err) {
			return true
		}
	}
	return false
}
