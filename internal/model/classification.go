// Package model defines the core domain models used throughout the application.
package model

// Source indicates which resolution tier produced a category.
type Source string

// Resolution source constants.
const (
	SourceUserCorrection Source = "UserCorrection"
	SourceKeywordMatch   Source = "KeywordMatch"
	SourceModel          Source = "Model"
)

// ConfidenceCategory is the confidence key of the category task.
const ConfidenceCategory = "category"

// Prediction is the output of the statistical classifier for one text.
// Confidence is keyed by task name (transaction_type, category, intent)
// and Probabilities holds the full per-label distribution for each task.
type Prediction struct {
	Confidence      map[string]float64
	Probabilities   map[string]map[string]float64
	TransactionType string
	Category        string
	Intent          string
	ModelType       string
}

// ResolutionResult is the final answer of the resolution cascade.
type ResolutionResult struct {
	Err             error
	Confidence      map[string]float64
	Probabilities   map[string]map[string]float64
	TransactionType string
	Category        string
	Subcategory     string
	Intent          string
	Source          Source
	RawText         string
	Normalized      string
	Reason          string
	ModelType       string
	ModelCategory   string
}

// Path returns the resolved category as a CategoryPath.
func (r ResolutionResult) Path() CategoryPath {
	return CategoryPath{Top: r.Category, Sub: r.Subcategory}
}

// DefaultResult returns the no-signal result for a narration.
func DefaultResult(raw string) ResolutionResult {
	return ResolutionResult{
		TransactionType: NotAvailable,
		Category:        DefaultCategory,
		Intent:          NotAvailable,
		Confidence:      map[string]float64{},
		Source:          SourceModel,
		RawText:         raw,
		ModelType:       NotAvailable,
		Reason:          "no category signal",
	}
}
