// Package engine resolves transaction narrations to categories by
// consulting user corrections, taxonomy keywords, and the statistical
// classifier, in that order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/Veraticus/narration-resolver/internal/normalize"
	"github.com/Veraticus/narration-resolver/internal/service"
)

// ErrResolutionPanic marks a result whose resolution panicked.
var ErrResolutionPanic = errors.New("resolution panicked")

// Reasons attached to results.
const (
	ReasonEmpty            = "empty description"
	ReasonCorrection       = "matched user correction"
	ReasonKeywordRaw       = "matched taxonomy keyword in raw narration"
	ReasonKeywordNormalize = "matched taxonomy keyword in normalized narration"
	ReasonModel            = "model prediction"
	ReasonNoSignal         = "no category signal"
)

// Resolver runs the resolution cascade. It holds only read-only state and
// is safe for concurrent use.
type Resolver struct {
	corrections service.CorrectionIndex
	matcher     service.KeywordMatcher
	classifier  service.Classifier
	normalizer  *normalize.Normalizer
}

// NewResolver creates a resolver. Any collaborator may be nil, in which
// case its tier is skipped.
func NewResolver(corrections service.CorrectionIndex, matcher service.KeywordMatcher, classifier service.Classifier, normalizer *normalize.Normalizer) *Resolver {
	if normalizer == nil {
		normalizer = normalize.New(nil)
	}
	return &Resolver{
		corrections: corrections,
		matcher:     matcher,
		classifier:  classifier,
		normalizer:  normalizer,
	}
}

// resolution carries one narration through the cascade. The classifier is
// called at most once per resolution.
type resolution struct {
	ctx        context.Context
	prediction *model.Prediction
	predictErr error
	raw        string
	normalized string
	predicted  bool
}

type state func(r *Resolver, res *resolution) (model.ResolutionResult, bool)

// states are consulted in order; the first to produce a category wins.
var states = []state{
	(*Resolver).resolveCorrection,
	(*Resolver).resolveKeyword,
	(*Resolver).resolveModel,
}

// Resolve returns the category for a raw narration. It never returns an
// error: classifier failures degrade to defaults and panics are recorded in
// the result's Err.
func (r *Resolver) Resolve(ctx context.Context, raw string) (result model.ResolutionResult) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Resolution panicked", "narration", raw, "panic", p)
			result = model.DefaultResult(raw)
			result.Err = fmt.Errorf("%w: %v", ErrResolutionPanic, p)
			result.Reason = result.Err.Error()
		}
	}()

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		result = model.DefaultResult(raw)
		result.Err = common.ErrEmptyNarration
		result.Reason = ReasonEmpty
		return result
	}

	res := &resolution{
		ctx:        ctx,
		raw:        trimmed,
		normalized: r.normalizer.Normalize(trimmed, true),
	}

	result = model.DefaultResult(raw)
	for _, next := range states {
		if found, ok := next(r, res); ok {
			result = found
			break
		}
	}

	result.RawText = raw
	result.Normalized = res.normalized
	return decompose(result)
}

// resolveCorrection answers from the user's own corrections. Type and
// intent still come from the classifier when it can answer.
func (r *Resolver) resolveCorrection(res *resolution) (model.ResolutionResult, bool) {
	if r.corrections == nil {
		return model.ResolutionResult{}, false
	}

	path, ok := r.corrections.Lookup(res.raw)
	if !ok {
		return model.ResolutionResult{}, false
	}

	result := r.withModelFields(res, path)
	result.Source = model.SourceUserCorrection
	result.Reason = ReasonCorrection
	result.ModelType = string(model.SourceUserCorrection)
	result.Confidence = map[string]float64{model.ConfidenceCategory: 1.0}
	result.Probabilities = nil
	return result, true
}

// resolveKeyword matches taxonomy keywords against the raw narration and
// then the normalized one.
func (r *Resolver) resolveKeyword(res *resolution) (model.ResolutionResult, bool) {
	if r.matcher == nil || r.matcher.Len() == 0 {
		return model.ResolutionResult{}, false
	}

	reason := ReasonKeywordRaw
	path, ok := r.matcher.Match(res.raw)
	if !ok && res.normalized != "" && !strings.EqualFold(res.normalized, res.raw) {
		path, ok = r.matcher.Match(res.normalized)
		reason = ReasonKeywordNormalize
	}
	if !ok {
		return model.ResolutionResult{}, false
	}

	result := r.withModelFields(res, path)
	result.Source = model.SourceKeywordMatch
	result.Reason = reason
	result.ModelType = string(model.SourceKeywordMatch)
	return result, true
}

// resolveModel takes the classifier's answer verbatim. It is terminal: a
// missing answer yields the default result.
func (r *Resolver) resolveModel(res *resolution) (model.ResolutionResult, bool) {
	result := model.DefaultResult(res.raw)

	prediction, err := r.predict(res)
	if err != nil {
		if res.normalized != "" {
			result.Reason = fmt.Sprintf("%s: %v", ReasonNoSignal, err)
		}
		return result, true
	}

	result.Category = prediction.Category
	result.TransactionType = orNA(prediction.TransactionType)
	result.Intent = orNA(prediction.Intent)
	result.Confidence = maps.Clone(prediction.Confidence)
	result.Probabilities = cloneProbabilities(prediction.Probabilities)
	result.ModelType = r.modelType(prediction)
	result.Reason = ReasonModel
	if strings.TrimSpace(result.Category) == "" {
		result.Category = model.DefaultCategory
	}
	return result, true
}

// withModelFields builds a result for a category decided outside the
// model, filling type, intent and confidence from the classifier when
// available.
func (r *Resolver) withModelFields(res *resolution, path model.CategoryPath) model.ResolutionResult {
	result := model.DefaultResult(res.raw)
	result.Category = path.String()

	prediction, err := r.predict(res)
	if err != nil {
		return result
	}

	result.TransactionType = orNA(prediction.TransactionType)
	result.Intent = orNA(prediction.Intent)
	result.Confidence = maps.Clone(prediction.Confidence)
	result.Probabilities = cloneProbabilities(prediction.Probabilities)
	result.ModelCategory = prediction.Category
	return result
}

// predict calls the classifier once per resolution and remembers the
// outcome. Empty normalized text never reaches the classifier.
func (r *Resolver) predict(res *resolution) (model.Prediction, error) {
	if res.predicted {
		if res.predictErr != nil {
			return model.Prediction{}, res.predictErr
		}
		return *res.prediction, nil
	}
	res.predicted = true

	switch {
	case res.normalized == "":
		res.predictErr = common.ErrEmptyNarration
	case r.classifier == nil || !r.classifier.Ready():
		res.predictErr = common.ErrClassifierUnavailable
	default:
		prediction, err := r.classifier.Classify(res.ctx, res.normalized)
		if err != nil {
			slog.Debug("Classifier gave no answer", "normalized", res.normalized, "error", err)
			res.predictErr = err
		} else {
			res.prediction = &prediction
		}
	}

	if res.predictErr != nil {
		return model.Prediction{}, res.predictErr
	}
	return *res.prediction, nil
}

func (r *Resolver) modelType(p model.Prediction) string {
	if p.ModelType != "" {
		return p.ModelType
	}
	if r.classifier != nil && r.classifier.Name() != "" {
		return r.classifier.Name()
	}
	return string(model.SourceModel)
}

// decompose splits the composed category into top category and
// subcategory.
func decompose(result model.ResolutionResult) model.ResolutionResult {
	if result.Subcategory != "" {
		return result
	}
	path := model.ParseCategoryPath(result.Category)
	if path.Top == "" {
		path.Top = model.DefaultCategory
	}
	result.Category = path.Top
	result.Subcategory = path.Sub
	return result
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return model.NotAvailable
	}
	return s
}

func cloneProbabilities(in map[string]map[string]float64) map[string]map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]map[string]float64, len(in))
	for task, dist := range in {
		out[task] = maps.Clone(dist)
	}
	return out
}
