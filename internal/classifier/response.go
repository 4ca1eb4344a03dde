package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/model"
)

// Task names used by the multi-task model.
const (
	TaskTransactionType = "transaction_type"
	TaskCategory        = "category"
	TaskIntent          = "intent"
)

// predictResponse is the JSON object produced by the model server and by
// the local inference script.
type predictResponse struct {
	Error             string          `json:"error,omitempty"`
	ModelType         string          `json:"model_type,omitempty"`
	TransactionType   string          `json:"transaction_type,omitempty"`
	PredictedCategory string          `json:"predicted_category,omitempty"`
	Intent            string          `json:"intent,omitempty"`
	Confidence        json.RawMessage `json:"confidence,omitempty"`
	AllProbabilities  json.RawMessage `json:"all_probabilities,omitempty"`
}

// parsePrediction decodes a classifier response. Some model builds report a
// single confidence float and a flat probability map for the category task;
// both shapes are accepted.
func parsePrediction(data []byte) (model.Prediction, error) {
	var resp predictResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return model.Prediction{}, fmt.Errorf("%w: invalid response: %v", common.ErrClassificationFailed, err)
	}

	if resp.Error != "" {
		return model.Prediction{}, fmt.Errorf("%w: %s", common.ErrClassificationFailed, resp.Error)
	}
	if strings.TrimSpace(resp.PredictedCategory) == "" {
		return model.Prediction{}, fmt.Errorf("%w: response has no predicted_category", common.ErrClassificationFailed)
	}

	confidence, err := decodeConfidence(resp.Confidence)
	if err != nil {
		return model.Prediction{}, err
	}
	probabilities, err := decodeProbabilities(resp.AllProbabilities)
	if err != nil {
		return model.Prediction{}, err
	}

	return model.Prediction{
		TransactionType: resp.TransactionType,
		Category:        strings.TrimSpace(resp.PredictedCategory),
		Intent:          resp.Intent,
		Confidence:      confidence,
		Probabilities:   probabilities,
		ModelType:       resp.ModelType,
	}, nil
}

func decodeConfidence(raw json.RawMessage) (map[string]float64, error) {
	if isNull(raw) {
		return map[string]float64{}, nil
	}

	var perTask map[string]float64
	if err := json.Unmarshal(raw, &perTask); err == nil {
		return perTask, nil
	}

	var single float64
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("%w: unsupported confidence value %s", common.ErrClassificationFailed, string(raw))
	}
	return map[string]float64{TaskCategory: single}, nil
}

func decodeProbabilities(raw json.RawMessage) (map[string]map[string]float64, error) {
	if isNull(raw) {
		return nil, nil
	}

	var perTask map[string]map[string]float64
	if err := json.Unmarshal(raw, &perTask); err == nil {
		return perTask, nil
	}

	var flat map[string]float64
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("%w: unsupported all_probabilities value", common.ErrClassificationFailed)
	}
	return map[string]map[string]float64{TaskCategory: flat}, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// extractObject returns the outermost JSON object in output, skipping any
// log noise printed around it.
func extractObject(output []byte) ([]byte, bool) {
	start := bytes.IndexByte(output, '{')
	end := bytes.LastIndexByte(output, '}')
	if start < 0 || end < start {
		return nil, false
	}
	return output[start : end+1], true
}
