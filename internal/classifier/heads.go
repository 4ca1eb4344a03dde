package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/Veraticus/narration-resolver/internal/model"
)

// taskHead describes one output head of the multi-task model.
type taskHead struct {
	Labels    []string `json:"labels"`
	NumLabels int      `json:"num_labels"`
}

// modelConfig is the config.json saved next to the exported model.
type modelConfig struct {
	Tasks     map[string]taskHead `json:"tasks"`
	ModelName string              `json:"model_name"`
}

func loadModelConfig(path string) (modelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return modelConfig{}, fmt.Errorf("failed to read model config: %w", err)
	}

	var cfg modelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return modelConfig{}, fmt.Errorf("failed to parse model config: %w", err)
	}
	if len(cfg.Tasks) == 0 {
		return modelConfig{}, fmt.Errorf("model config %s declares no tasks", path)
	}
	return cfg, nil
}

func softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}

	peak := float64(logits[0])
	for _, l := range logits[1:] {
		peak = math.Max(peak, float64(l))
	}

	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(float64(l) - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// decodeHeads turns per-task logits into a prediction. Tasks without
// labels are ignored; an index beyond the label list falls back to the
// first label.
func decodeHeads(tasks map[string]taskHead, logits map[string][]float32) model.Prediction {
	prediction := model.Prediction{
		TransactionType: model.NotAvailable,
		Category:        model.DefaultCategory,
		Intent:          model.NotAvailable,
		Confidence:      map[string]float64{},
		Probabilities:   map[string]map[string]float64{},
	}

	for task, head := range tasks {
		values, ok := logits[task]
		if !ok || len(head.Labels) == 0 || len(values) == 0 {
			continue
		}

		probs := softmax(values)
		idx := argmax(probs)
		label := head.Labels[0]
		if idx < len(head.Labels) {
			label = head.Labels[idx]
		}

		switch task {
		case TaskTransactionType:
			prediction.TransactionType = label
		case TaskCategory:
			prediction.Category = label
		case TaskIntent:
			prediction.Intent = label
		}

		prediction.Confidence[task] = probs[idx]
		distribution := make(map[string]float64, len(head.Labels))
		for i, p := range probs {
			if i < len(head.Labels) {
				distribution[head.Labels[i]] = p
			}
		}
		prediction.Probabilities[task] = distribution
	}

	return prediction
}
