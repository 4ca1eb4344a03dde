package classifier

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Veraticus/narration-resolver/internal/model"
	ort "github.com/yalue/onnxruntime_go"
)

// ModelTypeDistilBERT is reported for predictions made by the local model.
const ModelTypeDistilBERT = "DistilBERT"

// ortEnv is the process-wide ONNX Runtime environment.
var ortEnv struct {
	err  error
	once sync.Once
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// onnxBackend runs the exported multi-task DistilBERT model in process.
// The model directory holds model.onnx, vocab.txt and config.json.
type onnxBackend struct {
	session    *ort.DynamicAdvancedSession
	tokenizer  *tokenizer
	tasks      map[string]taskHead
	inputNames []string
	outputs    []string
	mu         sync.Mutex
}

func newONNXBackend(cfg Config) (*onnxBackend, error) {
	if cfg.ModelDir == "" {
		return nil, fmt.Errorf("onnx backend requires a model directory")
	}
	modelPath := filepath.Join(cfg.ModelDir, "model.onnx")

	libPath := cfg.LibraryPath
	if libPath == "" {
		libPath = filepath.Join(cfg.ModelDir, "libonnxruntime.so")
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("failed to initialize onnx runtime: %w", err)
	}

	mc, err := loadModelConfig(filepath.Join(cfg.ModelDir, "config.json"))
	if err != nil {
		return nil, err
	}

	tok, err := newTokenizer(filepath.Join(cfg.ModelDir, "vocab.txt"))
	if err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info: %w", err)
	}

	inputNames, err := selectInputs(inputs)
	if err != nil {
		return nil, err
	}
	outputNames, err := selectOutputs(outputs, mc.Tasks)
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() { _ = opts.Destroy() }()
	_ = opts.SetIntraOpNumThreads(4)
	_ = opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create onnx session: %w", err)
	}

	return &onnxBackend{
		session:    session,
		tokenizer:  tok,
		tasks:      mc.Tasks,
		inputNames: inputNames,
		outputs:    outputNames,
	}, nil
}

// selectInputs requires input_ids and passes attention_mask when the
// export declares it.
func selectInputs(inputs []ort.InputOutputInfo) ([]string, error) {
	names := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		names[in.Name] = true
	}
	if !names["input_ids"] {
		return nil, fmt.Errorf("model is missing required input %q", "input_ids")
	}
	selected := []string{"input_ids"}
	if names["attention_mask"] {
		selected = append(selected, "attention_mask")
	}
	return selected, nil
}

// selectOutputs keeps the outputs named after a configured task.
func selectOutputs(outputs []ort.InputOutputInfo, tasks map[string]taskHead) ([]string, error) {
	var names []string
	for _, out := range outputs {
		if head, ok := tasks[out.Name]; ok && len(head.Labels) > 0 {
			names = append(names, out.Name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("model has no outputs matching configured tasks")
	}
	sort.Strings(names)
	return names, nil
}

// Classify tokenizes text, runs every task head and decodes the logits.
func (b *onnxBackend) Classify(ctx context.Context, text string) (model.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return model.Prediction{}, err
	}

	enc := b.tokenizer.encode(text)
	shape := ort.NewShape(1, int64(len(enc.inputIDs)))

	ids, err := ort.NewTensor(shape, enc.inputIDs)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer func() { _ = ids.Destroy() }()
	inputs := []ort.Value{ids}

	if len(b.inputNames) > 1 {
		mask, maskErr := ort.NewTensor(shape, enc.attentionMask)
		if maskErr != nil {
			return model.Prediction{}, fmt.Errorf("failed to create attention_mask tensor: %w", maskErr)
		}
		defer func() { _ = mask.Destroy() }()
		inputs = append(inputs, mask)
	}

	outTensors := make([]*ort.Tensor[float32], len(b.outputs))
	outputs := make([]ort.Value, len(b.outputs))
	for i, name := range b.outputs {
		t, tErr := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(b.tasks[name].Labels))))
		if tErr != nil {
			return model.Prediction{}, fmt.Errorf("failed to create %s output tensor: %w", name, tErr)
		}
		defer func() { _ = t.Destroy() }()
		outTensors[i] = t
		outputs[i] = t
	}

	b.mu.Lock()
	err = b.session.Run(inputs, outputs)
	b.mu.Unlock()
	if err != nil {
		return model.Prediction{}, fmt.Errorf("onnx inference failed: %w", err)
	}

	logits := make(map[string][]float32, len(b.outputs))
	for i, name := range b.outputs {
		logits[name] = append([]float32(nil), outTensors[i].GetData()...)
	}

	prediction := decodeHeads(b.tasks, logits)
	prediction.ModelType = ModelTypeDistilBERT
	return prediction, nil
}

func (b *onnxBackend) Close() error {
	return b.session.Destroy()
}
