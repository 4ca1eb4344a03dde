// Package classifier gives the resolution pipeline access to the
// statistical transaction model through one of several backends.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/Veraticus/narration-resolver/internal/service"
)

// Backend kinds accepted by Open.
const (
	BackendNone = "none"
	BackendHTTP = "http"
	BackendExec = "exec"
	BackendONNX = "onnx"
)

// Backend is a transport to the model.
type Backend interface {
	Classify(ctx context.Context, text string) (model.Prediction, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend           string
	URL               string
	Command           string
	WorkDir           string
	ModelDir          string
	LibraryPath       string
	Args              []string
	Retry             service.RetryOptions
	Timeout           time.Duration
	CacheTTL          time.Duration
	RequestsPerMinute int
}

// Handle is the classifier as seen by the cascade. A handle without a
// backend is unavailable and answers every call with
// common.ErrClassifierUnavailable.
type Handle struct {
	backend Backend
	cache   *predictionCache
	reason  error
	name    string
}

var _ service.Classifier = (*Handle)(nil)

// Open builds the configured backend. It never fails: construction errors
// are logged and produce an unavailable handle.
func Open(ctx context.Context, cfg Config) *Handle {
	kind := strings.ToLower(strings.TrimSpace(cfg.Backend))

	var (
		backend Backend
		err     error
	)
	switch kind {
	case "", BackendNone:
		return Unavailable(fmt.Errorf("%w: no classifier backend configured", common.ErrClassifierUnavailable))
	case BackendHTTP:
		var hb *httpBackend
		hb, err = newHTTPBackend(cfg)
		if err == nil {
			hb.probe(ctx)
			backend = hb
		}
	case BackendExec:
		backend, err = newExecBackend(cfg)
	case BackendONNX:
		backend, err = newONNXBackend(cfg)
	default:
		err = fmt.Errorf("%w: unknown classifier backend %q", common.ErrInvalidConfig, cfg.Backend)
	}

	if err != nil {
		slog.Warn("Classifier unavailable, continuing without model predictions",
			"backend", kind,
			"error", err)
		return Unavailable(fmt.Errorf("%w: %w", common.ErrClassifierUnavailable, err))
	}

	slog.Debug("Classifier ready", "backend", kind)
	return New(kind, backend, cfg.CacheTTL)
}

// New wraps an existing backend.
func New(name string, backend Backend, cacheTTL time.Duration) *Handle {
	return &Handle{
		name:    name,
		backend: backend,
		cache:   newPredictionCache(cacheTTL),
	}
}

// Unavailable returns a handle that never answers.
func Unavailable(reason error) *Handle {
	if reason == nil {
		reason = common.ErrClassifierUnavailable
	}
	return &Handle{name: BackendNone, reason: reason}
}

// Ready reports whether a backend is attached.
func (h *Handle) Ready() bool {
	return h != nil && h.backend != nil
}

// Name returns the backend kind.
func (h *Handle) Name() string {
	if h == nil {
		return BackendNone
	}
	return h.name
}

// Reason explains why the handle is unavailable.
func (h *Handle) Reason() error {
	if h.Ready() {
		return nil
	}
	if h == nil || h.reason == nil {
		return common.ErrClassifierUnavailable
	}
	return h.reason
}

// Classify returns the model prediction for normalized text. Predictions
// are memoized per text for the cache TTL.
func (h *Handle) Classify(ctx context.Context, text string) (model.Prediction, error) {
	if !h.Ready() {
		return model.Prediction{}, h.Reason()
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return model.Prediction{}, common.ErrEmptyNarration
	}

	if cached, ok := h.cache.get(text); ok {
		return cached, nil
	}

	prediction, err := h.backend.Classify(ctx, text)
	if err != nil {
		if !errors.Is(err, common.ErrClassificationFailed) {
			err = fmt.Errorf("%w: %w", common.ErrClassificationFailed, err)
		}
		return model.Prediction{}, err
	}

	h.cache.set(text, prediction)
	return prediction, nil
}

// Close releases the backend and stops background work.
func (h *Handle) Close() error {
	if !h.Ready() {
		return nil
	}
	h.cache.Close()
	return h.backend.Close()
}
