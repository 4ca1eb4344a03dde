package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/Veraticus/narration-resolver/internal/service"
)

// httpBackend calls a model server exposing POST /predict.
type httpBackend struct {
	httpClient *http.Client
	limiter    *rateLimiter
	baseURL    string
	retry      service.RetryOptions
}

func newHTTPBackend(cfg Config) (*httpBackend, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: classifier url is required for the http backend", common.ErrInvalidConfig)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &httpBackend{
		baseURL: baseURL,
		retry:   cfg.Retry,
		limiter: newRateLimiter(cfg.RequestsPerMinute),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded *bool  `json:"model_loaded,omitempty"`
}

// probe checks /health once. A server that is down or reports no model is
// logged but does not disable the backend; it may come up later.
func (b *httpBackend) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		slog.Warn("Classifier server is not reachable yet", "url", b.baseURL, "error", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		slog.Debug("Classifier health response not understood", "url", b.baseURL, "error", err)
		return
	}
	if health.ModelLoaded != nil && !*health.ModelLoaded {
		slog.Warn("Classifier server reports no model loaded", "url", b.baseURL)
	}
}

// Classify posts the text to /predict, retrying transient failures.
func (b *httpBackend) Classify(ctx context.Context, text string) (model.Prediction, error) {
	if err := b.limiter.wait(ctx); err != nil {
		return model.Prediction{}, err
	}

	var prediction model.Prediction
	err := common.WithRetry(ctx, func() error {
		var callErr error
		prediction, callErr = b.predict(ctx, text)
		return callErr
	}, b.retry)
	if err != nil {
		return model.Prediction{}, err
	}
	return prediction, nil
}

func (b *httpBackend) predict(ctx context.Context, text string) (model.Prediction, error) {
	body, err := json.Marshal(map[string]string{"description": text})
	if err != nil {
		return model.Prediction{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return model.Prediction{}, &common.RetryableError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return model.Prediction{}, &common.RetryableError{Err: fmt.Errorf("request failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Prediction{}, &common.RetryableError{Err: fmt.Errorf("failed to read response: %w", err), Retryable: true}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return model.Prediction{}, &common.RetryableError{Err: common.ErrRateLimit, Retryable: true}
	case resp.StatusCode >= http.StatusInternalServerError:
		return model.Prediction{}, &common.RetryableError{
			Err:       fmt.Errorf("%w: server error (status %d): %s", common.ErrClassificationFailed, resp.StatusCode, strings.TrimSpace(string(data))),
			Retryable: true,
		}
	case resp.StatusCode != http.StatusOK:
		return model.Prediction{}, &common.RetryableError{
			Err: fmt.Errorf("%w: request rejected (status %d): %s", common.ErrClassificationFailed, resp.StatusCode, strings.TrimSpace(string(data))),
		}
	}

	prediction, err := parsePrediction(data)
	if err != nil {
		return model.Prediction{}, &common.RetryableError{Err: err}
	}
	return prediction, nil
}

func (b *httpBackend) Close() error {
	b.limiter.Close()
	b.httpClient.CloseIdleConnections()
	return nil
}
