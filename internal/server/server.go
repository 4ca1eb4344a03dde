// Package server exposes narration resolution and correction feedback over
// HTTP.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Veraticus/narration-resolver/internal/engine"
	"github.com/Veraticus/narration-resolver/internal/service"
)

// DefaultMaxBodyBytes limits request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Deps are the collaborators served by the API. Only Resolver is required.
type Deps struct {
	Resolver    *engine.Resolver
	Corrections service.CorrectionWriter
	Index       service.CorrectionIndex
	Keywords    service.KeywordMatcher
	Classifier  service.Classifier
}

// Server is the HTTP API.
type Server struct {
	deps      Deps
	mux       *http.ServeMux
	batchOpts engine.BatchOptions
	maxBody   int64
}

// Option customizes a Server.
type Option func(*Server)

// WithBatchOptions sets the worker pool used by /predict/batch.
func WithBatchOptions(opts engine.BatchOptions) Option {
	return func(s *Server) { s.batchOpts = opts }
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// New builds the API and registers its routes.
func New(deps Deps, opts ...Option) *Server {
	s := &Server{
		deps:      deps,
		mux:       http.NewServeMux(),
		batchOpts: engine.DefaultBatchOptions(),
		maxBody:   DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /predict", s.handlePredict)
	s.mux.HandleFunc("POST /predict/batch", s.handlePredictBatch)
	s.mux.HandleFunc("POST /feedback", s.handleFeedback)

	return s
}

// Handler returns the routes wrapped with request logging and IDs.
func (s *Server) Handler() http.Handler {
	return withRequestID(withLogging(s.mux))
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
// A non-nil tlsConfig serves HTTPS.
func (s *Server) ListenAndServe(ctx context.Context, addr string, tlsConfig *tls.Config) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tlsConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start server: %w", err)
		}
		close(errCh)
	}()

	slog.Info("Serving narration API", "addr", addr, "tls", tlsConfig != nil)

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	slog.Info("Narration API stopped")
	return nil
}
