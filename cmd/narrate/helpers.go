package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/narration-resolver/internal/classifier"
	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/config"
	"github.com/Veraticus/narration-resolver/internal/engine"
	"github.com/Veraticus/narration-resolver/internal/normalize"
	"github.com/Veraticus/narration-resolver/internal/pattern"
	"github.com/Veraticus/narration-resolver/internal/storage"
	"github.com/Veraticus/narration-resolver/internal/taxonomy"
)

// app holds the collaborators a command needs. It is built once per
// invocation and is read-only afterwards.
type app struct {
	cfg         *config.Config
	taxonomy    *taxonomy.Taxonomy
	normalizer  *normalize.Normalizer
	corrections *storage.Corrections
	matcher     *pattern.KeywordMatcher
	classifier  *classifier.Handle
	resolver    *engine.Resolver
}

// loadConfig reads the global configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, common.NewUserError("configuration is not usable", err)
	}
	return cfg, nil
}

// loadApp reads the global configuration and builds the app.
func loadApp(ctx context.Context, withClassifier bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, withClassifier)
}

// newApp loads the taxonomy and correction store and, when withClassifier
// is set, opens the configured classifier. A missing or malformed taxonomy
// degrades to an empty one.
func newApp(ctx context.Context, cfg *config.Config, withClassifier bool) (*app, error) {
	tax, err := taxonomy.Load(cfg.Taxonomy.Path)
	if err != nil {
		common.LogError(err, "Taxonomy unusable, continuing without keywords", common.Fields{"path": cfg.Taxonomy.Path})
	}

	n := normalize.New(tax.NoiseWords)

	backend, err := storage.OpenBackend(ctx, cfg.Corrections.Backend, cfg.Corrections.Path, storage.KeyFuncFor(n))
	if err != nil {
		return nil, fmt.Errorf("failed to open corrections: %w", err)
	}
	corrections := storage.NewCorrections(backend, n, storage.WithCategoryValidator(tax.IsValid))
	// Load failures are logged by the store and leave an empty index.
	_, _ = corrections.Load(ctx)

	handle := classifier.Unavailable(nil)
	if withClassifier {
		handle = classifier.Open(ctx, cfg.Classifier.ClassifierOptions())
	}

	matcher := pattern.NewKeywordMatcher(tax.Entries)

	return &app{
		cfg:         cfg,
		taxonomy:    tax,
		normalizer:  n,
		corrections: corrections,
		matcher:     matcher,
		classifier:  handle,
		resolver:    engine.NewResolver(corrections, matcher, handle, n),
	}, nil
}

// batchOptions applies the configured worker count.
func (a *app) batchOptions() engine.BatchOptions {
	opts := engine.DefaultBatchOptions()
	opts.Workers = a.cfg.Batch.Workers
	return opts
}

// Close releases the classifier and correction backend.
func (a *app) Close() {
	if err := a.classifier.Close(); err != nil {
		slog.Warn("Failed to close classifier", "error", err)
	}
	if err := a.corrections.Close(); err != nil {
		slog.Warn("Failed to close corrections", "error", err)
	}
}
