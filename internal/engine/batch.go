package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchOptions configures batch resolution.
type BatchOptions struct {
	// Progress is called after each item with the number completed so far.
	// It may be called from several goroutines.
	Progress func(done, total int)
	Workers  int
}

// DefaultBatchOptions returns the default batch settings.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{Workers: runtime.NumCPU()}
}

// ResolveBatch resolves every narration independently. The result has the
// same length and order as the input; a failing item only affects its own
// slot.
func (r *Resolver) ResolveBatch(ctx context.Context, narrations []string, opts BatchOptions) []model.ResolutionResult {
	results := make([]model.ResolutionResult, len(narrations))
	if len(narrations) == 0 {
		return results
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	startTime := time.Now()
	var done atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, narration := range narrations {
		g.Go(func() error {
			results[i] = r.resolveItem(ctx, narration)
			completed := int(done.Add(1))
			if opts.Progress != nil {
				opts.Progress(completed, len(narrations))
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.Debug("Batch resolved",
		"items", len(narrations),
		"workers", workers,
		"duration", time.Since(startTime))

	return results
}

// resolveItem isolates a single batch item, including panics raised outside
// the cascade itself.
func (r *Resolver) resolveItem(ctx context.Context, narration string) (result model.ResolutionResult) {
	defer func() {
		if p := recover(); p != nil {
			result = model.DefaultResult(narration)
			result.Err = fmt.Errorf("%w: %v", ErrResolutionPanic, p)
			result.Reason = result.Err.Error()
		}
	}()
	return r.Resolve(ctx, narration)
}

// ParseBatchEnvelope decodes a JSON array of narrations. Anything other
// than an array of strings is rejected with common.ErrInvalidBatch.
func ParseBatchEnvelope(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "[") {
		return nil, fmt.Errorf("%w: expected a JSON array", common.ErrInvalidBatch)
	}

	var narrations []string
	if err := json.Unmarshal([]byte(trimmed), &narrations); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidBatch, err)
	}
	if narrations == nil {
		narrations = []string{}
	}
	return narrations, nil
}

// IsBatchArgument reports whether a CLI argument selects batch mode.
func IsBatchArgument(arg string) bool {
	return strings.HasPrefix(strings.TrimSpace(arg), "[")
}
