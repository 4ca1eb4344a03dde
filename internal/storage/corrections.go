package storage

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/Veraticus/narration-resolver/internal/normalize"
)

// minContainedKeyLen is the shortest correction key that may match inside
// a longer narration.
const minContainedKeyLen = 3

// Backend is an append-or-update record store for corrections.
type Backend interface {
	// List returns every stored correction in insertion order.
	List(ctx context.Context) ([]model.Correction, error)
	// Save appends c, or refreshes the timestamp and metadata of an existing
	// record with the same key and category.
	Save(ctx context.Context, c model.Correction, key string) error
	Close() error
}

// KeyFunc derives the lookup key for a narration.
type KeyFunc func(narration string) string

// KeyFor returns the correction key for narration: the P2P-preserving
// normalized form, lower-cased and trimmed, falling back to the raw
// lower-cased narration when normalization leaves nothing.
func KeyFor(n *normalize.Normalizer, narration string) string {
	key := strings.ToLower(strings.TrimSpace(n.Normalize(narration, true)))
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(narration))
	}
	return key
}

// KeyFuncFor binds KeyFor to a normalizer.
func KeyFuncFor(n *normalize.Normalizer) KeyFunc {
	return func(narration string) string {
		return KeyFor(n, narration)
	}
}

type containedKey struct {
	re   *regexp.Regexp
	key  string
	path model.CategoryPath
}

// Corrections is the in-memory correction index backed by a Backend. The
// index is loaded once; writes go to the backend and are visible after the
// next process start.
type Corrections struct {
	backend    Backend
	normalizer *normalize.Normalizer
	isValid    func(string) bool
	index      map[string]model.CategoryPath
	contained  []containedKey
	loadErr    error
	once       sync.Once
}

// CorrectionsOption configures a Corrections store.
type CorrectionsOption func(*Corrections)

// WithCategoryValidator warns when a recorded category is not in the taxonomy.
func WithCategoryValidator(isValid func(string) bool) CorrectionsOption {
	return func(c *Corrections) {
		c.isValid = isValid
	}
}

// NewCorrections creates a store over backend using n for key derivation.
func NewCorrections(backend Backend, n *normalize.Normalizer, opts ...CorrectionsOption) *Corrections {
	c := &Corrections{
		backend:    backend,
		normalizer: n,
		index:      make(map[string]model.CategoryPath),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load reads the backend once and builds the index. Later calls return the
// same snapshot. Backend failures are logged and leave an empty index.
func (c *Corrections) Load(ctx context.Context) (map[string]model.CategoryPath, error) {
	c.once.Do(func() {
		records, err := c.backend.List(ctx)
		if err != nil {
			c.loadErr = fmt.Errorf("failed to load corrections: %w", err)
			slog.Warn("Continuing without user corrections", "error", err)
			return
		}
		c.build(records)
		slog.Debug("Loaded user corrections", "records", len(records), "keys", len(c.index))
	})
	return c.index, c.loadErr
}

// build applies last-write-wins per key. Records are ordered by timestamp
// and later records win ties.
func (c *Corrections) build(records []model.Correction) {
	ordered := make([]model.Correction, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	for _, rec := range ordered {
		if strings.TrimSpace(rec.Narration) == "" || strings.TrimSpace(rec.Category) == "" {
			continue
		}
		c.index[KeyFor(c.normalizer, rec.Narration)] = model.ParseCategoryPath(strings.TrimSpace(rec.Category))
	}

	for key, path := range c.index {
		if len(key) < minContainedKeyLen {
			continue
		}
		c.contained = append(c.contained, containedKey{
			key:  key,
			path: path,
			re:   common.WordPattern(key),
		})
	}
	sort.Slice(c.contained, func(i, j int) bool {
		if len(c.contained[i].key) != len(c.contained[j].key) {
			return len(c.contained[i].key) > len(c.contained[j].key)
		}
		return c.contained[i].key < c.contained[j].key
	})
}

// Lookup returns the corrected category for a raw narration. An exact key
// match wins; otherwise the longest correction key found as whole words
// inside the narration's key is used.
func (c *Corrections) Lookup(narration string) (model.CategoryPath, bool) {
	if strings.TrimSpace(narration) == "" {
		return model.CategoryPath{}, false
	}
	if _, err := c.Load(context.Background()); err != nil && len(c.index) == 0 {
		return model.CategoryPath{}, false
	}

	key := KeyFor(c.normalizer, narration)
	if path, ok := c.index[key]; ok {
		return path, true
	}

	for _, ck := range c.contained {
		if ck.re.MatchString(key) {
			return ck.path, true
		}
	}

	return model.CategoryPath{}, false
}

// Len returns the number of distinct correction keys.
func (c *Corrections) Len() int {
	_, _ = c.Load(context.Background())
	return len(c.index)
}

// Upsert records a correction. Re-adding the same narration and category
// refreshes the stored timestamp instead of duplicating the record.
func (c *Corrections) Upsert(ctx context.Context, narration, category string, meta model.CorrectionMeta) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCorrection(narration, category); err != nil {
		return err
	}

	narration = strings.TrimSpace(narration)
	category = strings.TrimSpace(category)

	if c.isValid != nil && !c.isValid(category) {
		slog.Warn("Correction category is not in the taxonomy", "category", category)
	}

	now := time.Now().UTC()
	rec := model.Correction{
		Narration:     narration,
		Category:      category,
		UserID:        strings.TrimSpace(meta.UserID),
		TransactionID: strings.TrimSpace(meta.TransactionID),
		Timestamp:     now,
		RawTimestamp:  formatTimestamp(now),
	}

	key := KeyFor(c.normalizer, narration)
	if err := c.backend.Save(ctx, rec, key); err != nil {
		return fmt.Errorf("failed to save correction: %w", err)
	}

	slog.Info("Recorded correction", "key", key, "category", category)
	return nil
}

// Close releases the backend.
func (c *Corrections) Close() error {
	return c.backend.Close()
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp accepts RFC 3339 and ISO 8601 timestamps without a zone.
// Unparseable values sort first.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
