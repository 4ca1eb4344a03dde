package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/google/uuid"
)

// JSONFileBackend keeps corrections as a JSON array in a single file, the
// user_corrections.json format shared with other tools.
type JSONFileBackend struct {
	keyFn KeyFunc
	path  string
	mu    sync.Mutex
}

// NewJSONFileBackend creates a backend for path. keyFn must be the same
// key derivation the Corrections store uses.
func NewJSONFileBackend(path string, keyFn KeyFunc) (*JSONFileBackend, error) {
	if err := validateString(path, "path"); err != nil {
		return nil, err
	}
	return &JSONFileBackend{path: path, keyFn: keyFn}, nil
}

// List reads every record. A missing or empty file yields no records and
// malformed content is logged and treated as empty.
func (b *JSONFileBackend) List(ctx context.Context) ([]model.Correction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	records, err := b.read()
	if errors.Is(err, common.ErrStoreMalformed) {
		slog.Warn("Correction file is malformed, treating as empty", "path", b.path, "error", err)
		return nil, nil
	}
	return records, err
}

// Save appends or refreshes a record and rewrites the file atomically.
func (b *JSONFileBackend) Save(ctx context.Context, c model.Correction, key string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	records, err := b.read()
	if errors.Is(err, common.ErrStoreMalformed) {
		backup := b.path + ".bak"
		slog.Warn("Correction file is malformed, starting fresh", "path", b.path, "backup", backup)
		if renameErr := os.Rename(b.path, backup); renameErr != nil {
			return fmt.Errorf("failed to back up malformed corrections: %w", renameErr)
		}
		records = nil
	} else if err != nil {
		return err
	}

	updated := false
	for i := range records {
		if records[i].Category != c.Category || b.keyFn(records[i].Narration) != key {
			continue
		}
		records[i].RawTimestamp = c.RawTimestamp
		if c.UserID != "" {
			records[i].UserID = c.UserID
		}
		if c.TransactionID != "" {
			records[i].TransactionID = c.TransactionID
		}
		updated = true
		break
	}
	if !updated {
		records = append(records, c)
	}

	return b.write(records)
}

// Close is a no-op; the file is opened per operation.
func (b *JSONFileBackend) Close() error {
	return nil
}

func (b *JSONFileBackend) read() ([]model.Correction, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read corrections: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []model.Correction
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreMalformed, err)
	}

	for i := range records {
		records[i].Narration = strings.TrimSpace(records[i].Narration)
		records[i].Timestamp = parseTimestamp(records[i].RawTimestamp)
	}
	return records, nil
}

// write replaces the file through a uniquely named temp file and rename.
func (b *JSONFileBackend) write(records []model.Correction) error {
	if records == nil {
		records = []model.Correction{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal corrections: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create corrections directory: %w", err)
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(b.path), uuid.New().String()))
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace corrections file: %w", err)
	}
	return nil
}
