package storage

import (
	"context"
	"fmt"

	"github.com/Veraticus/narration-resolver/internal/common"
)

// Backend kinds accepted by OpenBackend.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// OpenBackend opens the configured correction backend. SQLite databases
// are migrated before they are returned.
func OpenBackend(ctx context.Context, kind, path string, keyFn KeyFunc) (Backend, error) {
	switch kind {
	case BackendJSON, "":
		return NewJSONFileBackend(path, keyFn)
	case BackendSQLite:
		backend, err := NewSQLiteBackend(path)
		if err != nil {
			return nil, err
		}
		if err := backend.Migrate(ctx); err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("%w: unknown corrections backend %q", common.ErrInvalidConfig, kind)
	}
}
