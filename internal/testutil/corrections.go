package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/Veraticus/narration-resolver/internal/normalize"
	"github.com/Veraticus/narration-resolver/internal/storage"
)

// Seed is a correction recorded before the store under test is loaded.
type Seed struct {
	Narration string
	Category  string
	UserID    string
}

// SetupCorrections returns a loaded correction store on a migrated
// in-memory SQLite database holding seeds. isValid may be nil.
func SetupCorrections(t *testing.T, isValid func(string) bool, seeds ...Seed) *storage.Corrections {
	t.Helper()

	backend := SetupSQLiteBackend(t)
	n := normalize.New(nil)

	var opts []storage.CorrectionsOption
	if isValid != nil {
		opts = append(opts, storage.WithCategoryValidator(isValid))
	}

	ctx := context.Background()
	writer := storage.NewCorrections(backend, n, opts...)
	for _, s := range seeds {
		if err := writer.Upsert(ctx, s.Narration, s.Category, model.CorrectionMeta{UserID: s.UserID}); err != nil {
			t.Fatalf("failed to seed correction %q: %v", s.Narration, err)
		}
	}

	store := storage.NewCorrections(backend, n, opts...)
	if _, err := store.Load(ctx); err != nil {
		t.Fatalf("failed to load corrections: %v", err)
	}
	return store
}

// SetupSQLiteBackend creates a migrated in-memory correction backend that
// is closed when the test ends.
func SetupSQLiteBackend(t *testing.T) *storage.SQLiteBackend {
	t.Helper()

	backend, err := storage.NewSQLiteBackend(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := backend.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = backend.Close()
	})
	return backend
}
