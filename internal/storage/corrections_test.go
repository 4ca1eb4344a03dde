package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/model"
	"github.com/Veraticus/narration-resolver/internal/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendFactory func(t *testing.T, keyFn KeyFunc) Backend

func jsonBackend(t *testing.T, keyFn KeyFunc) Backend {
	t.Helper()
	b, err := NewJSONFileBackend(filepath.Join(t.TempDir(), "user_corrections.json"), keyFn)
	require.NoError(t, err)
	return b
}

func sqliteBackend(t *testing.T, _ KeyFunc) Backend {
	t.Helper()
	b, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	require.NoError(t, b.Migrate(context.Background()))
	t.Cleanup(func() { _ = b.Close() })
	return b
}

var backends = map[string]backendFactory{
	"json":   jsonBackend,
	"sqlite": sqliteBackend,
}

func TestCorrections_UpsertThenLookup(t *testing.T) {
	for name, factory := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			n := normalize.New(nil)
			backend := factory(t, KeyFuncFor(n))

			writer := NewCorrections(backend, n)
			require.NoError(t, writer.Upsert(ctx, "Starbucks", "Dining / Cafes", model.CorrectionMeta{UserID: "u1"}))
			require.NoError(t, writer.Upsert(ctx, "NEFT ACME PAYROLL", "Salary", model.CorrectionMeta{}))

			// Corrections written after a load are not visible to that index.
			reader := NewCorrections(backend, n)
			index, err := reader.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, index, 2)

			path, ok := reader.Lookup("UPI-STARBUCKS-999@paytm")
			require.True(t, ok)
			assert.Equal(t, model.CategoryPath{Top: "Dining", Sub: "Cafes"}, path)

			path, ok = reader.Lookup("  neft acme payroll ")
			require.True(t, ok)
			assert.Equal(t, model.CategoryPath{Top: "Salary"}, path)

			_, ok = reader.Lookup("UPI-ZOMATO-1@ybl")
			assert.False(t, ok)

			require.NoError(t, writer.Upsert(ctx, "Zomato", "Dining / Food Delivery", model.CorrectionMeta{}))
			_, ok = reader.Lookup("UPI-ZOMATO-1@ybl")
			assert.False(t, ok, "loaded index must not change mid-process")
		})
	}
}

func TestCorrections_UpsertDeduplicates(t *testing.T) {
	for name, factory := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			n := normalize.New(nil)
			backend := factory(t, KeyFuncFor(n))
			store := NewCorrections(backend, n)

			require.NoError(t, store.Upsert(ctx, "Starbucks", "Dining / Cafes", model.CorrectionMeta{UserID: "u1"}))
			require.NoError(t, store.Upsert(ctx, "  STARBUCKS ", "Dining / Cafes", model.CorrectionMeta{TransactionID: "t9"}))
			require.NoError(t, store.Upsert(ctx, "Starbucks", "Dining / Coffee", model.CorrectionMeta{}))

			records, err := backend.List(ctx)
			require.NoError(t, err)
			require.Len(t, records, 2)

			assert.Equal(t, "Starbucks", records[0].Narration)
			assert.Equal(t, "Dining / Cafes", records[0].Category)
			assert.Equal(t, "u1", records[0].UserID)
			assert.Equal(t, "t9", records[0].TransactionID)
			assert.False(t, records[0].Timestamp.IsZero())
			assert.Equal(t, "Dining / Coffee", records[1].Category)
		})
	}
}

func TestCorrections_LastWriteWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user_corrections.json")
	content := `[
  {"narration": "Starbucks", "category": "Dining / Coffee", "timestamp": "2024-03-02T10:00:00"},
  {"narration": "starbucks", "category": "Dining / Cafes", "timestamp": "2024-03-01T10:00:00.123456"},
  {"narration": "Uber", "category": "Transport / Rides", "timestamp": "2024-01-01T00:00:00Z"},
  {"narration": "UBER", "category": "Transport / Taxi", "timestamp": "2024-01-01T00:00:00Z"}
]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	n := normalize.New(nil)
	backend, err := NewJSONFileBackend(path, KeyFuncFor(n))
	require.NoError(t, err)
	store := NewCorrections(backend, n)

	got, ok := store.Lookup("Starbucks")
	require.True(t, ok)
	assert.Equal(t, "Dining / Coffee", got.String(), "latest timestamp wins")

	got, ok = store.Lookup("Uber")
	require.True(t, ok)
	assert.Equal(t, "Transport / Taxi", got.String(), "later record wins a timestamp tie")
}

func TestCorrections_MissingAndMalformed(t *testing.T) {
	ctx := context.Background()
	n := normalize.New(nil)

	t.Run("missing file", func(t *testing.T) {
		backend, err := NewJSONFileBackend(filepath.Join(t.TempDir(), "none.json"), KeyFuncFor(n))
		require.NoError(t, err)
		index, err := NewCorrections(backend, n).Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, index)
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.json")
		require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))
		backend, err := NewJSONFileBackend(path, KeyFuncFor(n))
		require.NoError(t, err)
		index, err := NewCorrections(backend, n).Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, index)
	})

	t.Run("malformed file starts fresh", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"not": "a list"`), 0o600))
		backend, err := NewJSONFileBackend(path, KeyFuncFor(n))
		require.NoError(t, err)

		store := NewCorrections(backend, n)
		index, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, index)

		require.NoError(t, store.Upsert(ctx, "Netflix", "Entertainment / Streaming", model.CorrectionMeta{}))
		records, err := backend.List(ctx)
		require.NoError(t, err)
		assert.Len(t, records, 1)

		backup, err := os.ReadFile(path + ".bak")
		require.NoError(t, err)
		assert.Equal(t, `{"not": "a list"`, string(backup))
	})
}

func TestCorrections_NoiseOnlyNarrationFallsBackToRawKey(t *testing.T) {
	ctx := context.Background()
	n := normalize.New(nil)
	assert.Equal(t, "txn ref no", KeyFor(n, " TXN REF NO "))

	store := NewCorrections(jsonBackend(t, KeyFuncFor(n)), n)
	require.NoError(t, store.Upsert(ctx, "TXN REF NO", "Bank / Fees", model.CorrectionMeta{}))

	reader := NewCorrections(store.backend, n)
	got, ok := reader.Lookup("txn ref no")
	require.True(t, ok)
	assert.Equal(t, "Bank / Fees", got.String())
}

func TestCorrections_UpsertValidation(t *testing.T) {
	ctx := context.Background()
	n := normalize.New(nil)
	store := NewCorrections(jsonBackend(t, KeyFuncFor(n)), n)

	err := store.Upsert(ctx, "  ", "Dining", model.CorrectionMeta{})
	assert.ErrorIs(t, err, ErrEmptyString)

	err = store.Upsert(ctx, "Starbucks", "", model.CorrectionMeta{})
	assert.ErrorIs(t, err, common.ErrEmptyCategory)

	err = store.Upsert(ctx, "Starbucks", "A / B / C", model.CorrectionMeta{})
	assert.ErrorIs(t, err, ErrSeparatorMisuse)
}

func TestCorrections_ContainedKeyPrefersLongest(t *testing.T) {
	ctx := context.Background()
	n := normalize.New(nil)
	backend := jsonBackend(t, KeyFuncFor(n))
	writer := NewCorrections(backend, n)
	require.NoError(t, writer.Upsert(ctx, "Coffee", "Dining / Cafes", model.CorrectionMeta{}))
	require.NoError(t, writer.Upsert(ctx, "Blue Tokai Coffee", "Dining / Specialty Coffee", model.CorrectionMeta{}))
	require.NoError(t, writer.Upsert(ctx, "ab", "Short / Key", model.CorrectionMeta{}))

	reader := NewCorrections(backend, n)
	got, ok := reader.Lookup("UPI-BLUE TOKAI COFFEE ROASTERS-1@okhdfc")
	require.True(t, ok)
	assert.Equal(t, "Dining / Specialty Coffee", got.String())

	_, ok = reader.Lookup("AB ENTERPRISES")
	assert.False(t, ok, "keys shorter than three characters only match exactly")
	assert.Equal(t, 3, reader.Len())
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()
	n := normalize.New(nil)

	b, err := OpenBackend(ctx, BackendSQLite, filepath.Join(t.TempDir(), "c.db"), KeyFuncFor(n))
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b, err = OpenBackend(ctx, "", filepath.Join(t.TempDir(), "c.json"), KeyFuncFor(n))
	require.NoError(t, err)
	assert.IsType(t, &JSONFileBackend{}, b)

	_, err = OpenBackend(ctx, "redis", "x", KeyFuncFor(n))
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
