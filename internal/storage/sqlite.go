package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/narration-resolver/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteBackend stores corrections in a local SQLite file.
type SQLiteBackend struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteBackend opens (creating if needed) the database at dbPath.
// Call Migrate before use.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't benefit from multiple connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteBackend{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

// List returns every correction in insertion order.
func (s *SQLiteBackend) List(ctx context.Context) ([]model.Correction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT narration, category, user_id, transaction_id, timestamp
		FROM corrections
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query corrections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.Correction
	for rows.Next() {
		var c model.Correction
		if err := rows.Scan(&c.Narration, &c.Category, &c.UserID, &c.TransactionID, &c.RawTimestamp); err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		c.Timestamp = parseTimestamp(c.RawTimestamp)
		records = append(records, c)
	}

	return records, rows.Err()
}

// Save inserts a correction or refreshes the matching (key, category) row.
func (s *SQLiteBackend) Save(ctx context.Context, c model.Correction, key string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(key, "key"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO corrections (narration, narration_key, category, user_id, transaction_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(narration_key, category) DO UPDATE SET
			timestamp = excluded.timestamp,
			user_id = CASE WHEN excluded.user_id != '' THEN excluded.user_id ELSE corrections.user_id END,
			transaction_id = CASE WHEN excluded.transaction_id != '' THEN excluded.transaction_id ELSE corrections.transaction_id END
	`, strings.TrimSpace(c.Narration), key, c.Category, c.UserID, c.TransactionID, c.RawTimestamp)
	if err != nil {
		return fmt.Errorf("failed to save correction: %w", err)
	}

	return tx.Commit()
}
