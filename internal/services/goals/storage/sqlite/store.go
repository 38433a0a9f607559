// Package sqlite implements the goals storage contracts on SQLite.
//
// All criterion mutations run inside a single transaction that
// re-validates the change against the rows it reads, so the domain rules
// hold even under concurrent writers. A transaction that loses the write
// lock race surfaces as a conflict error the application layer retries.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	apperrors "github.com/louisbranch/attain.works/internal/platform/errors"
	"github.com/louisbranch/attain.works/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/attain.works/internal/services/goals/storage/sqlite/migrations"
)

// Store provides a SQLite-backed implementation of the goals storage
// interfaces.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite goals store at the provided path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	cleanPath = filepath.Clean(cleanPath)

	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func marshalAncestors(ancestors []string) (string, error) {
	if len(ancestors) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(ancestors)
	if err != nil {
		return "", fmt.Errorf("marshal ancestors: %w", err)
	}
	return string(raw), nil
}

func unmarshalAncestors(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var ancestors []string
	if err := json.Unmarshal([]byte(raw), &ancestors); err != nil {
		return nil, fmt.Errorf("unmarshal ancestors: %w", err)
	}
	return ancestors, nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func isSQLiteBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}

// mapStoreError translates driver-level failures into domain errors.
// Busy/locked becomes a retryable conflict; other errors pass through.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if isSQLiteBusyError(err) {
		return apperrors.Wrap(apperrors.CodeConflict, "concurrent write detected", err)
	}
	return err
}

// inTx runs fn inside a transaction. Writers serialize on SQLite's
// database lock; a transaction that cannot upgrade to the write lock
// within the busy timeout fails and is mapped to a conflict.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return mapStoreError(fmt.Errorf("begin transaction: %w", err))
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return mapStoreError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapStoreError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}
