// Package sqlite provides the SQLite implementation of attendance storage.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	sqlitemigrate "github.com/louisbranch/siteledger/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed attendance persistence.
type Store struct {
	sqlDB *sql.DB
	clock func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens an attendance SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB, clock: time.Now}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping verifies the database connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.sqlDB.PingContext(ctx)
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

type scanner func(dest ...any) error

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) begin(ctx context.Context, label string) (*sql.Tx, func(error) error, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin %s: %w", label, err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback %s: %v", cause, label, rollbackErr)
		}
		return cause
	}
	return tx, rollbackWith, nil
}

func dateArg(d civil.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func parseNullDate(value sql.NullString) (civil.Date, error) {
	if !value.Valid || strings.TrimSpace(value.String) == "" {
		return civil.Date{}, nil
	}
	return civil.Parse(value.String)
}

func rowsAffected(result sql.Result) (int, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

var (
	_ storage.LogStore          = (*Store)(nil)
	_ storage.EntityStore       = (*Store)(nil)
	_ storage.ProjectionStore   = (*Store)(nil)
	_ storage.LedgerStore       = (*Store)(nil)
	_ storage.SiteConfigStore   = (*Store)(nil)
	_ storage.OfficeStore       = (*Store)(nil)
	_ storage.MarkerStore       = (*Store)(nil)
	_ storage.SummaryCacheStore = (*Store)(nil)
	_ storage.AuditStore        = (*Store)(nil)
)
