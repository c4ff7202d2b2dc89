package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
)

// AddEntry inserts one presence fact and reports whether it was new.
func (s *Store) AddEntry(ctx context.Context, entry domain.Entry) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	return addEntryExec(ctx, s.sqlDB, entry, toMillis(s.now()))
}

// RemoveEntry deletes one presence fact and reports whether a row was removed.
func (s *Store) RemoveEntry(ctx context.Context, entry domain.Entry) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	return removeEntryExec(ctx, s.sqlDB, entry)
}

// EntryExists reports whether the presence fact is logged.
func (s *Store) EntryExists(ctx context.Context, entry domain.Entry) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	if err := entry.Validate(); err != nil {
		return false, err
	}
	var found int
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT 1 FROM attendance_log
WHERE account_id = ? AND site_name = ? AND identity_name = ? AND attendance_date = ?
`, entry.AccountID, entry.Site, entry.Identity, entry.Date.String()).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check attendance entry: %w", err)
	}
	return true, nil
}

// ListEntryDates lists logged dates for one pair, newest first.
func (s *Store) ListEntryDates(ctx context.Context, accountID int64, site string, identity string, yearMonth string) ([]civil.Date, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	pair := domain.NewPair(identity, site)
	if accountID <= 0 {
		return nil, fmt.Errorf("%w: account id", domain.ErrMissingKey)
	}
	if !pair.Valid() {
		return nil, fmt.Errorf("%w: site and identity", domain.ErrMissingKey)
	}

	query := `
SELECT attendance_date FROM attendance_log
WHERE account_id = ? AND site_name = ? AND identity_name = ?`
	args := []any{accountID, pair.Site, pair.Identity}
	if month := strings.TrimSpace(yearMonth); month != "" {
		query += ` AND substr(attendance_date, 1, 7) = ?`
		args = append(args, month)
	}
	query += `
ORDER BY attendance_date DESC`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance dates: %w", err)
	}
	defer rows.Close()

	var dates []civil.Date
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan attendance date: %w", err)
		}
		d, err := civil.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("decode attendance date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance dates: %w", err)
	}
	return dates, nil
}

// DeleteEntries removes every logged date for one pair.
func (s *Store) DeleteEntries(ctx context.Context, accountID int64, site string, identity string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	pair := domain.NewPair(identity, site)
	if accountID <= 0 || !pair.Valid() {
		return 0, fmt.Errorf("%w: account, site and identity", domain.ErrMissingKey)
	}
	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM attendance_log
WHERE account_id = ? AND site_name = ? AND identity_name = ?
`, accountID, pair.Site, pair.Identity)
	if err != nil {
		return 0, fmt.Errorf("delete attendance entries: %w", err)
	}
	return rowsAffected(result)
}

// WithinLogTx runs fn inside one transaction.
func (s *Store) WithinLogTx(ctx context.Context, fn func(tx storage.LogTx) error) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("transaction func is required")
	}
	tx, rollbackWith, err := s.begin(ctx, "attendance log write")
	if err != nil {
		return err
	}
	if err := fn(&logTx{tx: tx, at: toMillis(s.now())}); err != nil {
		return rollbackWith(err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance log write: %w", err)
	}
	return nil
}

type logTx struct {
	tx *sql.Tx
	at int64
}

func (t *logTx) AddEntry(ctx context.Context, entry domain.Entry) (bool, error) {
	return addEntryExec(ctx, t.tx, entry, t.at)
}

func (t *logTx) RemoveEntry(ctx context.Context, entry domain.Entry) (bool, error) {
	return removeEntryExec(ctx, t.tx, entry)
}

func (t *logTx) EnsureIdentity(ctx context.Context, accountID int64, name string) (storage.Identity, error) {
	return ensureIdentityExec(ctx, t.tx, accountID, name, t.at)
}

func (t *logTx) EnsureSiteAccount(ctx context.Context, identityID int64, siteName string) (storage.SiteAccount, error) {
	return ensureSiteAccountExec(ctx, t.tx, identityID, siteName, t.at)
}

func addEntryExec(ctx context.Context, execer sqlExecer, entry domain.Entry, at int64) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, err
	}
	result, err := execer.ExecContext(ctx, `
INSERT INTO attendance_log (account_id, site_name, identity_name, attendance_date, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (account_id, site_name, identity_name, attendance_date) DO NOTHING
`, entry.AccountID, entry.Site, entry.Identity, entry.Date.String(), at)
	if err != nil {
		return false, fmt.Errorf("add attendance entry: %w", err)
	}
	n, err := rowsAffected(result)
	return n > 0, err
}

func removeEntryExec(ctx context.Context, execer sqlExecer, entry domain.Entry) (bool, error) {
	if err := entry.Validate(); err != nil {
		return false, err
	}
	result, err := execer.ExecContext(ctx, `
DELETE FROM attendance_log
WHERE account_id = ? AND site_name = ? AND identity_name = ? AND attendance_date = ?
`, entry.AccountID, entry.Site, entry.Identity, entry.Date.String())
	if err != nil {
		return false, fmt.Errorf("remove attendance entry: %w", err)
	}
	n, err := rowsAffected(result)
	return n > 0, err
}
