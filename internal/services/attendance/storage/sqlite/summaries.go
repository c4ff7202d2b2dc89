package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
)

// GetSummary loads one cached daily summary.
func (s *Store) GetSummary(ctx context.Context, accountID int64, date civil.Date) (storage.CachedSummary, error) {
	if err := s.ready(ctx); err != nil {
		return storage.CachedSummary{}, err
	}
	summary := storage.CachedSummary{AccountID: accountID, Date: date}
	var data string
	var updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT data_json, updated_at FROM daily_summaries WHERE account_id = ? AND summary_date = ?
`, accountID, date.String()).Scan(&data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.CachedSummary{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.CachedSummary{}, fmt.Errorf("get daily summary: %w", err)
	}
	summary.Data = []byte(data)
	summary.UpdatedAt = fromMillis(updatedAt)
	return summary, nil
}

// PutSummary stores one daily summary, replacing any previous payload. The
// write only lands while the account's epoch still equals summary.Epoch.
func (s *Store) PutSummary(ctx context.Context, summary storage.CachedSummary) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if summary.AccountID <= 0 {
		return fmt.Errorf("account id is required")
	}
	if summary.Date.IsZero() {
		return fmt.Errorf("summary date is required")
	}
	if len(summary.Data) == 0 {
		return fmt.Errorf("summary data is required")
	}
	if summary.UpdatedAt.IsZero() {
		summary.UpdatedAt = s.now()
	}
	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO daily_summaries (account_id, summary_date, data_json, updated_at)
SELECT ?, ?, ?, ?
WHERE COALESCE((SELECT epoch FROM summary_epochs WHERE account_id = ?), 0) = ?
ON CONFLICT (account_id, summary_date) DO UPDATE SET
	data_json = excluded.data_json,
	updated_at = excluded.updated_at
`, summary.AccountID, summary.Date.String(), string(summary.Data), toMillis(summary.UpdatedAt),
		summary.AccountID, summary.Epoch)
	if err != nil {
		return fmt.Errorf("put daily summary: %w", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrStaleSummary
	}
	return nil
}

// SummaryEpoch returns the account's invalidation epoch, zero before the
// first invalidation.
func (s *Store) SummaryEpoch(ctx context.Context, accountID int64) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var epoch int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT epoch FROM summary_epochs WHERE account_id = ?`, accountID).Scan(&epoch)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get summary epoch: %w", err)
	}
	return epoch, nil
}

func bumpSummaryEpoch(ctx context.Context, db sqlExecer, accountID int64) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO summary_epochs (account_id, epoch) VALUES (?, 1)
ON CONFLICT (account_id) DO UPDATE SET epoch = epoch + 1
`, accountID)
	if err != nil {
		return fmt.Errorf("advance summary epoch: %w", err)
	}
	return nil
}

// DeleteSummaries removes cached dates that fall inside any of ranges.
func (s *Store) DeleteSummaries(ctx context.Context, accountID int64, ranges []civil.Range) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if len(ranges) == 0 {
		return 0, nil
	}
	tx, rollbackWith, err := s.begin(ctx, "daily summary invalidation")
	if err != nil {
		return 0, err
	}
	if err := bumpSummaryEpoch(ctx, tx, accountID); err != nil {
		return 0, rollbackWith(err)
	}
	total := 0
	for _, r := range ranges {
		if r.Start.IsZero() || r.End.IsZero() {
			return 0, rollbackWith(fmt.Errorf("invalidation range bounds are required"))
		}
		result, err := tx.ExecContext(ctx, `
DELETE FROM daily_summaries WHERE account_id = ? AND summary_date BETWEEN ? AND ?
`, accountID, r.Start.String(), r.End.String())
		if err != nil {
			return 0, rollbackWith(fmt.Errorf("delete daily summaries: %w", err))
		}
		n, err := rowsAffected(result)
		if err != nil {
			return 0, rollbackWith(err)
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit daily summary invalidation: %w", err)
	}
	return total, nil
}

// DeleteAllSummaries removes every cached date of an account.
func (s *Store) DeleteAllSummaries(ctx context.Context, accountID int64) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	tx, rollbackWith, err := s.begin(ctx, "account summary invalidation")
	if err != nil {
		return 0, err
	}
	if err := bumpSummaryEpoch(ctx, tx, accountID); err != nil {
		return 0, rollbackWith(err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM daily_summaries WHERE account_id = ?`, accountID)
	if err != nil {
		return 0, rollbackWith(fmt.Errorf("delete account summaries: %w", err))
	}
	n, err := rowsAffected(result)
	if err != nil {
		return 0, rollbackWith(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit account summary invalidation: %w", err)
	}
	return n, nil
}
