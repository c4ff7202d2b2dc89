package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
)

// SetPaybackCleared sets or clears the payback marker for one week.
func (s *Store) SetPaybackCleared(ctx context.Context, key storage.PaybackClearedKey, cleared bool, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	key.Pair = domain.NewPair(key.Pair.Identity, key.Pair.Site)
	if key.AccountID <= 0 || !key.Pair.Valid() || key.WeekStartDate.IsZero() {
		return fmt.Errorf("%w: account, site, identity and week start", domain.ErrMissingKey)
	}
	if at.IsZero() {
		at = s.now()
	}

	var err error
	if cleared {
		_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO payback_cleared (site_name, account_id, identity_name, week_start_date, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (site_name, account_id, identity_name, week_start_date) DO NOTHING
`, key.Pair.Site, key.AccountID, key.Pair.Identity, key.WeekStartDate.String(), toMillis(at))
	} else {
		_, err = s.sqlDB.ExecContext(ctx, `
DELETE FROM payback_cleared
WHERE site_name = ? AND account_id = ? AND identity_name = ? AND week_start_date = ?
`, key.Pair.Site, key.AccountID, key.Pair.Identity, key.WeekStartDate.String())
	}
	if err != nil {
		return fmt.Errorf("set payback cleared: %w", err)
	}
	return nil
}

// ListPaybackCleared lists cleared week starts for a pair in ascending order.
func (s *Store) ListPaybackCleared(ctx context.Context, accountID int64, pair domain.Pair) ([]civil.Date, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT week_start_date FROM payback_cleared
WHERE site_name = ? AND account_id = ? AND identity_name = ?
ORDER BY week_start_date
`, pair.Site, accountID, pair.Identity)
	if err != nil {
		return nil, fmt.Errorf("list payback cleared: %w", err)
	}
	defer rows.Close()

	var weeks []civil.Date
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan payback cleared: %w", err)
		}
		week, err := civil.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("decode payback week: %w", err)
		}
		weeks = append(weeks, week)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payback cleared: %w", err)
	}
	return weeks, nil
}

// SetSettlementPaid sets or clears the paid marker for a pair.
func (s *Store) SetSettlementPaid(ctx context.Context, key storage.SettlementPaidKey, paid bool, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	key.Pair = domain.NewPair(key.Pair.Identity, key.Pair.Site)
	if key.AccountID <= 0 || !key.Pair.Valid() {
		return fmt.Errorf("%w: account, site and identity", domain.ErrMissingKey)
	}
	if at.IsZero() {
		at = s.now()
	}

	var err error
	if paid {
		_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO settlement_paid (site_name, account_id, identity_name, paid_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (site_name, account_id, identity_name) DO UPDATE SET paid_at = excluded.paid_at
`, key.Pair.Site, key.AccountID, key.Pair.Identity, toMillis(at))
	} else {
		_, err = s.sqlDB.ExecContext(ctx, `
DELETE FROM settlement_paid WHERE site_name = ? AND account_id = ? AND identity_name = ?
`, key.Pair.Site, key.AccountID, key.Pair.Identity)
	}
	if err != nil {
		return fmt.Errorf("set settlement paid: %w", err)
	}
	return nil
}

// ListSettlementPaid returns every paid pair of an account.
func (s *Store) ListSettlementPaid(ctx context.Context, accountID int64) (map[domain.Pair]time.Time, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT identity_name, site_name, paid_at FROM settlement_paid WHERE account_id = ?
`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list settlement paid: %w", err)
	}
	defer rows.Close()

	paid := make(map[domain.Pair]time.Time)
	for rows.Next() {
		var pair domain.Pair
		var paidAt int64
		if err := rows.Scan(&pair.Identity, &pair.Site, &paidAt); err != nil {
			return nil, fmt.Errorf("scan settlement paid: %w", err)
		}
		paid[pair] = fromMillis(paidAt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlement paid: %w", err)
	}
	return paid, nil
}
