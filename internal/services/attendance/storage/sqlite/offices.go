package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AccountOffice returns the account's office, or 0 when none is assigned.
func (s *Store) AccountOffice(ctx context.Context, accountID int64) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var officeID int64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT office_id FROM account_offices WHERE account_id = ?
`, accountID).Scan(&officeID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get account office: %w", err)
	}
	return officeID, nil
}

// SetAccountOffice assigns an account to an office. Office 0 clears it.
func (s *Store) SetAccountOffice(ctx context.Context, accountID int64, officeID int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if accountID <= 0 {
		return fmt.Errorf("account id is required")
	}
	if officeID < 0 {
		return fmt.Errorf("office id must not be negative")
	}
	if officeID == 0 {
		if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM account_offices WHERE account_id = ?`, accountID); err != nil {
			return fmt.Errorf("clear account office: %w", err)
		}
		return nil
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO account_offices (account_id, office_id) VALUES (?, ?)
ON CONFLICT (account_id) DO UPDATE SET office_id = excluded.office_id
`, accountID, officeID); err != nil {
		return fmt.Errorf("set account office: %w", err)
	}
	return nil
}

// ListOfficeAccounts lists the accounts assigned to an office. Office 0
// lists every account known to the store.
func (s *Store) ListOfficeAccounts(ctx context.Context, officeID int64) ([]int64, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	query := `SELECT account_id FROM account_offices WHERE office_id = ? ORDER BY account_id`
	args := []any{officeID}
	if officeID == 0 {
		query = `
SELECT account_id FROM daily_summaries
UNION SELECT account_id FROM ledger_records
UNION SELECT account_id FROM account_offices
ORDER BY account_id`
		args = nil
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list office accounts: %w", err)
	}
	defer rows.Close()

	var accounts []int64
	for rows.Next() {
		var accountID int64
		if err := rows.Scan(&accountID); err != nil {
			return nil, fmt.Errorf("scan office account: %w", err)
		}
		accounts = append(accounts, accountID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate office accounts: %w", err)
	}
	return accounts, nil
}
