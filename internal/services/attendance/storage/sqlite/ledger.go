package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/shopspring/decimal"
)

// PutRecord upserts one mirrored ledger record.
func (s *Store) PutRecord(ctx context.Context, record domain.Record) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if record.AccountID <= 0 {
		return fmt.Errorf("account id is required")
	}
	if record.ID <= 0 {
		return fmt.Errorf("record id is required")
	}
	if record.Date.IsZero() {
		return fmt.Errorf("record date is required")
	}
	record = record.Normalized()
	slots, err := json.Marshal(record.Slots)
	if err != nil {
		return fmt.Errorf("encode record slots: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO ledger_records (account_id, id, record_date, total_amount, notes, slots_json, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (account_id, id) DO UPDATE SET
	record_date = excluded.record_date,
	total_amount = excluded.total_amount,
	notes = excluded.notes,
	slots_json = excluded.slots_json,
	updated_at = excluded.updated_at
`,
		record.AccountID,
		record.ID,
		record.Date.String(),
		record.TotalAmount.String(),
		record.Notes,
		string(slots),
		toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("put ledger record: %w", err)
	}
	return nil
}

// DeleteRecord removes one mirrored ledger record. Missing records are ignored.
func (s *Store) DeleteRecord(ctx context.Context, accountID int64, recordID int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM ledger_records WHERE account_id = ? AND id = ?
`, accountID, recordID); err != nil {
		return fmt.Errorf("delete ledger record: %w", err)
	}
	return nil
}

// ListRecords lists mirrored records within the range ordered by date and id.
func (s *Store) ListRecords(ctx context.Context, accountID int64, within civil.Range) ([]domain.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	query := `
SELECT id, account_id, record_date, total_amount, notes, slots_json
FROM ledger_records
WHERE account_id = ?`
	args := []any{accountID}
	if !within.Start.IsZero() {
		query += ` AND record_date >= ?`
		args = append(args, within.Start.String())
	}
	if !within.End.IsZero() {
		query += ` AND record_date <= ?`
		args = append(args, within.End.String())
	}
	query += `
ORDER BY record_date, id`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		record, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger records: %w", err)
	}
	return records, nil
}

func scanRecord(scan scanner) (domain.Record, error) {
	var record domain.Record
	var date, total, slots string
	if err := scan(&record.ID, &record.AccountID, &date, &total, &record.Notes, &slots); err != nil {
		return domain.Record{}, fmt.Errorf("scan ledger record: %w", err)
	}
	var err error
	if record.Date, err = civil.Parse(date); err != nil {
		return domain.Record{}, fmt.Errorf("decode record date: %w", err)
	}
	if record.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return domain.Record{}, fmt.Errorf("decode record total: %w", err)
	}
	if err := json.Unmarshal([]byte(slots), &record.Slots); err != nil {
		return domain.Record{}, fmt.Errorf("decode record slots: %w", err)
	}
	return record, nil
}
