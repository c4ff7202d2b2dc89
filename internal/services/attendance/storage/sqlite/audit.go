package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
)

// RecordAudit persists one manual attendance audit row.
func (s *Store) RecordAudit(ctx context.Context, record storage.AuditRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	record.ID = strings.TrimSpace(record.ID)
	record.Action = strings.TrimSpace(record.Action)
	if record.ID == "" {
		return fmt.Errorf("audit id is required")
	}
	if record.AccountID <= 0 {
		return fmt.Errorf("account id is required")
	}
	if record.Action == "" {
		return fmt.Errorf("audit action is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO attendance_audit (
	id,
	account_id,
	actor,
	action,
	site_name,
	identity_name,
	detail,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.AccountID,
		strings.TrimSpace(record.Actor),
		record.Action,
		record.Site,
		record.Identity,
		record.Detail,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("record attendance audit: %w", err)
	}
	return nil
}

// ListAudit lists newest-first audit rows for an account.
func (s *Store) ListAudit(ctx context.Context, accountID int64, limit int) ([]storage.AuditRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, account_id, actor, action, site_name, identity_name, detail, created_at
FROM attendance_audit
WHERE account_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list attendance audit: %w", err)
	}
	defer rows.Close()

	records := make([]storage.AuditRecord, 0, limit)
	for rows.Next() {
		var record storage.AuditRecord
		var createdAt int64
		if err := rows.Scan(
			&record.ID,
			&record.AccountID,
			&record.Actor,
			&record.Action,
			&record.Site,
			&record.Identity,
			&record.Detail,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan attendance audit: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance audit: %w", err)
	}
	return records, nil
}
