package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
)

// UpsertProjection writes the consecutive-day count for one pair. A zero
// LastRecordedAt keeps the stored value.
func (s *Store) UpsertProjection(ctx context.Context, projection storage.Projection) (storage.Projection, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Projection{}, err
	}
	if projection.AccountID <= 0 || projection.IdentityID <= 0 || projection.SiteAccountID <= 0 {
		return storage.Projection{}, fmt.Errorf("account, identity and site account ids are required")
	}
	if projection.PeriodType == "" {
		projection.PeriodType = storage.PeriodTypeTotal
	}
	if projection.PeriodValue == "" {
		projection.PeriodValue = storage.PeriodValueAll
	}
	if projection.AttendanceDays < 0 {
		projection.AttendanceDays = 0
	}
	if projection.UpdatedAt.IsZero() {
		projection.UpdatedAt = s.now()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO site_attendance (
	account_id,
	identity_id,
	site_account_id,
	period_type,
	period_value,
	attendance_days,
	last_recorded_at,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (account_id, identity_id, site_account_id, period_type, period_value) DO UPDATE SET
	attendance_days = excluded.attendance_days,
	last_recorded_at = COALESCE(excluded.last_recorded_at, site_attendance.last_recorded_at),
	updated_at = excluded.updated_at
`,
		projection.AccountID,
		projection.IdentityID,
		projection.SiteAccountID,
		projection.PeriodType,
		projection.PeriodValue,
		projection.AttendanceDays,
		dateArg(projection.LastRecordedAt),
		toMillis(projection.UpdatedAt),
	)
	if err != nil {
		return storage.Projection{}, fmt.Errorf("upsert attendance projection: %w", err)
	}
	return s.GetProjection(ctx, projection.AccountID, projection.IdentityID, projection.SiteAccountID)
}

// GetProjection loads the lifetime projection for one pair.
func (s *Store) GetProjection(ctx context.Context, accountID int64, identityID int64, siteAccountID int64) (storage.Projection, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Projection{}, err
	}
	var projection storage.Projection
	var lastRecorded sql.NullString
	var updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT account_id, identity_id, site_account_id, period_type, period_value,
	attendance_days, last_recorded_at, updated_at
FROM site_attendance
WHERE account_id = ? AND identity_id = ? AND site_account_id = ?
	AND period_type = ? AND period_value = ?
`, accountID, identityID, siteAccountID, storage.PeriodTypeTotal, storage.PeriodValueAll).Scan(
		&projection.AccountID,
		&projection.IdentityID,
		&projection.SiteAccountID,
		&projection.PeriodType,
		&projection.PeriodValue,
		&projection.AttendanceDays,
		&lastRecorded,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Projection{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Projection{}, fmt.Errorf("get attendance projection: %w", err)
	}
	if projection.LastRecordedAt, err = parseNullDate(lastRecorded); err != nil {
		return storage.Projection{}, fmt.Errorf("decode last recorded date: %w", err)
	}
	projection.UpdatedAt = fromMillis(updatedAt)
	return projection, nil
}
