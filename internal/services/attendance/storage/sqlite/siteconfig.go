package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
)

// GetSiteConfig loads the office's config for a site, falling back to the
// shared office 0 row.
func (s *Store) GetSiteConfig(ctx context.Context, siteName string, officeID int64) (storage.SiteConfigRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SiteConfigRecord{}, err
	}
	siteName = domain.NormalizeName(siteName)
	if siteName == "" {
		return storage.SiteConfigRecord{}, fmt.Errorf("site name is required")
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT site_name, office_id, data_json, updated_at
FROM site_configs
WHERE site_name = ? AND office_id IN (?, 0)
ORDER BY office_id DESC
LIMIT 1
`, siteName, officeID)
	record, err := scanSiteConfig(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.SiteConfigRecord{}, storage.ErrNotFound
	}
	return record, err
}

// PutSiteConfig normalizes and stores a site config.
func (s *Store) PutSiteConfig(ctx context.Context, record storage.SiteConfigRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	record.SiteName = domain.NormalizeName(record.SiteName)
	if record.SiteName == "" {
		return fmt.Errorf("site name is required")
	}
	if record.OfficeID < 0 {
		return fmt.Errorf("office id must not be negative")
	}
	record.Config = record.Config.Normalize()
	data, err := json.Marshal(record.Config)
	if err != nil {
		return fmt.Errorf("encode site config: %w", err)
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = s.now()
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO site_configs (site_name, office_id, schema_version, data_json, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (site_name, office_id) DO UPDATE SET
	schema_version = excluded.schema_version,
	data_json = excluded.data_json,
	updated_at = excluded.updated_at
`, record.SiteName, record.OfficeID, record.Config.Version, string(data), toMillis(record.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put site config: %w", err)
	}
	return nil
}

// ListSiteConfigs lists the configs stored for one office, by site name.
func (s *Store) ListSiteConfigs(ctx context.Context, officeID int64) ([]storage.SiteConfigRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT site_name, office_id, data_json, updated_at
FROM site_configs
WHERE office_id = ?
ORDER BY site_name
`, officeID)
	if err != nil {
		return nil, fmt.Errorf("list site configs: %w", err)
	}
	defer rows.Close()

	var records []storage.SiteConfigRecord
	for rows.Next() {
		record, err := scanSiteConfig(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate site configs: %w", err)
	}
	return records, nil
}

func scanSiteConfig(scan scanner) (storage.SiteConfigRecord, error) {
	var record storage.SiteConfigRecord
	var data string
	var updatedAt int64
	if err := scan(&record.SiteName, &record.OfficeID, &data, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SiteConfigRecord{}, err
		}
		return storage.SiteConfigRecord{}, fmt.Errorf("scan site config: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &record.Config); err != nil {
		return storage.SiteConfigRecord{}, fmt.Errorf("decode site config: %w", err)
	}
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
