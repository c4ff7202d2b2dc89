package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
)

// EnsureIdentity returns the named identity, creating it when missing.
func (s *Store) EnsureIdentity(ctx context.Context, accountID int64, name string) (storage.Identity, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Identity{}, err
	}
	return ensureIdentityExec(ctx, s.sqlDB, accountID, name, toMillis(s.now()))
}

// EnsureSiteAccount returns the identity's site account, creating it when missing.
func (s *Store) EnsureSiteAccount(ctx context.Context, identityID int64, siteName string) (storage.SiteAccount, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SiteAccount{}, err
	}
	return ensureSiteAccountExec(ctx, s.sqlDB, identityID, siteName, toMillis(s.now()))
}

// GetIdentity loads one identity by name.
func (s *Store) GetIdentity(ctx context.Context, accountID int64, name string) (storage.Identity, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Identity{}, err
	}
	return getIdentityExec(ctx, s.sqlDB, accountID, domain.NormalizeName(name))
}

// GetSiteAccount loads one site account of an identity.
func (s *Store) GetSiteAccount(ctx context.Context, identityID int64, siteName string) (storage.SiteAccount, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SiteAccount{}, err
	}
	return getSiteAccountExec(ctx, s.sqlDB, identityID, domain.NormalizeName(siteName))
}

// SetSiteStatus stores the status history for a pair.
func (s *Store) SetSiteStatus(ctx context.Context, accountID int64, pair domain.Pair, status string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	pair = domain.NewPair(pair.Identity, pair.Site)
	if !pair.Valid() {
		return fmt.Errorf("site and identity are required")
	}
	at := toMillis(s.now())

	tx, rollbackWith, err := s.begin(ctx, "site status write")
	if err != nil {
		return err
	}
	identity, err := ensureIdentityExec(ctx, tx, accountID, pair.Identity, at)
	if err != nil {
		return rollbackWith(err)
	}
	siteAccount, err := ensureSiteAccountExec(ctx, tx, identity.ID, pair.Site, at)
	if err != nil {
		return rollbackWith(err)
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE site_accounts SET status = ?, updated_at = ? WHERE id = ?
`, status, at, siteAccount.ID); err != nil {
		return rollbackWith(fmt.Errorf("update site status: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit site status write: %w", err)
	}
	return nil
}

// SiteStatuses returns the status history of every site account of an account.
func (s *Store) SiteStatuses(ctx context.Context, accountID int64) (map[domain.Pair]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT i.name, sa.site_name, sa.status
FROM site_accounts sa
JOIN identities i ON sa.identity_id = i.id
WHERE i.account_id = ?
`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list site statuses: %w", err)
	}
	defer rows.Close()

	statuses := make(map[domain.Pair]string)
	for rows.Next() {
		var pair domain.Pair
		var status string
		if err := rows.Scan(&pair.Identity, &pair.Site, &status); err != nil {
			return nil, fmt.Errorf("scan site status: %w", err)
		}
		statuses[pair] = status
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate site statuses: %w", err)
	}
	return statuses, nil
}

func ensureIdentityExec(ctx context.Context, execer sqlExecer, accountID int64, name string, at int64) (storage.Identity, error) {
	name = domain.NormalizeName(name)
	if accountID <= 0 {
		return storage.Identity{}, fmt.Errorf("account id is required")
	}
	if name == "" {
		return storage.Identity{}, fmt.Errorf("identity name is required")
	}
	if _, err := execer.ExecContext(ctx, `
INSERT INTO identities (account_id, name, created_at) VALUES (?, ?, ?)
ON CONFLICT (account_id, name) DO NOTHING
`, accountID, name, at); err != nil {
		return storage.Identity{}, fmt.Errorf("ensure identity: %w", err)
	}
	return getIdentityExec(ctx, execer, accountID, name)
}

func getIdentityExec(ctx context.Context, execer sqlExecer, accountID int64, name string) (storage.Identity, error) {
	var identity storage.Identity
	var createdAt int64
	err := execer.QueryRowContext(ctx, `
SELECT id, account_id, name, created_at FROM identities WHERE account_id = ? AND name = ?
`, accountID, name).Scan(&identity.ID, &identity.AccountID, &identity.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Identity{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Identity{}, fmt.Errorf("get identity: %w", err)
	}
	identity.CreatedAt = fromMillis(createdAt)
	return identity, nil
}

func ensureSiteAccountExec(ctx context.Context, execer sqlExecer, identityID int64, siteName string, at int64) (storage.SiteAccount, error) {
	siteName = domain.NormalizeName(siteName)
	if identityID <= 0 {
		return storage.SiteAccount{}, fmt.Errorf("identity id is required")
	}
	if siteName == "" {
		return storage.SiteAccount{}, fmt.Errorf("site name is required")
	}
	if _, err := execer.ExecContext(ctx, `
INSERT INTO site_accounts (identity_id, site_name, status, created_at, updated_at) VALUES (?, ?, '', ?, ?)
ON CONFLICT (identity_id, site_name) DO NOTHING
`, identityID, siteName, at, at); err != nil {
		return storage.SiteAccount{}, fmt.Errorf("ensure site account: %w", err)
	}
	return getSiteAccountExec(ctx, execer, identityID, siteName)
}

func getSiteAccountExec(ctx context.Context, execer sqlExecer, identityID int64, siteName string) (storage.SiteAccount, error) {
	var account storage.SiteAccount
	var createdAt, updatedAt int64
	err := execer.QueryRowContext(ctx, `
SELECT id, identity_id, site_name, status, created_at, updated_at
FROM site_accounts WHERE identity_id = ? AND site_name = ?
`, identityID, siteName).Scan(
		&account.ID,
		&account.IdentityID,
		&account.SiteName,
		&account.Status,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.SiteAccount{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SiteAccount{}, fmt.Errorf("get site account: %w", err)
	}
	account.CreatedAt = fromMillis(createdAt)
	account.UpdatedAt = fromMillis(updatedAt)
	return account, nil
}
