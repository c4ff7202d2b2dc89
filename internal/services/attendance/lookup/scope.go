// Package lookup provides per-operation memoization of site configuration,
// office and identity lookups.
//
// A Scope is built at the start of one operation and dropped at its end. It
// is not safe for concurrent use and must never be shared across requests.
package lookup

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
)

// Store is the read surface a Scope memoizes.
type Store interface {
	GetSiteConfig(ctx context.Context, siteName string, officeID int64) (storage.SiteConfigRecord, error)
	AccountOffice(ctx context.Context, accountID int64) (int64, error)
	GetIdentity(ctx context.Context, accountID int64, name string) (storage.Identity, error)
}

// Scope caches lookups for one account during one operation.
type Scope struct {
	store     Store
	accountID int64

	officeID    int64
	officeKnown bool

	configs    map[string]domain.SiteConfig
	identities map[string]identityResult
}

type identityResult struct {
	identity storage.Identity
	found    bool
}

// New starts an empty scope for accountID.
func New(store Store, accountID int64) *Scope {
	return &Scope{
		store:      store,
		accountID:  accountID,
		configs:    make(map[string]domain.SiteConfig),
		identities: make(map[string]identityResult),
	}
}

// WithOffice pins the office used for site config resolution instead of the
// account's stored office.
func (s *Scope) WithOffice(officeID int64) *Scope {
	s.officeID = officeID
	s.officeKnown = true
	return s
}

// AccountID returns the scoped account.
func (s *Scope) AccountID() int64 {
	return s.accountID
}

// Office returns the account's office, 0 when unassigned.
func (s *Scope) Office(ctx context.Context) (int64, error) {
	if s.officeKnown {
		return s.officeID, nil
	}
	officeID, err := s.store.AccountOffice(ctx, s.accountID)
	if err != nil {
		return 0, fmt.Errorf("resolve account office: %w", err)
	}
	s.officeID = officeID
	s.officeKnown = true
	return officeID, nil
}

// SiteConfig resolves the config for a site. Sites without a stored config
// use domain.DefaultSiteConfig.
func (s *Scope) SiteConfig(ctx context.Context, site string) (domain.SiteConfig, error) {
	site = domain.NormalizeName(site)
	if cfg, ok := s.configs[site]; ok {
		return cfg, nil
	}
	officeID, err := s.Office(ctx)
	if err != nil {
		return domain.SiteConfig{}, err
	}
	cfg := domain.DefaultSiteConfig()
	record, err := s.store.GetSiteConfig(ctx, site, officeID)
	switch {
	case err == nil:
		cfg = record.Config
	case errors.Is(err, storage.ErrNotFound):
	default:
		return domain.SiteConfig{}, fmt.Errorf("resolve site config %q: %w", site, err)
	}
	s.configs[site] = cfg
	return cfg, nil
}

// IsAuto reports whether a site derives attendance from the ledger.
func (s *Scope) IsAuto(ctx context.Context, site string) (bool, error) {
	cfg, err := s.SiteConfig(ctx, site)
	if err != nil {
		return false, err
	}
	return cfg.IsAuto(), nil
}

// Identity resolves an identity by name. The second result is false when the
// identity does not exist yet.
func (s *Scope) Identity(ctx context.Context, name string) (storage.Identity, bool, error) {
	name = domain.NormalizeName(name)
	if cached, ok := s.identities[name]; ok {
		return cached.identity, cached.found, nil
	}
	identity, err := s.store.GetIdentity(ctx, s.accountID, name)
	switch {
	case err == nil:
		s.identities[name] = identityResult{identity: identity, found: true}
		return identity, true, nil
	case errors.Is(err, storage.ErrNotFound):
		s.identities[name] = identityResult{}
		return storage.Identity{}, false, nil
	default:
		return storage.Identity{}, false, fmt.Errorf("resolve identity %q: %w", name, err)
	}
}

// Forget drops a cached identity so the next lookup reads the store. Callers
// use it after lazily creating the identity.
func (s *Scope) Forget(name string) {
	delete(s.identities, domain.NormalizeName(name))
}
