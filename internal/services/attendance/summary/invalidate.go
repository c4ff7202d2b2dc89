package summary

import (
	"context"
	"fmt"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/lookup"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
)

// AffectedRanges lists the cached dates a ledger change on date can alter:
// its ISO week, its calendar month and the seven following days whose
// trailing payback week reads it.
func AffectedRanges(date civil.Date) []civil.Range {
	return []civil.Range{
		civil.ISOWeek(date),
		civil.Month(date),
		{Start: date.AddDays(1), End: date.AddDays(7)},
	}
}

// Invalidate drops cached summaries affected by a change on date. A nil date
// drops every cached date of the account.
func (s *Service) Invalidate(ctx context.Context, accountID int64, date *civil.Date) (int, error) {
	if accountID <= 0 {
		return 0, fmt.Errorf("%w: account id", domain.ErrMissingKey)
	}
	var (
		removed int
		err     error
	)
	if date == nil || date.IsZero() {
		removed, err = s.store.DeleteAllSummaries(ctx, accountID)
	} else {
		removed, err = s.store.DeleteSummaries(ctx, accountID, AffectedRanges(*date))
	}
	if err != nil {
		return 0, fmt.Errorf("invalidate summaries: %w", err)
	}
	s.logger.DebugContext(ctx, "summary cache invalidated", "account_id", accountID, "removed", removed)
	return removed, nil
}

// InvalidateLedgerChange drops the cached summaries a ledger record change
// can alter. records are the old and new versions of the record and dates
// the record dates involved. A settlement banner shown on any date of a pair
// sums deposits across the whole window, so a change touching a pair whose
// site has settlement enabled drops every cached date of the account.
// Otherwise only the ranges of each date are dropped.
func (s *Service) InvalidateLedgerChange(ctx context.Context, accountID int64, records []domain.Record, dates []civil.Date) (int, error) {
	if accountID <= 0 {
		return 0, fmt.Errorf("%w: account id", domain.ErrMissingKey)
	}
	scope := lookup.New(s.store, accountID)
	seen := make(map[string]bool)
	for _, record := range records {
		for _, pair := range record.Normalized().Pairs() {
			if seen[pair.Site] {
				continue
			}
			seen[pair.Site] = true
			cfg, err := scope.SiteConfig(ctx, pair.Site)
			if err != nil {
				return 0, fmt.Errorf("resolve site config: %w", err)
			}
			if cfg.Settlement.Enabled {
				return s.Invalidate(ctx, accountID, nil)
			}
		}
	}
	total := 0
	for _, date := range dates {
		if date.IsZero() {
			continue
		}
		n, err := s.Invalidate(ctx, accountID, &date)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// InvalidateOffice drops every cached summary of the accounts in officeID.
// Office 0 is the shared fallback and reaches every known account.
func (s *Service) InvalidateOffice(ctx context.Context, officeID int64) (int, error) {
	accounts, err := s.store.ListOfficeAccounts(ctx, officeID)
	if err != nil {
		return 0, fmt.Errorf("list office accounts: %w", err)
	}
	total := 0
	for _, accountID := range accounts {
		n, err := s.Invalidate(ctx, accountID, nil)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// SetPaybackCleared stores or clears a payback week marker and drops the
// summaries that show it.
func (s *Service) SetPaybackCleared(ctx context.Context, key storage.PaybackClearedKey, cleared bool) error {
	key.Pair = domain.NewPair(key.Pair.Identity, key.Pair.Site)
	if err := validateMarker(key.AccountID, key.Pair); err != nil {
		return err
	}
	if key.WeekStartDate.IsZero() {
		return fmt.Errorf("%w: week start date", domain.ErrMissingKey)
	}
	if err := s.store.SetPaybackCleared(ctx, key, cleared, s.clock().UTC()); err != nil {
		return err
	}
	shown := key.WeekStartDate.AddDays(7)
	ranges := append(AffectedRanges(key.WeekStartDate), civil.ISOWeek(shown), civil.Month(shown))
	if _, err := s.store.DeleteSummaries(ctx, key.AccountID, ranges); err != nil {
		return fmt.Errorf("invalidate summaries: %w", err)
	}
	return nil
}

// SetSettlementPaid stores or clears a settlement paid marker and drops every
// cached summary of the account.
func (s *Service) SetSettlementPaid(ctx context.Context, key storage.SettlementPaidKey, paid bool) error {
	key.Pair = domain.NewPair(key.Pair.Identity, key.Pair.Site)
	if err := validateMarker(key.AccountID, key.Pair); err != nil {
		return err
	}
	if err := s.store.SetSettlementPaid(ctx, key, paid, s.clock().UTC()); err != nil {
		return err
	}
	_, err := s.Invalidate(ctx, key.AccountID, nil)
	return err
}

func validateMarker(accountID int64, pair domain.Pair) error {
	switch {
	case accountID <= 0:
		return fmt.Errorf("%w: account id", domain.ErrMissingKey)
	case pair.Site == "":
		return fmt.Errorf("%w: site", domain.ErrMissingKey)
	case pair.Identity == "":
		return fmt.Errorf("%w: identity", domain.ErrMissingKey)
	}
	return nil
}
