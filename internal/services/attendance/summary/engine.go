// Package summary computes the daily payback and settlement summary of an
// account and caches finished days.
package summary

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/lookup"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
)

// Store is the read surface used to compute a summary.
type Store interface {
	storage.LedgerStore
	storage.SiteConfigStore
	storage.OfficeStore
	storage.EntityStore
	storage.MarkerStore
}

// DailySummary is the payback and settlement eligibility of one account on
// one date.
type DailySummary struct {
	Date        civil.Date                `json:"summaryDate"`
	Paybacks    []domain.PaybackEntry     `json:"paybacks"`
	Settlements []domain.SettlementBanner `json:"settlementBanners"`
}

// Request selects the summary to compute.
type Request struct {
	AccountID int64
	Date      civil.Date
	// OfficeID pins the office used for site config resolution. Nil uses the
	// account's stored office.
	OfficeID *int64
}

// Compute builds the summary for one account and date from the mirrored
// ledger. Every record of the account is read: payback only looks at the
// trailing week and the date itself, but a settlement window runs from its
// start date for the configured number of days and may end after the date.
func Compute(ctx context.Context, store Store, req Request) (DailySummary, error) {
	out := DailySummary{
		Date:        req.Date,
		Paybacks:    []domain.PaybackEntry{},
		Settlements: []domain.SettlementBanner{},
	}
	records, err := store.ListRecords(ctx, req.AccountID, civil.Range{})
	if err != nil {
		return DailySummary{}, fmt.Errorf("list ledger records: %w", err)
	}
	if len(records) == 0 {
		return out, nil
	}

	scope := lookup.New(store, req.AccountID)
	if req.OfficeID != nil {
		scope.WithOffice(*req.OfficeID)
	}
	officeID, err := scope.Office(ctx)
	if err != nil {
		return DailySummary{}, err
	}

	stats := domain.AggregatePayback(req.Date, records)
	if len(stats) > 0 {
		statuses, err := store.SiteStatuses(ctx, req.AccountID)
		if err != nil {
			return DailySummary{}, fmt.Errorf("list site statuses: %w", err)
		}
		for _, stat := range stats {
			cfg, err := scope.SiteConfig(ctx, stat.Pair.Site)
			if err != nil {
				return DailySummary{}, err
			}
			cleared, err := store.ListPaybackCleared(ctx, req.AccountID, stat.Pair)
			if err != nil {
				return DailySummary{}, fmt.Errorf("list payback markers: %w", err)
			}
			settings := domain.SiteSettings{
				SiteName: stat.Pair.Site,
				OfficeID: officeID,
				Config:   cfg,
				Overlay:  domain.IdentityOverlay{PaybackCleared: clearedWeeks(cleared)},
			}
			entry, ok := domain.EvaluatePayback(stat, req.Date, settings, statuses[stat.Pair])
			if ok {
				out.Paybacks = append(out.Paybacks, entry)
			}
		}
	}

	pairs := domain.SettlementPairs(req.Date, records)
	if len(pairs) == 0 {
		return out, nil
	}
	paid, err := store.ListSettlementPaid(ctx, req.AccountID)
	if err != nil {
		return DailySummary{}, fmt.Errorf("list settlement markers: %w", err)
	}
	index := domain.BuildDepositIndex(records)
	for _, pair := range pairs {
		if _, ok := paid[pair]; ok {
			continue
		}
		cfg, err := scope.SiteConfig(ctx, pair.Site)
		if err != nil {
			return DailySummary{}, err
		}
		if banner, ok := domain.EvaluateSettlement(pair, cfg.Settlement, index[pair]); ok {
			out.Settlements = append(out.Settlements, banner)
		}
	}
	domain.SortBanners(out.Settlements)
	return out, nil
}

func clearedWeeks(dates []civil.Date) map[string]bool {
	out := make(map[string]bool, len(dates))
	for _, d := range dates {
		out[d.String()] = true
	}
	return out
}

// withoutPaid drops banners whose pair has a settlement paid marker.
func withoutPaid(banners []domain.SettlementBanner, paid map[domain.Pair]time.Time) []domain.SettlementBanner {
	return slices.DeleteFunc(slices.Clone(banners), func(b domain.SettlementBanner) bool {
		_, ok := paid[b.Pair()]
		return ok
	})
}
