package autoattend

import (
	"context"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/lookup"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RebuildInput selects the mirrored ledger records to replay.
type RebuildInput struct {
	AccountID int64
	// Within bounds the replayed record dates. Zero bounds are open.
	Within civil.Range
	DryRun bool
}

// RebuildResult summarizes a replay.
type RebuildResult struct {
	Records    int            `json:"records"`
	Missing    int            `json:"missing"`
	Added      int            `json:"added"`
	Attendance map[string]int `json:"attendance"`
}

// Rebuild replays mirrored ledger records and adds log entries that are
// missing for auto sites with a positive charge. Existing entries are never
// removed. Dry runs only count what would be added.
func (e *Engine) Rebuild(ctx context.Context, in RebuildInput) (RebuildResult, error) {
	if in.AccountID <= 0 {
		return RebuildResult{}, validationError("accountId")
	}
	ctx, span := e.tracer.Start(ctx, "attendance.rebuild", trace.WithAttributes(
		attribute.Int64("account.id", in.AccountID),
		attribute.Bool("dry_run", in.DryRun),
	))
	defer span.End()

	records, err := e.store.ListRecords(ctx, in.AccountID, in.Within)
	if err != nil {
		return RebuildResult{}, err
	}
	result := RebuildResult{Records: len(records), Attendance: map[string]int{}}
	scope := lookup.New(e.store, in.AccountID)

	var entries []domain.Entry
	seen := make(map[domain.Entry]bool)
	latest := make(map[domain.Pair]civil.Date)
	var order []domain.Pair
	for _, record := range records {
		for _, slot := range record.Slots {
			pair := slot.Pair()
			if !pair.Valid() || slot.Charge() <= 0 {
				continue
			}
			auto, err := scope.IsAuto(ctx, pair.Site)
			if err != nil {
				return RebuildResult{}, err
			}
			if !auto {
				continue
			}
			entry, err := domain.NewEntry(in.AccountID, pair.Site, pair.Identity, record.Date)
			if err != nil {
				return RebuildResult{}, err
			}
			if seen[entry] {
				continue
			}
			seen[entry] = true
			exists, err := e.store.EntryExists(ctx, entry)
			if err != nil {
				return RebuildResult{}, err
			}
			if _, ok := latest[pair]; !ok {
				order = append(order, pair)
			}
			if record.Date.After(latest[pair]) {
				latest[pair] = record.Date
			}
			if !exists {
				result.Missing++
				entries = append(entries, entry)
			}
		}
	}
	if in.DryRun {
		return result, nil
	}

	err = e.store.WithinLogTx(ctx, func(tx storage.LogTx) error {
		for _, entry := range entries {
			identity, err := tx.EnsureIdentity(ctx, entry.AccountID, entry.Identity)
			if err != nil {
				return err
			}
			if _, err := tx.EnsureSiteAccount(ctx, identity.ID, entry.Site); err != nil {
				return err
			}
			created, err := tx.AddEntry(ctx, entry)
			if err != nil {
				return err
			}
			if created {
				result.Added++
			}
		}
		return nil
	})
	if err != nil {
		return RebuildResult{}, err
	}

	scope = lookup.New(e.store, in.AccountID)
	for _, pair := range order {
		days, err := e.recompute(ctx, scope, in.AccountID, pair, latest[pair])
		if err != nil {
			return result, err
		}
		result.Attendance[pair.Key()] = days
	}
	span.SetAttributes(attribute.Int("attendance.added", result.Added))
	return result, nil
}
