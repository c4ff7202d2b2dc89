package autoattend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	apperrors "github.com/louisbranch/siteledger/internal/platform/errors"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/lookup"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
)

// MaxBulkSpanDays bounds the distance between the first and last day of a
// bulk add.
const MaxBulkSpanDays = 365

// Audit actions written for manual changes.
const (
	AuditActionPastAdd = "past_add"
	AuditActionBulkAdd = "bulk_add"
	AuditActionPurge   = "purge"
)

// Toggle actions.
const (
	ToggleAdded   = "added"
	ToggleRemoved = "removed"
	ToggleNoop    = "noop"
)

// Target names one pair of one account.
type Target struct {
	AccountID int64
	Site      string
	Identity  string
}

func (t Target) pair() domain.Pair {
	return domain.NewPair(t.Identity, t.Site)
}

func (t Target) validate() (domain.Pair, error) {
	pair := t.pair()
	switch {
	case t.AccountID <= 0:
		return pair, validationError("accountId")
	case pair.Site == "":
		return pair, validationError("siteName")
	case pair.Identity == "":
		return pair, validationError("identityName")
	}
	return pair, nil
}

func validationError(field string) error {
	return apperrors.WithMetadata(apperrors.CodeValidationFailed, field+" is required", map[string]string{"field": field})
}

func requireReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", apperrors.New(apperrors.CodeReasonRequired, "reason is required")
	}
	return reason, nil
}

// ToggleInput flips or converges one day of manual attendance.
type ToggleInput struct {
	Target
	Date civil.Date
	// Desired, when set, converges the log to that state instead of flipping.
	Desired *bool
}

// ToggleResult is the outcome of a toggle with the refreshed stats.
type ToggleResult struct {
	Action string       `json:"action"`
	Stats  domain.Stats `json:"stats"`
}

// Toggle adds or removes one day and refreshes the projection.
func (e *Engine) Toggle(ctx context.Context, in ToggleInput) (ToggleResult, error) {
	pair, err := in.validate()
	if err != nil {
		return ToggleResult{}, err
	}
	if in.Date.IsZero() {
		return ToggleResult{}, validationError("attendanceDate")
	}
	entry, err := domain.NewEntry(in.AccountID, pair.Site, pair.Identity, in.Date)
	if err != nil {
		return ToggleResult{}, err
	}
	exists, err := e.store.EntryExists(ctx, entry)
	if err != nil {
		return ToggleResult{}, err
	}

	want := !exists
	if in.Desired != nil {
		want = *in.Desired
	}
	action := ToggleNoop
	switch {
	case want && !exists:
		if _, err := e.store.AddEntry(ctx, entry); err != nil {
			return ToggleResult{}, err
		}
		action = ToggleAdded
	case !want && exists:
		if _, err := e.store.RemoveEntry(ctx, entry); err != nil {
			return ToggleResult{}, err
		}
		action = ToggleRemoved
	}

	stats, err := e.refresh(ctx, in.AccountID, pair)
	if err != nil {
		return ToggleResult{}, err
	}
	return ToggleResult{Action: action, Stats: stats}, nil
}

// PastInput adds one historical day of attendance.
type PastInput struct {
	Target
	Date   civil.Date
	Reason string
	Actor  string
}

// AddPast records attendance for a day on or before today. It fails when the
// day is already logged.
func (e *Engine) AddPast(ctx context.Context, in PastInput) (domain.Stats, error) {
	pair, err := in.validate()
	if err != nil {
		return domain.Stats{}, err
	}
	if in.Date.IsZero() {
		return domain.Stats{}, validationError("attendanceDate")
	}
	reason, err := requireReason(in.Reason)
	if err != nil {
		return domain.Stats{}, err
	}
	if in.Date.After(civil.Today(e.clock)) {
		return domain.Stats{}, apperrors.New(apperrors.CodeFutureDate, "attendance date is in the future")
	}
	entry, err := domain.NewEntry(in.AccountID, pair.Site, pair.Identity, in.Date)
	if err != nil {
		return domain.Stats{}, err
	}
	created, err := e.store.AddEntry(ctx, entry)
	if err != nil {
		return domain.Stats{}, err
	}
	if !created {
		return domain.Stats{}, apperrors.New(apperrors.CodeAlreadyExists, "attendance already recorded")
	}
	e.audit(ctx, storage.AuditRecord{
		AccountID: in.AccountID,
		Actor:     in.Actor,
		Action:    AuditActionPastAdd,
		Site:      pair.Site,
		Identity:  pair.Identity,
		Detail:    fmt.Sprintf("%s reason=%s", in.Date, reason),
	})
	return e.refresh(ctx, in.AccountID, pair)
}

// BulkInput adds every day of an inclusive range.
type BulkInput struct {
	Target
	Start  civil.Date
	End    civil.Date
	Reason string
	Actor  string
}

// BulkResult lists the days added and the days already present.
type BulkResult struct {
	Added   []civil.Date `json:"addedDates"`
	Skipped []civil.Date `json:"skippedDates"`
	Stats   domain.Stats `json:"stats"`
}

// BulkAdd logs every day from Start to End inclusive in one transaction.
func (e *Engine) BulkAdd(ctx context.Context, in BulkInput) (BulkResult, error) {
	pair, err := in.validate()
	if err != nil {
		return BulkResult{}, err
	}
	if in.Start.IsZero() {
		return BulkResult{}, validationError("startDate")
	}
	if in.End.IsZero() {
		return BulkResult{}, validationError("endDate")
	}
	reason, err := requireReason(in.Reason)
	if err != nil {
		return BulkResult{}, err
	}
	if in.End.Before(in.Start) {
		return BulkResult{}, apperrors.New(apperrors.CodeInvalidRange, "start date is after end date")
	}
	if in.Start.DaysUntil(in.End) > MaxBulkSpanDays {
		return BulkResult{}, apperrors.WithMetadata(apperrors.CodeRangeTooLarge, "bulk range is too large",
			map[string]string{"max": strconv.Itoa(MaxBulkSpanDays)})
	}

	result := BulkResult{Added: []civil.Date{}, Skipped: []civil.Date{}}
	dates := civil.Range{Start: in.Start, End: in.End}.Dates()
	err = e.store.WithinLogTx(ctx, func(tx storage.LogTx) error {
		for _, date := range dates {
			entry, err := domain.NewEntry(in.AccountID, pair.Site, pair.Identity, date)
			if err != nil {
				return err
			}
			created, err := tx.AddEntry(ctx, entry)
			if err != nil {
				return err
			}
			if created {
				result.Added = append(result.Added, date)
			} else {
				result.Skipped = append(result.Skipped, date)
			}
		}
		return nil
	})
	if err != nil {
		return BulkResult{}, err
	}

	e.audit(ctx, storage.AuditRecord{
		AccountID: in.AccountID,
		Actor:     in.Actor,
		Action:    AuditActionBulkAdd,
		Site:      pair.Site,
		Identity:  pair.Identity,
		Detail: fmt.Sprintf("%s~%s added=%d skipped=%d reason=%s",
			in.Start, in.End, len(result.Added), len(result.Skipped), reason),
	})
	result.Stats, err = e.refresh(ctx, in.AccountID, pair)
	if err != nil {
		return BulkResult{}, err
	}
	return result, nil
}

// PurgeInput deletes every log entry of one pair.
type PurgeInput struct {
	Target
	Reason string
	Actor  string
}

// Purge deletes the pair's whole attendance log. The engine never calls it
// implicitly; switching a site to manual mode leaves its log intact.
func (e *Engine) Purge(ctx context.Context, in PurgeInput) (int, error) {
	pair, err := in.validate()
	if err != nil {
		return 0, err
	}
	removed, err := e.store.DeleteEntries(ctx, in.AccountID, pair.Site, pair.Identity)
	if err != nil {
		return 0, err
	}
	e.audit(ctx, storage.AuditRecord{
		AccountID: in.AccountID,
		Actor:     in.Actor,
		Action:    AuditActionPurge,
		Site:      pair.Site,
		Identity:  pair.Identity,
		Detail:    fmt.Sprintf("removed=%d reason=%s", removed, strings.TrimSpace(in.Reason)),
	})
	if _, err := e.refresh(ctx, in.AccountID, pair); err != nil {
		return removed, err
	}
	return removed, nil
}

// Stats computes attendance stats for one pair from the log.
func (e *Engine) Stats(ctx context.Context, target Target) (domain.Stats, error) {
	pair, err := target.validate()
	if err != nil {
		return domain.Stats{}, err
	}
	return e.stats(ctx, lookup.New(e.store, target.AccountID), pair)
}

// StatsBatch computes stats for many pairs of one account keyed by
// "identity||site". Site configs are resolved once per site.
func (e *Engine) StatsBatch(ctx context.Context, accountID int64, pairs []domain.Pair) (map[string]domain.Stats, error) {
	if accountID <= 0 {
		return nil, validationError("accountId")
	}
	scope := lookup.New(e.store, accountID)
	out := make(map[string]domain.Stats, len(pairs))
	for _, raw := range pairs {
		pair := domain.NewPair(raw.Identity, raw.Site)
		if !pair.Valid() {
			continue
		}
		stats, err := e.stats(ctx, scope, pair)
		if err != nil {
			return nil, err
		}
		out[pair.Key()] = stats
	}
	return out, nil
}

// Logs lists logged dates for a pair, newest first, optionally within one
// month (YYYY-MM).
func (e *Engine) Logs(ctx context.Context, target Target, yearMonth string) ([]civil.Date, error) {
	pair, err := target.validate()
	if err != nil {
		return nil, err
	}
	yearMonth = strings.TrimSpace(yearMonth)
	if yearMonth != "" {
		if _, err := civil.Parse(yearMonth + "-01"); err != nil {
			return nil, apperrors.WithMetadata(apperrors.CodeInvalidDate, "invalid month",
				map[string]string{"value": yearMonth})
		}
	}
	dates, err := e.store.ListEntryDates(ctx, target.AccountID, pair.Site, pair.Identity, yearMonth)
	if err != nil {
		return nil, err
	}
	if dates == nil {
		dates = []civil.Date{}
	}
	return dates, nil
}

func (e *Engine) stats(ctx context.Context, scope *lookup.Scope, pair domain.Pair) (domain.Stats, error) {
	cfg, err := scope.SiteConfig(ctx, pair.Site)
	if err != nil {
		return domain.Stats{}, err
	}
	dates, err := e.store.ListEntryDates(ctx, scope.AccountID(), pair.Site, pair.Identity, "")
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.ComputeStats(dates, civil.Today(e.clock), cfg.Rollover), nil
}

// refresh recomputes the projection after a manual change and returns the
// pair's stats.
func (e *Engine) refresh(ctx context.Context, accountID int64, pair domain.Pair) (domain.Stats, error) {
	scope := lookup.New(e.store, accountID)
	stats, err := e.stats(ctx, scope, pair)
	if err != nil {
		return domain.Stats{}, err
	}
	if _, err := e.recompute(ctx, scope, accountID, pair, stats.LastAttendanceDate); err != nil {
		e.logger.WarnContext(ctx, "attendance projection refresh failed",
			"account_id", accountID, "site", pair.Site, "identity", pair.Identity, "error", err)
	}
	return stats, nil
}

func (e *Engine) audit(ctx context.Context, record storage.AuditRecord) {
	auditID, err := e.newID()
	if err == nil {
		record.ID = auditID
		record.CreatedAt = e.clock().UTC()
		err = e.store.RecordAudit(ctx, record)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		e.logger.WarnContext(ctx, "attendance audit write failed",
			"account_id", record.AccountID, "action", record.Action, "error", err)
	}
}
