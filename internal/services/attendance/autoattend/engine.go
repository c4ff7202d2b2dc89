// Package autoattend derives attendance log entries from ledger record
// changes and keeps the consecutive-day projection in sync.
package autoattend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/platform/id"
	"github.com/louisbranch/siteledger/internal/platform/logging"
	platformotel "github.com/louisbranch/siteledger/internal/platform/otel"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/lookup"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store is the persistence surface used by the engine.
type Store interface {
	storage.LogStore
	storage.EntityStore
	storage.ProjectionStore
	storage.SiteConfigStore
	storage.OfficeStore
	storage.LedgerStore
	storage.AuditStore
}

// Engine applies ledger record changes to the attendance log.
type Engine struct {
	store  Store
	logger *slog.Logger
	tracer trace.Tracer
	clock  func() time.Time
	newID  func() (string, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock sets the engine clock.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithIDGenerator sets the generator used for operation and audit ids.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine builds an engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		clock:  time.Now,
		newID:  id.NewID,
		tracer: platformotel.Tracer("siteledger/attendance/autoattend"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrDefault(e.logger)
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.newID == nil {
		e.newID = id.NewID
	}
	return e
}

// Change describes one ledger record create, update or delete. Old is nil on
// create and New is nil on delete.
type Change struct {
	AccountID int64
	Old       *domain.Record
	New       *domain.Record
	// Date is the record date after the change. It defaults to New.Date, or
	// Old.Date for deletes.
	Date civil.Date
	// OldDate is the record date before the change. It defaults to Old.Date,
	// or Date when Old carries none.
	OldDate civil.Date
}

// Result reports the recomputed streaks keyed by "identity||site". Warnings
// carry derivation failures; they never fail the originating ledger write.
type Result struct {
	Attendance map[string]int `json:"attendance"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// pending collects the pairs whose projection must be refreshed after commit.
type pending struct {
	order     []domain.Pair
	seen      map[domain.Pair]bool
	lastDates map[domain.Pair]civil.Date
}

func newPending() *pending {
	return &pending{seen: make(map[domain.Pair]bool), lastDates: make(map[domain.Pair]civil.Date)}
}

func (p *pending) add(pair domain.Pair) {
	if !p.seen[pair] {
		p.seen[pair] = true
		p.order = append(p.order, pair)
	}
}

func (p *pending) recorded(pair domain.Pair, date civil.Date) {
	p.add(pair)
	p.lastDates[pair] = date
}

// slotPlan is the resolved view of one slot across a change.
type slotPlan struct {
	oldPair   domain.Pair
	newPair   domain.Pair
	oldCharge int
	newCharge int
}

// RecordChanged diffs the old and new record, mutates the attendance log in
// one transaction and, after commit, recomputes the projection for every
// touched pair. Failures are logged and returned as warnings.
func (e *Engine) RecordChanged(ctx context.Context, change Change) Result {
	result := Result{Attendance: map[string]int{}}
	opID, _ := e.newID()
	ctx, span := e.tracer.Start(ctx, "attendance.record_changed", trace.WithAttributes(
		attribute.Int64("account.id", change.AccountID),
	))
	defer span.End()

	warn := func(msg string, err error, attrs ...any) {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		attrs = append(attrs, "op", opID, "account_id", change.AccountID, "error", err)
		e.logger.WarnContext(ctx, msg, attrs...)
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", msg, err))
	}

	if change.AccountID <= 0 {
		warn("attendance derivation skipped", fmt.Errorf("%w: account id", domain.ErrMissingKey))
		return result
	}
	if change.Old == nil && change.New == nil {
		return result
	}

	var oldRecord, newRecord domain.Record
	if change.Old != nil {
		oldRecord = change.Old.Normalized()
	}
	if change.New != nil {
		newRecord = change.New.Normalized()
	}
	date := change.Date
	if date.IsZero() {
		if change.New != nil {
			date = newRecord.Date
		} else {
			date = oldRecord.Date
		}
	}
	oldDate := change.OldDate
	if oldDate.IsZero() {
		oldDate = oldRecord.Date
	}
	if oldDate.IsZero() {
		oldDate = date
	}
	if date.IsZero() {
		warn("attendance derivation skipped", fmt.Errorf("%w: date", domain.ErrMissingKey))
		return result
	}
	dateChanged := change.Old != nil && change.New != nil && oldDate != date
	span.SetAttributes(attribute.String("record.date", date.String()), attribute.Bool("record.date_changed", dateChanged))

	scope := lookup.New(e.store, change.AccountID)
	plans := make([]slotPlan, domain.SlotCount)
	for i := range domain.SlotCount {
		if change.Old != nil {
			plans[i].oldPair = oldRecord.Slots[i].Pair()
			plans[i].oldCharge = oldRecord.Slots[i].Charge()
		}
		if change.New != nil {
			plans[i].newPair = newRecord.Slots[i].Pair()
			plans[i].newCharge = newRecord.Slots[i].Charge()
		}
	}

	auto := make(map[string]bool)
	for _, plan := range plans {
		for _, pair := range []domain.Pair{plan.oldPair, plan.newPair} {
			if !pair.Valid() {
				continue
			}
			if _, ok := auto[pair.Site]; ok {
				continue
			}
			isAuto, err := scope.IsAuto(ctx, pair.Site)
			if err != nil {
				warn("attendance site config lookup failed", err, "site", pair.Site)
				return result
			}
			auto[pair.Site] = isAuto
		}
	}

	queue := newPending()
	err := e.store.WithinLogTx(ctx, func(tx storage.LogTx) error {
		if dateChanged {
			for _, plan := range plans {
				if !plan.oldPair.Valid() || !auto[plan.oldPair.Site] {
					continue
				}
				if err := e.remove(ctx, tx, change.AccountID, plan.oldPair, oldDate); err != nil {
					return err
				}
				queue.add(plan.oldPair)
			}
		}

		for _, plan := range plans {
			pairChanged := plan.oldPair != plan.newPair
			if plan.newPair.Valid() && auto[plan.newPair.Site] {
				needed := change.Old == nil || dateChanged || pairChanged || plan.oldCharge != plan.newCharge
				switch {
				case !needed:
				case plan.newCharge > 0:
					if err := e.add(ctx, tx, scope, change.AccountID, plan.newPair, date); err != nil {
						return err
					}
					queue.recorded(plan.newPair, date)
				case !stillCharged(newRecord, true, plan.newPair):
					if err := e.remove(ctx, tx, change.AccountID, plan.newPair, date); err != nil {
						return err
					}
				}
				queue.add(plan.newPair)
			}

			// The old pair left this slot, or the record was deleted, on the
			// same date. A date move already removed it above.
			if plan.oldPair.Valid() && auto[plan.oldPair.Site] && !dateChanged && (change.New == nil || pairChanged) {
				if stillCharged(newRecord, change.New != nil, plan.oldPair) {
					continue
				}
				if err := e.remove(ctx, tx, change.AccountID, plan.oldPair, date); err != nil {
					return err
				}
				queue.add(plan.oldPair)
			}
		}
		return nil
	})
	if err != nil {
		warn("attendance log update failed", err, "date", date.String())
		return result
	}

	for _, pair := range queue.order {
		days, err := e.recompute(ctx, scope, change.AccountID, pair, queue.lastDates[pair])
		if err != nil {
			warn("attendance projection refresh failed", err, "site", pair.Site, "identity", pair.Identity)
			continue
		}
		result.Attendance[pair.Key()] = days
	}
	return result
}

// stillCharged reports whether pair keeps a positive charge in another slot
// of the new record.
func stillCharged(record domain.Record, present bool, pair domain.Pair) bool {
	if !present {
		return false
	}
	for _, slot := range record.Slots {
		if slot.Pair() == pair && slot.Charge() > 0 {
			return true
		}
	}
	return false
}

// add logs presence and lazily creates the identity and site account.
func (e *Engine) add(ctx context.Context, tx storage.LogTx, scope *lookup.Scope, accountID int64, pair domain.Pair, date civil.Date) error {
	identity, err := tx.EnsureIdentity(ctx, accountID, pair.Identity)
	if err != nil {
		return err
	}
	if _, err := tx.EnsureSiteAccount(ctx, identity.ID, pair.Site); err != nil {
		return err
	}
	scope.Forget(pair.Identity)
	entry, err := domain.NewEntry(accountID, pair.Site, pair.Identity, date)
	if err != nil {
		return err
	}
	_, err = tx.AddEntry(ctx, entry)
	return err
}

func (e *Engine) remove(ctx context.Context, tx storage.LogWriter, accountID int64, pair domain.Pair, date civil.Date) error {
	entry, err := domain.NewEntry(accountID, pair.Site, pair.Identity, date)
	if err != nil {
		return err
	}
	_, err = tx.RemoveEntry(ctx, entry)
	return err
}

// recompute reads the committed log for pair, computes the streak and
// upserts the projection. Pairs whose identity or site account does not
// exist yet report their streak without a projection row.
func (e *Engine) recompute(ctx context.Context, scope *lookup.Scope, accountID int64, pair domain.Pair, lastRecorded civil.Date) (int, error) {
	ctx, span := e.tracer.Start(ctx, "attendance.recompute", trace.WithAttributes(
		attribute.String("site", pair.Site),
		attribute.String("identity", pair.Identity),
	))
	defer span.End()

	cfg, err := scope.SiteConfig(ctx, pair.Site)
	if err != nil {
		return 0, err
	}
	dates, err := e.store.ListEntryDates(ctx, accountID, pair.Site, pair.Identity, "")
	if err != nil {
		return 0, err
	}
	days := max(domain.ConsecutiveDays(dates, civil.Date{}, cfg.Rollover), 0)
	span.SetAttributes(attribute.Int("attendance.days", days))

	identity, found, err := scope.Identity(ctx, pair.Identity)
	if err != nil {
		return 0, err
	}
	if !found {
		return days, nil
	}
	siteAccount, err := e.store.GetSiteAccount(ctx, identity.ID, pair.Site)
	if errors.Is(err, storage.ErrNotFound) {
		return days, nil
	}
	if err != nil {
		return 0, err
	}
	if _, err := e.store.UpsertProjection(ctx, storage.Projection{
		AccountID:      accountID,
		IdentityID:     identity.ID,
		SiteAccountID:  siteAccount.ID,
		AttendanceDays: days,
		LastRecordedAt: lastRecorded,
		UpdatedAt:      e.clock().UTC(),
	}); err != nil {
		return 0, err
	}
	return days, nil
}
