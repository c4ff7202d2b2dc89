package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/platform/logging"
	platformotel "github.com/louisbranch/siteledger/internal/platform/otel"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// CacheStore is the persistence surface used by Service.
type CacheStore interface {
	Store
	storage.SummaryCacheStore
}

// Result is a summary with its cache metadata.
type Result struct {
	DailySummary
	FromCache bool `json:"fromCache"`
	// IsPartial marks a summary for today or later; the day may still change.
	IsPartial bool `json:"isPartial"`
}

// Service serves daily summaries through the summary cache.
type Service struct {
	store   CacheStore
	logger  *slog.Logger
	tracer  trace.Tracer
	clock   func() time.Time
	caching bool
	group   singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock sets the clock used to decide which days are finished.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithCache toggles cache reads and writes. Invalidation always runs.
func WithCache(enabled bool) Option {
	return func(s *Service) { s.caching = enabled }
}

// NewService builds a summary service over store with caching enabled.
func NewService(store CacheStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		clock:   time.Now,
		caching: true,
		tracer:  platformotel.Tracer("siteledger/attendance/summary"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger)
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

// GetDaily returns the summary for one account and date. Finished days are
// served from and written to the cache; today and later are always computed
// live. Cached entries get the current payback and settlement markers applied
// before they are returned.
func (s *Service) GetDaily(ctx context.Context, req Request) (Result, error) {
	if req.AccountID <= 0 {
		return Result{}, fmt.Errorf("%w: account id", domain.ErrMissingKey)
	}
	if req.Date.IsZero() {
		return Result{}, fmt.Errorf("%w: date", domain.ErrMissingKey)
	}
	ctx, span := s.tracer.Start(ctx, "summary.get_daily", trace.WithAttributes(
		attribute.Int64("account.id", req.AccountID),
		attribute.String("summary.date", req.Date.String()),
	))
	defer span.End()

	today := civil.Today(s.clock)
	cacheable := s.caching && req.OfficeID == nil && req.Date.Before(today)
	span.SetAttributes(attribute.Bool("summary.cacheable", cacheable))

	if cacheable {
		if cached, ok := s.readCache(ctx, req); ok {
			if err := s.applyMarkers(ctx, req.AccountID, &cached); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "apply markers")
				return Result{}, err
			}
			span.SetAttributes(attribute.Bool("summary.from_cache", true))
			return Result{DailySummary: cached, FromCache: true}, nil
		}
	}

	// The epoch is read before the ledger so a write racing an invalidation
	// is refused by the store.
	epoch := int64(-1)
	if cacheable {
		current, err := s.store.SummaryEpoch(ctx, req.AccountID)
		if err != nil {
			s.logger.WarnContext(ctx, "summary epoch read failed",
				"account_id", req.AccountID, "date", req.Date.String(), "error", err)
		} else {
			epoch = current
		}
	}

	summary, err := s.compute(ctx, req, epoch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "compute summary")
		return Result{}, err
	}
	if epoch >= 0 {
		s.writeCache(ctx, req, epoch, summary)
	}
	return Result{DailySummary: summary, IsPartial: !req.Date.Before(today)}, nil
}

// compute coalesces concurrent computations of the same account, date,
// office and cache epoch. A negative epoch marks a live-only computation.
func (s *Service) compute(ctx context.Context, req Request, epoch int64) (DailySummary, error) {
	key := strconv.FormatInt(req.AccountID, 10) + "/" + req.Date.String()
	if req.OfficeID != nil {
		key += "/office-" + strconv.FormatInt(*req.OfficeID, 10)
	}
	if epoch >= 0 {
		key += "/epoch-" + strconv.FormatInt(epoch, 10)
	} else {
		key += "/live"
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		// Shared by every waiter on key; one caller's cancellation must not
		// fail the others.
		ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "summary.compute")
		defer span.End()
		summary, err := Compute(ctx, s.store, req)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		span.SetAttributes(
			attribute.Int("summary.paybacks", len(summary.Paybacks)),
			attribute.Int("summary.settlements", len(summary.Settlements)),
		)
		return summary, nil
	})
	if err != nil {
		return DailySummary{}, err
	}
	return cloneSummary(v.(DailySummary)), nil
}

// applyMarkers refreshes a cached summary against the current markers: paid
// settlement banners are dropped and payback entries get their cleared flag
// recomputed from the stored week markers.
func (s *Service) applyMarkers(ctx context.Context, accountID int64, summary *DailySummary) error {
	if len(summary.Settlements) > 0 {
		paid, err := s.store.ListSettlementPaid(ctx, accountID)
		if err != nil {
			return fmt.Errorf("list settlement markers: %w", err)
		}
		summary.Settlements = withoutPaid(summary.Settlements, paid)
	}
	weeks := make(map[domain.Pair]map[string]bool)
	for i := range summary.Paybacks {
		entry := &summary.Paybacks[i]
		pair := entry.Pair()
		cleared, ok := weeks[pair]
		if !ok {
			dates, err := s.store.ListPaybackCleared(ctx, accountID, pair)
			if err != nil {
				return fmt.Errorf("list payback markers: %w", err)
			}
			cleared = clearedWeeks(dates)
			weeks[pair] = cleared
		}
		entry.Cleared = cleared[entry.WeekStartDate.String()]
	}
	return nil
}

// cloneSummary copies the slices shared between singleflight callers.
func cloneSummary(in DailySummary) DailySummary {
	out := in
	out.Paybacks = append([]domain.PaybackEntry{}, in.Paybacks...)
	out.Settlements = append([]domain.SettlementBanner{}, in.Settlements...)
	return out
}

func (s *Service) readCache(ctx context.Context, req Request) (DailySummary, bool) {
	cached, err := s.store.GetSummary(ctx, req.AccountID, req.Date)
	if errors.Is(err, storage.ErrNotFound) {
		return DailySummary{}, false
	}
	if err != nil {
		s.logger.WarnContext(ctx, "summary cache read failed",
			"account_id", req.AccountID, "date", req.Date.String(), "error", err)
		return DailySummary{}, false
	}
	var summary DailySummary
	if err := json.Unmarshal(cached.Data, &summary); err != nil {
		s.logger.WarnContext(ctx, "summary cache entry is corrupt",
			"account_id", req.AccountID, "date", req.Date.String(), "error", err)
		return DailySummary{}, false
	}
	if summary.Paybacks == nil {
		summary.Paybacks = []domain.PaybackEntry{}
	}
	if summary.Settlements == nil {
		summary.Settlements = []domain.SettlementBanner{}
	}
	summary.Date = req.Date
	return summary, true
}

func (s *Service) writeCache(ctx context.Context, req Request, epoch int64, summary DailySummary) {
	data, err := json.Marshal(summary)
	if err == nil {
		err = s.store.PutSummary(ctx, storage.CachedSummary{
			AccountID: req.AccountID,
			Date:      req.Date,
			Data:      data,
			UpdatedAt: s.clock().UTC(),
			Epoch:     epoch,
		})
	}
	if errors.Is(err, storage.ErrStaleSummary) {
		s.logger.DebugContext(ctx, "summary cache write skipped after invalidation",
			"account_id", req.AccountID, "date", req.Date.String(), "epoch", epoch)
		return
	}
	if err != nil {
		s.logger.WarnContext(ctx, "summary cache write failed",
			"account_id", req.AccountID, "date", req.Date.String(), "error", err)
	}
}
