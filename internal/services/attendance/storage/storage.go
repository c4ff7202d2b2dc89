// Package storage declares persistence contracts for attendance derivation
// and daily summaries.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrStaleSummary indicates a summary computed before an invalidation.
	ErrStaleSummary = errors.New("summary invalidated while computing")
)

// Projection period constants used by the lifetime attendance projection.
const (
	PeriodTypeTotal = "total"
	PeriodValueAll  = "all"
)

// LogWriter mutates attendance presence facts. Both return whether a row
// changed.
type LogWriter interface {
	AddEntry(ctx context.Context, entry domain.Entry) (bool, error)
	RemoveEntry(ctx context.Context, entry domain.Entry) (bool, error)
}

// Identity is one named identity owned by an account.
type Identity struct {
	ID        int64
	AccountID int64
	Name      string
	CreatedAt time.Time
}

// SiteAccount is one identity's membership on a partner site.
type SiteAccount struct {
	ID         int64
	IdentityID int64
	SiteName   string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EntityWriter lazily creates identities and site accounts. Both calls are
// idempotent and return the existing row when present.
type EntityWriter interface {
	EnsureIdentity(ctx context.Context, accountID int64, name string) (Identity, error)
	EnsureSiteAccount(ctx context.Context, identityID int64, siteName string) (SiteAccount, error)
}

// LogTx is the write surface available inside one log transaction.
type LogTx interface {
	LogWriter
	EntityWriter
}

// LogStore persists the attendance log.
type LogStore interface {
	LogWriter
	EntryExists(ctx context.Context, entry domain.Entry) (bool, error)
	// ListEntryDates returns logged dates for one pair, newest first. A
	// non-empty yearMonth (YYYY-MM) restricts the result to that month.
	ListEntryDates(ctx context.Context, accountID int64, site string, identity string, yearMonth string) ([]civil.Date, error)
	DeleteEntries(ctx context.Context, accountID int64, site string, identity string) (int, error)
	// WithinLogTx runs fn in one transaction and commits when fn returns nil.
	WithinLogTx(ctx context.Context, fn func(tx LogTx) error) error
}

// EntityStore reads and writes identities and site accounts.
type EntityStore interface {
	EntityWriter
	GetIdentity(ctx context.Context, accountID int64, name string) (Identity, error)
	GetSiteAccount(ctx context.Context, identityID int64, siteName string) (SiteAccount, error)
	// SetSiteStatus records the status history string for a pair, creating
	// the identity and site account when needed.
	SetSiteStatus(ctx context.Context, accountID int64, pair domain.Pair, status string) error
	// SiteStatuses returns the status history of every site account of the
	// account keyed by pair.
	SiteStatuses(ctx context.Context, accountID int64) (map[domain.Pair]string, error)
}

// Projection is the materialized consecutive-day count for one pair.
type Projection struct {
	AccountID      int64
	IdentityID     int64
	SiteAccountID  int64
	PeriodType     string
	PeriodValue    string
	AttendanceDays int
	// LastRecordedAt is zero when unknown. Upserts keep the previous value
	// when the new one is zero.
	LastRecordedAt civil.Date
	UpdatedAt      time.Time
}

// ProjectionStore persists the attendance projection.
type ProjectionStore interface {
	UpsertProjection(ctx context.Context, projection Projection) (Projection, error)
	GetProjection(ctx context.Context, accountID int64, identityID int64, siteAccountID int64) (Projection, error)
}

// LedgerStore mirrors external ledger records for rebuilds and summaries.
type LedgerStore interface {
	PutRecord(ctx context.Context, record domain.Record) error
	DeleteRecord(ctx context.Context, accountID int64, recordID int64) error
	// ListRecords returns records ordered by date then id. A zero range bound
	// is open.
	ListRecords(ctx context.Context, accountID int64, within civil.Range) ([]domain.Record, error)
}

// SiteConfigRecord is one stored site configuration.
type SiteConfigRecord struct {
	SiteName  string
	OfficeID  int64
	Config    domain.SiteConfig
	UpdatedAt time.Time
}

// SiteConfigStore persists shared site configurations.
type SiteConfigStore interface {
	// GetSiteConfig returns the office row, falling back to the office 0 row.
	GetSiteConfig(ctx context.Context, siteName string, officeID int64) (SiteConfigRecord, error)
	PutSiteConfig(ctx context.Context, record SiteConfigRecord) error
	ListSiteConfigs(ctx context.Context, officeID int64) ([]SiteConfigRecord, error)
}

// OfficeStore maps accounts onto offices.
type OfficeStore interface {
	// AccountOffice returns 0 when the account has no office.
	AccountOffice(ctx context.Context, accountID int64) (int64, error)
	SetAccountOffice(ctx context.Context, accountID int64, officeID int64) error
	ListOfficeAccounts(ctx context.Context, officeID int64) ([]int64, error)
}

// PaybackClearedKey identifies one cleared payback week.
type PaybackClearedKey struct {
	AccountID     int64
	Pair          domain.Pair
	WeekStartDate civil.Date
}

// SettlementPaidKey identifies one paid settlement.
type SettlementPaidKey struct {
	AccountID int64
	Pair      domain.Pair
}

// MarkerStore persists payback and settlement markers.
type MarkerStore interface {
	SetPaybackCleared(ctx context.Context, key PaybackClearedKey, cleared bool, at time.Time) error
	ListPaybackCleared(ctx context.Context, accountID int64, pair domain.Pair) ([]civil.Date, error)
	SetSettlementPaid(ctx context.Context, key SettlementPaidKey, paid bool, at time.Time) error
	// ListSettlementPaid returns the paid time of every paid pair of the account.
	ListSettlementPaid(ctx context.Context, accountID int64) (map[domain.Pair]time.Time, error)
}

// CachedSummary is one stored daily summary payload.
type CachedSummary struct {
	AccountID int64
	Date      civil.Date
	Data      []byte
	UpdatedAt time.Time
	// Epoch is the account's invalidation epoch read before the summary was
	// computed. PutSummary refuses the write once the epoch has moved.
	Epoch int64
}

// SummaryCacheStore persists serialized daily summaries.
type SummaryCacheStore interface {
	GetSummary(ctx context.Context, accountID int64, date civil.Date) (CachedSummary, error)
	// PutSummary returns ErrStaleSummary when an invalidation ran after
	// summary.Epoch was read.
	PutSummary(ctx context.Context, summary CachedSummary) error
	// SummaryEpoch returns the account's invalidation epoch. Every delete
	// below advances it.
	SummaryEpoch(ctx context.Context, accountID int64) (int64, error)
	// DeleteSummaries removes cached dates inside any of ranges.
	DeleteSummaries(ctx context.Context, accountID int64, ranges []civil.Range) (int, error)
	DeleteAllSummaries(ctx context.Context, accountID int64) (int, error)
}

// AuditRecord is one manual attendance change.
type AuditRecord struct {
	ID        string
	AccountID int64
	Actor     string
	Action    string
	Site      string
	Identity  string
	Detail    string
	CreatedAt time.Time
}

// AuditStore persists manual attendance audit rows.
type AuditStore interface {
	RecordAudit(ctx context.Context, record AuditRecord) error
	ListAudit(ctx context.Context, accountID int64, limit int) ([]AuditRecord, error)
}
