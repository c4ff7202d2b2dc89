package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
	"github.com/shopspring/decimal"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "attendance.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func mustEntry(t *testing.T, site, identity, date string) domain.Entry {
	t.Helper()
	entry, err := domain.NewEntry(7, site, identity, civil.MustParse(date))
	if err != nil {
		t.Fatalf("new entry: %v", err)
	}
	return entry
}

func TestAddAndRemoveEntryAreIdempotent(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	entry := mustEntry(t, "alpha", "kim", "2025-01-05")

	created, err := store.AddEntry(ctx, entry)
	if err != nil || !created {
		t.Fatalf("first add = %v, %v; want true", created, err)
	}
	created, err = store.AddEntry(ctx, entry)
	if err != nil || created {
		t.Fatalf("second add = %v, %v; want false", created, err)
	}
	exists, err := store.EntryExists(ctx, entry)
	if err != nil || !exists {
		t.Fatalf("exists = %v, %v", exists, err)
	}

	removed, err := store.RemoveEntry(ctx, entry)
	if err != nil || !removed {
		t.Fatalf("first remove = %v, %v; want true", removed, err)
	}
	removed, err = store.RemoveEntry(ctx, entry)
	if err != nil || removed {
		t.Fatalf("second remove = %v, %v; want false", removed, err)
	}
}

func TestEntryValidationRejectsMissingKeys(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if _, err := store.AddEntry(ctx, domain.Entry{AccountID: 7, Site: "alpha"}); !errors.Is(err, domain.ErrMissingKey) {
		t.Fatalf("add error = %v, want ErrMissingKey", err)
	}
	if _, err := store.RemoveEntry(ctx, domain.Entry{}); !errors.Is(err, domain.ErrMissingKey) {
		t.Fatalf("remove error = %v, want ErrMissingKey", err)
	}
	if _, err := store.ListEntryDates(ctx, 7, "", "kim", ""); !errors.Is(err, domain.ErrMissingKey) {
		t.Fatalf("list error = %v, want ErrMissingKey", err)
	}
}

func TestListEntryDatesNewestFirstWithMonthFilter(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	for _, date := range []string{"2025-01-30", "2025-02-02", "2025-02-01", "2025-01-31"} {
		if _, err := store.AddEntry(ctx, mustEntry(t, "alpha", "kim", date)); err != nil {
			t.Fatalf("add %s: %v", date, err)
		}
	}
	if _, err := store.AddEntry(ctx, mustEntry(t, "beta", "kim", "2025-02-03")); err != nil {
		t.Fatalf("add other site: %v", err)
	}

	all, err := store.ListEntryDates(ctx, 7, " alpha", "kim ", "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 4 || all[0] != civil.MustParse("2025-02-02") || all[3] != civil.MustParse("2025-01-30") {
		t.Fatalf("all dates = %v", all)
	}

	feb, err := store.ListEntryDates(ctx, 7, "alpha", "kim", "2025-02")
	if err != nil {
		t.Fatalf("list month: %v", err)
	}
	if len(feb) != 2 || feb[0] != civil.MustParse("2025-02-02") {
		t.Fatalf("february dates = %v", feb)
	}

	n, err := store.DeleteEntries(ctx, 7, "alpha", "kim")
	if err != nil || n != 4 {
		t.Fatalf("delete entries = %d, %v; want 4", n, err)
	}
}

func TestWithinLogTxRollsBackOnError(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	entry := mustEntry(t, "alpha", "kim", "2025-01-05")
	failure := errors.New("boom")

	err := store.WithinLogTx(ctx, func(tx storage.LogTx) error {
		if _, err := tx.AddEntry(ctx, entry); err != nil {
			return err
		}
		if _, err := tx.EnsureIdentity(ctx, 7, "kim"); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("tx error = %v, want %v", err, failure)
	}
	if exists, _ := store.EntryExists(ctx, entry); exists {
		t.Fatal("expected entry to be rolled back")
	}
	if _, err := store.GetIdentity(ctx, 7, "kim"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("identity lookup error = %v, want ErrNotFound", err)
	}

	if err := store.WithinLogTx(ctx, func(tx storage.LogTx) error {
		_, err := tx.AddEntry(ctx, entry)
		return err
	}); err != nil {
		t.Fatalf("commit tx: %v", err)
	}
	if exists, _ := store.EntryExists(ctx, entry); !exists {
		t.Fatal("expected committed entry")
	}
}

func TestEnsureEntitiesAndStatus(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	first, err := store.EnsureIdentity(ctx, 7, " kim ")
	if err != nil {
		t.Fatalf("ensure identity: %v", err)
	}
	second, err := store.EnsureIdentity(ctx, 7, "kim")
	if err != nil || second.ID != first.ID {
		t.Fatalf("second ensure = %+v, %v; want id %d", second, err, first.ID)
	}
	site, err := store.EnsureSiteAccount(ctx, first.ID, "alpha")
	if err != nil {
		t.Fatalf("ensure site account: %v", err)
	}
	again, err := store.EnsureSiteAccount(ctx, first.ID, "alpha")
	if err != nil || again.ID != site.ID {
		t.Fatalf("second site ensure = %+v, %v", again, err)
	}

	pair := domain.NewPair("kim", "alpha")
	if err := store.SetSiteStatus(ctx, 7, pair, "12.02 승인"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	statuses, err := store.SiteStatuses(ctx, 7)
	if err != nil {
		t.Fatalf("site statuses: %v", err)
	}
	if statuses[pair] != "12.02 승인" {
		t.Fatalf("statuses = %v", statuses)
	}
}

func TestUpsertProjectionKeepsLastRecordedDate(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	identity, err := store.EnsureIdentity(ctx, 7, "kim")
	if err != nil {
		t.Fatalf("ensure identity: %v", err)
	}
	site, err := store.EnsureSiteAccount(ctx, identity.ID, "alpha")
	if err != nil {
		t.Fatalf("ensure site: %v", err)
	}

	got, err := store.UpsertProjection(ctx, storage.Projection{
		AccountID:      7,
		IdentityID:     identity.ID,
		SiteAccountID:  site.ID,
		AttendanceDays: 3,
		LastRecordedAt: civil.MustParse("2025-01-05"),
	})
	if err != nil {
		t.Fatalf("upsert projection: %v", err)
	}
	if got.AttendanceDays != 3 || got.PeriodType != storage.PeriodTypeTotal {
		t.Fatalf("projection = %+v", got)
	}

	got, err = store.UpsertProjection(ctx, storage.Projection{
		AccountID:      7,
		IdentityID:     identity.ID,
		SiteAccountID:  site.ID,
		AttendanceDays: -1,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if got.AttendanceDays != 0 {
		t.Fatalf("attendance days = %d, want clamp to 0", got.AttendanceDays)
	}
	if got.LastRecordedAt != civil.MustParse("2025-01-05") {
		t.Fatalf("last recorded = %s, want preserved", got.LastRecordedAt)
	}
}

func TestSiteConfigOfficeFallback(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if _, err := store.GetSiteConfig(ctx, "alpha", 3); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing config error = %v", err)
	}
	if err := store.PutSiteConfig(ctx, storage.SiteConfigRecord{
		SiteName: "alpha",
		Config:   domain.SiteConfig{Rollover: "O", AttendanceType: "수동"},
	}); err != nil {
		t.Fatalf("put shared config: %v", err)
	}
	shared, err := store.GetSiteConfig(ctx, "alpha", 3)
	if err != nil {
		t.Fatalf("get shared config: %v", err)
	}
	if shared.OfficeID != 0 || shared.Config.Rollover != domain.RolloverCarry || shared.Config.IsAuto() {
		t.Fatalf("shared config = %+v", shared)
	}
	if shared.Config.Version != domain.SiteConfigVersion {
		t.Fatalf("version = %d, want normalized", shared.Config.Version)
	}

	if err := store.PutSiteConfig(ctx, storage.SiteConfigRecord{
		SiteName: "alpha",
		OfficeID: 3,
		Config: domain.SiteConfig{Payback: domain.PaybackConfig{
			Days:    []string{"월"},
			Percent: decimal.NewFromInt(10),
		}},
	}); err != nil {
		t.Fatalf("put office config: %v", err)
	}
	office, err := store.GetSiteConfig(ctx, "alpha", 3)
	if err != nil {
		t.Fatalf("get office config: %v", err)
	}
	if office.OfficeID != 3 || !office.Config.Payback.Percent.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("office config = %+v", office)
	}

	list, err := store.ListSiteConfigs(ctx, 3)
	if err != nil || len(list) != 1 {
		t.Fatalf("list configs = %v, %v", list, err)
	}
}

func TestMarkers(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	pair := domain.NewPair("kim", "alpha")
	week := civil.MustParse("2025-02-03")
	at := time.Date(2025, 2, 10, 3, 0, 0, 0, time.UTC)

	key := storage.PaybackClearedKey{AccountID: 7, Pair: pair, WeekStartDate: week}
	if err := store.SetPaybackCleared(ctx, key, true, at); err != nil {
		t.Fatalf("set cleared: %v", err)
	}
	if err := store.SetPaybackCleared(ctx, key, true, at); err != nil {
		t.Fatalf("set cleared twice: %v", err)
	}
	weeks, err := store.ListPaybackCleared(ctx, 7, pair)
	if err != nil || len(weeks) != 1 || weeks[0] != week {
		t.Fatalf("cleared weeks = %v, %v", weeks, err)
	}
	if err := store.SetPaybackCleared(ctx, key, false, at); err != nil {
		t.Fatalf("unset cleared: %v", err)
	}
	if weeks, _ := store.ListPaybackCleared(ctx, 7, pair); len(weeks) != 0 {
		t.Fatalf("cleared weeks after unset = %v", weeks)
	}

	paidKey := storage.SettlementPaidKey{AccountID: 7, Pair: pair}
	if err := store.SetSettlementPaid(ctx, paidKey, true, at); err != nil {
		t.Fatalf("set paid: %v", err)
	}
	paid, err := store.ListSettlementPaid(ctx, 7)
	if err != nil || !paid[pair].Equal(at) {
		t.Fatalf("paid = %v, %v", paid, err)
	}
	if err := store.SetSettlementPaid(ctx, paidKey, false, at); err != nil {
		t.Fatalf("unset paid: %v", err)
	}
	if paid, _ := store.ListSettlementPaid(ctx, 7); len(paid) != 0 {
		t.Fatalf("paid after unset = %v", paid)
	}
	if err := store.SetSettlementPaid(ctx, storage.SettlementPaidKey{AccountID: 7}, true, at); !errors.Is(err, domain.ErrMissingKey) {
		t.Fatalf("missing pair error = %v", err)
	}
}

func TestSummaryCacheRangeDelete(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	for _, date := range []string{"2025-01-31", "2025-02-03", "2025-02-09", "2025-02-10", "2025-03-01"} {
		if err := store.PutSummary(ctx, storage.CachedSummary{
			AccountID: 7,
			Date:      civil.MustParse(date),
			Data:      []byte(`{"date":"` + date + `"}`),
		}); err != nil {
			t.Fatalf("put summary %s: %v", date, err)
		}
	}

	n, err := store.DeleteSummaries(ctx, 7, []civil.Range{
		civil.ISOWeek(civil.MustParse("2025-02-05")),
		{Start: civil.MustParse("2025-01-31"), End: civil.MustParse("2025-01-31")},
	})
	if err != nil || n != 3 {
		t.Fatalf("delete summaries = %d, %v; want 3", n, err)
	}
	if _, err := store.GetSummary(ctx, 7, civil.MustParse("2025-02-03")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("deleted summary error = %v", err)
	}
	kept, err := store.GetSummary(ctx, 7, civil.MustParse("2025-02-10"))
	if err != nil || string(kept.Data) != `{"date":"2025-02-10"}` {
		t.Fatalf("kept summary = %+v, %v", kept, err)
	}

	n, err = store.DeleteAllSummaries(ctx, 7)
	if err != nil || n != 2 {
		t.Fatalf("delete all = %d, %v; want 2", n, err)
	}
}

func TestSummaryEpochGuardsCacheWrites(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	date := civil.MustParse("2025-02-10")
	put := func(epoch int64) error {
		return store.PutSummary(ctx, storage.CachedSummary{
			AccountID: 7,
			Date:      date,
			Data:      []byte(`{"epoch":` + strconv.FormatInt(epoch, 10) + `}`),
			Epoch:     epoch,
		})
	}

	epoch, err := store.SummaryEpoch(ctx, 7)
	if err != nil || epoch != 0 {
		t.Fatalf("initial epoch = %d, %v", epoch, err)
	}
	if err := put(0); err != nil {
		t.Fatalf("put at current epoch: %v", err)
	}

	if _, err := store.DeleteSummaries(ctx, 7, []civil.Range{civil.ISOWeek(date)}); err != nil {
		t.Fatalf("delete summaries: %v", err)
	}
	if err := put(0); !errors.Is(err, storage.ErrStaleSummary) {
		t.Fatalf("put after range delete = %v, want ErrStaleSummary", err)
	}
	if _, err := store.GetSummary(ctx, 7, date); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("stale write landed: %v", err)
	}

	if _, err := store.DeleteAllSummaries(ctx, 7); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	epoch, err = store.SummaryEpoch(ctx, 7)
	if err != nil || epoch != 2 {
		t.Fatalf("epoch after two invalidations = %d, %v", epoch, err)
	}
	if err := put(1); !errors.Is(err, storage.ErrStaleSummary) {
		t.Fatalf("put at epoch 1 = %v", err)
	}
	if err := put(2); err != nil {
		t.Fatalf("put at epoch 2: %v", err)
	}
	if other, err := store.SummaryEpoch(ctx, 8); err != nil || other != 0 {
		t.Fatalf("other account epoch = %d, %v", other, err)
	}
}

func TestLedgerMirror(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	record := domain.Record{
		ID:          11,
		AccountID:   7,
		Date:        civil.MustParse("2025-02-10"),
		TotalAmount: decimal.RequireFromString("120.5"),
		Notes:       "memo",
	}
	record.Slots[0] = domain.Slot{Identity: " kim", Site: "alpha ", ChargeWithdraw: "10 5", Recharge: true}
	if err := store.PutRecord(ctx, record); err != nil {
		t.Fatalf("put record: %v", err)
	}
	second := record
	second.ID = 12
	second.Date = civil.MustParse("2025-02-01")
	if err := store.PutRecord(ctx, second); err != nil {
		t.Fatalf("put second record: %v", err)
	}

	records, err := store.ListRecords(ctx, 7, civil.Range{Start: civil.MustParse("2025-02-05")})
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 1 || records[0].ID != 11 {
		t.Fatalf("records = %+v", records)
	}
	got := records[0]
	if got.Slots[0].Identity != "kim" || got.Slots[0].Site != "alpha" || !got.Slots[0].Recharge {
		t.Fatalf("slot = %+v", got.Slots[0])
	}
	if !got.TotalAmount.Equal(decimal.RequireFromString("120.5")) || got.Notes != "memo" {
		t.Fatalf("record = %+v", got)
	}

	if err := store.DeleteRecord(ctx, 7, 11); err != nil {
		t.Fatalf("delete record: %v", err)
	}
	all, err := store.ListRecords(ctx, 7, civil.Range{})
	if err != nil || len(all) != 1 || all[0].ID != 12 {
		t.Fatalf("records after delete = %+v, %v", all, err)
	}
}

func TestOfficesAndAudit(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if office, err := store.AccountOffice(ctx, 7); err != nil || office != 0 {
		t.Fatalf("default office = %d, %v", office, err)
	}
	if err := store.SetAccountOffice(ctx, 7, 3); err != nil {
		t.Fatalf("set office: %v", err)
	}
	if err := store.SetAccountOffice(ctx, 8, 3); err != nil {
		t.Fatalf("set office: %v", err)
	}
	accounts, err := store.ListOfficeAccounts(ctx, 3)
	if err != nil || len(accounts) != 2 {
		t.Fatalf("office accounts = %v, %v", accounts, err)
	}

	base := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	for i, action := range []string{"past_add", "bulk_add"} {
		if err := store.RecordAudit(ctx, storage.AuditRecord{
			ID:        action,
			AccountID: 7,
			Actor:     "operator",
			Action:    action,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("record audit: %v", err)
		}
	}
	audit, err := store.ListAudit(ctx, 7, 10)
	if err != nil || len(audit) != 2 || audit[0].Action != "bulk_add" {
		t.Fatalf("audit = %+v, %v", audit, err)
	}
	if err := store.RecordAudit(ctx, storage.AuditRecord{}); err == nil {
		t.Fatal("expected validation error for empty audit")
	}
}

func TestPingReportsClosedStore(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "attendance.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping open store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	if err := store.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error after close")
	}
}
