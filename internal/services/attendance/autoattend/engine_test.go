package autoattend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/platform/logging"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage/sqlite"
)

const testAccount = int64(7)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "attendance.db"))
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

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

func sequentialIDs() func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return "op-" + string(rune('a'+n)), nil
	}
}

func newTestEngine(t *testing.T, store Store) *Engine {
	t.Helper()
	return NewEngine(store,
		WithLogger(logging.Discard()),
		WithClock(fixedClock(time.Date(2025, 2, 20, 3, 0, 0, 0, time.UTC))),
		WithIDGenerator(sequentialIDs()),
	)
}

func record(date string, slots ...domain.Slot) *domain.Record {
	r := &domain.Record{ID: 1, AccountID: testAccount, Date: civil.MustParse(date)}
	copy(r.Slots[:], slots)
	return r
}

func slot(identity, site, charge string) domain.Slot {
	return domain.Slot{Identity: identity, Site: site, ChargeWithdraw: charge}
}

func logged(t *testing.T, store *sqlite.Store, site, identity, date string) bool {
	t.Helper()
	entry, err := domain.NewEntry(testAccount, site, identity, civil.MustParse(date))
	if err != nil {
		t.Fatalf("new entry: %v", err)
	}
	exists, err := store.EntryExists(context.Background(), entry)
	if err != nil {
		t.Fatalf("entry exists: %v", err)
	}
	return exists
}

func seedLog(t *testing.T, store *sqlite.Store, site, identity string, dates ...string) {
	t.Helper()
	for _, date := range dates {
		entry, err := domain.NewEntry(testAccount, site, identity, civil.MustParse(date))
		if err != nil {
			t.Fatalf("new entry: %v", err)
		}
		if _, err := store.AddEntry(context.Background(), entry); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}
}

func projectionDays(t *testing.T, store *sqlite.Store, site, identity string) (storage.Projection, bool) {
	t.Helper()
	ctx := context.Background()
	id, err := store.GetIdentity(ctx, testAccount, identity)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Projection{}, false
	}
	if err != nil {
		t.Fatalf("get identity: %v", err)
	}
	sa, err := store.GetSiteAccount(ctx, id.ID, site)
	if err != nil {
		t.Fatalf("get site account: %v", err)
	}
	projection, err := store.GetProjection(ctx, testAccount, id.ID, sa.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Projection{}, false
	}
	if err != nil {
		t.Fatalf("get projection: %v", err)
	}
	return projection, true
}

func TestRecordChangedCreateAddsEntriesAndProjection(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	engine := newTestEngine(t, store)
	seedLog(t, store, "alpha", "kim", "2025-02-08", "2025-02-09")

	result := engine.RecordChanged(context.Background(), Change{
		AccountID: testAccount,
		New: record("2025-02-10",
			slot("kim", "alpha", "10"),
			slot("lee", "beta", "0"),
			slot("", "gamma", "30"),
		),
	})
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
	if !logged(t, store, "alpha", "kim", "2025-02-10") {
		t.Fatal("expected positive charge to be logged")
	}
	if logged(t, store, "beta", "lee", "2025-02-10") {
		t.Fatal("zero charge must not be logged")
	}
	if got := result.Attendance["kim||alpha"]; got != 3 {
		t.Fatalf("kim||alpha = %d, want 3", got)
	}
	if got, ok := result.Attendance["lee||beta"]; !ok || got != 0 {
		t.Fatalf("lee||beta = %d, %v; want 0", got, ok)
	}

	projection, ok := projectionDays(t, store, "alpha", "kim")
	if !ok || projection.AttendanceDays != 3 || projection.LastRecordedAt != civil.MustParse("2025-02-10") {
		t.Fatalf("projection = %+v, %v", projection, ok)
	}
	if _, err := store.GetIdentity(context.Background(), testAccount, "lee"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("zero-charge identity must not be created, got %v", err)
	}
}

func TestRecordChangedChargeToZeroRemovesEntry(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()
	seedLog(t, store, "alpha", "kim", "2025-02-08", "2025-02-09")

	created := record("2025-02-10", slot("kim", "alpha", "10"))
	engine.RecordChanged(ctx, Change{AccountID: testAccount, New: created})

	updated := record("2025-02-10", slot("kim", "alpha", "0"))
	result := engine.RecordChanged(ctx, Change{AccountID: testAccount, Old: created, New: updated})
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
	if logged(t, store, "alpha", "kim", "2025-02-10") {
		t.Fatal("expected entry to be removed")
	}
	if got := result.Attendance["kim||alpha"]; got != 2 {
		t.Fatalf("recomputed days = %d, want 2", got)
	}
	projection, _ := projectionDays(t, store, "alpha", "kim")
	if projection.AttendanceDays != 2 || projection.LastRecordedAt != civil.MustParse("2025-02-10") {
		t.Fatalf("projection = %+v", projection)
	}
}

func TestRecordChangedDateMoveRemovesOldDate(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	old := record("2025-02-10", slot("kim", "alpha", "10"), slot("lee", "alpha", "5"))
	engine.RecordChanged(ctx, Change{AccountID: testAccount, New: old})

	moved := record("2025-02-12", slot("kim", "alpha", "10"), slot("lee", "alpha", "0"))
	result := engine.RecordChanged(ctx, Change{AccountID: testAccount, Old: old, New: moved})
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
	if logged(t, store, "alpha", "kim", "2025-02-10") || logged(t, store, "alpha", "lee", "2025-02-10") {
		t.Fatal("expected old date entries to be removed")
	}
	if !logged(t, store, "alpha", "kim", "2025-02-12") {
		t.Fatal("expected new date entry")
	}
	if logged(t, store, "alpha", "lee", "2025-02-12") {
		t.Fatal("zero charge must not be logged on the new date")
	}
}

func TestRecordChangedPairChangeRemovesOldPair(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	old := record("2025-02-10", slot("kim", "alpha", "10"))
	engine.RecordChanged(ctx, Change{AccountID: testAccount, New: old})

	renamed := record("2025-02-10", slot("kim", "beta", "10"))
	result := engine.RecordChanged(ctx, Change{AccountID: testAccount, Old: old, New: renamed})
	if logged(t, store, "alpha", "kim", "2025-02-10") {
		t.Fatal("expected old pair entry to be removed")
	}
	if !logged(t, store, "beta", "kim", "2025-02-10") {
		t.Fatal("expected new pair entry")
	}
	if result.Attendance["kim||alpha"] != 0 || result.Attendance["kim||beta"] != 1 {
		t.Fatalf("attendance = %v", result.Attendance)
	}
}

func TestRecordChangedKeepsPairChargedInAnotherSlot(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	old := record("2025-02-10", slot("kim", "alpha", "10"))
	engine.RecordChanged(ctx, Change{AccountID: testAccount, New: old})

	swapped := record("2025-02-10", slot("lee", "alpha", "0"), slot("kim", "alpha", "10"))
	engine.RecordChanged(ctx, Change{AccountID: testAccount, Old: old, New: swapped})
	if !logged(t, store, "alpha", "kim", "2025-02-10") {
		t.Fatal("pair still charged in another slot must stay logged")
	}
}

func TestRecordChangedDeleteRemovesEntries(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	old := record("2025-02-10", slot("kim", "alpha", "10"))
	engine.RecordChanged(ctx, Change{AccountID: testAccount, New: old})
	result := engine.RecordChanged(ctx, Change{AccountID: testAccount, Old: old})
	if logged(t, store, "alpha", "kim", "2025-02-10") {
		t.Fatal("expected delete to remove entry")
	}
	if got, ok := result.Attendance["kim||alpha"]; !ok || got != 0 {
		t.Fatalf("attendance = %v", result.Attendance)
	}
}

func TestRecordChangedSkipsManualSites(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()
	if err := store.PutSiteConfig(ctx, storage.SiteConfigRecord{
		SiteName: "alpha",
		Config:   domain.SiteConfig{AttendanceType: domain.AttendanceManual},
	}); err != nil {
		t.Fatalf("put config: %v", err)
	}
	seedLog(t, store, "alpha", "kim", "2025-02-10")

	old := record("2025-02-10", slot("kim", "alpha", "10"))
	result := engine.RecordChanged(ctx, Change{AccountID: testAccount, Old: old, New: record("2025-02-10", slot("kim", "alpha", "0"))})
	if !logged(t, store, "alpha", "kim", "2025-02-10") {
		t.Fatal("manual site entries must not be touched")
	}
	if _, ok := result.Attendance["kim||alpha"]; ok {
		t.Fatal("manual site must not be recomputed")
	}

	engine.RecordChanged(ctx, Change{AccountID: testAccount, New: record("2025-02-11", slot("kim", "alpha", "10"))})
	if logged(t, store, "alpha", "kim", "2025-02-11") {
		t.Fatal("manual site must not be auto-logged")
	}
}

func TestRecordChangedUsesRolloverFromConfig(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()
	if err := store.PutSiteConfig(ctx, storage.SiteConfigRecord{
		SiteName: "alpha",
		Config:   domain.SiteConfig{Rollover: domain.RolloverCarry},
	}); err != nil {
		t.Fatalf("put config: %v", err)
	}
	seedLog(t, store, "alpha", "kim", "2025-01-30", "2025-01-31")

	result := engine.RecordChanged(ctx, Change{AccountID: testAccount, New: record("2025-02-01", slot("kim", "alpha", "5"))})
	if got := result.Attendance["kim||alpha"]; got != 3 {
		t.Fatalf("carry streak = %d, want 3", got)
	}
}

type failingTxStore struct {
	*sqlite.Store
}

func (f failingTxStore) WithinLogTx(context.Context, func(storage.LogTx) error) error {
	return errors.New("database is locked")
}

func TestRecordChangedFailureIsWarning(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	engine := newTestEngine(t, failingTxStore{Store: store})

	result := engine.RecordChanged(context.Background(), Change{
		AccountID: testAccount,
		New:       record("2025-02-10", slot("kim", "alpha", "10")),
	})
	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one", result.Warnings)
	}
	if len(result.Attendance) != 0 {
		t.Fatalf("attendance = %v, want empty after rollback", result.Attendance)
	}
}

func TestRecordChangedRejectsMissingAccount(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	engine := newTestEngine(t, store)

	result := engine.RecordChanged(context.Background(), Change{New: record("2025-02-10", slot("kim", "alpha", "10"))})
	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %v", result.Warnings)
	}
	if logged(t, store, "alpha", "kim", "2025-02-10") {
		t.Fatal("nothing may be written without an account")
	}
}

func TestRecordChangedLogTracksPositiveCharge(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()

	charges := []string{"10", "0", "", "5 3", "abc", "0", "1"}
	var prev *domain.Record
	for i, charge := range charges {
		next := record("2025-03-05", slot("kim", "alpha", charge))
		engine.RecordChanged(ctx, Change{AccountID: testAccount, Old: prev, New: next})
		want := domain.ParseCharge(charge) > 0
		if got := logged(t, store, "alpha", "kim", "2025-03-05"); got != want {
			t.Fatalf("step %d charge %q: logged = %v, want %v", i, charge, got, want)
		}
		prev = next
	}
}
