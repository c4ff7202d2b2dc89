package autoattend

import (
	"context"
	"testing"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
)

func putRecord(t *testing.T, store Store, id int64, date string, slots ...domain.Slot) {
	t.Helper()
	r := record(date, slots...)
	r.ID = id
	if err := store.PutRecord(context.Background(), *r); err != nil {
		t.Fatalf("put record: %v", err)
	}
}

func TestRebuildAddsMissingEntries(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	engine := newTestEngine(t, store)
	ctx := context.Background()
	if err := store.PutSiteConfig(ctx, storage.SiteConfigRecord{
		SiteName: "manual-site",
		Config:   domain.SiteConfig{AttendanceType: domain.AttendanceManual},
	}); err != nil {
		t.Fatalf("put config: %v", err)
	}
	putRecord(t, store, 1, "2025-02-10", slot("kim", "alpha", "10"), slot("lee", "manual-site", "10"))
	putRecord(t, store, 2, "2025-02-11", slot("kim", "alpha", "10"), slot("kim", "alpha", "20"))
	putRecord(t, store, 3, "2025-02-12", slot("kim", "alpha", "0"))
	seedLog(t, store, "alpha", "kim", "2025-02-10")

	dry, err := engine.Rebuild(ctx, RebuildInput{AccountID: testAccount, DryRun: true})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if dry.Records != 3 || dry.Missing != 1 || dry.Added != 0 {
		t.Fatalf("dry run = %+v", dry)
	}
	if logged(t, store, "alpha", "kim", "2025-02-11") {
		t.Fatal("dry run must not write")
	}

	result, err := engine.Rebuild(ctx, RebuildInput{AccountID: testAccount})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if result.Added != 1 || result.Attendance["kim||alpha"] != 2 {
		t.Fatalf("rebuild = %+v", result)
	}
	if logged(t, store, "manual-site", "lee", "2025-02-10") {
		t.Fatal("manual sites must not be rebuilt")
	}
	projection, ok := projectionDays(t, store, "alpha", "kim")
	if !ok || projection.AttendanceDays != 2 || projection.LastRecordedAt != civil.MustParse("2025-02-11") {
		t.Fatalf("projection = %+v, %v", projection, ok)
	}
}

func TestRebuildHonorsRange(t *testing.T) {
	t.Parallel()
	store := openStore(t)
	engine := newTestEngine(t, store)
	putRecord(t, store, 1, "2025-02-10", slot("kim", "alpha", "10"))
	putRecord(t, store, 2, "2025-03-10", slot("kim", "alpha", "10"))

	result, err := engine.Rebuild(context.Background(), RebuildInput{
		AccountID: testAccount,
		Within:    civil.Range{Start: civil.MustParse("2025-03-01")},
	})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if result.Records != 1 || result.Added != 1 {
		t.Fatalf("rebuild = %+v", result)
	}
	if logged(t, store, "alpha", "kim", "2025-02-10") {
		t.Fatal("records outside the range must be ignored")
	}
}
