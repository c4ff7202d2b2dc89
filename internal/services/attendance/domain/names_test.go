package domain

import (
	"errors"
	"testing"

	"github.com/louisbranch/siteledger/internal/platform/civil"
)

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	decomposed := "\u1100\u1161"
	if got := NormalizeName("  " + decomposed + "  site \t one "); got != "\uac00 site one" {
		t.Fatalf("NormalizeName = %q", got)
	}
	if NormalizeName("   ") != "" {
		t.Fatal("expected blank name to normalize to empty")
	}
}

func TestPairKey(t *testing.T) {
	t.Parallel()

	pair := NewPair(" kim ", "alpha  site")
	if pair.Key() != "kim||alpha site" {
		t.Fatalf("key = %q", pair.Key())
	}
	if (Pair{Identity: "kim"}).Valid() {
		t.Fatal("pair without site must be invalid")
	}
}

func TestNewEntryValidatesKey(t *testing.T) {
	t.Parallel()

	date := civil.MustParse("2025-01-01")
	tests := map[string]func() error{
		"account":  func() error { _, err := NewEntry(0, "s", "i", date); return err },
		"site":     func() error { _, err := NewEntry(1, " ", "i", date); return err },
		"identity": func() error { _, err := NewEntry(1, "s", "", date); return err },
		"date":     func() error { _, err := NewEntry(1, "s", "i", civil.Date{}); return err },
	}
	for name, fn := range tests {
		if err := fn(); !errors.Is(err, ErrMissingKey) {
			t.Fatalf("%s: expected ErrMissingKey, got %v", name, err)
		}
	}

	entry, err := NewEntry(1, " alpha ", "kim", date)
	if err != nil {
		t.Fatalf("new entry: %v", err)
	}
	if entry.Site != "alpha" {
		t.Fatalf("site = %q", entry.Site)
	}
}

func TestRecordNormalizedFeedsSlotPairs(t *testing.T) {
	t.Parallel()

	raw := Record{Date: civil.MustParse("2025-01-01")}
	raw.Slots[0] = Slot{Identity: " kim ", Site: "alpha  site", ChargeWithdraw: " 10 "}

	if got := raw.Slots[0].Pair(); got != (Pair{Identity: " kim ", Site: "alpha  site"}) {
		t.Fatalf("raw slot pair = %+v, want stored names", got)
	}

	record := raw.Normalized()
	if got := record.Slots[0].Pair(); got != NewPair("kim", "alpha site") {
		t.Fatalf("normalized slot pair = %+v", got)
	}
	if record.Slots[0].ChargeWithdraw != "10" {
		t.Fatalf("charge = %q", record.Slots[0].ChargeWithdraw)
	}
	if pairs := record.Pairs(); len(pairs) != 1 || pairs[0].Key() != "kim||alpha site" {
		t.Fatalf("pairs = %+v", pairs)
	}
}
