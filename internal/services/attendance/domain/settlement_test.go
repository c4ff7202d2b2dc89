package domain

import (
	"testing"

	"github.com/louisbranch/siteledger/internal/platform/civil"
)

func settlementRecords() []Record {
	return []Record{
		slotRecord("2025-03-03", "0", Slot{Identity: "kim", Site: "beta", ChargeWithdraw: "30"}),
		slotRecord("2025-03-01", "0", Slot{Identity: "kim", Site: "beta", ChargeWithdraw: "20 10"}),
		slotRecord("2025-03-05", "0", Slot{Identity: "kim", Site: "beta", ChargeWithdraw: "10.12345"}),
		slotRecord("2025-03-20", "0", Slot{Identity: "kim", Site: "beta", ChargeWithdraw: "100"}),
	}
}

func TestEvaluateSettlementSelectsSmallestPendingTier(t *testing.T) {
	t.Parallel()

	pair := NewPair("kim", "beta")
	index := BuildDepositIndex(settlementRecords())
	cfg := SettlementConfig{
		Enabled: true,
		Days:    7,
		Rules:   []SettlementRule{
			{Total: dec("50"), Point: "5"},
			{Total: dec("100"), Point: "10"},
		},
	}

	banner, ok := EvaluateSettlement(pair, cfg, index[pair])
	if !ok {
		t.Fatal("expected banner")
	}
	if banner.StartDate != civil.MustParse("2025-03-01") {
		t.Fatalf("start date = %s, want earliest deposit", banner.StartDate)
	}
	// 20 + 30 + 10.12345 = 60.12345, floored to 100 won.
	if !banner.TotalCharge.Equal(dec("60.12")) {
		t.Fatalf("total charge = %s, want 60.12", banner.TotalCharge)
	}
	if !banner.TotalTarget.Equal(dec("100")) {
		t.Fatalf("selected target = %s, want 100", banner.TotalTarget)
	}
	if banner.PointDisplay != "10만" {
		t.Fatalf("point display = %q", banner.PointDisplay)
	}
	if banner.RuleIndex == nil || *banner.RuleIndex != 1 {
		t.Fatalf("rule index = %v, want 1", banner.RuleIndex)
	}
}

func TestEvaluateSettlementSelectsLargestAchievedTier(t *testing.T) {
	t.Parallel()

	pair := NewPair("kim", "beta")
	cfg := SettlementConfig{
		Enabled:   true,
		Days:      30,
		StartDate: civil.MustParse("2025-03-01"),
		Rules:     []SettlementRule{
			{Total: dec("50"), Point: "쿠폰"},
			{Total: dec("150"), Point: "15"},
			{Total: dec("100"), Point: ""},
		},
	}
	banner, ok := EvaluateSettlement(pair, cfg, BuildDepositIndex(settlementRecords())[pair])
	if !ok {
		t.Fatal("expected banner")
	}
	if !banner.TotalTarget.Equal(dec("150")) || banner.PointDisplay != "15만" {
		t.Fatalf("unexpected banner %+v", banner)
	}
}

func TestEvaluateSettlementTieKeepsConfiguredOrder(t *testing.T) {
	t.Parallel()

	pair := NewPair("kim", "beta")
	cfg := SettlementConfig{
		Enabled: true,
		Days:    3,
		Rules:   []SettlementRule{
			{Total: dec("500"), Point: "first"},
			{Total: dec("500"), Point: "second"},
		},
	}
	banner, ok := EvaluateSettlement(pair, cfg, BuildDepositIndex(settlementRecords())[pair])
	if !ok || banner.PointDisplay != "first" {
		t.Fatalf("expected first configured tier, got %+v", banner)
	}
}

func TestEvaluateSettlementSingleThreshold(t *testing.T) {
	t.Parallel()

	pair := NewPair("kim", "beta")
	entries := BuildDepositIndex(settlementRecords())[pair]

	cfg := SettlementConfig{Enabled: true, Days: 7, Total: dec("60"), Point: "3.5"}
	banner, ok := EvaluateSettlement(pair, cfg, entries)
	if !ok {
		t.Fatal("expected banner once threshold is met")
	}
	if banner.PointDisplay != "3.5만" || banner.RuleIndex != nil {
		t.Fatalf("unexpected banner %+v", banner)
	}

	cfg.Total = dec("61")
	if _, ok := EvaluateSettlement(pair, cfg, entries); ok {
		t.Fatal("expected no banner below threshold")
	}
}

func TestEvaluateSettlementSkips(t *testing.T) {
	t.Parallel()

	pair := NewPair("kim", "beta")
	entries := BuildDepositIndex(settlementRecords())[pair]
	tests := map[string]SettlementConfig{
		"disabled":   {Days: 7, Total: dec("1")},
		"no days":    {Enabled: true, Total: dec("1")},
		"no target":  {Enabled: true, Days: 7},
		"zero tiers": {Enabled: true, Days: 7, Rules: []SettlementRule{{Total: dec("0")}}},
	}
	for name, cfg := range tests {
		if _, ok := EvaluateSettlement(pair, cfg, entries); ok {
			t.Fatalf("%s: expected skip", name)
		}
	}
	if _, ok := EvaluateSettlement(pair, SettlementConfig{Enabled: true, Days: 7, Total: dec("1")}, nil); ok {
		t.Fatal("expected skip without start date or deposits")
	}
}

func TestSettlementPairsAndSortBanners(t *testing.T) {
	t.Parallel()

	date := civil.MustParse("2025-03-03")
	records := []Record{
		slotRecord("2025-03-03", "0",
			Slot{Identity: "kim", Site: "beta"},
			Slot{Identity: " kim ", Site: "beta"},
			Slot{Identity: "lee", Site: ""},
			Slot{Identity: "park", Site: "gamma"},
		),
		slotRecord("2025-03-04", "0", Slot{Identity: "choi", Site: "beta"}),
	}
	pairs := SettlementPairs(date, records)
	if len(pairs) != 2 || pairs[0] != NewPair("kim", "beta") || pairs[1] != NewPair("park", "gamma") {
		t.Fatalf("unexpected pairs %+v", pairs)
	}

	banners := []SettlementBanner{
		{Identity: "a", TotalCharge: dec("10")},
		{Identity: "b", TotalCharge: dec("30")},
		{Identity: "c", TotalCharge: dec("20")},
	}
	SortBanners(banners)
	if banners[0].Identity != "b" || banners[1].Identity != "c" || banners[2].Identity != "a" {
		t.Fatalf("unexpected order %+v", banners)
	}
}

func TestPointDisplay(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":       "-",
		"10":     "10만",
		"2.50":   "2.5만",
		"상품권":    "상품권",
		"10 포인트": "10 포인트",
	}
	for point, want := range tests {
		if got := PointDisplay(point); got != want {
			t.Fatalf("PointDisplay(%q) = %q, want %q", point, got, want)
		}
	}
}
