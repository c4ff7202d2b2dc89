package domain

import (
	"regexp"
	"slices"
	"strings"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/shopspring/decimal"
)

// DepositEntry is one slot's deposit on a ledger date.
type DepositEntry struct {
	Date    civil.Date
	Deposit decimal.Decimal
}

// DepositIndex lists deposits per pair in ascending date order.
type DepositIndex map[Pair][]DepositEntry

// BuildDepositIndex indexes every slot carrying a non-blank charge string.
func BuildDepositIndex(records []Record) DepositIndex {
	index := make(DepositIndex)
	for _, record := range records {
		if record.Date.IsZero() {
			continue
		}
		for _, slot := range record.Slots {
			pair := slot.Pair()
			if !pair.Valid() || strings.TrimSpace(slot.ChargeWithdraw) == "" {
				continue
			}
			index[pair] = append(index[pair], DepositEntry{
				Date:    record.Date,
				Deposit: ParseChargeWithdraw(slot.ChargeWithdraw).Deposit,
			})
		}
	}
	for pair := range index {
		slices.SortStableFunc(index[pair], func(a, b DepositEntry) int {
			return a.Date.Compare(b.Date)
		})
	}
	return index
}

// SumBetween totals deposits within r.
func SumBetween(entries []DepositEntry, r civil.Range) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range entries {
		if r.Contains(entry.Date) {
			total = total.Add(entry.Deposit)
		}
	}
	return total
}

// SettlementPairs lists the distinct pairs on records dated date, in record
// then slot order.
func SettlementPairs(date civil.Date, records []Record) []Pair {
	seen := make(map[Pair]struct{})
	var out []Pair
	for _, record := range records {
		if record.Date != date {
			continue
		}
		for _, pair := range record.Pairs() {
			if _, ok := seen[pair]; ok {
				continue
			}
			seen[pair] = struct{}{}
			out = append(out, pair)
		}
	}
	return out
}

// SettlementBanner is a settlement milestone to surface for one pair.
type SettlementBanner struct {
	Identity     string          `json:"identity"`
	Site         string          `json:"site"`
	StartDate    civil.Date      `json:"startDate"`
	TotalTarget  decimal.Decimal `json:"totalTarget"`
	TotalCharge  decimal.Decimal `json:"totalCharge"`
	PointDisplay string          `json:"pointDisplay"`
	Days         int             `json:"days"`
	RuleIndex    *int            `json:"ruleIndex,omitempty"`
}

// Pair returns the identity/site pair of the banner.
func (b SettlementBanner) Pair() Pair {
	return Pair{Identity: b.Identity, Site: b.Site}
}

var numericPoint = regexp.MustCompile(`^\d+(\.\d+)?$`)

// PointDisplay renders a settlement point: numeric values as "N만", other
// text verbatim, and "-" when empty.
func PointDisplay(point string) string {
	point = strings.TrimSpace(point)
	if point == "" {
		return "-"
	}
	if numericPoint.MatchString(point) {
		d, err := decimal.NewFromString(point)
		if err == nil {
			return d.String() + "만"
		}
	}
	return point
}

// EvaluateSettlement picks the banner for pair under cfg. entries are the
// pair's deposits from BuildDepositIndex. The paid marker is checked by the
// caller.
func EvaluateSettlement(pair Pair, cfg SettlementConfig, entries []DepositEntry) (SettlementBanner, bool) {
	if !cfg.Enabled || cfg.Days <= 0 {
		return SettlementBanner{}, false
	}
	start := cfg.StartDate
	if start.IsZero() {
		if len(entries) == 0 {
			return SettlementBanner{}, false
		}
		start = entries[0].Date
	}
	window := civil.Range{Start: start, End: start.AddDays(cfg.Days - 1)}
	totalWon := FloorWon(SumBetween(entries, window))
	totalMan := totalWon.Div(wonPerMan)

	base := SettlementBanner{
		Identity:    pair.Identity,
		Site:        pair.Site,
		StartDate:   start,
		TotalCharge: totalMan,
		Days:        cfg.Days,
	}

	if len(cfg.Rules) > 0 {
		return selectTier(base, cfg.Rules, totalWon)
	}
	if !cfg.Total.IsPositive() || totalWon.LessThan(ManToWon(cfg.Total)) {
		return SettlementBanner{}, false
	}
	base.TotalTarget = cfg.Total
	base.PointDisplay = PointDisplay(cfg.Point)
	return base, true
}

type tier struct {
	index int
	rule  SettlementRule
}

// selectTier returns the smallest pending tier, or the largest achieved tier
// when every tier is achieved. Equal targets keep configuration order.
func selectTier(base SettlementBanner, rules []SettlementRule, totalWon decimal.Decimal) (SettlementBanner, bool) {
	var achieved, pending []tier
	for i, rule := range rules {
		if !rule.Total.IsPositive() {
			continue
		}
		if totalWon.GreaterThanOrEqual(ManToWon(rule.Total)) {
			achieved = append(achieved, tier{index: i, rule: rule})
		} else {
			pending = append(pending, tier{index: i, rule: rule})
		}
	}

	var selected tier
	switch {
	case len(pending) > 0:
		slices.SortStableFunc(pending, func(a, b tier) int { return a.rule.Total.Cmp(b.rule.Total) })
		selected = pending[0]
	case len(achieved) > 0:
		slices.SortStableFunc(achieved, func(a, b tier) int { return b.rule.Total.Cmp(a.rule.Total) })
		selected = achieved[0]
	default:
		return SettlementBanner{}, false
	}

	index := selected.index
	base.TotalTarget = selected.rule.Total
	base.PointDisplay = PointDisplay(selected.rule.Point)
	base.RuleIndex = &index
	return base, true
}

// SortBanners orders banners by accumulated charge, largest first.
func SortBanners(banners []SettlementBanner) {
	slices.SortStableFunc(banners, func(a, b SettlementBanner) int {
		return b.TotalCharge.Cmp(a.TotalCharge)
	})
}
