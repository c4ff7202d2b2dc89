package domain

import (
	"fmt"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/shopspring/decimal"
)

// PaybackStat aggregates ledger activity for one pair around a summary date.
type PaybackStat struct {
	Pair           Pair
	WeeklyDeposit  decimal.Decimal
	WeeklyWithdraw decimal.Decimal
	TodayDeposit   decimal.Decimal
	TodayWithdraw  decimal.Decimal
	// HasTodayComplete is set when at least one same-day record is complete:
	// not a recharge, a positive deposit and a non-zero record total.
	HasTodayComplete bool
}

// WeeklyNet is deposits minus withdrawals over the trailing week.
func (s PaybackStat) WeeklyNet() decimal.Decimal {
	return s.WeeklyDeposit.Sub(s.WeeklyWithdraw)
}

// TodayNet is deposits minus withdrawals over complete same-day records.
func (s PaybackStat) TodayNet() decimal.Decimal {
	return s.TodayDeposit.Sub(s.TodayWithdraw)
}

func (s PaybackStat) hasWeeklyData() bool {
	return s.WeeklyDeposit.IsPositive() || s.WeeklyWithdraw.IsPositive()
}

// AggregatePayback folds the records in the trailing week of date and on date
// itself into per-pair stats, ordered by first appearance.
func AggregatePayback(date civil.Date, records []Record) []PaybackStat {
	week := civil.TrailingWeek(date)
	index := make(map[Pair]int)
	var stats []PaybackStat
	statFor := func(pair Pair) *PaybackStat {
		i, ok := index[pair]
		if !ok {
			i = len(stats)
			index[pair] = i
			stats = append(stats, PaybackStat{Pair: pair})
		}
		return &stats[i]
	}

	for _, record := range records {
		if !week.Contains(record.Date) {
			continue
		}
		for _, slot := range record.Slots {
			pair := slot.Pair()
			if !pair.Valid() {
				continue
			}
			cw := ParseChargeWithdraw(slot.ChargeWithdraw)
			stat := statFor(pair)
			stat.WeeklyDeposit = stat.WeeklyDeposit.Add(cw.Deposit)
			stat.WeeklyWithdraw = stat.WeeklyWithdraw.Add(cw.Withdraw)
		}
	}
	for _, record := range records {
		if record.Date != date {
			continue
		}
		for _, slot := range record.Slots {
			pair := slot.Pair()
			if !pair.Valid() {
				continue
			}
			cw := ParseChargeWithdraw(slot.ChargeWithdraw)
			if slot.Recharge || !cw.Deposit.IsPositive() || !record.TotalAmount.IsPositive() {
				continue
			}
			stat := statFor(pair)
			stat.HasTodayComplete = true
			stat.TodayDeposit = stat.TodayDeposit.Add(cw.Deposit)
			stat.TodayWithdraw = stat.TodayWithdraw.Add(cw.Withdraw)
		}
	}
	return stats
}

// PaybackEntry is one pair's payback eligibility on a summary date.
type PaybackEntry struct {
	Identity       string                     `json:"identity"`
	Site           string                     `json:"site"`
	AttendanceType AttendanceType             `json:"attendanceType"`
	PaybackType    string                     `json:"paybackType"`
	Amounts        map[string]decimal.Decimal `json:"paybackAmounts"`
	WeeklyNet      decimal.Decimal            `json:"weeklyNet"`
	TodayNet       decimal.Decimal            `json:"todayNet"`
	TodayDeposit   decimal.Decimal            `json:"todayDeposit"`
	TodayWithdraw  decimal.Decimal            `json:"todayWithdraw"`
	Percent        decimal.Decimal            `json:"percent"`
	SameDayPercent decimal.Decimal            `json:"sameDayPercent"`
	WeekStartDate  civil.Date                 `json:"weekStartDate"`
	Cleared        bool                       `json:"cleared"`
}

// Pair returns the identity/site pair of the entry.
func (e PaybackEntry) Pair() Pair {
	return Pair{Identity: e.Identity, Site: e.Site}
}

// SameDayPaybackKey is the amount key used for same-day payback on date.
func SameDayPaybackKey(date civil.Date) string {
	return fmt.Sprintf("%s(%02d-%02d) 페이백", SameDayLabel, int(date.Month), date.Day)
}

// EvaluatePayback decides the payback entry for one aggregated pair. status is
// the site account's status history. The second result is false when the
// pair earns nothing on date.
func EvaluatePayback(stat PaybackStat, date civil.Date, settings SiteSettings, status string) (PaybackEntry, bool) {
	if !stat.hasWeeklyData() && !stat.HasTodayComplete {
		return PaybackEntry{}, false
	}
	cfg := settings.Config.Payback
	if len(cfg.Days) == 0 || (cfg.Percent.IsZero() && cfg.SameDayPercent.IsZero()) {
		return PaybackEntry{}, false
	}
	if stat.WeeklyDeposit.IsZero() && stat.TodayDeposit.IsZero() {
		return PaybackEntry{}, false
	}
	weeklyNet := stat.WeeklyNet()
	todayNet := stat.TodayNet()
	if !weeklyNet.IsPositive() && !todayNet.IsPositive() {
		return PaybackEntry{}, false
	}

	approved := IsApprovedStatus(status)
	today := WeekdayLabel(date)
	amounts := make(map[string]decimal.Decimal)
	var sameDayKey string
	var sameDayAmount decimal.Decimal
	for _, label := range cfg.Days {
		if label == SameDayLabel {
			if !stat.HasTodayComplete {
				continue
			}
			if amount := PercentAmount(todayNet, cfg.SameDayPercent); amount.IsPositive() {
				sameDayKey = SameDayPaybackKey(date)
				sameDayAmount = amount
			}
			continue
		}
		if label != today || !approved {
			continue
		}
		if amount := PercentAmount(weeklyNet, cfg.Percent); amount.IsPositive() {
			amounts[label] = amount
		}
	}
	if sameDayKey != "" {
		amounts[sameDayKey] = sameDayAmount
	}
	if len(amounts) == 0 {
		return PaybackEntry{}, false
	}

	weekStart := civil.TrailingWeek(date).Start
	return PaybackEntry{
		Identity:       stat.Pair.Identity,
		Site:           stat.Pair.Site,
		AttendanceType: settings.Config.AttendanceType,
		PaybackType:    cfg.Type,
		Amounts:        amounts,
		WeeklyNet:      weeklyNet,
		TodayNet:       todayNet,
		TodayDeposit:   stat.TodayDeposit,
		TodayWithdraw:  stat.TodayWithdraw,
		Percent:        cfg.Percent,
		SameDayPercent: cfg.SameDayPercent,
		WeekStartDate:  weekStart,
		Cleared:        settings.Overlay.PaybackClearedFor(weekStart),
	}, true
}
