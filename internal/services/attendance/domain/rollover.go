package domain

import (
	"strings"

	"github.com/louisbranch/siteledger/internal/platform/civil"
)

// Rollover decides whether a streak survives a month boundary.
type Rollover string

const (
	// RolloverCarry keeps counting across months, cycling within 1..30.
	RolloverCarry Rollover = "O"
	// RolloverReset stops the streak at the month boundary.
	RolloverReset Rollover = "X"
)

const (
	maxStreakWalk = 365
	carryCycle    = 30
)

// ParseRollover maps a stored value to a Rollover. Unrecognized values
// resolve to RolloverReset.
func ParseRollover(value string) Rollover {
	if strings.EqualFold(strings.TrimSpace(value), string(RolloverCarry)) {
		return RolloverCarry
	}
	return RolloverReset
}

// ConsecutiveDays counts the streak of logged days ending at anchor. A zero
// anchor means the most recent logged date. The walk is bounded to 365 days.
func ConsecutiveDays(dates []civil.Date, anchor civil.Date, rollover Rollover) int {
	if len(dates) == 0 {
		return 0
	}
	present := make(map[civil.Date]struct{}, len(dates))
	latest := dates[0]
	for _, d := range dates {
		present[d] = struct{}{}
		if d.After(latest) {
			latest = d
		}
	}
	if anchor.IsZero() {
		anchor = latest
	}

	count := 0
	for day := anchor; count < maxStreakWalk; day = day.Prev() {
		if _, ok := present[day]; !ok {
			break
		}
		if rollover != RolloverCarry && !day.SameMonth(anchor) {
			break
		}
		count++
	}
	if rollover == RolloverCarry && count > 0 {
		if folded := count % carryCycle; folded != 0 {
			return folded
		}
		return carryCycle
	}
	return count
}
