package domain

import (
	"slices"

	"github.com/louisbranch/siteledger/internal/platform/civil"
)

// RecentDatesLimit bounds Stats.RecentDates.
const RecentDatesLimit = 7

// Stats summarizes attendance for one pair.
type Stats struct {
	ConsecutiveDays    int          `json:"consecutiveDays"`
	TotalDaysThisMonth int          `json:"totalDaysThisMonth"`
	LastAttendanceDate civil.Date   `json:"lastAttendanceDate"`
	RecentDates        []civil.Date `json:"recentDates"`
}

// ComputeStats derives Stats from every logged date of a pair. The streak is
// anchored at the latest logged date; the month totals use today's month.
func ComputeStats(dates []civil.Date, today civil.Date, rollover Rollover) Stats {
	stats := Stats{RecentDates: []civil.Date{}}
	if len(dates) == 0 {
		return stats
	}
	sorted := slices.Clone(dates)
	slices.SortFunc(sorted, func(a, b civil.Date) int { return b.Compare(a) })
	sorted = slices.Compact(sorted)

	stats.LastAttendanceDate = sorted[0]
	stats.ConsecutiveDays = ConsecutiveDays(sorted, civil.Date{}, rollover)
	for _, d := range sorted {
		if !d.SameMonth(today) {
			continue
		}
		stats.TotalDaysThisMonth++
		if len(stats.RecentDates) < RecentDatesLimit {
			stats.RecentDates = append(stats.RecentDates, d)
		}
	}
	return stats
}
