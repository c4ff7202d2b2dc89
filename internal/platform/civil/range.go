package civil

// Range is an inclusive span of calendar days.
type Range struct {
	Start Date
	End   Date
}

// Contains reports whether d lies inside r.
func (r Range) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns the number of days in r, or 0 when r is inverted.
func (r Range) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return r.Start.DaysUntil(r.End) + 1
}

// Dates lists every day in r in ascending order.
func (r Range) Dates() []Date {
	n := r.Days()
	out := make([]Date, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.Start.AddDays(i))
	}
	return out
}

// ISOWeek returns the Monday..Sunday range containing d.
func ISOWeek(d Date) Range {
	return Range{Start: d.ISOWeekStart(), End: d.ISOWeekEnd()}
}

// Month returns the calendar month containing d.
func Month(d Date) Range {
	return Range{Start: d.MonthStart(), End: d.MonthEnd()}
}

// TrailingWeek returns the seven days ending the day before d.
func TrailingWeek(d Date) Range {
	end := d.Prev()
	return Range{Start: end.AddDays(-6), End: end}
}
