// Package civil models calendar days in the service's reference timezone.
//
// All attendance and eligibility arithmetic walks whole days. Arithmetic is
// performed at local noon so daylight-saving shifts in a configured zone can
// never move a result onto the neighbouring day.
package civil

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const layout = "2006-01-02"

// KST is the default reference zone.
var KST = time.FixedZone("KST", 9*60*60)

var (
	zoneMu sync.RWMutex
	zone   = KST
)

// SetZone replaces the reference zone. A nil location restores KST.
func SetZone(loc *time.Location) {
	zoneMu.Lock()
	defer zoneMu.Unlock()
	if loc == nil {
		loc = KST
	}
	zone = loc
}

// Zone returns the reference zone.
func Zone() *time.Location {
	zoneMu.RLock()
	defer zoneMu.RUnlock()
	return zone
}

// LoadZone resolves an IANA zone name, falling back to fixed +09:00 when the
// tz database is unavailable.
func LoadZone(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return KST
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return KST
	}
	return loc
}

// Date is a calendar day with no time-of-day component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New returns the normalized date for y-m-d.
func New(year int, month time.Month, day int) Date {
	return fromTime(time.Date(year, month, day, 12, 0, 0, 0, time.UTC))
}

// Parse reads YYYY-MM-DD. A trailing time component (from an ISO timestamp)
// is ignored.
func Parse(value string) (Date, error) {
	value = strings.TrimSpace(value)
	if i := strings.IndexByte(value, 'T'); i >= 0 {
		value = value[:i]
	}
	if value == "" {
		return Date{}, fmt.Errorf("date is required")
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return fromTime(t), nil
}

// MustParse is Parse for constants; it panics on malformed input.
func MustParse(value string) Date {
	d, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return d
}

// Of returns the calendar day of t in the reference zone.
func Of(t time.Time) Date {
	return fromTime(t.In(Zone()))
}

// Today returns the current day in the reference zone according to clock.
func Today(clock func() time.Time) Date {
	if clock == nil {
		clock = time.Now
	}
	return Of(clock())
}

func fromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) noon() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// YearMonth formats d as YYYY-MM.
func (d Date) YearMonth() string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return fromTime(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC))
}

// Prev returns the preceding calendar day.
func (d Date) Prev() Date {
	return d.AddDays(-1)
}

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday {
	return d.noon().Weekday()
}

// Compare returns -1, 0 or 1 as d is before, equal to or after other.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

// DaysUntil returns the number of days from d to other (negative when other
// is earlier).
func (d Date) DaysUntil(other Date) int {
	return int(other.noon().Sub(d.noon()).Hours() / 24)
}

// SameMonth reports whether d and other share year and month.
func (d Date) SameMonth(other Date) bool {
	return d.Year == other.Year && d.Month == other.Month
}

// MonthStart returns the first day of d's month.
func (d Date) MonthStart() Date {
	return Date{Year: d.Year, Month: d.Month, Day: 1}
}

// MonthEnd returns the last day of d's month.
func (d Date) MonthEnd() Date {
	return New(d.Year, d.Month+1, 0)
}

// ISOWeekStart returns the Monday of d's ISO week.
func (d Date) ISOWeekStart() Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// ISOWeekEnd returns the Sunday of d's ISO week.
func (d Date) ISOWeekEnd() Date {
	return d.ISOWeekStart().AddDays(6)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields the
// zero date.
func (d *Date) UnmarshalText(data []byte) error {
	if strings.TrimSpace(string(data)) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
