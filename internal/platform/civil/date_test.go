package civil

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseAcceptsTimestampSuffix(t *testing.T) {
	d, err := Parse("2025-02-10T15:04:05Z")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.String() != "2025-02-10" {
		t.Fatalf("date = %s", d)
	}
	if _, err := Parse("2025-13-01"); err == nil {
		t.Fatal("expected invalid month to fail")
	}
	if _, err := Parse("  "); err == nil {
		t.Fatal("expected blank input to fail")
	}
}

func TestAddDaysCrossesBoundaries(t *testing.T) {
	tests := []struct {
		from string
		n    int
		want string
	}{
		{"2025-01-01", -1, "2024-12-31"},
		{"2024-02-28", 1, "2024-02-29"},
		{"2025-02-28", 1, "2025-03-01"},
		{"2025-03-01", -1, "2025-02-28"},
		{"2025-12-25", 10, "2026-01-04"},
	}
	for _, tt := range tests {
		if got := MustParse(tt.from).AddDays(tt.n).String(); got != tt.want {
			t.Fatalf("%s + %d = %s, want %s", tt.from, tt.n, got, tt.want)
		}
	}
}

func TestOfUsesReferenceZone(t *testing.T) {
	// 2025-01-31 16:00 UTC is 2025-02-01 01:00 in KST.
	instant := time.Date(2025, 1, 31, 16, 0, 0, 0, time.UTC)
	if got := Of(instant).String(); got != "2025-02-01" {
		t.Fatalf("Of = %s, want 2025-02-01", got)
	}
	if got := Today(func() time.Time { return instant }).String(); got != "2025-02-01" {
		t.Fatalf("Today = %s, want 2025-02-01", got)
	}
}

func TestWeekAndMonthRanges(t *testing.T) {
	d := MustParse("2025-01-01") // Wednesday
	week := ISOWeek(d)
	if week.Start.String() != "2024-12-30" || week.End.String() != "2025-01-05" {
		t.Fatalf("iso week = %s..%s", week.Start, week.End)
	}
	month := Month(MustParse("2024-02-15"))
	if month.Start.String() != "2024-02-01" || month.End.String() != "2024-02-29" {
		t.Fatalf("month = %s..%s", month.Start, month.End)
	}
	trailing := TrailingWeek(MustParse("2025-02-10"))
	if trailing.Start.String() != "2025-02-03" || trailing.End.String() != "2025-02-09" {
		t.Fatalf("trailing week = %s..%s", trailing.Start, trailing.End)
	}
	if trailing.Days() != 7 {
		t.Fatalf("trailing days = %d", trailing.Days())
	}
}

func TestCompareAndDaysUntil(t *testing.T) {
	a := MustParse("2024-12-31")
	b := MustParse("2025-01-02")
	if !a.Before(b) || b.Before(a) || a.Compare(a) != 0 {
		t.Fatal("unexpected ordering")
	}
	if a.DaysUntil(b) != 2 || b.DaysUntil(a) != -2 {
		t.Fatalf("days until = %d / %d", a.DaysUntil(b), b.DaysUntil(a))
	}
	if (Range{Start: b, End: a}).Days() != 0 {
		t.Fatal("expected inverted range to be empty")
	}
}

func TestWeekday(t *testing.T) {
	if got := MustParse("2025-02-10").Weekday(); got != time.Monday {
		t.Fatalf("weekday = %v, want Monday", got)
	}
}

func TestJSONRoundTripAndEmpty(t *testing.T) {
	var payload struct {
		Date Date `json:"date"`
	}
	if err := json.Unmarshal([]byte(`{"date":"2025-02-10"}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Date.String() != "2025-02-10" {
		t.Fatalf("date = %s", payload.Date)
	}
	if err := json.Unmarshal([]byte(`{"date":""}`), &payload); err != nil {
		t.Fatalf("unmarshal empty: %v", err)
	}
	if !payload.Date.IsZero() {
		t.Fatal("expected zero date")
	}
	out, err := json.Marshal(struct {
		Date Date `json:"date"`
	}{Date: MustParse("2025-03-01")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"date":"2025-03-01"}` {
		t.Fatalf("json = %s", out)
	}
}
