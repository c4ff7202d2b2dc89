package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/shopspring/decimal"
)

// SiteConfigVersion is the current schema version written by Normalize.
const SiteConfigVersion = 2

// AttendanceType selects how attendance is recorded for a site.
type AttendanceType string

const (
	// AttendanceAuto derives attendance from ledger charges.
	AttendanceAuto AttendanceType = "auto"
	// AttendanceManual leaves the log to explicit operator toggles.
	AttendanceManual AttendanceType = "manual"
)

// ParseAttendanceType accepts the canonical values and the Korean labels
// 자동 and 수동. Anything else is auto.
func ParseAttendanceType(value string) AttendanceType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(AttendanceManual), "수동":
		return AttendanceManual
	default:
		return AttendanceAuto
	}
}

// SameDayLabel is the payback day label for same-day payback.
const SameDayLabel = "당일"

// WeekdayLabels maps time.Weekday to its payback day label.
var WeekdayLabels = [7]string{"일", "월", "화", "수", "목", "금", "토"}

// WeekdayLabel returns the payback label for d's weekday.
func WeekdayLabel(d civil.Date) string {
	return WeekdayLabels[d.Weekday()]
}

func isPaybackDayLabel(label string) bool {
	return label == SameDayLabel || slices.Contains(WeekdayLabels[:], label)
}

// PaybackConfig describes recurring payback for a site.
type PaybackConfig struct {
	Type           string          `json:"type"`
	Days           []string        `json:"days"`
	Percent        decimal.Decimal `json:"percent"`
	SameDayPercent decimal.Decimal `json:"sameDayPercent"`
}

// SettlementRule is one tier of a tiered settlement.
type SettlementRule struct {
	Total decimal.Decimal `json:"total"`
	Point string          `json:"point"`
}

// SettlementConfig describes the milestone bonus for a site.
type SettlementConfig struct {
	Enabled   bool             `json:"enabled"`
	Days      int              `json:"days"`
	StartDate civil.Date       `json:"startDate"`
	Rules     []SettlementRule `json:"rules"`
	Total     decimal.Decimal  `json:"total"`
	Point     string           `json:"point"`
}

// SiteConfig is the shared per-site, per-office configuration.
type SiteConfig struct {
	Version        int              `json:"version"`
	AttendanceType AttendanceType   `json:"attendanceType"`
	Rollover       Rollover         `json:"rollover"`
	Payback        PaybackConfig    `json:"payback"`
	Settlement     SettlementConfig `json:"settlement"`
}

// DefaultSiteConfig is the configuration used when a site has no row.
func DefaultSiteConfig() SiteConfig {
	return SiteConfig{}.Normalize()
}

// Normalize applies defaults and drops invalid values. Storage writes pass
// configs through Normalize once so readers never re-derive defaults.
func (c SiteConfig) Normalize() SiteConfig {
	out := c
	out.Version = SiteConfigVersion
	out.AttendanceType = ParseAttendanceType(string(c.AttendanceType))
	out.Rollover = ParseRollover(string(c.Rollover))

	out.Payback.Type = strings.TrimSpace(c.Payback.Type)
	if out.Payback.Type == "" {
		out.Payback.Type = "수동"
	}
	out.Payback.Days = make([]string, 0, len(c.Payback.Days))
	for _, raw := range c.Payback.Days {
		label := strings.TrimSpace(raw)
		if isPaybackDayLabel(label) && !slices.Contains(out.Payback.Days, label) {
			out.Payback.Days = append(out.Payback.Days, label)
		}
	}
	out.Payback.Percent = nonNegative(c.Payback.Percent)
	out.Payback.SameDayPercent = nonNegative(c.Payback.SameDayPercent)

	if out.Settlement.Days < 0 {
		out.Settlement.Days = 0
	}
	out.Settlement.Point = strings.TrimSpace(c.Settlement.Point)
	out.Settlement.Total = nonNegative(c.Settlement.Total)
	out.Settlement.Rules = make([]SettlementRule, 0, len(c.Settlement.Rules))
	for _, rule := range c.Settlement.Rules {
		if !rule.Total.IsPositive() {
			continue
		}
		out.Settlement.Rules = append(out.Settlement.Rules, SettlementRule{
			Total: rule.Total,
			Point: strings.TrimSpace(rule.Point),
		})
	}
	return out
}

// IsAuto reports whether attendance for the site is derived from the ledger.
func (c SiteConfig) IsAuto() bool {
	return c.AttendanceType != AttendanceManual
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// IdentityOverlay is per-identity state layered over a SiteConfig.
type IdentityOverlay struct {
	PaybackCleared   map[string]bool `json:"paybackCleared"`
	SettlementPaid   bool            `json:"settlementPaid"`
	SettlementPaidAt time.Time       `json:"settlementPaidAt,omitzero"`
}

// PaybackClearedFor reports whether the payback week starting at weekStart
// was marked cleared.
func (o IdentityOverlay) PaybackClearedFor(weekStart civil.Date) bool {
	return o.PaybackCleared[weekStart.String()]
}

// SiteSettings is a resolved site configuration together with the overlay
// for one identity.
type SiteSettings struct {
	SiteName string          `json:"siteName"`
	OfficeID int64           `json:"officeId"`
	Config   SiteConfig      `json:"config"`
	Overlay  IdentityOverlay `json:"overlay"`
}
