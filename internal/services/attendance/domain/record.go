package domain

import (
	"strings"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	"github.com/shopspring/decimal"
)

// SlotCount is the number of identity/site slots on one ledger record.
const SlotCount = 4

// Slot is one identity/site column group of a ledger record.
type Slot struct {
	Identity       string `json:"identity"`
	Site           string `json:"site"`
	ChargeWithdraw string `json:"chargeWithdraw"`

	// Recharge marks a top-up that does not count as a complete same-day record.
	Recharge bool `json:"recharge,omitempty"`

	// Attendance is the operator's manual attendance override checkbox. It is
	// carried for display; auto attendance derives presence from the charge.
	Attendance bool `json:"attendance,omitempty"`
}

// Pair returns the identity/site pair of the slot as stored. Records are
// normalized once when they enter the service; see Record.Normalized.
func (s Slot) Pair() Pair {
	return Pair{Identity: s.Identity, Site: s.Site}
}

// Charge returns the leading integer charge of the slot.
func (s Slot) Charge() int {
	return ParseCharge(s.ChargeWithdraw)
}

// Record is one ledger row: a calendar date, four slots, a record-level
// total and free-text notes.
type Record struct {
	ID          int64           `json:"id,omitempty"`
	AccountID   int64           `json:"accountId,omitempty"`
	Date        civil.Date      `json:"date"`
	Slots       [SlotCount]Slot `json:"slots"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Notes       string          `json:"notes,omitempty"`
}

// Normalized returns a copy with normalized slot names and trimmed charge text.
func (r Record) Normalized() Record {
	out := r
	for i := range out.Slots {
		out.Slots[i].Identity = NormalizeName(out.Slots[i].Identity)
		out.Slots[i].Site = NormalizeName(out.Slots[i].Site)
		out.Slots[i].ChargeWithdraw = strings.TrimSpace(out.Slots[i].ChargeWithdraw)
	}
	return out
}

// Pairs lists the distinct valid pairs on the record in slot order.
func (r Record) Pairs() []Pair {
	seen := make(map[Pair]struct{}, SlotCount)
	out := make([]Pair, 0, SlotCount)
	for _, slot := range r.Slots {
		pair := slot.Pair()
		if !pair.Valid() {
			continue
		}
		if _, ok := seen[pair]; ok {
			continue
		}
		seen[pair] = struct{}{}
		out = append(out, pair)
	}
	return out
}
