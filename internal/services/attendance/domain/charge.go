package domain

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	leadingChargePattern  = regexp.MustCompile(`^(\d+)`)
	chargeWithdrawPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)(?:\s+(\d+(?:\.\d+)?))?`)
)

const maxCharge = 1 << 31

// ParseCharge returns the leading integer of a charge-withdraw string, or 0
// when the string does not start with a digit.
func ParseCharge(value string) int {
	match := leadingChargePattern.FindStringSubmatch(strings.TrimSpace(value))
	if match == nil {
		return 0
	}
	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || n > maxCharge {
		return maxCharge
	}
	return int(n)
}

// ChargeWithdraw is the deposit and withdrawal parsed from one slot, in 만 units.
type ChargeWithdraw struct {
	Deposit  decimal.Decimal
	Withdraw decimal.Decimal
}

// ParseChargeWithdraw reads "<deposit> [<withdraw>]" from a slot string. The
// first number found is the deposit; a second number separated by whitespace
// is the withdrawal.
func ParseChargeWithdraw(value string) ChargeWithdraw {
	value = strings.TrimSpace(value)
	if value == "" {
		return ChargeWithdraw{}
	}
	match := chargeWithdrawPattern.FindStringSubmatch(value)
	if match == nil {
		return ChargeWithdraw{}
	}
	out := ChargeWithdraw{Deposit: parseAmount(match[1])}
	if len(match) > 2 && match[2] != "" {
		out.Withdraw = parseAmount(match[2])
	}
	return out
}

func parseAmount(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}
