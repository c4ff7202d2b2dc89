package domain

import "github.com/shopspring/decimal"

var (
	wonPerMan  = decimal.NewFromInt(10000)
	wonUnit    = decimal.NewFromInt(100)
	hundredPct = decimal.NewFromInt(100)
)

// FloorToUnit converts an amount in 만 to won, floors it to the nearest 100
// won, and converts it back to 만. Negative input yields zero.
func FloorToUnit(man decimal.Decimal) decimal.Decimal {
	return FloorWon(man).Div(wonPerMan)
}

// FloorWon converts an amount in 만 to won floored to the nearest 100 won.
func FloorWon(man decimal.Decimal) decimal.Decimal {
	if !man.IsPositive() {
		return decimal.Zero
	}
	won := man.Mul(wonPerMan)
	return won.Div(wonUnit).Floor().Mul(wonUnit)
}

// PercentAmount applies percent to net (both in 만) and floors the result to
// 100 won. Non-positive inputs yield zero.
func PercentAmount(net, percent decimal.Decimal) decimal.Decimal {
	if !net.IsPositive() || !percent.IsPositive() {
		return decimal.Zero
	}
	return FloorToUnit(net.Mul(percent).Div(hundredPct))
}

// ManToWon converts 만 to won without rounding.
func ManToWon(man decimal.Decimal) decimal.Decimal {
	return man.Mul(wonPerMan)
}
