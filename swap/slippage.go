package swap

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Slippage tolerance widens as the live price drifts from the reference
// anchor, clamped so near-zero tolerance never strands a swap and a runaway
// drift never leaks unbounded value.
var (
	SlippageFloorPercent   = decimal.NewFromInt(3)
	SlippageCeilingPercent = decimal.NewFromInt(5)

	driftGain = decimal.NewFromInt(10)
)

// Slippage returns the tolerance in percent for the given drift between
// price and reference.
func Slippage(volatilityPercent, price, reference decimal.Decimal) decimal.Decimal {
	if !reference.IsPositive() {
		return SlippageFloorPercent
	}

	drift := price.Sub(reference).Abs().Div(reference)
	tolerance := volatilityPercent.Mul(drift).Mul(driftGain)

	if tolerance.LessThan(SlippageFloorPercent) {
		return SlippageFloorPercent
	}
	if tolerance.GreaterThan(SlippageCeilingPercent) {
		return SlippageCeilingPercent
	}
	return tolerance
}

// MinOut discounts a quoted router output by the slippage tolerance,
// truncating to whole base units.
func MinOut(quoted *big.Int, slippagePercent decimal.Decimal) *big.Int {
	factor := decimal.NewFromInt(100).Sub(slippagePercent).Div(decimal.NewFromInt(100))
	return decimal.NewFromBigInt(quoted, 0).Mul(factor).BigInt()
}
