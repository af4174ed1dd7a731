package trader

import "github.com/shopspring/decimal"

type Action int

const (
	ActionNone Action = iota
	ActionBuy
	ActionSell
)

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "buy"
	case ActionSell:
		return "sell"
	default:
		return "none"
	}
}

var one = decimal.NewFromInt(1)

// Decide places price against the volatility band around the reference
// anchor. The buy band is checked first, so when a degenerate volatility
// makes both bands overlap the buy side wins.
func Decide(price, reference, volatilityPercent decimal.Decimal) Action {
	vol := volatilityPercent.Div(decimal.NewFromInt(100))

	if price.LessThanOrEqual(reference.Mul(one.Sub(vol))) {
		return ActionBuy
	}
	if price.GreaterThanOrEqual(reference.Mul(one.Add(vol))) {
		return ActionSell
	}
	return ActionNone
}
