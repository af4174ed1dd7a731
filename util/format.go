package util

import (
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// TokenDecimals is the decimal count shared by the native asset, its wrapped
// form and the traded token on the target chain.
const TokenDecimals int32 = 18

func ShiftLeft(num decimal.Decimal, decimals int32) decimal.Decimal {
	return num.Shift(-decimals)
}

func ShiftRight(num decimal.Decimal, decimals int32) decimal.Decimal {
	return num.Shift(decimals)
}

func ShiftLeftStr(num string, decimals string) string {
	n, _ := decimal.NewFromString(num)
	d := cast.ToInt32(decimals)
	return n.Shift(-d).String()
}

// ToWei converts a human-unit amount to base units, truncating any precision
// below one wei.
func ToWei(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).BigInt()
}

func FromWei(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, 0).Shift(-decimals)
}

// GweiToWei converts a whole-gwei gas price to wei.
func GweiToWei(gwei int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(gwei), big.NewInt(1_000_000_000))
}
