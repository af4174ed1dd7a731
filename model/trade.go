package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// TradeIntent is the fully-resolved input of one swap attempt. It lives for
// a single submission and is discarded once a receipt (or terminal failure)
// is in hand.
type TradeIntent struct {
	Direction Direction
	AmountIn  *big.Int
	MinOut    *big.Int
	Path      []common.Address
	Deadline  *big.Int
	Nonce     uint64
}

// TradeResult is what a settled trade reports to the dashboard.
type TradeResult struct {
	Direction Direction
	Amount    decimal.Decimal
	Price     decimal.Decimal
	Profit    *decimal.Decimal
	TxHash    string
}
