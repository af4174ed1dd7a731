package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TradingConfig is the per-cycle trading configuration served by the
// dashboard. It is treated as immutable for the duration of one cycle and
// refetched on the next.
type TradingConfig struct {
	VolatilityPercent decimal.Decimal `json:"volatility_percent"`
	BuyAmount         decimal.Decimal `json:"buy_amount"`
	SellAmount        decimal.Decimal `json:"sell_amount"`
	MinSwapAmount     decimal.Decimal `json:"min_swap_amount"`
	SlippagePercent   decimal.Decimal `json:"slippage_tolerance_percent"`
	GasLimit          uint64          `json:"gas_limit"`
	GasPriceGwei      int64           `json:"gas_price_gwei"`

	BaseTokenAddress  string `json:"base_token_address"`
	QuoteTokenAddress string `json:"quote_token_address"`
	RouterAddress     string `json:"router_address"`
	RpcEndpoint       string `json:"rpc_endpoint"`

	// ReferencePrice is set when the dashboard already holds an anchor for
	// this bot; nil means the bot seeds it from the first fetched price.
	ReferencePrice *decimal.Decimal `json:"reference_price"`
}

// Defaults applied by Normalize. Documented here once instead of defaulted
// ad hoc at every use site.
var (
	DefaultVolatilityPercent = decimal.NewFromInt(5)
	DefaultBuyAmount         = decimal.RequireFromString("0.05")
	DefaultSellAmount        = decimal.RequireFromString("0.05")
	DefaultMinSwapAmount     = decimal.RequireFromString("0.01")
	DefaultSlippagePercent   = decimal.NewFromInt(3)
)

const (
	DefaultGasLimit     uint64 = 500_000
	DefaultGasPriceGwei int64  = 40
)

// Normalize fills zero-valued tunables with their documented defaults.
// It is called once per fetch, right after decoding.
func (c *TradingConfig) Normalize() {
	if c.VolatilityPercent.IsZero() {
		c.VolatilityPercent = DefaultVolatilityPercent
	}
	if c.BuyAmount.IsZero() {
		c.BuyAmount = DefaultBuyAmount
	}
	if c.SellAmount.IsZero() {
		c.SellAmount = DefaultSellAmount
	}
	if c.MinSwapAmount.IsZero() {
		c.MinSwapAmount = DefaultMinSwapAmount
	}
	if c.SlippagePercent.IsZero() {
		c.SlippagePercent = DefaultSlippagePercent
	}
	if c.GasLimit == 0 {
		c.GasLimit = DefaultGasLimit
	}
	if c.GasPriceGwei == 0 {
		c.GasPriceGwei = DefaultGasPriceGwei
	}
}

// AmountsValid reports the min-amount invariant. A violation means the cycle
// skips trading; it is never an error.
func (c TradingConfig) AmountsValid() bool {
	return c.MinSwapAmount.LessThanOrEqual(c.BuyAmount) &&
		c.MinSwapAmount.LessThanOrEqual(c.SellAmount)
}

func (c TradingConfig) Base() common.Address {
	return common.HexToAddress(c.BaseTokenAddress)
}

func (c TradingConfig) Quote() common.Address {
	return common.HexToAddress(c.QuoteTokenAddress)
}

func (c TradingConfig) Router() common.Address {
	return common.HexToAddress(c.RouterAddress)
}
