package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Sana-jeyat/Trading-Dashboard/logger"
	"github.com/Sana-jeyat/Trading-Dashboard/model"
	"github.com/Sana-jeyat/Trading-Dashboard/rpc"
	"github.com/Sana-jeyat/Trading-Dashboard/store"
	"github.com/Sana-jeyat/Trading-Dashboard/util"
)

const (
	// DeadlineWindow is how far in the future each swap's on-chain deadline
	// is set.
	DeadlineWindow = 600 * time.Second

	// MaxSwapAttempts bounds submit-and-confirm retries for one swap.
	MaxSwapAttempts = 5

	RetryBackoffMin = 10 * time.Second
	RetryBackoffMax = 45 * time.Second

	// CancelGasFloorGwei is the minimum price a replacement transaction
	// bids; anything lower would not displace the stuck original.
	CancelGasFloorGwei = 200

	approveGasLimit = 200_000
	wrapGasLimit    = 150_000
	unwrapGasLimit  = 100_000
	cancelGasLimit  = 21_000
)

var (
	// GasReserve is the native balance kept unwrapped so the wallet can
	// always pay for its own transactions.
	GasReserve = decimal.NewFromFloat(0.05)

	// approvalCeiling is 2^256-1: one approval per wallet and token, then
	// the cache short-circuits every later cycle.
	approvalCeiling = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

var (
	ErrInsufficientNative  = errors.New("native balance below gas reserve")
	ErrInsufficientBalance = errors.New("insufficient token balance for swap")
	ErrSwapReverted        = errors.New("swap transaction reverted")
	ErrApproveReverted     = errors.New("approve transaction reverted")
	ErrWrapReverted        = errors.New("wrap transaction reverted")
	ErrUnwrapReverted      = errors.New("unwrap transaction reverted")
)

// Gateway is the chain surface the engine drives. *rpc.Gateway satisfies it.
type Gateway interface {
	ChainID() *big.Int
	Nonce(ctx context.Context, account common.Address, pending bool) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	SendSigned(ctx context.Context, tx *types.Transaction) (common.Hash, error)
	WaitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Engine turns trade decisions into signed, confirmed swaps. It owns the
// balance and allowance preflight, wrap/unwrap housekeeping and the
// transient-error retry budget.
type Engine struct {
	gw    Gateway
	cache *store.Cache

	maxAttempts uint
	retryMin    time.Duration
	retryMax    time.Duration
}

func NewEngine(gw Gateway, cache *store.Cache) *Engine {
	return &Engine{
		gw:          gw,
		cache:       cache,
		maxAttempts: MaxSwapAttempts,
		retryMin:    RetryBackoffMin,
		retryMax:    RetryBackoffMax,
	}
}

// SetRetryPolicy overrides the swap retry budget and backoff window.
func (e *Engine) SetRetryPolicy(attempts uint, min, max time.Duration) {
	if attempts > 0 {
		e.maxAttempts = attempts
	}
	if min > 0 {
		e.retryMin = min
	}
	if max > 0 {
		e.retryMax = max
	}
}

func (e *Engine) signAndSend(ctx context.Context, w *model.WalletCredential, inner *types.LegacyTx) (common.Hash, error) {
	signed, err := types.SignTx(types.NewTx(inner), types.LatestSignerForChainID(e.gw.ChainID()), w.Key())
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	return e.gw.SendSigned(ctx, signed)
}

func (e *Engine) sendAndWait(ctx context.Context, w *model.WalletCredential, inner *types.LegacyTx) (*types.Receipt, error) {
	hash, err := e.signAndSend(ctx, w, inner)
	if err != nil {
		return nil, err
	}
	return e.gw.WaitReceipt(ctx, hash)
}

// gasPrice falls back to the configured static price when the node refuses a
// suggestion; a trade should not die on a flaky eth_gasPrice.
func (e *Engine) gasPrice(ctx context.Context, cfg model.TradingConfig) *big.Int {
	price, err := e.gw.GasPrice(ctx)
	if err != nil {
		log.Warn().Func(logger.WithSwapCategory).Err(err).
			Int64("fallback_gwei", cfg.GasPriceGwei).
			Msg("gas price lookup failed, using configured fallback")
		return util.GweiToWei(cfg.GasPriceGwei)
	}
	return price
}

// TokenBalance reads an ERC-20 balance in wei.
func (e *Engine) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	out, err := e.gw.Call(ctx, token, data)
	if err != nil {
		return nil, err
	}
	res, err := erc20ABI.Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	return res[0].(*big.Int), nil
}

func (e *Engine) allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("pack allowance: %w", err)
	}
	out, err := e.gw.Call(ctx, token, data)
	if err != nil {
		return nil, err
	}
	res, err := erc20ABI.Unpack("allowance", out)
	if err != nil {
		return nil, fmt.Errorf("unpack allowance: %w", err)
	}
	return res[0].(*big.Int), nil
}

// EnsureAllowance guarantees the router may spend at least amountWei of token
// from the wallet. Confirmed approvals are cached per wallet and token so the
// chain round trip happens at most once per pair.
func (e *Engine) EnsureAllowance(ctx context.Context, w *model.WalletCredential, cfg model.TradingConfig, token common.Address, amountWei *big.Int) error {
	if e.cache.AllowanceConfirmed(w.Address, token) {
		return nil
	}

	spender := cfg.Router()
	current, err := e.allowance(ctx, token, w.Address, spender)
	if err != nil {
		return err
	}
	if current.Cmp(amountWei) >= 0 {
		e.cache.MarkAllowanceConfirmed(w.Address, token)
		return nil
	}

	log.Info().Func(logger.WithSwapCategory).
		Str("token", token.Hex()).
		Str("spender", spender.Hex()).
		Msg("approving router spend")

	data, err := erc20ABI.Pack("approve", spender, approvalCeiling)
	if err != nil {
		return fmt.Errorf("pack approve: %w", err)
	}
	nonce, err := e.gw.Nonce(ctx, w.Address, true)
	if err != nil {
		return err
	}

	receipt, err := e.sendAndWait(ctx, w, &types.LegacyTx{
		Nonce:    nonce,
		To:       &token,
		Gas:      approveGasLimit,
		GasPrice: e.gasPrice(ctx, cfg),
		Data:     data,
	})
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return ErrApproveReverted
	}

	e.cache.MarkAllowanceConfirmed(w.Address, token)
	return nil
}

// Wrap deposits the given human-unit amount of native currency into the
// wrapped base token.
func (e *Engine) Wrap(ctx context.Context, w *model.WalletCredential, cfg model.TradingConfig, amount decimal.Decimal) error {
	data, err := erc20ABI.Pack("deposit")
	if err != nil {
		return fmt.Errorf("pack deposit: %w", err)
	}
	nonce, err := e.gw.Nonce(ctx, w.Address, true)
	if err != nil {
		return err
	}

	base := cfg.Base()
	receipt, err := e.sendAndWait(ctx, w, &types.LegacyTx{
		Nonce:    nonce,
		To:       &base,
		Value:    util.ToWei(amount, util.TokenDecimals),
		Gas:      wrapGasLimit,
		GasPrice: e.gasPrice(ctx, cfg),
		Data:     data,
	})
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return ErrWrapReverted
	}

	log.Info().Func(logger.WithSwapCategory).
		Str("amount", amount.String()).
		Msg("wrapped native into base token")
	return nil
}

// Unwrap withdraws amountWei of the wrapped base token back to native.
func (e *Engine) Unwrap(ctx context.Context, w *model.WalletCredential, cfg model.TradingConfig, amountWei *big.Int) error {
	data, err := erc20ABI.Pack("withdraw", amountWei)
	if err != nil {
		return fmt.Errorf("pack withdraw: %w", err)
	}
	nonce, err := e.gw.Nonce(ctx, w.Address, true)
	if err != nil {
		return err
	}

	base := cfg.Base()
	receipt, err := e.sendAndWait(ctx, w, &types.LegacyTx{
		Nonce:    nonce,
		To:       &base,
		Gas:      unwrapGasLimit,
		GasPrice: e.gasPrice(ctx, cfg),
		Data:     data,
	})
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return ErrUnwrapReverted
	}
	return nil
}

// Quote asks the router how much of the last path token amountIn buys.
func (e *Engine) Quote(ctx context.Context, cfg model.TradingConfig, amountIn *big.Int, path []common.Address) (*big.Int, error) {
	data, err := routerABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("pack getAmountsOut: %w", err)
	}
	out, err := e.gw.Call(ctx, cfg.Router(), data)
	if err != nil {
		return nil, err
	}
	res, err := routerABI.Unpack("getAmountsOut", out)
	if err != nil {
		return nil, fmt.Errorf("unpack getAmountsOut: %w", err)
	}
	amounts := res[0].([]*big.Int)
	if len(amounts) == 0 {
		return nil, errors.New("router returned empty amounts")
	}
	return amounts[len(amounts)-1], nil
}

// CancelPending replaces every stuck nonce between the latest confirmed and
// the pending count with a zero-value self transfer at an aggressive gas
// price. Returns how many replacements were submitted.
func (e *Engine) CancelPending(ctx context.Context, w *model.WalletCredential, cfg model.TradingConfig) (int, error) {
	latest, err := e.gw.Nonce(ctx, w.Address, false)
	if err != nil {
		return 0, err
	}
	pending, err := e.gw.Nonce(ctx, w.Address, true)
	if err != nil {
		return 0, err
	}
	if pending <= latest {
		return 0, nil
	}

	log.Info().Func(logger.WithSwapCategory).
		Uint64("latest", latest).
		Uint64("pending", pending).
		Msg("clearing stuck pending transactions")

	gasPrice := e.gasPrice(ctx, cfg)
	if floor := util.GweiToWei(CancelGasFloorGwei); gasPrice.Cmp(floor) < 0 {
		gasPrice = floor
	}

	sent := 0
	for nonce := latest; nonce < pending; nonce++ {
		to := w.Address
		_, err := e.signAndSend(ctx, w, &types.LegacyTx{
			Nonce:    nonce,
			To:       &to,
			Value:    big.NewInt(0),
			Gas:      cancelGasLimit,
			GasPrice: gasPrice,
		})
		if err != nil {
			log.Warn().Func(logger.WithSwapCategory).Err(err).
				Uint64("nonce", nonce).
				Msg("cancel transaction rejected")
			continue
		}
		sent++
	}
	return sent, nil
}

// retryable marks permanent failures so the backoff loop stops early;
// transient chain errors pass through and get retried.
func retryable(err error) error {
	if rpc.IsTransient(err) {
		return err
	}
	return backoff.Permanent(err)
}

// execSwap submits the swap and waits for a successful receipt, retrying
// transient failures with a randomized backoff. Each attempt builds a fresh
// intent: the nonce is refetched so a replacement never collides with its
// predecessor.
func (e *Engine) execSwap(ctx context.Context, w *model.WalletCredential, cfg model.TradingConfig, direction model.Direction, amountIn, minOut *big.Int, path []common.Address) (*types.Receipt, error) {
	deadline := big.NewInt(time.Now().Add(DeadlineWindow).Unix())
	router := cfg.Router()

	operation := func() (*types.Receipt, error) {
		nonce, err := e.gw.Nonce(ctx, w.Address, true)
		if err != nil {
			return nil, retryable(err)
		}
		intent := model.TradeIntent{
			Direction: direction,
			AmountIn:  amountIn,
			MinOut:    minOut,
			Path:      path,
			Deadline:  deadline,
			Nonce:     nonce,
		}

		data, err := routerABI.Pack("swapExactTokensForTokensSupportingFeeOnTransferTokens",
			intent.AmountIn, intent.MinOut, intent.Path, w.Address, intent.Deadline)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("pack swap: %w", err))
		}

		hash, err := e.signAndSend(ctx, w, &types.LegacyTx{
			Nonce:    intent.Nonce,
			To:       &router,
			Gas:      cfg.GasLimit,
			GasPrice: e.gasPrice(ctx, cfg),
			Data:     data,
		})
		if err != nil {
			return nil, retryable(err)
		}

		log.Info().Func(logger.WithSwapCategory).
			Str("direction", string(intent.Direction)).
			Str("tx", hash.Hex()).
			Msg("swap submitted, awaiting confirmation")

		receipt, err := e.gw.WaitReceipt(ctx, hash)
		if err != nil {
			return nil, retryable(err)
		}
		if receipt.Status != types.ReceiptStatusSuccessful {
			return nil, backoff.Permanent(ErrSwapReverted)
		}
		return receipt, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.retryMin
	bo.MaxInterval = e.retryMax

	return backoff.Retry(ctx, operation,
		backoff.WithMaxTries(e.maxAttempts),
		backoff.WithBackOff(bo),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Func(logger.WithSwapCategory).Err(err).
				Dur("retry_in", next).
				Msg("transient swap failure, backing off")
		}),
	)
}

// Buy swaps the configured buy amount of the base token into the quote token.
// Preflight wraps native currency to cover a base-token shortfall, always
// leaving the gas reserve untouched.
func (e *Engine) Buy(ctx context.Context, w *model.WalletCredential, cfg model.TradingConfig, price, reference decimal.Decimal) (*model.TradeResult, error) {
	if n, err := e.CancelPending(ctx, w, cfg); err != nil {
		log.Warn().Func(logger.WithSwapCategory).Err(err).Msg("could not inspect pending transactions")
	} else if n > 0 {
		log.Info().Func(logger.WithSwapCategory).Int("cancelled", n).Msg("cleared stuck transactions before buy")
	}

	native, err := e.gw.Balance(ctx, w.Address)
	if err != nil {
		return nil, err
	}
	nativeDec := util.FromWei(native, util.TokenDecimals)
	if nativeDec.LessThan(GasReserve) {
		return nil, fmt.Errorf("%w: have %s", ErrInsufficientNative, nativeDec)
	}

	base, quote := cfg.Base(), cfg.Quote()

	baseBal, err := e.TokenBalance(ctx, base, w.Address)
	if err != nil {
		return nil, err
	}
	baseDec := util.FromWei(baseBal, util.TokenDecimals)

	if baseDec.LessThan(cfg.BuyAmount) {
		shortfall := cfg.BuyAmount.Sub(baseDec)
		wrappable := nativeDec.Sub(GasReserve)
		if shortfall.GreaterThan(wrappable) {
			shortfall = wrappable
		}
		if shortfall.IsPositive() {
			if err := e.Wrap(ctx, w, cfg, shortfall); err != nil {
				return nil, err
			}
			if baseBal, err = e.TokenBalance(ctx, base, w.Address); err != nil {
				return nil, err
			}
			baseDec = util.FromWei(baseBal, util.TokenDecimals)
		}
	}

	amount := decimal.Min(cfg.BuyAmount, baseDec)
	if !amount.IsPositive() {
		return nil, ErrInsufficientBalance
	}
	amountWei := util.ToWei(amount, util.TokenDecimals)

	if err := e.EnsureAllowance(ctx, w, cfg, base, amountWei); err != nil {
		return nil, err
	}

	oldQuote, err := e.TokenBalance(ctx, quote, w.Address)
	if err != nil {
		return nil, err
	}

	path := []common.Address{base, quote}
	quoted, err := e.Quote(ctx, cfg, amountWei, path)
	if err != nil {
		return nil, err
	}

	slippage := Slippage(cfg.VolatilityPercent, price, reference)
	minOut := MinOut(quoted, slippage)

	log.Info().Func(logger.WithSwapCategory).
		Str("amount_in", amount.String()).
		Str("slippage_pct", slippage.String()).
		Str("min_out", minOut.String()).
		Msg("executing buy")

	receipt, err := e.execSwap(ctx, w, cfg, model.DirectionBuy, amountWei, minOut, path)
	if err != nil {
		return nil, err
	}

	received := quoted
	if newQuote, err := e.TokenBalance(ctx, quote, w.Address); err != nil {
		log.Warn().Func(logger.WithSwapCategory).Err(err).
			Msg("could not measure received amount, reporting router quote")
	} else {
		received = new(big.Int).Sub(newQuote, oldQuote)
	}

	return &model.TradeResult{
		Direction: model.DirectionBuy,
		Amount:    util.FromWei(received, util.TokenDecimals),
		Price:     price,
		TxHash:    receipt.TxHash.Hex(),
	}, nil
}

// Sell swaps the configured sell amount of the quote token back into the base
// token and unwraps the proceeds to native currency.
func (e *Engine) Sell(ctx context.Context, w *model.WalletCredential, cfg model.TradingConfig, price, reference decimal.Decimal) (*model.TradeResult, error) {
	if n, err := e.CancelPending(ctx, w, cfg); err != nil {
		log.Warn().Func(logger.WithSwapCategory).Err(err).Msg("could not inspect pending transactions")
	} else if n > 0 {
		log.Info().Func(logger.WithSwapCategory).Int("cancelled", n).Msg("cleared stuck transactions before sell")
	}

	native, err := e.gw.Balance(ctx, w.Address)
	if err != nil {
		return nil, err
	}
	if util.FromWei(native, util.TokenDecimals).LessThan(GasReserve) {
		return nil, fmt.Errorf("%w: have %s", ErrInsufficientNative, util.FromWei(native, util.TokenDecimals))
	}

	base, quote := cfg.Base(), cfg.Quote()

	quoteBal, err := e.TokenBalance(ctx, quote, w.Address)
	if err != nil {
		return nil, err
	}
	quoteDec := util.FromWei(quoteBal, util.TokenDecimals)
	if quoteDec.LessThan(cfg.MinSwapAmount) {
		return nil, fmt.Errorf("%w: have %s quote", ErrInsufficientBalance, quoteDec)
	}

	amount := decimal.Min(cfg.SellAmount, quoteDec)
	amountWei := util.ToWei(amount, util.TokenDecimals)

	if err := e.EnsureAllowance(ctx, w, cfg, quote, amountWei); err != nil {
		return nil, err
	}

	oldBase, err := e.TokenBalance(ctx, base, w.Address)
	if err != nil {
		return nil, err
	}

	path := []common.Address{quote, base}
	quoted, err := e.Quote(ctx, cfg, amountWei, path)
	if err != nil {
		return nil, err
	}

	slippage := Slippage(cfg.VolatilityPercent, price, reference)
	minOut := MinOut(quoted, slippage)

	log.Info().Func(logger.WithSwapCategory).
		Str("amount_in", amount.String()).
		Str("slippage_pct", slippage.String()).
		Str("min_out", minOut.String()).
		Msg("executing sell")

	receipt, err := e.execSwap(ctx, w, cfg, model.DirectionSell, amountWei, minOut, path)
	if err != nil {
		return nil, err
	}

	gained := quoted
	if newBase, err := e.TokenBalance(ctx, base, w.Address); err != nil {
		log.Warn().Func(logger.WithSwapCategory).Err(err).
			Msg("could not measure sale proceeds, reporting router quote")
	} else {
		gained = new(big.Int).Sub(newBase, oldBase)
	}

	// Unwrap is housekeeping: a failure leaves value in the wrapped token,
	// not lost, so the trade still counts as done.
	if gained.Sign() > 0 {
		if err := e.Unwrap(ctx, w, cfg, gained); err != nil {
			log.Warn().Func(logger.WithSwapCategory).Err(err).
				Msg("unwrap failed, proceeds remain in wrapped token")
		}
	}

	return &model.TradeResult{
		Direction: model.DirectionSell,
		Amount:    util.FromWei(gained, util.TokenDecimals),
		Price:     price,
		TxHash:    receipt.TxHash.Hex(),
	}, nil
}
