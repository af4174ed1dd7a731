package trader

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Sana-jeyat/Trading-Dashboard/logger"
	"github.com/Sana-jeyat/Trading-Dashboard/model"
	"github.com/Sana-jeyat/Trading-Dashboard/store"
	"github.com/Sana-jeyat/Trading-Dashboard/swap"
)

const (
	// CooldownWindow is the minimum gap between two settled trades of one
	// wallet.
	CooldownWindow = 300 * time.Second

	// Cycle sleep is randomized inside this window so multiple bots against
	// the same provider do not fall into lockstep.
	CycleSleepMin = 30 * time.Second
	CycleSleepMax = 50 * time.Second
)

const (
	StatusOnline  = "online"
	StatusActive  = "active"
	StatusError   = "error"
	StatusOffline = "offline"
)

// ConfigSource serves the per-cycle trading configuration and the wallet
// credential from the dashboard.
type ConfigSource interface {
	BotConfig() (model.TradingConfig, error)
	WalletCredential() (*model.WalletCredential, error)
}

type Oracle interface {
	Price(ctx context.Context) (decimal.Decimal, error)
}

// Swapper executes decided trades. *swap.Engine satisfies it.
type Swapper interface {
	Buy(ctx context.Context, w *model.WalletCredential, cfg model.TradingConfig, price, reference decimal.Decimal) (*model.TradeResult, error)
	Sell(ctx context.Context, w *model.WalletCredential, cfg model.TradingConfig, price, reference decimal.Decimal) (*model.TradeResult, error)
	CancelPending(ctx context.Context, w *model.WalletCredential, cfg model.TradingConfig) (int, error)
}

// Reporter pushes bot state back to the dashboard. Every call is best
// effort: the loop logs failures and keeps trading.
type Reporter interface {
	ReportTrade(result *model.TradeResult) error
	Heartbeat() error
	UpdateStatus(status string) error
	PutReferencePrice(price decimal.Decimal) error
	UpdateMetrics(result *model.TradeResult) error
}

// Loop runs the observe-decide-execute cycle. It owns the reference price
// anchor, the first-cycle observation rule and the per-wallet cooldown.
type Loop struct {
	source      ConfigSource
	oracle      Oracle
	swapper     Swapper
	reporter    Reporter
	cache       *store.Cache
	checkpoints *Checkpoints

	sleepMin time.Duration
	sleepMax time.Duration
	cooldown time.Duration
	rng      *rand.Rand

	cfg        model.TradingConfig
	reference  decimal.Decimal
	refSet     bool
	firstCycle bool
}

func New(source ConfigSource, oracle Oracle, swapper Swapper, reporter Reporter, cache *store.Cache, checkpoints *Checkpoints) *Loop {
	return &Loop{
		source:      source,
		oracle:      oracle,
		swapper:     swapper,
		reporter:    reporter,
		cache:       cache,
		checkpoints: checkpoints,
		sleepMin:    CycleSleepMin,
		sleepMax:    CycleSleepMax,
		cooldown:    CooldownWindow,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		firstCycle:  true,
	}
}

// SetCyclePolicy overrides the sleep window and cooldown. Values at or below
// zero keep the current settings.
func (l *Loop) SetCyclePolicy(sleepMin, sleepMax, cooldown time.Duration) {
	if sleepMin > 0 {
		l.sleepMin = sleepMin
	}
	if sleepMax >= l.sleepMin {
		l.sleepMax = sleepMax
	} else {
		l.sleepMax = l.sleepMin
	}
	if cooldown > 0 {
		l.cooldown = cooldown
	}
}

func reportErr(op string, err error) {
	if err != nil {
		log.Warn().Func(logger.WithCategory(logger.CategoryReport)).Err(err).
			Str("op", op).
			Msg("dashboard report failed")
	}
}

// Run blocks until ctx is cancelled. Startup failures (no wallet, no config)
// are returned as errors; everything after startup is survived and retried
// on the next cycle.
func (l *Loop) Run(ctx context.Context) error {
	wallet, err := l.source.WalletCredential()
	if err != nil {
		return fmt.Errorf("wallet credential: %w", err)
	}
	cfg, err := l.source.BotConfig()
	if err != nil {
		return fmt.Errorf("bot config: %w", err)
	}
	l.cfg = cfg

	reportErr("status", l.reporter.UpdateStatus(StatusOnline))
	defer func() {
		reportErr("status", l.reporter.UpdateStatus(StatusOffline))
	}()

	log.Info().Func(logger.WithCategory(logger.CategoryTrade)).
		Str("wallet", wallet.String()).
		Msg("trading loop started")

	// Sweep nonces left behind by a previous run before the first cycle.
	if n, err := l.swapper.CancelPending(ctx, wallet, l.cfg); err != nil {
		log.Warn().Func(logger.WithCategory(logger.CategoryTrade)).Err(err).
			Msg("startup pending sweep failed")
	} else if n > 0 {
		log.Info().Func(logger.WithCategory(logger.CategoryTrade)).
			Int("cancelled", n).
			Msg("cleared stuck transactions from previous run")
	}

	if cfg.ReferencePrice != nil && cfg.ReferencePrice.IsPositive() {
		l.reference = *cfg.ReferencePrice
		l.refSet = true
		log.Info().Func(logger.WithCategory(logger.CategoryTrade)).
			Str("reference", l.reference.String()).
			Msg("reference price restored from dashboard")
	}
	if last, ok := l.checkpoints.LastPrice(); ok {
		log.Debug().Func(logger.WithCategory(logger.CategoryTrade)).
			Str("last_price", last.String()).
			Msg("previous session price checkpoint found")
	}

	for {
		l.cycle(ctx, wallet)

		select {
		case <-ctx.Done():
			log.Info().Func(logger.WithCategory(logger.CategoryTrade)).
				Msg("trading loop stopping")
			return nil
		case <-time.After(l.cycleSleep()):
		}
	}
}

func (l *Loop) cycleSleep() time.Duration {
	if l.sleepMax <= l.sleepMin {
		return l.sleepMin
	}
	return l.sleepMin + time.Duration(l.rng.Int63n(int64(l.sleepMax-l.sleepMin)+1))
}

func (l *Loop) cycle(ctx context.Context, wallet *model.WalletCredential) {
	reportErr("heartbeat", l.reporter.Heartbeat())

	if cfg, err := l.source.BotConfig(); err != nil {
		log.Warn().Func(logger.WithCategory(logger.CategoryTrade)).Err(err).
			Msg("config refresh failed, keeping previous")
	} else {
		l.cfg = cfg
	}

	price, err := l.oracle.Price(ctx)
	if err != nil {
		log.Warn().Func(logger.WithCategory(logger.CategoryPrice)).Err(err).
			Msg("price fetch failed, skipping cycle")
		return
	}
	l.checkpoints.WriteLastPrice(price)

	if !l.refSet {
		l.reference = price
		l.refSet = true
		l.firstCycle = false
		reportErr("reference_price", l.reporter.PutReferencePrice(price))
		log.Info().Func(logger.WithCategory(logger.CategoryTrade)).
			Str("reference", price.String()).
			Msg("reference price seeded from first observation")
		return
	}

	if l.firstCycle {
		l.firstCycle = false
		log.Debug().Func(logger.WithCategory(logger.CategoryTrade)).
			Msg("first cycle observes only")
		return
	}

	if !l.cfg.AmountsValid() {
		log.Warn().Func(logger.WithCategory(logger.CategoryTrade)).
			Str("min_swap_amount", l.cfg.MinSwapAmount.String()).
			Msg("minimum swap amount exceeds trade amounts, skipping cycle")
		return
	}

	action := Decide(price, l.reference, l.cfg.VolatilityPercent)
	if action == ActionNone {
		log.Debug().Func(logger.WithCategory(logger.CategoryTrade)).
			Str("price", price.String()).
			Str("reference", l.reference.String()).
			Msg("price within band")
		return
	}

	if at, ok := l.cache.LastTradeAt(wallet.Address); ok && time.Since(at) < l.cooldown {
		log.Debug().Func(logger.WithCategory(logger.CategoryTrade)).
			Str("action", action.String()).
			Time("last_trade", at).
			Msg("cooldown active, holding")
		return
	}

	l.execute(ctx, wallet, action, price)
}

func (l *Loop) execute(ctx context.Context, wallet *model.WalletCredential, action Action, price decimal.Decimal) {
	log.Info().Func(logger.WithCategory(logger.CategoryTrade)).
		Str("action", action.String()).
		Str("price", price.String()).
		Str("reference", l.reference.String()).
		Msg("executing trade")

	var (
		result *model.TradeResult
		err    error
	)
	switch action {
	case ActionBuy:
		result, err = l.swapper.Buy(ctx, wallet, l.cfg, price, l.reference)
	case ActionSell:
		result, err = l.swapper.Sell(ctx, wallet, l.cfg, price, l.reference)
	default:
		return
	}

	if err != nil {
		if errors.Is(err, swap.ErrInsufficientBalance) || errors.Is(err, swap.ErrInsufficientNative) {
			log.Warn().Func(logger.WithCategory(logger.CategoryTrade)).Err(err).
				Str("action", action.String()).
				Msg("trade skipped")
			return
		}
		log.Error().Func(logger.WithCategory(logger.CategoryTrade)).Err(err).
			Str("action", action.String()).
			Msg("trade failed")
		reportErr("status", l.reporter.UpdateStatus(StatusError))
		return
	}

	// A settled trade re-anchors the reference at the fill price.
	l.reference = price
	l.cache.MarkTrade(wallet.Address, time.Now())
	if result.Direction == model.DirectionSell {
		l.checkpoints.WriteLastSellPrice(price)
	}

	reportErr("reference_price", l.reporter.PutReferencePrice(price))
	reportErr("transaction", l.reporter.ReportTrade(result))
	reportErr("metrics", l.reporter.UpdateMetrics(result))
	reportErr("status", l.reporter.UpdateStatus(StatusActive))

	log.Info().Func(logger.WithCategory(logger.CategoryTrade)).
		Str("action", action.String()).
		Str("amount", result.Amount.String()).
		Str("tx", result.TxHash).
		Msg("trade settled")
}
