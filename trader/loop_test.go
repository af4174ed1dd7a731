package trader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sana-jeyat/Trading-Dashboard/model"
	"github.com/Sana-jeyat/Trading-Dashboard/store"
	"github.com/Sana-jeyat/Trading-Dashboard/swap"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type oracleStep struct {
	price decimal.Decimal
	err   error
}

// scriptedOracle serves a fixed price sequence and stops the loop once the
// script runs out.
type scriptedOracle struct {
	steps  []oracleStep
	i      int
	cancel context.CancelFunc
}

func (o *scriptedOracle) Price(_ context.Context) (decimal.Decimal, error) {
	if o.i >= len(o.steps) {
		o.cancel()
		return decimal.Zero, errors.New("price script exhausted")
	}
	step := o.steps[o.i]
	o.i++
	return step.price, step.err
}

type fakeSource struct {
	cfg       model.TradingConfig
	cfgErr    error
	wallet    *model.WalletCredential
	walletErr error
}

func (s *fakeSource) BotConfig() (model.TradingConfig, error) {
	return s.cfg, s.cfgErr
}

func (s *fakeSource) WalletCredential() (*model.WalletCredential, error) {
	return s.wallet, s.walletErr
}

type tradeCall struct {
	action    Action
	price     decimal.Decimal
	reference decimal.Decimal
}

type fakeSwapper struct {
	calls  []tradeCall
	sweeps int
	err    error
}

func (f *fakeSwapper) Buy(_ context.Context, _ *model.WalletCredential, _ model.TradingConfig, price, reference decimal.Decimal) (*model.TradeResult, error) {
	f.calls = append(f.calls, tradeCall{ActionBuy, price, reference})
	if f.err != nil {
		return nil, f.err
	}
	return &model.TradeResult{Direction: model.DirectionBuy, Amount: decimal.NewFromInt(1), Price: price, TxHash: "0xbuy"}, nil
}

func (f *fakeSwapper) Sell(_ context.Context, _ *model.WalletCredential, _ model.TradingConfig, price, reference decimal.Decimal) (*model.TradeResult, error) {
	f.calls = append(f.calls, tradeCall{ActionSell, price, reference})
	if f.err != nil {
		return nil, f.err
	}
	return &model.TradeResult{Direction: model.DirectionSell, Amount: decimal.NewFromInt(1), Price: price, TxHash: "0xsell"}, nil
}

func (f *fakeSwapper) CancelPending(_ context.Context, _ *model.WalletCredential, _ model.TradingConfig) (int, error) {
	f.sweeps++
	return 0, nil
}

type fakeReporter struct {
	statuses   []string
	refPrices  []decimal.Decimal
	trades     []*model.TradeResult
	metrics    []*model.TradeResult
	heartbeats int
}

func (r *fakeReporter) ReportTrade(result *model.TradeResult) error {
	r.trades = append(r.trades, result)
	return nil
}

func (r *fakeReporter) Heartbeat() error {
	r.heartbeats++
	return nil
}

func (r *fakeReporter) UpdateStatus(status string) error {
	r.statuses = append(r.statuses, status)
	return nil
}

func (r *fakeReporter) PutReferencePrice(price decimal.Decimal) error {
	r.refPrices = append(r.refPrices, price)
	return nil
}

func (r *fakeReporter) UpdateMetrics(result *model.TradeResult) error {
	r.metrics = append(r.metrics, result)
	return nil
}

type harness struct {
	source      *fakeSource
	swapper     *fakeSwapper
	reporter    *fakeReporter
	checkpoints *Checkpoints
	loop        *Loop
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	wallet, err := model.NewWalletCredential(testKeyHex)
	require.NoError(t, err)

	cfg := model.TradingConfig{}
	cfg.Normalize()

	h := &harness{
		source:      &fakeSource{cfg: cfg, wallet: wallet},
		swapper:     &fakeSwapper{},
		reporter:    &fakeReporter{},
		checkpoints: NewCheckpoints(t.TempDir()),
	}
	return h
}

// run executes the loop against the scripted prices until the script is
// exhausted.
func (h *harness) run(t *testing.T, steps []oracleStep) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oracle := &scriptedOracle{steps: steps, cancel: cancel}
	h.loop = New(h.source, oracle, h.swapper, h.reporter, store.New(), h.checkpoints)
	h.loop.SetCyclePolicy(time.Millisecond, time.Millisecond, 50*time.Millisecond)

	require.NoError(t, h.loop.Run(ctx))
}

func step(price string) oracleStep {
	return oracleStep{price: dec(price)}
}

func TestRunFailsWithoutWallet(t *testing.T) {
	h := newHarness(t)
	h.source.walletErr = errors.New("401 unauthorized")

	err := New(h.source, &scriptedOracle{cancel: func() {}}, h.swapper, h.reporter, store.New(), h.checkpoints).
		Run(context.Background())
	assert.Error(t, err)
}

func TestRunFailsWithoutConfig(t *testing.T) {
	h := newHarness(t)
	h.source.cfgErr = errors.New("dashboard unreachable")

	err := New(h.source, &scriptedOracle{cancel: func() {}}, h.swapper, h.reporter, store.New(), h.checkpoints).
		Run(context.Background())
	assert.Error(t, err)
}

func TestFirstObservationSeedsReference(t *testing.T) {
	h := newHarness(t)
	h.run(t, []oracleStep{step("100")})

	assert.Empty(t, h.swapper.calls, "seeding cycle must not trade")
	require.Len(t, h.reporter.refPrices, 1)
	assert.True(t, h.reporter.refPrices[0].Equal(dec("100")))
}

func TestBuyWhenPriceFallsBelowBand(t *testing.T) {
	h := newHarness(t)
	h.run(t, []oracleStep{step("100"), step("94")})

	require.Len(t, h.swapper.calls, 1)
	call := h.swapper.calls[0]
	assert.Equal(t, ActionBuy, call.action)
	assert.True(t, call.price.Equal(dec("94")))
	assert.True(t, call.reference.Equal(dec("100")))

	// The fill re-anchors the reference.
	require.Len(t, h.reporter.refPrices, 2)
	assert.True(t, h.reporter.refPrices[1].Equal(dec("94")))
	require.Len(t, h.reporter.trades, 1)
	require.Len(t, h.reporter.metrics, 1)
	assert.Contains(t, h.reporter.statuses, StatusActive)
}

func TestSellWhenPriceRisesAboveBand(t *testing.T) {
	h := newHarness(t)
	h.run(t, []oracleStep{step("100"), step("106")})

	require.Len(t, h.swapper.calls, 1)
	assert.Equal(t, ActionSell, h.swapper.calls[0].action)

	sellPrice, ok := h.checkpoints.LastSellPrice()
	require.True(t, ok, "sell must checkpoint its price")
	assert.True(t, sellPrice.Equal(dec("106")))
}

func TestHoldsWithinBand(t *testing.T) {
	h := newHarness(t)
	h.run(t, []oracleStep{step("100"), step("104"), step("96.5")})

	assert.Empty(t, h.swapper.calls)
}

func TestDashboardReferenceStillObservesFirstCycle(t *testing.T) {
	h := newHarness(t)
	ref := dec("100")
	h.source.cfg.ReferencePrice = &ref

	h.run(t, []oracleStep{step("94"), step("94")})

	require.Len(t, h.swapper.calls, 1, "first cycle observes even with a restored reference")
	assert.True(t, h.swapper.calls[0].reference.Equal(dec("100")))
}

func TestCooldownBlocksBackToBackTrades(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oracle := &scriptedOracle{steps: []oracleStep{step("100"), step("94"), step("88")}, cancel: cancel}
	h.loop = New(h.source, oracle, h.swapper, h.reporter, store.New(), h.checkpoints)
	h.loop.SetCyclePolicy(time.Millisecond, time.Millisecond, time.Hour)

	require.NoError(t, h.loop.Run(ctx))
	assert.Len(t, h.swapper.calls, 1, "second signal inside the cooldown must be held")
}

func TestCooldownExpiryAllowsNextTrade(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	oracle := &scriptedOracle{steps: []oracleStep{step("100"), step("94"), step("88")}, cancel: cancel}
	h.loop = New(h.source, oracle, h.swapper, h.reporter, store.New(), h.checkpoints)
	h.loop.SetCyclePolicy(time.Millisecond, time.Millisecond, time.Nanosecond)

	require.NoError(t, h.loop.Run(ctx))
	require.Len(t, h.swapper.calls, 2)
	assert.True(t, h.swapper.calls[1].reference.Equal(dec("94")), "second trade anchors on the first fill")
}

func TestOracleFailureSkipsCycleOnly(t *testing.T) {
	h := newHarness(t)
	h.run(t, []oracleStep{
		step("100"),
		{err: errors.New("feed down")},
		step("94"),
	})

	require.Len(t, h.swapper.calls, 1)
	assert.True(t, h.swapper.calls[0].reference.Equal(dec("100")), "failed cycle must not disturb the anchor")
	assert.NotContains(t, h.reporter.statuses, StatusError)
}

func TestTradeFailureSetsErrorStatusAndContinues(t *testing.T) {
	h := newHarness(t)
	h.swapper.err = errors.New("execution reverted")

	h.run(t, []oracleStep{step("100"), step("94"), step("94")})

	assert.Contains(t, h.reporter.statuses, StatusError)
	assert.Empty(t, h.reporter.trades)
	assert.GreaterOrEqual(t, h.reporter.heartbeats, 3, "loop must keep cycling after a failed trade")
}

func TestInsufficientBalanceIsSkipNotError(t *testing.T) {
	h := newHarness(t)
	h.swapper.err = swap.ErrInsufficientBalance

	h.run(t, []oracleStep{step("100"), step("94")})

	assert.NotContains(t, h.reporter.statuses, StatusError)
	assert.Empty(t, h.reporter.trades)
}

func TestMinAmountGateSkipsTrading(t *testing.T) {
	h := newHarness(t)
	h.source.cfg.MinSwapAmount = dec("1")

	h.run(t, []oracleStep{step("100"), step("94")})

	assert.Empty(t, h.swapper.calls)
}

func TestStatusLifecycle(t *testing.T) {
	h := newHarness(t)
	h.run(t, []oracleStep{step("100")})

	require.NotEmpty(t, h.reporter.statuses)
	assert.Equal(t, StatusOnline, h.reporter.statuses[0])
	assert.Equal(t, StatusOffline, h.reporter.statuses[len(h.reporter.statuses)-1])
}

func TestStartupSweepsPendingTransactions(t *testing.T) {
	h := newHarness(t)
	h.run(t, []oracleStep{step("100")})

	assert.Equal(t, 1, h.swapper.sweeps)
}
