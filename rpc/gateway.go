package rpc

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Sana-jeyat/Trading-Dashboard/logger"
)

const (
	// PaceInterval is the minimum gap between any two chain calls issued by
	// one process, shared across wallets. Public providers throttle well
	// below what a naive loop would send.
	PaceInterval = 250 * time.Millisecond

	// GasRefreshInterval bounds how often the suggested gas price is
	// refetched; within the window the cached value is served.
	GasRefreshInterval = 30 * time.Second

	ReceiptPollInterval = 5 * time.Second
	ReceiptPollTimeout  = 180 * time.Second
)

// Suggested gas price is inflated by 6/5 (×1.2) to outbid the network
// baseline.
var (
	gasInflateNum = big.NewInt(6)
	gasInflateDen = big.NewInt(5)
)

var ErrReceiptTimeout = errors.New("transaction receipt not found before timeout")

// nodeClient is the slice of *ethclient.Client the gateway needs. Narrowed
// so tests can stand in a fake node.
type nodeClient interface {
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Gateway is the single chokepoint for chain I/O: it paces every call
// through one shared limiter, caches the gas price and classifies failures
// into transient and permanent.
type Gateway struct {
	node    nodeClient
	chainID *big.Int
	limiter *rate.Limiter

	gasMu      sync.Mutex
	gasPrice   *big.Int
	gasFetched time.Time
	gasRefresh time.Duration

	receiptInterval time.Duration
	receiptTimeout  time.Duration
}

// Dial connects to the node and resolves the chain ID. A failure here is a
// fatal startup precondition for the caller.
func Dial(ctx context.Context, endpoint string) (*Gateway, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, Classify("dial", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, Classify("chain_id", err)
	}

	log.Info().Func(logger.WithCategory(logger.CategoryChain)).
		Str("endpoint", endpoint).
		Str("chain_id", chainID.String()).
		Msg("connected to chain rpc")

	return NewGateway(client, chainID), nil
}

func NewGateway(node nodeClient, chainID *big.Int) *Gateway {
	return &Gateway{
		node:            node,
		chainID:         chainID,
		limiter:         rate.NewLimiter(rate.Every(PaceInterval), 1),
		gasRefresh:      GasRefreshInterval,
		receiptInterval: ReceiptPollInterval,
		receiptTimeout:  ReceiptPollTimeout,
	}
}

// SetReceiptPolicy overrides the receipt polling cadence. Intervals at or
// below zero keep the current values.
func (g *Gateway) SetReceiptPolicy(interval, timeout time.Duration) {
	if interval > 0 {
		g.receiptInterval = interval
	}
	if timeout > 0 {
		g.receiptTimeout = timeout
	}
}

// SetPaceInterval overrides the global throttle interval.
func (g *Gateway) SetPaceInterval(d time.Duration) {
	if d > 0 {
		g.limiter.SetLimit(rate.Every(d))
	}
}

func (g *Gateway) ChainID() *big.Int {
	return g.chainID
}

func (g *Gateway) pace(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

// Nonce returns the account nonce; pending=true includes the wallet's own
// in-flight transactions.
func (g *Gateway) Nonce(ctx context.Context, account common.Address, pending bool) (uint64, error) {
	if err := g.pace(ctx); err != nil {
		return 0, Classify("nonce", err)
	}

	var (
		nonce uint64
		err   error
	)
	if pending {
		nonce, err = g.node.PendingNonceAt(ctx, account)
	} else {
		nonce, err = g.node.NonceAt(ctx, account, nil)
	}
	if err != nil {
		return 0, Classify("nonce", err)
	}
	return nonce, nil
}

// GasPrice returns the suggested gas price inflated by the fixed multiplier,
// served from cache within the refresh window.
func (g *Gateway) GasPrice(ctx context.Context) (*big.Int, error) {
	g.gasMu.Lock()
	defer g.gasMu.Unlock()

	if g.gasPrice != nil && time.Since(g.gasFetched) < g.gasRefresh {
		return new(big.Int).Set(g.gasPrice), nil
	}

	if err := g.pace(ctx); err != nil {
		return nil, Classify("gas_price", err)
	}
	suggested, err := g.node.SuggestGasPrice(ctx)
	if err != nil {
		return nil, Classify("gas_price", err)
	}

	inflated := new(big.Int).Mul(suggested, gasInflateNum)
	inflated.Div(inflated, gasInflateDen)

	g.gasPrice = inflated
	g.gasFetched = time.Now()

	return new(big.Int).Set(inflated), nil
}

func (g *Gateway) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	if err := g.pace(ctx); err != nil {
		return nil, Classify("balance", err)
	}
	balance, err := g.node.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, Classify("balance", err)
	}
	return balance, nil
}

// Call executes a read-only contract call.
func (g *Gateway) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := g.pace(ctx); err != nil {
		return nil, Classify("call", err)
	}
	out, err := g.node.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, Classify("call", err)
	}
	return out, nil
}

func (g *Gateway) SendSigned(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	if err := g.pace(ctx); err != nil {
		return common.Hash{}, Classify("send", err)
	}
	if err := g.node.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, Classify("send", err)
	}

	log.Debug().Func(logger.WithCategory(logger.CategoryChain)).
		Str("tx", tx.Hash().Hex()).
		Uint64("nonce", tx.Nonce()).
		Msg("transaction submitted")

	return tx.Hash(), nil
}

// WaitReceipt polls for the receipt on a fixed interval until the timeout
// horizon. The deliberate slow poll keeps the process under provider rate
// limits; block finality cannot be hurried anyway.
func (g *Gateway) WaitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	deadline := time.Now().Add(g.receiptTimeout)

	for attempt := 1; ; attempt++ {
		if err := g.pace(ctx); err != nil {
			return nil, Classify("receipt", err)
		}

		receipt, err := g.node.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			classified := Classify("receipt", err)
			if !IsTransient(classified) {
				return nil, classified
			}
		}

		if time.Now().After(deadline) {
			return nil, &Error{Op: "receipt", Transient: true, Err: ErrReceiptTimeout}
		}

		log.Debug().Func(logger.WithCategory(logger.CategoryChain)).
			Str("tx", txHash.Hex()).
			Int("attempt", attempt).
			Msg("receipt not found, retrying...")

		select {
		case <-ctx.Done():
			return nil, Classify("receipt", ctx.Err())
		case <-time.After(g.receiptInterval):
		}
	}
}
