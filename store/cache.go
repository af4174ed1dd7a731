package store

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
)

// Cache holds the process-lifetime per-wallet state: last-trade timestamps
// for the cooldown gate and confirmed token allowances. It is reset only by
// a process restart.
type Cache struct {
	c *cache.Cache
}

func New() *Cache {
	return &Cache{c: cache.New(cache.NoExpiration, 30*time.Minute)}
}

func allowanceKey(wallet, token common.Address) string {
	return fmt.Sprintf("allowance_%s_%s", wallet.Hex(), token.Hex())
}

func tradeKey(wallet common.Address) string {
	return fmt.Sprintf("last_trade_%s", wallet.Hex())
}

// AllowanceConfirmed reports whether a sufficient router allowance was
// already verified for this wallet and token during this process lifetime.
func (s *Cache) AllowanceConfirmed(wallet, token common.Address) bool {
	_, ok := s.c.Get(allowanceKey(wallet, token))
	return ok
}

func (s *Cache) MarkAllowanceConfirmed(wallet, token common.Address) {
	s.c.Set(allowanceKey(wallet, token), true, cache.NoExpiration)
}

func (s *Cache) LastTradeAt(wallet common.Address) (time.Time, bool) {
	v, ok := s.c.Get(tradeKey(wallet))
	if !ok {
		return time.Time{}, false
	}
	return v.(time.Time), true
}

func (s *Cache) MarkTrade(wallet common.Address, at time.Time) {
	s.c.Set(tradeKey(wallet), at, cache.NoExpiration)
}
