package trader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Sana-jeyat/Trading-Dashboard/logger"
)

const (
	lastPriceFile     = "last_price.txt"
	lastSellPriceFile = "last_sell_price.txt"
)

// Checkpoints persists the last observed and last sell price as plain files.
// Both reads and writes are best effort: a missing or unwritable checkpoint
// never stops a trading cycle.
type Checkpoints struct {
	dir string
}

func NewCheckpoints(dir string) *Checkpoints {
	if dir == "" {
		dir = "."
	}
	return &Checkpoints{dir: dir}
}

func (c *Checkpoints) write(name string, price decimal.Decimal) {
	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, []byte(price.String()), 0o644); err != nil {
		log.Warn().Func(logger.WithCategory(logger.CategoryTrade)).Err(err).
			Str("path", path).
			Msg("could not write price checkpoint")
	}
}

func (c *Checkpoints) read(name string) (decimal.Decimal, bool) {
	raw, err := os.ReadFile(filepath.Join(c.dir, name))
	if err != nil {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(strings.TrimSpace(string(raw)))
	if err != nil || !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}

func (c *Checkpoints) WriteLastPrice(price decimal.Decimal) {
	c.write(lastPriceFile, price)
}

func (c *Checkpoints) LastPrice() (decimal.Decimal, bool) {
	return c.read(lastPriceFile)
}

func (c *Checkpoints) WriteLastSellPrice(price decimal.Decimal) {
	c.write(lastSellPriceFile, price)
}

func (c *Checkpoints) LastSellPrice() (decimal.Decimal, bool) {
	return c.read(lastSellPriceFile)
}
