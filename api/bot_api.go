package api

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/Sana-jeyat/Trading-Dashboard/logger"
	"github.com/Sana-jeyat/Trading-Dashboard/model"
)

// BotConfig fetches the current trading configuration. Defaults are applied
// here so callers always see a complete config.
func (c *Client) BotConfig() (model.TradingConfig, error) {
	var cfg model.TradingConfig

	data, err := c.do("GET", c.botPath("/kno-config"), nil)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode bot config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

// WalletCredential fetches the bot's signing key and folds it straight into
// a credential. The raw payload is not retained and never logged.
func (c *Client) WalletCredential() (*model.WalletCredential, error) {
	data, err := c.do("GET", c.botPath("/wallet-config"), nil)
	if err != nil {
		return nil, err
	}

	wallet, err := model.NewWalletCredential(gjson.GetBytes(data, "private_key").String())
	if err != nil {
		return nil, fmt.Errorf("wallet config: %w", err)
	}

	log.Info().Func(logger.WithCategory(logger.CategoryReport)).
		Str("wallet", wallet.String()).
		Msg("wallet credential loaded")
	return wallet, nil
}
