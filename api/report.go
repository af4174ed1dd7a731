package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Sana-jeyat/Trading-Dashboard/model"
)

// ReportTrade records a settled trade in the dashboard ledger.
func (c *Client) ReportTrade(result *model.TradeResult) error {
	body := map[string]any{
		"bot_id":  c.botID,
		"type":    string(result.Direction),
		"amount":  result.Amount.String(),
		"price":   result.Price.String(),
		"tx_hash": result.TxHash,
	}
	if result.Profit != nil {
		body["profit"] = result.Profit.String()
	}
	_, err := c.do("POST", "/transactions", body)
	return err
}

// UpdateStatus publishes the bot lifecycle state.
func (c *Client) UpdateStatus(status string) error {
	_, err := c.do("PUT", c.botPath("/status"), map[string]any{"status": status})
	return err
}

// Heartbeat tells the dashboard the bot process is alive.
func (c *Client) Heartbeat() error {
	_, err := c.do("GET", c.botPath("/heartbeat"), nil)
	return err
}

// PutReferencePrice persists the anchor so a restart resumes from the same
// bands.
func (c *Client) PutReferencePrice(price decimal.Decimal) error {
	_, err := c.do("PUT", c.botPath("/reference-price"), map[string]any{
		"reference_price": price.String(),
	})
	return err
}

// UpdateMetrics pushes the last-trade summary shown on the bot card.
func (c *Client) UpdateMetrics(result *model.TradeResult) error {
	_, err := c.do("PUT", c.botPath("/metrics"), map[string]any{
		"last_trade_type":   string(result.Direction),
		"last_trade_amount": result.Amount.String(),
		"last_trade_price":  result.Price.String(),
		"last_trade_at":     time.Now().UTC().Format(time.RFC3339),
	})
	return err
}
