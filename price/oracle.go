package price

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/Sana-jeyat/Trading-Dashboard/logger"
)

// ErrUnavailable covers every way a price fetch can fail: transport errors,
// non-200 responses and malformed payloads. Callers skip the cycle on it.
var ErrUnavailable = errors.New("price unavailable")

const priceField = "data.attributes.base_token_price_usd"

// Oracle fetches the current unit price from the market-data endpoint and
// converts it from USD to the dashboard's display currency with a fixed
// multiplier. It holds no state between calls.
type Oracle struct {
	url        string
	conversion decimal.Decimal
	client     *http.Client
}

func NewOracle(url string, conversion decimal.Decimal) *Oracle {
	return &Oracle{
		url:        url,
		conversion: conversion,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (o *Oracle) Price(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		log.Warn().Func(logger.WithCategory(logger.CategoryPrice)).Err(err).Msg("price fetch failed")
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Func(logger.WithCategory(logger.CategoryPrice)).
			Int("status", resp.StatusCode).
			Msg("price feed returned non-200")
		return decimal.Zero, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	field := gjson.GetBytes(body, priceField)
	if !field.Exists() {
		return decimal.Zero, fmt.Errorf("%w: missing %s", ErrUnavailable, priceField)
	}

	usd, err := decimal.NewFromString(field.String())
	if err != nil || !usd.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: bad price %q", ErrUnavailable, field.String())
	}

	return usd.Mul(o.conversion), nil
}
