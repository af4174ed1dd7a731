package trader

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		price string
		ref   string
		vol   string
		want  Action
	}{
		{"well below band", "90", "100", "5", ActionBuy},
		{"exactly on buy boundary", "95", "100", "5", ActionBuy},
		{"just inside lower band", "95.01", "100", "5", ActionNone},
		{"at reference", "100", "100", "5", ActionNone},
		{"just inside upper band", "104.99", "100", "5", ActionNone},
		{"exactly on sell boundary", "105", "100", "5", ActionSell},
		{"well above band", "120", "100", "5", ActionSell},
		{"zero volatility collapses bands, buy wins", "100", "100", "0", ActionBuy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(dec(tt.price), dec(tt.ref), dec(tt.vol))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "buy", ActionBuy.String())
	assert.Equal(t, "sell", ActionSell.String())
	assert.Equal(t, "none", ActionNone.String())
}
