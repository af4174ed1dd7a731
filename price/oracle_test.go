package price

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPriceConvertsQuote(t *testing.T) {
	srv := serve(t, 200, `{"data":{"attributes":{"base_token_price_usd":"0.002"}}}`)
	o := NewOracle(srv.URL, decimal.RequireFromString("0.87"))

	p, err := o.Price(context.Background())
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("0.00174")), "got %s", p)
}

func TestPriceNumericField(t *testing.T) {
	srv := serve(t, 200, `{"data":{"attributes":{"base_token_price_usd":0.5}}}`)
	o := NewOracle(srv.URL, decimal.NewFromInt(1))

	p, err := o.Price(context.Background())
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("0.5")))
}

func TestPriceUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", 500, "boom"},
		{"not found", 404, "{}"},
		{"missing field", 200, `{"data":{"attributes":{}}}`},
		{"non numeric", 200, `{"data":{"attributes":{"base_token_price_usd":"n/a"}}}`},
		{"zero price", 200, `{"data":{"attributes":{"base_token_price_usd":"0"}}}`},
		{"negative price", 200, `{"data":{"attributes":{"base_token_price_usd":"-1"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)
			o := NewOracle(srv.URL, decimal.NewFromInt(1))

			_, err := o.Price(context.Background())
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestPriceEndpointDown(t *testing.T) {
	srv := serve(t, 200, "{}")
	url := srv.URL
	srv.Close()

	o := NewOracle(url, decimal.NewFromInt(1))
	_, err := o.Price(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
