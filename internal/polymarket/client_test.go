package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a test server and a Client pointing both base URLs at it.
func setupTestServer(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	c := &Client{
		data:    resty.New().SetBaseURL(server.URL),
		clob:    resty.New().SetBaseURL(server.URL),
		logger:  zap.NewNop(), // Use a no-op logger for tests
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	return c, server
}

func TestGetTrades(t *testing.T) {
	t.Run("ParsesAndFilters", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/trades", r.URL.Path)
			assert.Equal(t, "0xabc", r.URL.Query().Get("user"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[
				{"transactionHash":"0xt1","proxyWallet":"0xabc","conditionId":"cond-1","asset":"tok-yes","title":"Rain?","side":"BUY","size":100,"price":0.55,"timestamp":2000},
				{"transactionHash":"0xt2","proxyWallet":"0xabc","conditionId":"cond-1","asset":"tok-yes","side":"SELL","size":50,"price":0.60,"timestamp":500},
				{"transactionHash":"0xt3","proxyWallet":"0xabc","conditionId":"","asset":"tok-yes","side":"BUY","size":10,"price":0.50,"timestamp":3000}
			]`))
		})
		c, server := setupTestServer(handler)
		defer server.Close()

		// Act: since=1000 filters out the old trade, the malformed one is dropped.
		trades, err := c.GetTrades(context.Background(), "0xabc", time.Unix(1000, 0), 100)

		// Assert
		assert.NoError(t, err)
		assert.Len(t, trades, 1)
		assert.Equal(t, "0xt1-tok-yes-BUY", trades[0].ID)
		assert.Equal(t, "BUY", trades[0].Side)
		assert.InDelta(t, 55.0, trades[0].TotalCost, 1e-9)
		assert.Equal(t, "observed", trades[0].Source)
	})

	t.Run("APIError", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad address"}`))
		})
		c, server := setupTestServer(handler)
		defer server.Close()

		_, err := c.GetTrades(context.Background(), "nope", time.Time{}, 100)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get trades")
	})
}

func TestGetOrderBook(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/book", r.URL.Path)
		assert.Equal(t, "tok-yes", r.URL.Query().Get("token_id"))
		w.Header().Set("Content-Type", "application/json")
		// Levels arrive unsorted with string decimals.
		_, _ = w.Write([]byte(`{
			"market":"cond-1","asset_id":"tok-yes",
			"bids":[{"price":"0.52","size":"100"},{"price":"0.54","size":"200"}],
			"asks":[{"price":"0.58","size":"300"},{"price":"0.56","size":"150"},{"price":"bad","size":"1"}]
		}`))
	})
	c, server := setupTestServer(handler)
	defer server.Close()

	ob, err := c.GetOrderBook(context.Background(), "cond-1", "tok-yes")

	assert.NoError(t, err)
	// Bids descending, asks ascending, unparseable level dropped.
	assert.Equal(t, 0.54, ob.BestBid())
	assert.Equal(t, 0.56, ob.BestAsk())
	assert.Len(t, ob.Asks, 2)
	assert.Equal(t, 150.0, ob.Asks[0].Cumulative)
	assert.Equal(t, 450.0, ob.Asks[1].Cumulative)
}

func TestGetMarket(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/cond-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"condition_id":"cond-1","question":"Rain?","active":true,
			"closed":false,"accepting_orders":true,"volume24hr":123456.5,
			"tokens":[
				{"token_id":"tok-yes","outcome":"Yes","price":0.55,"winner":false},
				{"token_id":"tok-no","outcome":"No","price":0.45,"winner":false}
			]
		}`))
	})
	c, server := setupTestServer(handler)
	defer server.Close()

	market, err := c.GetMarket(context.Background(), "cond-1")

	assert.NoError(t, err)
	assert.True(t, market.Active)
	assert.True(t, market.AcceptingOrders)
	assert.Equal(t, 123456.5, market.Volume)

	price, ok := market.TokenPrice("tok-yes")
	assert.True(t, ok)
	assert.Equal(t, 0.55, price)

	_, ok = market.TokenPrice("tok-unknown")
	assert.False(t, ok)

	_, ok = market.WinnerToken()
	assert.False(t, ok)
}

func TestGetTraderValue(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/value", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"user":"0xabc","value":52341.5}]`))
		})
		c, server := setupTestServer(handler)
		defer server.Close()

		value, err := c.GetTraderValue(context.Background(), "0xabc")

		assert.NoError(t, err)
		assert.Equal(t, 52341.5, value)
	})

	t.Run("EmptyResponse", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
		})
		c, server := setupTestServer(handler)
		defer server.Close()

		_, err := c.GetTraderValue(context.Background(), "0xabc")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no portfolio value reported")
	})
}

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"user":"0xabc","value":100}]`))
	})
	c, server := setupTestServer(handler)
	defer server.Close()

	value, err := c.GetTraderValue(context.Background(), "0xabc")

	assert.NoError(t, err)
	assert.Equal(t, 100.0, value)
	assert.Equal(t, 3, attempts)
}

func TestWinnerToken(t *testing.T) {
	m := &Market{Tokens: []Token{
		{ID: "tok-yes", Winner: false},
		{ID: "tok-no", Winner: true},
	}}

	winner, ok := m.WinnerToken()
	assert.True(t, ok)
	assert.Equal(t, "tok-no", winner.ID)
}
