package polymarket

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"polymarket-copy-sim-go/internal/book"
	"polymarket-copy-sim-go/internal/config"
	"polymarket-copy-sim-go/internal/models"
)

// ClientInterface defines the market data source the core consumes.
type ClientInterface interface {
	GetTrades(ctx context.Context, address string, since time.Time, limit int) ([]models.Trade, error)
	GetOrderBook(ctx context.Context, marketID, tokenID string) (*book.OrderBook, error)
	GetMarket(ctx context.Context, marketID string) (*Market, error)
	GetTraderValue(ctx context.Context, address string) (float64, error)
}

// Client talks to the Polymarket data API and CLOB over REST.
// It implements ClientInterface.
type Client struct {
	data    *resty.Client
	clob    *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure Client implements the interface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new Polymarket REST client. A single shared limiter
// spaces out every outbound call regardless of host; it serializes, never
// parallelizes, requests.
func NewClient(cfg *config.Polymarket, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.RequestTimeoutSec) * time.Second

	return &Client{
		data:    resty.New().SetBaseURL(cfg.DataURL).SetTimeout(timeout),
		clob:    resty.New().SetBaseURL(cfg.ClobURL).SetTimeout(timeout),
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
	}
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", url))
		resp, err = req.SetContext(ctx).Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil && resp.StatusCode() != 0 {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// GetTrades fetches the target trader's executed trades newer than since,
// oldest last as the API returns them; chronological ordering is the
// caller's job.
func (c *Client) GetTrades(ctx context.Context, address string, since time.Time, limit int) ([]models.Trade, error) {
	var raw []rawTrade

	req := c.data.R().
		SetQueryParam("user", address).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&raw)

	if _, err := c.doRequest(ctx, "GET", "/trades", req); err != nil {
		return nil, fmt.Errorf("failed to get trades for %s: %w", address, err)
	}

	trades := make([]models.Trade, 0, len(raw))
	for _, rt := range raw {
		if rt.Timestamp <= since.Unix() {
			continue
		}
		if rt.Asset == "" || rt.ConditionID == "" || rt.Size <= 0 {
			c.logger.Debug("Dropping malformed trade from feed", zap.String("tx", rt.TransactionHash))
			continue
		}
		trades = append(trades, models.Trade{
			ID:             tradeID(rt),
			Timestamp:      rt.Timestamp,
			TraderAddress:  rt.ProxyWallet,
			MarketID:       rt.ConditionID,
			MarketQuestion: rt.Title,
			TokenID:        rt.Asset,
			Side:           rt.Side,
			Shares:         rt.Size,
			Price:          rt.Price,
			TotalCost:      rt.Size * rt.Price,
			TxHash:         rt.TransactionHash,
			Source:         models.SourceObserved,
		})
	}
	return trades, nil
}

// tradeID builds a stable id for an observed trade. The feed has no explicit
// id field, but (tx hash, asset, side) is unique per fill.
func tradeID(rt rawTrade) string {
	return fmt.Sprintf("%s-%s-%s", rt.TransactionHash, rt.Asset, rt.Side)
}

// GetOrderBook fetches the CLOB book snapshot for one outcome token. Level
// ordering from the API is not guaranteed, so both sides are re-sorted and
// cumulative sizes rebuilt here.
func (c *Client) GetOrderBook(ctx context.Context, marketID, tokenID string) (*book.OrderBook, error) {
	var raw rawOrderBook

	req := c.clob.R().
		SetQueryParam("token_id", tokenID).
		SetResult(&raw)

	if _, err := c.doRequest(ctx, "GET", "/book", req); err != nil {
		return nil, fmt.Errorf("failed to get order book for token %s: %w", tokenID, err)
	}

	ob := &book.OrderBook{
		MarketID: marketID,
		TokenID:  tokenID,
		Bids:     parseLevels(raw.Bids),
		Asks:     parseLevels(raw.Asks),
	}
	sort.Slice(ob.Bids, func(i, j int) bool { return ob.Bids[i].Price > ob.Bids[j].Price })
	sort.Slice(ob.Asks, func(i, j int) bool { return ob.Asks[i].Price < ob.Asks[j].Price })
	ob.Bids = book.WithCumulative(ob.Bids)
	ob.Asks = book.WithCumulative(ob.Asks)
	return ob, nil
}

func parseLevels(raw []rawBookLevel) []book.Level {
	levels := make([]book.Level, 0, len(raw))
	for _, rl := range raw {
		price, err1 := strconv.ParseFloat(rl.Price, 64)
		size, err2 := strconv.ParseFloat(rl.Size, 64)
		if err1 != nil || err2 != nil || size <= 0 {
			continue
		}
		levels = append(levels, book.Level{Price: price, Size: size})
	}
	return levels
}

// GetMarket fetches the current market state, including winner attribution
// once the market has resolved.
func (c *Client) GetMarket(ctx context.Context, marketID string) (*Market, error) {
	var raw rawMarket

	req := c.clob.R().SetResult(&raw)

	if _, err := c.doRequest(ctx, "GET", "/markets/"+marketID, req); err != nil {
		return nil, fmt.Errorf("failed to get market %s: %w", marketID, err)
	}

	m := &Market{
		ID:              raw.ConditionID,
		Question:        raw.Question,
		Active:          raw.Active,
		Closed:          raw.Closed,
		AcceptingOrders: raw.AcceptingOrders,
		Volume:          raw.Volume24hr,
	}
	for _, t := range raw.Tokens {
		m.Tokens = append(m.Tokens, Token{
			ID:      t.TokenID,
			Outcome: t.Outcome,
			Price:   t.Price,
			Winner:  t.Winner,
		})
	}
	return m, nil
}

// GetTraderValue fetches the current total portfolio value of an address
// from the data API.
func (c *Client) GetTraderValue(ctx context.Context, address string) (float64, error) {
	var raw []rawValue

	req := c.data.R().
		SetQueryParam("user", address).
		SetResult(&raw)

	if _, err := c.doRequest(ctx, "GET", "/value", req); err != nil {
		return 0, fmt.Errorf("failed to get trader value for %s: %w", address, err)
	}

	if len(raw) == 0 || raw[0].Value <= 0 {
		return 0, fmt.Errorf("no portfolio value reported for %s", address)
	}
	return raw[0].Value, nil
}
