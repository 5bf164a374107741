package polymarket

// Token is one outcome token of a market with its current price and, after
// resolution, the winner flag.
type Token struct {
	ID      string
	Outcome string
	Price   float64
	Winner  bool
}

// Market is the validated market state the core consumes: whether it still
// trades, and the per-outcome token prices.
type Market struct {
	ID              string
	Question        string
	Active          bool
	Closed          bool
	AcceptingOrders bool
	Volume          float64 // trailing daily volume in USDC
	Tokens          []Token
}

// TokenPrice returns the current price for an outcome token, false when the
// market does not carry that token or no price is available.
func (m *Market) TokenPrice(tokenID string) (float64, bool) {
	for _, t := range m.Tokens {
		if t.ID == tokenID {
			if t.Price <= 0 {
				return 0, false
			}
			return t.Price, true
		}
	}
	return 0, false
}

// WinnerToken returns the winning outcome token once resolution has
// attributed one, false before that.
func (m *Market) WinnerToken() (Token, bool) {
	for _, t := range m.Tokens {
		if t.Winner {
			return t, true
		}
	}
	return Token{}, false
}

// Raw wire shapes. The data API and CLOB return decimals as strings; parsing
// and validation happen at this boundary so the core never sees untyped data.

type rawTrade struct {
	TransactionHash string  `json:"transactionHash"`
	ProxyWallet     string  `json:"proxyWallet"`
	ConditionID     string  `json:"conditionId"`
	Asset           string  `json:"asset"`
	Title           string  `json:"title"`
	Side            string  `json:"side"`
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	Timestamp       int64   `json:"timestamp"`
}

type rawBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type rawOrderBook struct {
	Market  string         `json:"market"`
	AssetID string         `json:"asset_id"`
	Bids    []rawBookLevel `json:"bids"`
	Asks    []rawBookLevel `json:"asks"`
}

type rawToken struct {
	TokenID string  `json:"token_id"`
	Outcome string  `json:"outcome"`
	Price   float64 `json:"price"`
	Winner  bool    `json:"winner"`
}

type rawMarket struct {
	ConditionID     string     `json:"condition_id"`
	Question        string     `json:"question"`
	Active          bool       `json:"active"`
	Closed          bool       `json:"closed"`
	AcceptingOrders bool       `json:"accepting_orders"`
	Volume24hr      float64    `json:"volume24hr"`
	Tokens          []rawToken `json:"tokens"`
}

type rawValue struct {
	User  string  `json:"user"`
	Value float64 `json:"value"`
}
