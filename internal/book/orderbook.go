package book

import "errors"

// ErrEmptyBook is returned when a query or simulation needs levels on a side
// of the book that has none.
var ErrEmptyBook = errors.New("order book side is empty")

// Level is a single price level: price, resting size, and the cumulative size
// of this level plus all better-priced ones.
type Level struct {
	Price      float64 `json:"price"`
	Size       float64 `json:"size"`
	Cumulative float64 `json:"cumulative"`
}

// OrderBook is a point-in-time snapshot for one (market, outcome) token.
// Bids are sorted by descending price, asks by ascending price.
type OrderBook struct {
	MarketID string
	TokenID  string
	Bids     []Level
	Asks     []Level
}

// BestBid returns the highest bid price, 0 when there are no bids.
func (ob *OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk returns the lowest ask price, 0 when there are no asks.
func (ob *OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// MidPrice returns (bestAsk+bestBid)/2. It fails with ErrEmptyBook when
// either side has no levels, since half a book has no meaningful midpoint.
func (ob *OrderBook) MidPrice() (float64, error) {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return 0, ErrEmptyBook
	}
	return (ob.Asks[0].Price + ob.Bids[0].Price) / 2, nil
}

// Spread returns bestAsk-bestBid, or 0 for an empty book rather than failing.
func (ob *OrderBook) Spread() float64 {
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price - ob.Bids[0].Price
}

// Depth sums resting size over the first n levels of the given side, or over
// all of them when the book is shallower than n.
func Depth(levels []Level, n int) float64 {
	if n > len(levels) {
		n = len(levels)
	}
	var total float64
	for i := 0; i < n; i++ {
		total += levels[i].Size
	}
	return total
}

// WithCumulative rebuilds the running cumulative size of a level list.
func WithCumulative(levels []Level) []Level {
	var running float64
	for i := range levels {
		running += levels[i].Size
		levels[i].Cumulative = running
	}
	return levels
}
