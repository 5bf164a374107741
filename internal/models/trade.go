package models

import (
	"encoding/json"
	"time"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Trade source tags. Observed trades come from the copied trader's feed,
// copy trades are the ones this simulator derived and executed against its
// own virtual portfolio.
const (
	SourceObserved = "observed"
	SourceCopy     = "copy"
)

// Trade represents an executed transaction, either observed from the target
// trader or derived for our own portfolio. Records are immutable once saved.
type Trade struct {
	ID             string  `gorm:"primaryKey" json:"id"`
	Timestamp      int64   `gorm:"index" json:"timestamp"` // unix seconds
	TraderAddress  string  `json:"trader_address"`
	MarketID       string  `gorm:"index" json:"market_id"`
	MarketQuestion string  `json:"market_question"`
	TokenID        string  `json:"token_id"` // outcome token
	Side           string  `json:"side"`     // "BUY" or "SELL"
	Shares         float64 `json:"shares"`
	Price          float64 `json:"price"`
	TotalCost      float64 `json:"total_cost"`
	Fee            float64 `json:"fee"`
	TxHash         string  `json:"tx_hash,omitempty"`
	Source         string  `json:"source"` // "observed" or "copy"

	CopyMeta *CopyMetadata `gorm:"embedded;embeddedPrefix:meta_" json:"copy_meta,omitempty"`
}

// CopyMetadata captures how an observed trade was scaled into our own.
// FillsJSON holds the individual book fills consumed, serialized because the
// fill list has no relational use beyond audit display.
type CopyMetadata struct {
	OriginalTradeID  string  `json:"original_trade_id"`
	TargetPercent    float64 `json:"target_percent"`     // share of source portfolio the original trade was
	SourceValue      float64 `json:"source_value"`       // source portfolio value at the time
	OwnValue         float64 `json:"own_value"`          // our portfolio value at the time
	CostRatio        float64 `json:"cost_ratio"`         // own cost / source cost
	SourcePrice      float64 `json:"source_price"`       // price the copied trader got
	OwnAvgPrice      float64 `json:"own_avg_price"`      // our average execution price
	PriceImpactPct   float64 `json:"price_impact_pct"`
	SlippageCostUSDC float64 `json:"slippage_cost_usdc"`
	FillPercent      float64 `json:"fill_percent"` // 100 unless the book ran out
	FillsJSON        string  `json:"fills_json,omitempty"`
}

// TradeTime returns the trade timestamp as time.Time.
func (t Trade) TradeTime() time.Time {
	return time.Unix(t.Timestamp, 0)
}

// EncodeFills serializes book fills into the metadata column.
func (m *CopyMetadata) EncodeFills(fills interface{}) error {
	b, err := json.Marshal(fills)
	if err != nil {
		return err
	}
	m.FillsJSON = string(b)
	return nil
}
