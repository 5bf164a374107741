package models

import "time"

// PortfolioSnapshot is the persisted top-level account state. A fresh row is
// written after every trade application so the dashboard process can read a
// consistent picture without touching the writer.
type PortfolioSnapshot struct {
	ID                  string    `gorm:"primaryKey" json:"id"` // regenerated per snapshot
	Timestamp           time.Time `gorm:"index" json:"timestamp"`
	InitialCapital      float64   `json:"initial_capital"`
	TotalValue          float64   `json:"total_value"`
	AvailableCash       float64   `json:"available_cash"`
	PositionsValue      float64   `json:"positions_value"`
	TotalPnL            float64   `json:"total_pnl"`
	TotalPnLPercent     float64   `json:"total_pnl_percent"`
	OpenPositionCount   int       `json:"open_position_count"`
	ClosedPositionCount int       `json:"closed_position_count"`
	WinRate             float64   `json:"win_rate"` // % of closed positions with realized gain
}

// Balance snapshot provenance: whether the source trader's portfolio value
// was observed from the data API or fell back to configuration.
const (
	BalanceObserved   = "observed"
	BalanceConfigured = "configured"
)

// BalanceSnapshot is a periodic estimate of the copied trader's total
// portfolio value, the denominator for percentage-of-portfolio scaling.
type BalanceSnapshot struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Address    string    `json:"address"`
	Value      float64   `json:"value"`
	Provenance string    `json:"provenance"` // "observed" or "configured"
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
}

// ProcessedTrade is the persisted idempotency marker: observed trade ids that
// were already handled, so a restart never re-copies a trade.
type ProcessedTrade struct {
	TradeID     string    `gorm:"primaryKey" json:"trade_id"`
	SourceTime  int64     `gorm:"index" json:"source_time"`
	Outcome     string    `json:"outcome"` // "executed", "skipped" or "failed"
	ProcessedAt time.Time `json:"processed_at"`
}
