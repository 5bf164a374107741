package models

import "time"

// Position represents the aggregate exposure to one (market, outcome) pair.
// Its identity is deterministic, so a BUY after a full close overwrites the
// closed record in place rather than creating a second row.
type Position struct {
	ID             string  `gorm:"primaryKey" json:"id"`
	MarketID       string  `gorm:"index" json:"market_id"`
	TokenID        string  `json:"token_id"`
	MarketQuestion string  `json:"market_question"`
	Shares         float64 `json:"shares"`
	AvgEntryPrice  float64 `json:"avg_entry_price"`
	TotalInvested  float64 `json:"total_invested"` // cost basis currently deployed
	CurrentPrice   float64 `json:"current_price"`  // mark price
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
	RealizedPnL    float64 `json:"realized_pnl"`
	IsOpen         bool    `gorm:"index" json:"is_open"`
	AvgExitPrice   float64 `json:"avg_exit_price,omitempty"`

	OpenedAt  time.Time  `json:"opened_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PositionID derives the deterministic identity for a (market, outcome) pair.
func PositionID(marketID, tokenID string) string {
	return marketID + ":" + tokenID
}

// CurrentValue returns the mark value of the position.
func (p Position) CurrentValue() float64 {
	if !p.IsOpen {
		return 0
	}
	return p.Shares * p.CurrentPrice
}
