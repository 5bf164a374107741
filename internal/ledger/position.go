package ledger

import (
	"time"

	"polymarket-copy-sim-go/internal/models"
)

// closeEpsilon is the share remainder below which a position counts as fully
// closed. Float accumulation across partial sells never lands exactly on 0.
const closeEpsilon = 0.001

// NewPosition returns a zeroed open position for a (market, outcome) pair.
// Reopening a fully closed pair goes through here too: identity is kept, the
// terminal state of the previous episode is overwritten.
func NewPosition(marketID, tokenID, question string, now time.Time) *models.Position {
	return &models.Position{
		ID:             models.PositionID(marketID, tokenID),
		MarketID:       marketID,
		TokenID:        tokenID,
		MarketQuestion: question,
		IsOpen:         true,
		OpenedAt:       now,
		UpdatedAt:      now,
	}
}

// ApplyBuy folds a BUY into the position: shares and invested capital grow,
// the entry price becomes the cost-basis-weighted average (fees included in
// the basis), and the trade price becomes the mark.
func ApplyBuy(p *models.Position, trade *models.Trade) {
	p.Shares += trade.Shares
	p.TotalInvested += trade.TotalCost + trade.Fee
	if p.Shares > 0 {
		p.AvgEntryPrice = p.TotalInvested / p.Shares
	}
	p.CurrentPrice = trade.Price
	p.UnrealizedPnL = UnrealizedPnL(p)
	p.UpdatedAt = trade.TradeTime()
}

// ApplySell folds a SELL into the position: the sold lot's cost basis comes
// out of invested capital and the difference between net proceeds and that
// basis is realized. When the remainder drops under the close tolerance the
// position transitions to closed; applying a sell to an already closed
// position is a no-op so the close cannot double-count.
func ApplySell(p *models.Position, trade *models.Trade) {
	if !p.IsOpen || p.Shares <= 0 {
		return
	}
	costBasis := p.AvgEntryPrice * trade.Shares
	proceeds := trade.TotalCost - trade.Fee
	p.RealizedPnL += proceeds - costBasis
	p.Shares -= trade.Shares
	p.TotalInvested -= costBasis
	p.CurrentPrice = trade.Price
	p.UpdatedAt = trade.TradeTime()

	if p.Shares <= closeEpsilon {
		closedAt := trade.TradeTime()
		p.Shares = 0
		p.TotalInvested = 0
		p.IsOpen = false
		p.ClosedAt = &closedAt
		p.AvgExitPrice = trade.Price
	}
	p.UnrealizedPnL = UnrealizedPnL(p)
}

// Settle force-closes the position at a binary payout price (1.0 or 0.0).
// Resolution is a settlement event, not a market trade: there is no
// counterparty fill, so this bypasses ApplySell entirely.
func Settle(p *models.Position, settlementPrice float64, now time.Time) (settlementValue float64) {
	settlementValue = p.Shares * settlementPrice
	finalPnL := settlementValue - p.TotalInvested

	p.CurrentPrice = settlementPrice
	p.AvgExitPrice = settlementPrice
	p.RealizedPnL += finalPnL
	p.Shares = 0
	p.TotalInvested = 0
	p.UnrealizedPnL = 0
	p.IsOpen = false
	p.ClosedAt = &now
	p.UpdatedAt = now
	return settlementValue
}

// UnrealizedPnL is the mark value minus invested capital for an open
// position, 0 once closed or empty.
func UnrealizedPnL(p *models.Position) float64 {
	if !p.IsOpen || p.Shares == 0 {
		return 0
	}
	return p.Shares*p.CurrentPrice - p.TotalInvested
}

// MarkPrice updates the mark and the derived unrealized P&L.
func MarkPrice(p *models.Position, price float64, now time.Time) {
	p.CurrentPrice = price
	p.UnrealizedPnL = UnrealizedPnL(p)
	p.UpdatedAt = now
}
