package ledger

import (
	"math"
	"time"

	"github.com/google/uuid"

	"polymarket-copy-sim-go/internal/models"
)

// DiscrepancyTolerance is how far the two P&L formulations may drift apart
// before the disagreement is worth surfacing (1 cent, per float accumulation
// over many partial fills).
const DiscrepancyTolerance = 0.01

// Portfolio is the in-memory account state the engine mutates. Snapshots of
// it are persisted after every change; the open position list is carried by
// value and re-queried from storage on restart.
type Portfolio struct {
	InitialCapital float64
	AvailableCash  float64
	TotalValue     float64
	TotalPnL       float64
	Positions      []*models.Position // open positions only
}

// NewPortfolio starts an account with everything in cash.
func NewPortfolio(initialCapital float64) *Portfolio {
	return &Portfolio{
		InitialCapital: initialCapital,
		AvailableCash:  initialCapital,
		TotalValue:     initialCapital,
	}
}

// Recompute rebuilds every derived aggregate from the full position set and
// returns a fresh persistable snapshot. It must run after every cash or
// position mutation, never partially.
//
// The canonical P&L is totalValue - initialCapital. The alternate
// sum-of-realized-plus-unrealized formulation is computed alongside and the
// difference returned, so the caller can surface accounting drift; the two
// agree exactly when every cash movement is captured by position accounting.
func (pf *Portfolio) Recompute(allPositions []*models.Position) (*models.PortfolioSnapshot, float64) {
	var open []*models.Position
	var positionsValue float64
	var realized, unrealized float64
	var closedCount, wonCount int

	for _, p := range allPositions {
		realized += p.RealizedPnL
		if p.IsOpen {
			open = append(open, p)
			positionsValue += p.Shares * p.CurrentPrice
			unrealized += UnrealizedPnL(p)
		} else {
			closedCount++
			if p.RealizedPnL > 0 {
				wonCount++
			}
		}
	}

	pf.Positions = open
	pf.TotalValue = pf.AvailableCash + positionsValue
	pf.TotalPnL = pf.TotalValue - pf.InitialCapital

	winRate := 0.0
	if closedCount > 0 {
		winRate = float64(wonCount) / float64(closedCount) * 100
	}
	pnlPercent := 0.0
	if pf.InitialCapital > 0 {
		pnlPercent = pf.TotalPnL / pf.InitialCapital * 100
	}

	snapshot := &models.PortfolioSnapshot{
		ID:                  uuid.NewString(),
		Timestamp:           time.Now().UTC(),
		InitialCapital:      pf.InitialCapital,
		TotalValue:          pf.TotalValue,
		AvailableCash:       pf.AvailableCash,
		PositionsValue:      positionsValue,
		TotalPnL:            pf.TotalPnL,
		TotalPnLPercent:     pnlPercent,
		OpenPositionCount:   len(open),
		ClosedPositionCount: closedCount,
		WinRate:             winRate,
	}

	discrepancy := math.Abs(pf.TotalPnL - (realized + unrealized))
	return snapshot, discrepancy
}

// OpenPosition returns the open position for a (market, outcome) key, nil
// when none is open.
func (pf *Portfolio) OpenPosition(marketID, tokenID string) *models.Position {
	id := models.PositionID(marketID, tokenID)
	for _, p := range pf.Positions {
		if p.ID == id && p.IsOpen {
			return p
		}
	}
	return nil
}
