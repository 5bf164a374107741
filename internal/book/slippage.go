package book

import (
	"fmt"
	"math"
)

// InsufficientLiquidityError reports that the book could not fill the
// requested size and the skip policy rejected the partial fill.
type InsufficientLiquidityError struct {
	FillPercent float64
}

func (e *InsufficientLiquidityError) Error() string {
	return fmt.Sprintf("insufficient liquidity: only %.1f%% of requested size available", e.FillPercent)
}

// ExcessiveSlippageError reports that the simulated fill moved the price
// further from mid than the configured tolerance.
type ExcessiveSlippageError struct {
	ImpactPercent float64
}

func (e *ExcessiveSlippageError) Error() string {
	return fmt.Sprintf("excessive slippage: price impact %.2f%% exceeds limit", e.ImpactPercent)
}

// Fill is one slice of a simulated execution taken from a single price level.
type Fill struct {
	Price  float64 `json:"price"`
	Shares float64 `json:"shares"`
	Cost   float64 `json:"cost"`
}

// FillResult is the outcome of walking the book for a desired quantity.
type FillResult struct {
	RequestedShares float64
	ExecutedShares  float64
	AveragePrice    float64
	PriceImpact     float64 // percent vs mid of the untouched book
	TotalCost       float64
	Fills           []Fill
}

// FillPercent returns how much of the requested size was executed.
func (r *FillResult) FillPercent() float64 {
	if r.RequestedShares == 0 {
		return 0
	}
	return r.ExecutedShares / r.RequestedShares * 100
}

// Simulator fills desired quantities against order book snapshots and
// enforces the liquidity and slippage policy.
type Simulator struct {
	MaxSlippagePercent          float64
	SkipOnInsufficientLiquidity bool
}

// Simulate walks one side of the book to fill desiredShares: asks for a BUY,
// bids for a SELL. When precedingShares is non-zero that much liquidity is
// removed from the front of the side first, modeling the copied trader's own
// fill landing before ours. Price impact is always measured against the mid
// of the original, unconsumed book.
func (s *Simulator) Simulate(side string, desiredShares float64, ob *OrderBook, precedingShares float64) (*FillResult, error) {
	var levels []Level
	if side == "BUY" {
		levels = ob.Asks
	} else {
		levels = ob.Bids
	}
	if len(levels) == 0 {
		return nil, ErrEmptyBook
	}

	mid, err := ob.MidPrice()
	if err != nil {
		mid = 0 // one-sided book: impact reported as 0
	}

	if precedingShares > 0 {
		levels = consumeFront(levels, precedingShares)
	}

	result := &FillResult{RequestedShares: desiredShares}
	remaining := desiredShares
	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		if lvl.Size <= 0 {
			continue
		}
		take := math.Min(remaining, lvl.Size)
		cost := take * lvl.Price
		result.Fills = append(result.Fills, Fill{Price: lvl.Price, Shares: take, Cost: cost})
		result.TotalCost += cost
		remaining -= take
	}
	result.ExecutedShares = desiredShares - remaining

	if remaining > 0 && s.SkipOnInsufficientLiquidity {
		return nil, &InsufficientLiquidityError{FillPercent: result.FillPercent()}
	}

	if result.ExecutedShares > 0 {
		result.AveragePrice = result.TotalCost / result.ExecutedShares
	}
	if mid > 0 && result.ExecutedShares > 0 {
		result.PriceImpact = (result.AveragePrice - mid) / mid * 100
	}

	if math.Abs(result.PriceImpact) > s.MaxSlippagePercent && s.SkipOnInsufficientLiquidity {
		return nil, &ExcessiveSlippageError{ImpactPercent: result.PriceImpact}
	}

	return result, nil
}

// consumeFront removes shares from the best levels of a side, dropping fully
// consumed levels and shrinking a partially consumed one.
func consumeFront(levels []Level, shares float64) []Level {
	out := make([]Level, 0, len(levels))
	remaining := shares
	for _, lvl := range levels {
		if remaining <= 0 {
			out = append(out, lvl)
			continue
		}
		if lvl.Size <= remaining {
			remaining -= lvl.Size
			continue
		}
		lvl.Size -= remaining
		remaining = 0
		out = append(out, lvl)
	}
	return WithCumulative(out)
}

// Slippage estimator constants for the degraded mode where no live book is
// available. Tuned against observed Polymarket fills, not a market model.
const (
	estimatorBase  = 0.1 // percent
	estimatorScale = 5.0
)

// EstimateSlippageFromSize approximates slippage percent from the ratio of
// order size to daily volume. Degraded mode only: the executor uses it for
// trade metadata when the book fetch fails, never for primary accounting.
func EstimateSlippageFromSize(orderUSDC, dailyVolumeUSDC float64) float64 {
	if dailyVolumeUSDC <= 0 || orderUSDC <= 0 {
		return estimatorBase
	}
	ratio := orderUSDC / dailyVolumeUSDC
	return estimatorBase + math.Sqrt(ratio)*estimatorScale
}
