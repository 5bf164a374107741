package trader

import (
	"context"
	"time"

	"go.uber.org/zap"

	"polymarket-copy-sim-go/internal/database"
	"polymarket-copy-sim-go/internal/ledger"
	"polymarket-copy-sim-go/internal/polymarket"
)

// Resolver sweeps open positions for markets that have settled and
// force-closes them at the binary payout price.
type Resolver struct {
	logger *zap.Logger
	client polymarket.ClientInterface
	store  *database.Store

	now func() time.Time
}

// NewResolver creates a resolver.
func NewResolver(logger *zap.Logger, client polymarket.ClientInterface, store *database.Store) *Resolver {
	return &Resolver{logger: logger, client: client, store: store, now: time.Now}
}

// Sweep checks every open position against current market state and settles
// the resolved ones, crediting the payout to available cash. It returns how
// many positions were settled so the caller knows to recompute the
// portfolio. A failed market fetch skips that position until the next sweep.
func (r *Resolver) Sweep(ctx context.Context, pf *ledger.Portfolio) int {
	settled := 0
	for _, p := range pf.Positions {
		if !p.IsOpen {
			continue
		}
		l := r.logger.With(zap.String("position", p.ID), zap.String("market", p.MarketQuestion))

		market, err := r.client.GetMarket(ctx, p.MarketID)
		if err != nil {
			l.Warn("Resolution check failed, will retry next sweep", zap.Error(err))
			continue
		}
		if !market.Closed {
			continue
		}
		winner, ok := market.WinnerToken()
		if !ok {
			// Market closed but payout not attributed yet.
			l.Info("Market closed, awaiting winner attribution")
			continue
		}

		settlementPrice := 0.0
		if winner.ID == p.TokenID {
			settlementPrice = 1.0
		}
		shares := p.Shares
		payout := ledger.Settle(p, settlementPrice, r.now())
		pf.AvailableCash += payout

		if err := r.store.SavePosition(p); err != nil {
			l.Error("Failed to persist settled position", zap.Error(err))
			// The in-memory state already settled; the next snapshot save
			// will retry the row.
		}
		settled++

		l.Info("Settled position",
			zap.Float64("shares", shares),
			zap.Float64("settlement_price", settlementPrice),
			zap.Float64("payout", payout),
			zap.Float64("realized_pnl", p.RealizedPnL),
		)
	}
	return settled
}
