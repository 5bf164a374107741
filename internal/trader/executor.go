package trader

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"polymarket-copy-sim-go/internal/book"
	"polymarket-copy-sim-go/internal/config"
	"polymarket-copy-sim-go/internal/database"
	"polymarket-copy-sim-go/internal/ledger"
	"polymarket-copy-sim-go/internal/models"
	"polymarket-copy-sim-go/internal/polymarket"
)

// Outcome is the terminal state of processing one observed trade.
type Outcome string

const (
	OutcomeExecuted Outcome = "executed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Executor turns one observed trade into a scaled execution against the
// virtual portfolio: scaling, staleness checks, book simulation, fees,
// ledger update and persistence.
type Executor struct {
	logger *zap.Logger
	cfg    *config.Copy
	client polymarket.ClientInterface
	store  *database.Store
	sim    *book.Simulator
	fees   book.FeeSchedule

	now func() time.Time
}

// NewExecutor creates an executor with policy taken from configuration.
func NewExecutor(logger *zap.Logger, cfg *config.Copy, client polymarket.ClientInterface, store *database.Store) *Executor {
	return &Executor{
		logger: logger,
		cfg:    cfg,
		client: client,
		store:  store,
		sim: &book.Simulator{
			MaxSlippagePercent:          cfg.MaxSlippagePercent,
			SkipOnInsufficientLiquidity: cfg.SkipOnInsufficientLiquidity,
		},
		fees: book.FeeSchedule{MakerRate: cfg.MakerFeeRate, TakerRate: cfg.TakerFeeRate},
		now:  time.Now,
	}
}

// Execute runs the per-trade state machine. Skip-class conditions return
// OutcomeSkipped with a nil error and a logged cause. A non-nil error means
// the trade was not fully processed: network failures before the ledger step
// leave it retryable, failures inside the ledger/persist step are serious
// because they indicate an inconsistent accounting state.
//
// Once the own trade record is constructed, the remaining ledger and persist
// steps run as one transaction: partial application (cash debited, position
// not updated) would break the portfolio invariant.
func (e *Executor) Execute(ctx context.Context, observed models.Trade, sourceValue float64, pf *ledger.Portfolio) (Outcome, error) {
	l := e.logger.With(
		zap.String("trade_id", observed.ID),
		zap.String("side", observed.Side),
		zap.String("market", observed.MarketQuestion),
	)

	// 1. Age check: stale BUYs are not worth copying, exits always are.
	if observed.Side == models.SideBuy {
		age := e.now().Sub(observed.TradeTime())
		if age > time.Duration(e.cfg.MaxBuyAgeSec)*time.Second {
			l.Info("Skipping stale buy", zap.Duration("age", age), zap.Error(ErrStaleTrade))
			return OutcomeSkipped, nil
		}
	}

	// 2. Scale: what share of their portfolio was this trade, applied to ours.
	if sourceValue <= 0 {
		l.Warn("Skipping trade, no source portfolio value to scale against")
		return OutcomeSkipped, nil
	}
	targetPercent := observed.TotalCost / sourceValue
	scaledCost := pf.TotalValue * targetPercent * e.cfg.CopyRatio
	if scaledCost < e.cfg.MinOrderUSDC {
		l.Info("Skipping tiny scaled order",
			zap.Float64("scaled_cost", scaledCost), zap.Error(ErrBelowMinOrder))
		return OutcomeSkipped, nil
	}

	// 3. Re-price against the live market.
	market, err := e.client.GetMarket(ctx, observed.MarketID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("market fetch failed: %w", err)
	}
	if !market.Active || !market.AcceptingOrders {
		l.Info("Skipping trade on unavailable market", zap.Error(ErrMarketUnavailable))
		return OutcomeSkipped, nil
	}
	currentPrice, ok := market.TokenPrice(observed.TokenID)
	if !ok {
		l.Info("Skipping trade, no current price for outcome", zap.Error(ErrMarketUnavailable))
		return OutcomeSkipped, nil
	}

	// 4. Staleness guard: a BUY whose price already ran away is not copied.
	if observed.Side == models.SideBuy && math.Abs(currentPrice-observed.Price) > e.cfg.MaxPriceDrift {
		l.Info("Skipping drifted buy",
			zap.Float64("observed_price", observed.Price),
			zap.Float64("current_price", currentPrice),
			zap.Error(ErrPriceDrift))
		return OutcomeSkipped, nil
	}

	// 5. Compute own execution size at the current price.
	desiredShares := scaledCost / currentPrice

	// SELL preconditions come before the book walk so clamping adjusts the
	// simulated size instead of invalidating the result afterwards.
	var position *models.Position
	if observed.Side == models.SideSell {
		position = pf.OpenPosition(observed.MarketID, observed.TokenID)
		if position == nil || position.Shares <= 0 {
			l.Info("Skipping sell with nothing to exit", zap.Error(ErrNoPosition))
			return OutcomeSkipped, nil
		}
		if position.Shares < desiredShares {
			l.Info("Clamping sell to held shares",
				zap.Float64("requested", desiredShares),
				zap.Float64("held", position.Shares))
			desiredShares = position.Shares
		}
	}

	// Simulate against the live book when one is available, consuming the
	// copied trader's own fill first. Degraded mode re-prices directly at
	// the current market price.
	execution, skip, err := e.simulateExecution(ctx, observed, desiredShares, currentPrice, market.Volume, l)
	if err != nil {
		return OutcomeFailed, err
	}
	if skip {
		return OutcomeSkipped, nil
	}

	// 6. Fee: copy trades always take liquidity.
	fee := e.fees.Fee(execution.cost, true)

	// 7. BUY precondition: the portfolio must be able to pay.
	if observed.Side == models.SideBuy && pf.AvailableCash < execution.cost+fee {
		l.Info("Skipping buy, not enough cash",
			zap.Float64("needed", execution.cost+fee),
			zap.Float64("available", pf.AvailableCash),
			zap.Error(ErrInsufficientCapital))
		return OutcomeSkipped, nil
	}

	// 8. Construct our own trade record with the full copy audit trail.
	own := e.buildOwnTrade(observed, execution, fee, sourceValue, pf)

	// 9+10. Ledger application and persistence as one unit.
	if err := e.applyAndPersist(observed, own, position, pf, l); err != nil {
		return OutcomeFailed, fmt.Errorf("ledger update failed: %w", err)
	}

	l.Info("Copied trade",
		zap.Float64("shares", own.Shares),
		zap.Float64("avg_price", own.Price),
		zap.Float64("cost", own.TotalCost),
		zap.Float64("fee", own.Fee),
		zap.Float64("price_impact_pct", own.CopyMeta.PriceImpactPct),
		zap.Float64("available_cash", pf.AvailableCash),
		zap.Float64("total_value", pf.TotalValue),
	)
	return OutcomeExecuted, nil
}

// execution is the resolved fill for our own trade, from either the book
// simulator or the direct re-pricing fallback.
type execution struct {
	shares      float64
	avgPrice    float64
	cost        float64 // gross notional (cost for BUY, revenue for SELL)
	impactPct   float64
	fillPercent float64
	fills       []book.Fill
}

func (e *Executor) simulateExecution(ctx context.Context, observed models.Trade, desiredShares, currentPrice, dailyVolume float64, l *zap.Logger) (*execution, bool, error) {
	ob, err := e.client.GetOrderBook(ctx, observed.MarketID, observed.TokenID)
	if err != nil {
		// Degraded mode: no live book, re-price at the current market price
		// and estimate impact from order size against the market's volume.
		l.Warn("Order book unavailable, re-pricing directly", zap.Error(err))
		return &execution{
			shares:      desiredShares,
			avgPrice:    currentPrice,
			cost:        desiredShares * currentPrice,
			impactPct:   book.EstimateSlippageFromSize(desiredShares*currentPrice, dailyVolume),
			fillPercent: 100,
		}, false, nil
	}

	result, err := e.sim.Simulate(observed.Side, desiredShares, ob, observed.Shares)
	if err != nil {
		var liqErr *book.InsufficientLiquidityError
		var slipErr *book.ExcessiveSlippageError
		switch {
		case errors.As(err, &liqErr):
			l.Info("Skipping trade on thin book", zap.Float64("fill_pct", liqErr.FillPercent), zap.Error(err))
			return nil, true, nil
		case errors.As(err, &slipErr):
			l.Info("Skipping trade on excessive slippage", zap.Float64("impact_pct", slipErr.ImpactPercent), zap.Error(err))
			return nil, true, nil
		case errors.Is(err, book.ErrEmptyBook):
			l.Info("Skipping trade on empty book", zap.Error(err))
			return nil, true, nil
		default:
			return nil, false, err
		}
	}
	if result.ExecutedShares <= 0 {
		l.Info("Skipping trade, book had no usable liquidity")
		return nil, true, nil
	}
	if result.ExecutedShares < result.RequestedShares {
		l.Warn("Partial fill accepted", zap.Float64("fill_pct", result.FillPercent()))
	}

	return &execution{
		shares:      result.ExecutedShares,
		avgPrice:    result.AveragePrice,
		cost:        result.TotalCost,
		impactPct:   result.PriceImpact,
		fillPercent: result.FillPercent(),
		fills:       result.Fills,
	}, false, nil
}

func (e *Executor) buildOwnTrade(observed models.Trade, exec *execution, fee, sourceValue float64, pf *ledger.Portfolio) *models.Trade {
	meta := &models.CopyMetadata{
		OriginalTradeID:  observed.ID,
		TargetPercent:    observed.TotalCost / sourceValue * 100,
		SourceValue:      sourceValue,
		OwnValue:         pf.TotalValue,
		SourcePrice:      observed.Price,
		OwnAvgPrice:      exec.avgPrice,
		PriceImpactPct:   exec.impactPct,
		SlippageCostUSDC: (exec.avgPrice - observed.Price) * exec.shares,
		FillPercent:      exec.fillPercent,
	}
	if observed.TotalCost > 0 {
		meta.CostRatio = exec.cost / observed.TotalCost
	}
	if len(exec.fills) > 0 {
		if err := meta.EncodeFills(exec.fills); err != nil {
			e.logger.Warn("Failed to encode fills", zap.Error(err))
		}
	}

	return &models.Trade{
		ID:             uuid.NewString(),
		Timestamp:      e.now().Unix(),
		TraderAddress:  "simulator",
		MarketID:       observed.MarketID,
		MarketQuestion: observed.MarketQuestion,
		TokenID:        observed.TokenID,
		Side:           observed.Side,
		Shares:         exec.shares,
		Price:          exec.avgPrice,
		TotalCost:      exec.cost,
		Fee:            fee,
		Source:         models.SourceCopy,
		CopyMeta:       meta,
	}
}

// applyAndPersist mutates position and cash, recomputes the portfolio and
// writes trade, position and snapshot in that order inside one transaction.
func (e *Executor) applyAndPersist(observed models.Trade, own *models.Trade, position *models.Position, pf *ledger.Portfolio, l *zap.Logger) error {
	if own.Side == models.SideBuy {
		if position = pf.OpenPosition(own.MarketID, own.TokenID); position == nil {
			position = ledger.NewPosition(own.MarketID, own.TokenID, own.MarketQuestion, e.now())
			pf.Positions = append(pf.Positions, position)
		}
		ledger.ApplyBuy(position, own)
		pf.AvailableCash -= own.TotalCost + own.Fee
	} else {
		ledger.ApplySell(position, own)
		pf.AvailableCash += own.TotalCost - own.Fee
	}

	allPositions, err := e.store.GetAllPositions()
	if err != nil {
		return err
	}
	allPositions = overlayPosition(allPositions, position)

	snapshot, discrepancy := pf.Recompute(allPositions)
	if discrepancy > ledger.DiscrepancyTolerance {
		// The two P&L formulations disagree; canonical value stands, but
		// drift this large means some cash moved outside position accounting.
		l.Warn("Accounting discrepancy between P&L formulations",
			zap.Float64("discrepancy", discrepancy),
			zap.Float64("total_pnl", pf.TotalPnL))
	}

	return e.store.Transaction(func(tx *database.Store) error {
		if err := tx.SaveTrade(own); err != nil {
			return err
		}
		if err := tx.SavePosition(position); err != nil {
			return err
		}
		return tx.SavePortfolioSnapshot(snapshot)
	})
}

// overlayPosition replaces (or appends) the freshly mutated position in the
// persisted set, which has not seen it yet.
func overlayPosition(all []*models.Position, p *models.Position) []*models.Position {
	for i, existing := range all {
		if existing.ID == p.ID {
			all[i] = p
			return all
		}
	}
	return append(all, p)
}
