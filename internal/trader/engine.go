package trader

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"polymarket-copy-sim-go/internal/config"
	"polymarket-copy-sim-go/internal/database"
	"polymarket-copy-sim-go/internal/ledger"
	"polymarket-copy-sim-go/internal/models"
	"polymarket-copy-sim-go/internal/polymarket"
)

// Engine is the core trading cycle driver: it polls the target trader's
// feed, executes new trades chronologically, refreshes marks and runs the
// periodic balance and resolution maintenance. All state mutation happens on
// this single loop; there is never a concurrent writer to the ledger.
type Engine struct {
	UUID      string
	StartTime time.Time

	logger   *zap.Logger
	cfg      *config.Config
	client   polymarket.ClientInterface
	store    *database.Store
	executor *Executor
	resolver *Resolver

	portfolio   *ledger.Portfolio
	sourceValue float64
	cursor      time.Time // newest observed-trade timestamp already handled

	lastBalanceSnapshot time.Time
	lastResolutionSweep time.Time

	// mu guards cursor and stats, the only loop state the API server reads
	// while the loop goroutine writes.
	mu    sync.RWMutex
	stats Stats
}

// Stats are running counters for the status endpoint. FailedAttempts counts
// execution attempts, so a trade retried across backoff cycles adds one per
// attempt until it goes through.
type Stats struct {
	TradesExecuted int64 `json:"trades_executed"`
	TradesSkipped  int64 `json:"trades_skipped"`
	FailedAttempts int64 `json:"failed_attempts"`
	CyclesRun      int64 `json:"cycles_run"`
}

// NewEngine creates a new trading engine.
func NewEngine(logger *zap.Logger, cfg *config.Config, client polymarket.ClientInterface, store *database.Store) *Engine {
	return &Engine{
		UUID:      uuid.NewString(),
		StartTime: time.Now(),
		logger:    logger,
		cfg:       cfg,
		client:    client,
		store:     store,
		executor:  NewExecutor(logger.Named("executor"), &cfg.Copy, client, store),
		resolver:  NewResolver(logger.Named("resolver"), client, store),
	}
}

// Portfolio exposes the current account state for the status API.
func (e *Engine) Portfolio() *ledger.Portfolio {
	return e.portfolio
}

// Status returns a consistent view of the loop state for concurrent readers.
func (e *Engine) Status() (cursor time.Time, stats Stats) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cursor, e.stats
}

func (e *Engine) recordOutcome(outcome Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch outcome {
	case OutcomeExecuted:
		e.stats.TradesExecuted++
	case OutcomeSkipped:
		e.stats.TradesSkipped++
	case OutcomeFailed:
		e.stats.FailedAttempts++
	}
}

// Run starts the engine's main loop.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("Initializing trading engine...")
	if err := e.initialize(ctx); err != nil {
		e.logger.Fatal("Failed to initialize engine", zap.Error(err))
	}
	e.logger.Info("Engine initialized successfully.",
		zap.Float64("available_cash", e.portfolio.AvailableCash),
		zap.Int("open_positions", len(e.portfolio.Positions)),
		zap.Time("cursor", e.cursor))

	interval := time.Duration(e.cfg.Engine.PollIntervalSec) * time.Second
	backoff := time.Duration(e.cfg.Engine.ErrorBackoffSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Starting copy loop", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping trading engine...")
			return
		case <-ticker.C:
			if err := e.cycle(ctx); err != nil {
				e.logger.Error("Cycle failed, backing off", zap.Error(err), zap.Duration("backoff", backoff))
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// initialize restores the portfolio and cursor from the store so a restart
// continues where the previous run stopped.
func (e *Engine) initialize(ctx context.Context) error {
	snapshot, err := e.store.GetLatestPortfolioSnapshot()
	if err != nil {
		return err
	}
	if snapshot != nil {
		e.portfolio = &ledger.Portfolio{
			InitialCapital: snapshot.InitialCapital,
			AvailableCash:  snapshot.AvailableCash,
			TotalValue:     snapshot.TotalValue,
			TotalPnL:       snapshot.TotalPnL,
		}
		e.logger.Info("Restored portfolio from snapshot",
			zap.String("snapshot_id", snapshot.ID),
			zap.Float64("total_value", snapshot.TotalValue))
	} else {
		e.portfolio = ledger.NewPortfolio(e.cfg.Copy.InitialCapital)
		e.logger.Info("Starting fresh portfolio",
			zap.Float64("initial_capital", e.cfg.Copy.InitialCapital))
	}

	open, err := e.store.GetOpenPositions()
	if err != nil {
		return err
	}
	e.portfolio.Positions = open

	lastProcessed, err := e.store.LastProcessedSourceTime()
	if err != nil {
		return err
	}
	e.mu.Lock()
	if lastProcessed > 0 {
		e.cursor = time.Unix(lastProcessed, 0)
	} else {
		// First run: only copy trades made from now on.
		e.cursor = time.Now()
	}
	e.mu.Unlock()

	e.refreshSourceValue(ctx, true)
	return nil
}

// cycle is one full pass: poll, execute chronologically, refresh marks,
// report, and run the slower periodic maintenance.
func (e *Engine) cycle(ctx context.Context) error {
	e.mu.Lock()
	e.stats.CyclesRun++
	e.mu.Unlock()

	trades, err := e.client.GetTrades(ctx, e.cfg.Copy.TargetAddress, e.cursor, e.cfg.Engine.TradeBatchLimit)
	if err != nil {
		return fmt.Errorf("could not poll trades: %w", err)
	}

	if len(trades) > 0 {
		e.logger.Info("Observed new trades", zap.Int("count", len(trades)))
		sort.Slice(trades, func(i, j int) bool { return trades[i].Timestamp < trades[j].Timestamp })

		markets := newMarketCache(e.client)
		for _, observed := range trades {
			if err := e.processTrade(ctx, observed, markets); err != nil {
				// Leave this trade and the rest of the batch unprocessed so
				// chronological order survives the retry next cycle.
				return err
			}
		}
		e.reportPerformance()
	}

	e.runPeriodicMaintenance(ctx)
	return nil
}

// processTrade handles one observed trade end to end, including the
// idempotency bookkeeping and cursor advance.
func (e *Engine) processTrade(ctx context.Context, observed models.Trade, markets *marketCache) error {
	done, err := e.store.IsTradeProcessed(observed.ID)
	if err != nil {
		return err
	}
	if done {
		e.advanceCursor(observed)
		return nil
	}

	// Staleness of the denominator matters more than throughput here.
	e.refreshSourceValue(ctx, false)

	outcome, err := e.executor.Execute(ctx, observed, e.sourceValue, e.portfolio)
	e.recordOutcome(outcome)
	if err != nil {
		return fmt.Errorf("trade %s: %w", observed.ID, err)
	}

	if err := e.store.MarkTradeProcessed(observed.ID, observed.Timestamp, string(outcome)); err != nil {
		return err
	}
	e.advanceCursor(observed)

	// Open positions get re-marked after every trade so the next scaling
	// decision sees a current portfolio value.
	e.refreshMarkPrices(ctx, markets)
	return e.persistPortfolio()
}

func (e *Engine) advanceCursor(observed models.Trade) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t := observed.TradeTime(); t.After(e.cursor) {
		e.cursor = t
	}
}

// refreshMarkPrices updates every open position's mark from current market
// data. Markets already fetched in this batch come from the cache.
func (e *Engine) refreshMarkPrices(ctx context.Context, markets *marketCache) {
	now := time.Now()
	for _, p := range e.portfolio.Positions {
		if !p.IsOpen {
			continue
		}
		market, err := markets.get(ctx, p.MarketID)
		if err != nil {
			e.logger.Warn("Could not refresh mark price",
				zap.String("position", p.ID), zap.Error(err))
			continue
		}
		if price, ok := market.TokenPrice(p.TokenID); ok {
			ledger.MarkPrice(p, price, now)
		}
	}
}

// persistPortfolio recomputes aggregates over the full position set and
// writes a fresh snapshot.
func (e *Engine) persistPortfolio() error {
	allPositions, err := e.store.GetAllPositions()
	if err != nil {
		return err
	}
	// Mutated open positions overlay their possibly stale persisted rows.
	for _, p := range e.portfolio.Positions {
		allPositions = overlayPosition(allPositions, p)
	}

	snapshot, discrepancy := e.portfolio.Recompute(allPositions)
	if discrepancy > ledger.DiscrepancyTolerance {
		e.logger.Warn("Accounting discrepancy between P&L formulations",
			zap.Float64("discrepancy", discrepancy))
	}

	// Re-marked open positions go to storage with the snapshot, otherwise the
	// dashboard serves stale marks between trades on a market.
	return e.store.Transaction(func(tx *database.Store) error {
		for _, p := range e.portfolio.Positions {
			if err := tx.SavePosition(p); err != nil {
				return err
			}
		}
		return tx.SavePortfolioSnapshot(snapshot)
	})
}

// reportPerformance logs the post-batch performance summary.
func (e *Engine) reportPerformance() {
	_, stats := e.Status()
	e.logger.Info("Performance report",
		zap.Float64("total_value", e.portfolio.TotalValue),
		zap.Float64("available_cash", e.portfolio.AvailableCash),
		zap.Float64("total_pnl", e.portfolio.TotalPnL),
		zap.Int("open_positions", len(e.portfolio.Positions)),
		zap.Int64("executed", stats.TradesExecuted),
		zap.Int64("skipped", stats.TradesSkipped),
		zap.Int64("failed_attempts", stats.FailedAttempts),
	)
}

// runPeriodicMaintenance refreshes the balance snapshot and runs the
// resolution sweep on their own, longer periods.
func (e *Engine) runPeriodicMaintenance(ctx context.Context) {
	now := time.Now()

	if now.Sub(e.lastBalanceSnapshot) >= time.Duration(e.cfg.Engine.BalanceRefreshSec)*time.Second {
		e.refreshSourceValue(ctx, true)
		e.lastBalanceSnapshot = now
	}

	if now.Sub(e.lastResolutionSweep) >= time.Duration(e.cfg.Engine.ResolutionCheckSec)*time.Second {
		if settled := e.resolver.Sweep(ctx, e.portfolio); settled > 0 {
			e.logger.Info("Resolution sweep settled positions", zap.Int("count", settled))
			if err := e.persistPortfolio(); err != nil {
				e.logger.Error("Failed to persist portfolio after resolution", zap.Error(err))
			}
		}
		e.lastResolutionSweep = now
	}
}

// refreshSourceValue updates the estimate of the copied trader's portfolio
// value. Fallback order on failure: last persisted snapshot, then the
// configured value. Snapshots are only persisted on the periodic refresh to
// keep the table from growing per trade.
func (e *Engine) refreshSourceValue(ctx context.Context, persist bool) {
	address := e.cfg.Copy.TargetAddress

	value, err := e.client.GetTraderValue(ctx, address)
	provenance := models.BalanceObserved
	if err != nil {
		e.logger.Warn("Could not observe source portfolio value", zap.Error(err))
		if e.sourceValue > 0 {
			return // keep the current estimate
		}
		if last, lerr := e.store.GetLatestBalanceSnapshot(address); lerr == nil && last != nil {
			e.sourceValue = last.Value
			return
		}
		value = e.cfg.Copy.FallbackTraderValue
		provenance = models.BalanceConfigured
		if value <= 0 {
			return
		}
	}
	e.sourceValue = value

	if persist {
		snap := &models.BalanceSnapshot{
			Address:    address,
			Value:      value,
			Provenance: provenance,
			Timestamp:  time.Now().UTC(),
		}
		if err := e.store.SaveBalanceSnapshot(snap); err != nil {
			e.logger.Error("Failed to save balance snapshot", zap.Error(err))
		}
	}
}

// marketCache memoizes market fetches within one batch so re-marking many
// positions does not hammer the API.
type marketCache struct {
	client  polymarket.ClientInterface
	markets map[string]*polymarket.Market
}

func newMarketCache(client polymarket.ClientInterface) *marketCache {
	return &marketCache{client: client, markets: make(map[string]*polymarket.Market)}
}

func (mc *marketCache) get(ctx context.Context, marketID string) (*polymarket.Market, error) {
	if m, ok := mc.markets[marketID]; ok {
		return m, nil
	}
	m, err := mc.client.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	mc.markets[marketID] = m
	return m, nil
}
