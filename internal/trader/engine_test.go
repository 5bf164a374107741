package trader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"polymarket-copy-sim-go/internal/config"
	"polymarket-copy-sim-go/internal/database"
	"polymarket-copy-sim-go/internal/models"
	"polymarket-copy-sim-go/internal/polymarket"
)

func testConfig() *config.Config {
	return &config.Config{
		Copy: *testCopyConfig(),
		Engine: config.Engine{
			PollIntervalSec:    15,
			BalanceRefreshSec:  300,
			ResolutionCheckSec: 600,
			ErrorBackoffSec:    1,
			TradeBatchLimit:    100,
		},
	}
}

func newTestEngine(t *testing.T) (*Engine, *database.Store, *MockClient) {
	store, client := setupTest(t)
	engine := NewEngine(zap.NewNop(), testConfig(), client, store)
	return engine, store, client
}

func TestInitialize_FreshStart(t *testing.T) {
	engine, _, client := newTestEngine(t)
	client.On("GetTraderValue", mock.Anything, "0xtarget").Return(50_000.0, nil)

	err := engine.initialize(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 1000.0, engine.portfolio.AvailableCash)
	assert.Equal(t, 1000.0, engine.portfolio.TotalValue)
	assert.Empty(t, engine.portfolio.Positions)
	assert.Equal(t, 50_000.0, engine.sourceValue)
	// First run copies only trades from now on.
	assert.WithinDuration(t, time.Now(), engine.cursor, 5*time.Second)
}

func TestInitialize_RestoresFromStore(t *testing.T) {
	engine, store, client := newTestEngine(t)

	// A previous run left a snapshot, an open position and a cursor marker.
	assert.NoError(t, store.SavePortfolioSnapshot(&models.PortfolioSnapshot{
		ID: "snap-1", Timestamp: time.Now(), InitialCapital: 1000,
		TotalValue: 1100, AvailableCash: 600, TotalPnL: 100,
	}))
	pos := &models.Position{
		ID: models.PositionID("cond-1", "tok-yes"), MarketID: "cond-1",
		TokenID: "tok-yes", Shares: 100, CurrentPrice: 0.5, IsOpen: true,
	}
	assert.NoError(t, store.SavePosition(pos))
	lastSeen := time.Now().Add(-time.Hour).Truncate(time.Second)
	assert.NoError(t, store.MarkTradeProcessed("obs-0", lastSeen.Unix(), "executed"))

	client.On("GetTraderValue", mock.Anything, "0xtarget").Return(50_000.0, nil)

	err := engine.initialize(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 600.0, engine.portfolio.AvailableCash)
	assert.Equal(t, 1000.0, engine.portfolio.InitialCapital)
	assert.Len(t, engine.portfolio.Positions, 1)
	assert.Equal(t, lastSeen.Unix(), engine.cursor.Unix())
}

func TestCycle_ExecutesObservedTradesChronologically(t *testing.T) {
	engine, store, client := newTestEngine(t)
	client.On("GetTraderValue", mock.Anything, "0xtarget").Return(50_000.0, nil)
	assert.NoError(t, engine.initialize(context.Background()))
	// Back the cursor off so trades stamped "now" are unambiguously newer.
	engine.cursor = time.Now().Add(-time.Minute)

	// Two buys arrive newest-first, as the feed returns them.
	younger := observedBuy()
	younger.ID = "obs-2"
	older := observedBuy()
	older.ID = "obs-1"
	older.Timestamp = younger.Timestamp - 10

	client.On("GetTrades", mock.Anything, "0xtarget", mock.Anything, 100).
		Return([]models.Trade{younger, older}, nil).Once()
	client.On("GetMarket", mock.Anything, "cond-1").Return(activeMarket(0.50), nil)
	client.On("GetOrderBook", mock.Anything, "cond-1", "tok-yes").Return(liquidBook(), nil)

	err := engine.cycle(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, int64(2), engine.stats.TradesExecuted)

	// Both were copied into the one position, and both are marked processed.
	pos := engine.portfolio.OpenPosition("cond-1", "tok-yes")
	assert.NotNil(t, pos)
	assert.InDelta(t, 40.0, pos.Shares, 0.1)

	for _, id := range []string{"obs-1", "obs-2"} {
		done, err := store.IsTradeProcessed(id)
		assert.NoError(t, err)
		assert.True(t, done, "trade %s should be marked processed", id)
	}
	assert.Equal(t, younger.Timestamp, engine.cursor.Unix())
}

func TestCycle_DeduplicatesAcrossCycles(t *testing.T) {
	engine, _, client := newTestEngine(t)
	client.On("GetTraderValue", mock.Anything, "0xtarget").Return(50_000.0, nil)
	assert.NoError(t, engine.initialize(context.Background()))

	observed := observedBuy()
	// The feed returns the same trade in two consecutive polls.
	client.On("GetTrades", mock.Anything, "0xtarget", mock.Anything, 100).
		Return([]models.Trade{observed}, nil).Twice()
	client.On("GetMarket", mock.Anything, "cond-1").Return(activeMarket(0.50), nil)
	client.On("GetOrderBook", mock.Anything, "cond-1", "tok-yes").Return(liquidBook(), nil)

	assert.NoError(t, engine.cycle(context.Background()))
	assert.NoError(t, engine.cycle(context.Background()))

	// Executed exactly once; the second sighting was deduplicated.
	assert.Equal(t, int64(1), engine.stats.TradesExecuted)
	pos := engine.portfolio.OpenPosition("cond-1", "tok-yes")
	assert.InDelta(t, 20.0, pos.Shares, 0.1)
}

func TestCycle_PollFailureReturnsError(t *testing.T) {
	engine, _, client := newTestEngine(t)
	client.On("GetTraderValue", mock.Anything, "0xtarget").Return(50_000.0, nil)
	assert.NoError(t, engine.initialize(context.Background()))

	client.On("GetTrades", mock.Anything, "0xtarget", mock.Anything, 100).
		Return(nil, assert.AnError).Once()

	err := engine.cycle(context.Background())

	assert.Error(t, err)
	assert.ErrorContains(t, err, "could not poll trades")
}

func TestCycle_FailedAttemptsCountEveryRetry(t *testing.T) {
	engine, store, client := newTestEngine(t)
	client.On("GetTraderValue", mock.Anything, "0xtarget").Return(50_000.0, nil)
	assert.NoError(t, engine.initialize(context.Background()))
	engine.cursor = time.Now().Add(-time.Minute)

	observed := observedBuy()
	client.On("GetTrades", mock.Anything, "0xtarget", mock.Anything, 100).
		Return([]models.Trade{observed}, nil)
	client.On("GetMarket", mock.Anything, "cond-1").Return(nil, assert.AnError)

	// The same trade fails in two consecutive cycles and stays retryable.
	assert.Error(t, engine.cycle(context.Background()))
	assert.Error(t, engine.cycle(context.Background()))

	_, stats := engine.Status()
	assert.Equal(t, int64(2), stats.FailedAttempts)
	assert.Equal(t, int64(0), stats.TradesExecuted)

	done, err := store.IsTradeProcessed(observed.ID)
	assert.NoError(t, err)
	assert.False(t, done)
}

func TestCycle_PersistsRefreshedMarks(t *testing.T) {
	engine, store, client := newTestEngine(t)
	client.On("GetTraderValue", mock.Anything, "0xtarget").Return(50_000.0, nil)
	assert.NoError(t, engine.initialize(context.Background()))
	engine.cursor = time.Now().Add(-time.Minute)
	// Keep the slower maintenance out of this cycle.
	engine.lastBalanceSnapshot = time.Now()
	engine.lastResolutionSweep = time.Now()

	// An open holding on another market, persisted with a $0.40 mark.
	held := openPosition(t, store, engine.portfolio, "cond-9", "tok-w", 100, 0.40)

	client.On("GetTrades", mock.Anything, "0xtarget", mock.Anything, 100).
		Return([]models.Trade{observedBuy()}, nil).Once()
	client.On("GetMarket", mock.Anything, "cond-1").Return(activeMarket(0.50), nil)
	client.On("GetOrderBook", mock.Anything, "cond-1", "tok-yes").Return(liquidBook(), nil)
	client.On("GetMarket", mock.Anything, "cond-9").Return(&polymarket.Market{
		ID: "cond-9", Active: true, AcceptingOrders: true,
		Tokens: []polymarket.Token{{ID: "tok-w", Outcome: "Yes", Price: 0.70}},
	}, nil)

	assert.NoError(t, engine.cycle(context.Background()))

	// The held position was re-marked to $0.70 and the row updated, so the
	// dashboard reads the fresh mark.
	saved, err := store.GetPosition(held.ID)
	assert.NoError(t, err)
	assert.InDelta(t, 0.70, saved.CurrentPrice, 1e-9)
	assert.InDelta(t, 100*0.70-40.0, saved.UnrealizedPnL, 1e-9)
}

func TestCycle_RunsResolutionSweepOnItsPeriod(t *testing.T) {
	engine, store, client := newTestEngine(t)
	client.On("GetTraderValue", mock.Anything, "0xtarget").Return(50_000.0, nil)
	assert.NoError(t, engine.initialize(context.Background()))

	// An open position whose market has since resolved in our favor.
	pos := openPosition(t, store, engine.portfolio, "cond-9", "tok-w", 100, 0.40)
	client.On("GetTrades", mock.Anything, "0xtarget", mock.Anything, 100).
		Return([]models.Trade{}, nil)
	client.On("GetMarket", mock.Anything, "cond-9").Return(&polymarket.Market{
		ID: "cond-9", Closed: true,
		Tokens: []polymarket.Token{{ID: "tok-w", Winner: true}},
	}, nil)

	// Sweep period elapsed long ago.
	engine.lastResolutionSweep = time.Now().Add(-time.Hour)

	assert.NoError(t, engine.cycle(context.Background()))

	assert.False(t, pos.IsOpen)
	// 1000 initial - 40 invested + 100 settlement payout.
	assert.InDelta(t, 1060.0, engine.portfolio.AvailableCash, 1e-6)

	snap, err := store.GetLatestPortfolioSnapshot()
	assert.NoError(t, err)
	assert.InDelta(t, 1060.0, snap.TotalValue, 1e-6)
}
