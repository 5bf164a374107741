package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"polymarket-copy-sim-go/internal/models"
)

// Store wraps the gorm handle with the read/write contract the engine needs.
// Every write is an upsert; queries never need more than a filter on market,
// outcome and the open flag.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store over an open database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for read-only consumers (dashboard).
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn inside one gorm transaction. The executor persists
// trade, position and portfolio snapshot as a single unit through this, so a
// reader never observes cash debited without the position updated.
func (s *Store) Transaction(fn func(tx *Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// SaveTrade upserts a trade record.
func (s *Store) SaveTrade(trade *models.Trade) error {
	if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(trade).Error; err != nil {
		return fmt.Errorf("failed to save trade %s: %w", trade.ID, err)
	}
	return nil
}

// SavePosition upserts a position record.
func (s *Store) SavePosition(p *models.Position) error {
	if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(p).Error; err != nil {
		return fmt.Errorf("failed to save position %s: %w", p.ID, err)
	}
	return nil
}

// GetPosition loads one position by id, nil when absent.
func (s *Store) GetPosition(id string) (*models.Position, error) {
	var p models.Position
	err := s.db.First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position %s: %w", id, err)
	}
	return &p, nil
}

// GetAllPositions returns every position, open and closed.
func (s *Store) GetAllPositions() ([]*models.Position, error) {
	var positions []*models.Position
	if err := s.db.Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	return positions, nil
}

// GetOpenPositions returns only positions still carrying exposure.
func (s *Store) GetOpenPositions() ([]*models.Position, error) {
	var positions []*models.Position
	if err := s.db.Where("is_open = ?", true).Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to get open positions: %w", err)
	}
	return positions, nil
}

// SavePortfolioSnapshot appends a portfolio snapshot.
func (s *Store) SavePortfolioSnapshot(snap *models.PortfolioSnapshot) error {
	if err := s.db.Create(snap).Error; err != nil {
		return fmt.Errorf("failed to save portfolio snapshot: %w", err)
	}
	return nil
}

// GetLatestPortfolioSnapshot returns the newest snapshot, nil when the store
// is empty (fresh start).
func (s *Store) GetLatestPortfolioSnapshot() (*models.PortfolioSnapshot, error) {
	var snap models.PortfolioSnapshot
	err := s.db.Order("timestamp desc").First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest portfolio snapshot: %w", err)
	}
	return &snap, nil
}

// SaveBalanceSnapshot appends a source-trader balance estimate.
func (s *Store) SaveBalanceSnapshot(snap *models.BalanceSnapshot) error {
	if err := s.db.Create(snap).Error; err != nil {
		return fmt.Errorf("failed to save balance snapshot: %w", err)
	}
	return nil
}

// GetLatestBalanceSnapshot returns the newest balance estimate for an
// address, nil when none was recorded yet.
func (s *Store) GetLatestBalanceSnapshot(address string) (*models.BalanceSnapshot, error) {
	var snap models.BalanceSnapshot
	err := s.db.Where("address = ?", address).Order("timestamp desc").First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest balance snapshot: %w", err)
	}
	return &snap, nil
}

// IsTradeProcessed reports whether an observed trade id was already handled.
func (s *Store) IsTradeProcessed(tradeID string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.ProcessedTrade{}).Where("trade_id = ?", tradeID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check processed trade %s: %w", tradeID, err)
	}
	return count > 0, nil
}

// MarkTradeProcessed records the idempotency marker for an observed trade.
func (s *Store) MarkTradeProcessed(tradeID string, sourceTime int64, outcome string) error {
	marker := models.ProcessedTrade{
		TradeID:     tradeID,
		SourceTime:  sourceTime,
		Outcome:     outcome,
		ProcessedAt: time.Now().UTC(),
	}
	if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker).Error; err != nil {
		return fmt.Errorf("failed to mark trade %s processed: %w", tradeID, err)
	}
	return nil
}

// LastProcessedSourceTime returns the newest observed-trade timestamp that
// was handled, zero when nothing was processed yet. The engine seeds its
// polling cursor from this on startup.
func (s *Store) LastProcessedSourceTime() (int64, error) {
	var marker models.ProcessedTrade
	err := s.db.Order("source_time desc").First(&marker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get last processed source time: %w", err)
	}
	return marker.SourceTime, nil
}
