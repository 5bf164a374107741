package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"polymarket-copy-sim-go/internal/models"
)

// NewDatabase creates a new database connection and performs auto-migration.
// Migration is additive: simulator state (positions, snapshots, the
// processed-trade dedup table) must survive restarts.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.Trade{},
		&models.Position{},
		&models.PortfolioSnapshot{},
		&models.BalanceSnapshot{},
		&models.ProcessedTrade{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return db, nil
}
