package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"polymarket-copy-sim-go/internal/config"
	"polymarket-copy-sim-go/internal/database"
	"polymarket-copy-sim-go/internal/logger"
	"polymarket-copy-sim-go/internal/polymarket"
	"polymarket-copy-sim-go/internal/trader"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}
	if cfg.Copy.TargetAddress == "" {
		panic("copy.target_address must be configured")
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.File)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded", zap.String("target", cfg.Copy.TargetAddress))

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	store := database.NewStore(db)
	log.Info("Database connection successful and schema migrated.")

	// Initialize Polymarket REST client
	client := polymarket.NewClient(&cfg.Polymarket, log)
	if _, err := client.GetTraderValue(context.Background(), cfg.Copy.TargetAddress); err != nil {
		// Not fatal: the engine falls back to the configured value.
		log.Warn("Could not fetch target trader value on startup", zap.Error(err))
	} else {
		log.Info("Successfully connected to Polymarket API.")
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Initialize and run the trading engine with its status API
	engine := trader.NewEngine(log, &cfg, client, store)
	api := trader.NewAPIServer(engine, log)
	api.Start()
	defer api.Stop(context.Background())

	engine.Run(ctx)

	log.Info("Simulator has been shut down.")
}
