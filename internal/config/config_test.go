package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func writeConfigFile(t *testing.T, content string) string {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0o644)
	assert.NoError(t, err)
	return dir
}

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	viper.Reset()
	dir := writeConfigFile(t, `
copy:
  target_address: "0xabc"
`)

	cfg, err := LoadConfig(dir)

	assert.NoError(t, err)
	assert.Equal(t, "0xabc", cfg.Copy.TargetAddress)
	assert.Equal(t, "https://data-api.polymarket.com", cfg.Polymarket.DataURL)
	assert.Equal(t, 1000.0, cfg.Copy.InitialCapital)
	assert.Equal(t, 1.0, cfg.Copy.CopyRatio)
	assert.Equal(t, 5.0, cfg.Copy.MaxSlippagePercent)
	assert.True(t, cfg.Copy.SkipOnInsufficientLiquidity)
	assert.Equal(t, 120, cfg.Copy.MaxBuyAgeSec)
	assert.Equal(t, 0.01, cfg.Copy.TakerFeeRate)
	assert.Equal(t, 0.0, cfg.Copy.MakerFeeRate)
	assert.Equal(t, 15, cfg.Engine.PollIntervalSec)
	assert.Equal(t, 30, cfg.Engine.ErrorBackoffSec)
	assert.Equal(t, 8080, cfg.Engine.ApiPort)
	assert.Equal(t, 8081, cfg.Engine.DashboardPort)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	viper.Reset()
	dir := writeConfigFile(t, `
polymarket:
  data_url: "http://localhost:9000"
  rate_limit: 2
copy:
  target_address: "0xdef"
  initial_capital: 5000
  copy_ratio: 0.5
  skip_on_insufficient_liquidity: false
engine:
  poll_interval_sec: 5
logger:
  level: debug
  format: console
database:
  dsn: "sim.db"
`)

	cfg, err := LoadConfig(dir)

	assert.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", cfg.Polymarket.DataURL)
	assert.Equal(t, 2.0, cfg.Polymarket.RateLimit)
	assert.Equal(t, 5000.0, cfg.Copy.InitialCapital)
	assert.Equal(t, 0.5, cfg.Copy.CopyRatio)
	assert.False(t, cfg.Copy.SkipOnInsufficientLiquidity)
	assert.Equal(t, 5, cfg.Engine.PollIntervalSec)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "sim.db", cfg.Database.DSN)
}

func TestLoadConfig_MissingFileFails(t *testing.T) {
	viper.Reset()

	_, err := LoadConfig(t.TempDir())

	assert.Error(t, err)
}
