package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Polymarket Polymarket `mapstructure:"polymarket"`
	Copy       Copy       `mapstructure:"copy"`
	Engine     Engine     `mapstructure:"engine"`
	Logger     Logger     `mapstructure:"logger"`
	Database   Database   `mapstructure:"database"`
}

// Polymarket holds the configuration for the market data API.
type Polymarket struct {
	DataURL           string  `mapstructure:"data_url"`
	ClobURL           string  `mapstructure:"clob_url"`
	RateLimit         float64 `mapstructure:"rate_limit"`
	RateLimitBurst    int     `mapstructure:"rate_limit_burst"`
	RequestTimeoutSec int     `mapstructure:"request_timeout_sec"`
}

// Copy holds the copytrading policy: who to mirror and how aggressively.
type Copy struct {
	TargetAddress               string  `mapstructure:"target_address"`
	InitialCapital              float64 `mapstructure:"initial_capital"`
	CopyRatio                   float64 `mapstructure:"copy_ratio"`
	MaxSlippagePercent          float64 `mapstructure:"max_slippage_percent"`
	SkipOnInsufficientLiquidity bool    `mapstructure:"skip_on_insufficient_liquidity"`
	MaxBuyAgeSec                int     `mapstructure:"max_buy_age_sec"`
	MaxPriceDrift               float64 `mapstructure:"max_price_drift"`
	TakerFeeRate                float64 `mapstructure:"taker_fee_rate"`
	MakerFeeRate                float64 `mapstructure:"maker_fee_rate"`
	FallbackTraderValue         float64 `mapstructure:"fallback_trader_value"`
	MinOrderUSDC                float64 `mapstructure:"min_order_usdc"`
}

// Engine holds the configuration for the trading cycle loop.
type Engine struct {
	PollIntervalSec    int `mapstructure:"poll_interval_sec"`
	BalanceRefreshSec  int `mapstructure:"balance_refresh_sec"`
	ResolutionCheckSec int `mapstructure:"resolution_check_sec"`
	ErrorBackoffSec    int `mapstructure:"error_backoff_sec"`
	TradeBatchLimit    int `mapstructure:"trade_batch_limit"`
	ApiPort            int `mapstructure:"api_port"`
	DashboardPort      int `mapstructure:"dashboard_port"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("polymarket.data_url", "https://data-api.polymarket.com")
	viper.SetDefault("polymarket.clob_url", "https://clob.polymarket.com")
	viper.SetDefault("polymarket.rate_limit", 4) // requests per second
	viper.SetDefault("polymarket.rate_limit_burst", 1)
	viper.SetDefault("polymarket.request_timeout_sec", 10)

	viper.SetDefault("copy.initial_capital", 1000)
	viper.SetDefault("copy.copy_ratio", 1.0)
	viper.SetDefault("copy.max_slippage_percent", 5.0)
	viper.SetDefault("copy.skip_on_insufficient_liquidity", true)
	viper.SetDefault("copy.max_buy_age_sec", 120)
	viper.SetDefault("copy.max_price_drift", 0.02)
	viper.SetDefault("copy.taker_fee_rate", 0.01)
	viper.SetDefault("copy.maker_fee_rate", 0.0)
	viper.SetDefault("copy.min_order_usdc", 1.0)

	viper.SetDefault("engine.poll_interval_sec", 15)
	viper.SetDefault("engine.balance_refresh_sec", 300)
	viper.SetDefault("engine.resolution_check_sec", 600)
	viper.SetDefault("engine.error_backoff_sec", 30)
	viper.SetDefault("engine.trade_batch_limit", 100)
	viper.SetDefault("engine.api_port", 8080)
	viper.SetDefault("engine.dashboard_port", 8081)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
