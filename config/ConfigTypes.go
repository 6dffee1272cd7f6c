package config

import (
	"time"

	"GridTradeBot/internal/logger"
	"GridTradeBot/internal/services/grid"
)

const (
	ModeTrade    = "trade"
	ModeBacktest = "backtest"
	ModeDownload = "download"
)

type Config struct {
	Mode     string
	Exchange ExchangeConfig
	Database DatabaseConfig
	Trading  TradingConfig
	Backtest BacktestConfig
	Log      logger.Config
}

type ExchangeConfig struct {
	APIKey         string
	SecretKey      string
	CommissionRate float64 // fraction of notional per fill
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type TradingConfig struct {
	// RunConfig is a configuration line, or a preset name when Presets is set
	RunConfig string
	Presets   string

	SessionStart time.Duration
	SessionEnd   time.Duration
	Location     *time.Location
	SleepTrading time.Duration
	RetryBackoff time.Duration
	LotSize      float64
}

type BacktestConfig struct {
	Days      int // days replayed, ending yesterday
	StartLots int
	Workers   int
}

// Preset is a named configuration loaded from a presets file
type Preset struct {
	Name   string
	Config grid.Config
}
