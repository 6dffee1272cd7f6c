package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"GridTradeBot/internal/services/grid"
)

// Load reads settings from the environment, after applying a .env file
// when one exists
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	loc, err := time.LoadLocation(envOr("TRADING_LOCATION", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRADING_LOCATION: %w", err)
	}
	sessionStart, err := envDuration("TRADING_SESSION_START", 0)
	if err != nil {
		return nil, err
	}
	sessionEnd, err := envDuration("TRADING_SESSION_END", 0)
	if err != nil {
		return nil, err
	}
	sleep, err := envDuration("TRADING_SLEEP", 30*time.Second)
	if err != nil {
		return nil, err
	}
	backoff, err := envDuration("TRADING_RETRY_BACKOFF", time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Mode: envOr("MODE", ModeTrade),
		Exchange: ExchangeConfig{
			APIKey:         os.Getenv("BINANCE_API_KEY"),
			SecretKey:      os.Getenv("BINANCE_SECRET_KEY"),
			CommissionRate: EnvtoFloat(os.Getenv("BINANCE_COMMISSION_RATE")),
		},
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     EnvtoInt(os.Getenv("DB_PORT")),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
			SSLMode:  envOr("DB_SSLMODE", "disable"),
		},
		Trading: TradingConfig{
			RunConfig:    os.Getenv("RUN_CONFIG"),
			Presets:      os.Getenv("RUN_PRESETS"),
			SessionStart: sessionStart,
			SessionEnd:   sessionEnd,
			Location:     loc,
			SleepTrading: sleep,
			RetryBackoff: backoff,
			LotSize:      EnvtoFloat(envOr("TRADING_LOT_SIZE", "1")),
		},
		Backtest: BacktestConfig{
			Days:      EnvtoInt(envOr("BACKTEST_DAYS", "7")),
			StartLots: EnvtoInt(os.Getenv("BACKTEST_START_LOTS")),
			Workers:   EnvtoInt(os.Getenv("BACKTEST_WORKERS")),
		},
	}
	cfg.Log.Level = envOr("LOG_LEVEL", "info")
	cfg.Log.File = os.Getenv("LOG_FILE")

	switch cfg.Mode {
	case ModeTrade, ModeBacktest, ModeDownload:
	default:
		return nil, fmt.Errorf("unknown MODE %q", cfg.Mode)
	}
	return cfg, nil
}

// RunConfigs resolves Trading.RunConfig into grid configurations. Several
// entries are separated by ';'. Each is a preset name when a presets file is
// configured and the name is found there, otherwise a configuration line.
func (c *Config) RunConfigs() ([]grid.Config, error) {
	var presets map[string]grid.Config
	if c.Trading.Presets != "" {
		list, err := LoadPresets(c.Trading.Presets)
		if err != nil {
			return nil, err
		}
		presets = make(map[string]grid.Config, len(list))
		for _, p := range list {
			presets[p.Name] = p.Config
		}
	}

	var out []grid.Config
	for _, entry := range strings.Split(c.Trading.RunConfig, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if cfg, ok := presets[entry]; ok {
			out = append(out, cfg)
			continue
		}
		decoded, err := grid.Decode(entry)
		if err != nil {
			return nil, err
		}
		cfg, err := grid.NewConfig(decoded)
		if err != nil {
			return nil, fmt.Errorf("run config %q: %w", entry, err)
		}
		out = append(out, cfg)
	}
	if len(out) == 0 {
		return nil, errors.New("RUN_CONFIG is empty")
	}
	return out, nil
}

type presetEntry struct {
	Line        string `yaml:"line"`
	grid.Config `yaml:",inline"`
}

type presetFile struct {
	Presets map[string]presetEntry `yaml:"presets"`
}

// LoadPresets reads named configurations from a YAML file. An entry is
// either a configuration line under `line` or the structured fields.
func LoadPresets(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets: %w", err)
	}

	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}

	presets := make([]Preset, 0, len(file.Presets))
	for name, entry := range file.Presets {
		cfg := entry.Config
		if entry.Line != "" {
			if cfg, err = grid.Decode(entry.Line); err != nil {
				return nil, fmt.Errorf("preset %s: %w", name, err)
			}
		}
		if cfg, err = grid.NewConfig(cfg); err != nil {
			return nil, fmt.Errorf("preset %s: %w", name, err)
		}
		presets = append(presets, Preset{Name: name, Config: cfg})
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })
	return presets, nil
}

// helper env(string) to int
func EnvtoInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

func EnvtoFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envDuration accepts Go durations ("30s") or clock offsets ("10:00")
func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	if h, m, ok := strings.Cut(v, ":"); ok {
		hours, err1 := strconv.Atoi(h)
		minutes, err2 := strconv.Atoi(m)
		if err1 != nil || err2 != nil {
			return 0, fmt.Errorf("invalid %s %q", key, v)
		}
		return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
