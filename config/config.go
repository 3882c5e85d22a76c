// Package config loads the ledger's settings from a YAML (or JSON) file,
// an optional .env file and the environment, in that order.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rustyeddy/ledger/ledger"
	"github.com/rustyeddy/ledger/risk"
	"github.com/rustyeddy/ledger/strategies"
	"github.com/sirupsen/logrus"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration.
type Config struct {
	Ledger     LedgerConfig     `json:"ledger" yaml:"ledger"`
	MarketData MarketDataConfig `json:"market_data" yaml:"market_data"`
	Strategy   StrategyConfig   `json:"strategy" yaml:"strategy"`
	Backtest   BacktestConfig   `json:"backtest" yaml:"backtest"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// LedgerConfig selects the ledger backend.
type LedgerConfig struct {
	Mode        string `json:"mode" yaml:"mode"` // "backtest" or "live"
	DBPath      string `json:"db_path" yaml:"db_path"`
	BusyTimeout string `json:"busy_timeout,omitempty" yaml:"busy_timeout,omitempty"` // e.g. "5s"
}

// MarketDataConfig locates the price database.
type MarketDataConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

// StrategyConfig names a strategy and its knobs.
type StrategyConfig struct {
	Name               string  `json:"name" yaml:"name"`
	DonchianPeriod     int     `json:"donchian_period" yaml:"donchian_period"`
	ADXPeriod          int     `json:"adx_period" yaml:"adx_period"`
	ATRPeriod          int     `json:"atr_period" yaml:"atr_period"`
	ADXThreshold       float64 `json:"adx_threshold" yaml:"adx_threshold"`
	VolatilityRatio    float64 `json:"volatility_ratio" yaml:"volatility_ratio"`
	TrailingExitPeriod int     `json:"trailing_exit_period" yaml:"trailing_exit_period"`
	LegacyDonchian     bool    `json:"legacy_donchian,omitempty" yaml:"legacy_donchian,omitempty"`
}

// BacktestConfig controls the runner.
type BacktestConfig struct {
	Equity      float64          `json:"equity" yaml:"equity"`
	CommitEvery int              `json:"commit_every" yaml:"commit_every"`
	CloseAtEnd  bool             `json:"close_at_end" yaml:"close_at_end"`
	Sizing      SizingConfig     `json:"sizing" yaml:"sizing"`
	Commission  CommissionConfig `json:"commission" yaml:"commission"`
}

type SizingConfig struct {
	Method       string  `json:"method" yaml:"method"` // "shares", "capital" or "atr_risk"
	Amount       float64 `json:"amount,omitempty" yaml:"amount,omitempty"`
	RiskPct      float64 `json:"risk_pct,omitempty" yaml:"risk_pct,omitempty"`
	StopMultiple float64 `json:"stop_multiple,omitempty" yaml:"stop_multiple,omitempty"`
}

type CommissionConfig struct {
	Model   string  `json:"model" yaml:"model"` // "none", "per_share", "flat" or "percent"
	Rate    float64 `json:"rate,omitempty" yaml:"rate,omitempty"`
	Minimum float64 `json:"minimum,omitempty" yaml:"minimum,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "text" or "json"
}

// Environment variables that override the file.
const (
	EnvLedgerMode  = "LEDGER_MODE"
	EnvLedgerDB    = "LEDGER_DB_PATH"
	EnvBusyTimeout = "LEDGER_BUSY_TIMEOUT"
	EnvMarketDB    = "MARKET_DB_PATH"
	EnvLogLevel    = "LOG_LEVEL"
	EnvLogFormat   = "LOG_FORMAT"
)

// Load reads path (if set) and a .env file in the working directory (if
// present), then applies environment overrides.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, ".env")
}

// LoadWithEnv is Load with an explicit .env location. A missing env file
// is not an error.
func LoadWithEnv(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// Try YAML first, fall back to JSON
		if err := yaml.Unmarshal(data, cfg); err != nil {
			if jerr := json.Unmarshal(data, cfg); jerr != nil {
				return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
			}
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Ledger.Mode, EnvLedgerMode)
	set(&c.Ledger.DBPath, EnvLedgerDB)
	set(&c.Ledger.BusyTimeout, EnvBusyTimeout)
	set(&c.MarketData.DBPath, EnvMarketDB)
	set(&c.Log.Level, EnvLogLevel)
	set(&c.Log.Format, EnvLogFormat)
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := ledger.ParseMode(c.Ledger.Mode); err != nil {
		return fmt.Errorf("ledger.mode: %w", err)
	}
	if c.Ledger.DBPath == "" {
		return fmt.Errorf("ledger.db_path is required")
	}
	if mode, _ := ledger.ParseMode(c.Ledger.Mode); mode == ledger.ModeLive && c.Ledger.DBPath == ":memory:" {
		return fmt.Errorf("ledger.db_path: live mode needs a file database")
	}
	if _, err := c.BusyTimeout(); err != nil {
		return fmt.Errorf("ledger.busy_timeout: %w", err)
	}
	if c.MarketData.DBPath == "" {
		return fmt.Errorf("market_data.db_path is required")
	}
	if _, err := strategies.ByName(c.Strategy.Name, c.Strategy.Settings()); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if c.Backtest.Equity < 0 {
		return fmt.Errorf("backtest.equity must not be negative")
	}
	if c.Backtest.CommitEvery < 0 {
		return fmt.Errorf("backtest.commit_every must not be negative")
	}
	if _, err := c.Backtest.Sizer(); err != nil {
		return fmt.Errorf("backtest.sizing: %w", err)
	}
	if _, err := c.Backtest.CommissionModel(); err != nil {
		return fmt.Errorf("backtest.commission: %w", err)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	return nil
}

// BusyTimeout parses Ledger.BusyTimeout; empty means the store default.
func (c *Config) BusyTimeout() (time.Duration, error) {
	if c.Ledger.BusyTimeout == "" {
		return 0, nil
	}
	d, err := str2duration.ParseDuration(c.Ledger.BusyTimeout)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", c.Ledger.BusyTimeout)
	}
	return d, nil
}

// StoreOptions builds the ledger options for this configuration.
func (c *Config) StoreOptions(log logrus.FieldLogger) (ledger.Mode, ledger.Options, error) {
	mode, err := ledger.ParseMode(c.Ledger.Mode)
	if err != nil {
		return "", ledger.Options{}, err
	}
	timeout, err := c.BusyTimeout()
	if err != nil {
		return "", ledger.Options{}, err
	}
	return mode, ledger.Options{Logger: log, BusyTimeout: timeout}, nil
}

func (s StrategyConfig) Settings() strategies.Settings {
	return strategies.Settings{
		DonchianPeriod:     s.DonchianPeriod,
		ADXPeriod:          s.ADXPeriod,
		ATRPeriod:          s.ATRPeriod,
		ADXThreshold:       s.ADXThreshold,
		VolatilityRatio:    s.VolatilityRatio,
		TrailingExitPeriod: s.TrailingExitPeriod,
		LegacyDonchian:     s.LegacyDonchian,
	}
}

func (b BacktestConfig) Sizer() (risk.Sizer, error) {
	return risk.NewSizer(b.Sizing.Method, b.Sizing.Amount, b.Sizing.RiskPct, b.Sizing.StopMultiple)
}

func (b BacktestConfig) CommissionModel() (risk.Commission, error) {
	return risk.NewCommission(b.Commission.Model, b.Commission.Rate, b.Commission.Minimum)
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{
			Mode:        string(ledger.ModeBacktest),
			DBPath:      "./ledger.db",
			BusyTimeout: "5s",
		},
		MarketData: MarketDataConfig{
			DBPath: "./market.db",
		},
		Strategy: StrategyConfig{
			Name:               strategies.VolatilityBreakoutName,
			DonchianPeriod:     20,
			ADXPeriod:          14,
			ATRPeriod:          14,
			ADXThreshold:       25,
			VolatilityRatio:    0.01,
			TrailingExitPeriod: 10,
		},
		Backtest: BacktestConfig{
			Equity:      100000,
			CommitEvery: 500,
			CloseAtEnd:  true,
			Sizing: SizingConfig{
				Method:       "atr_risk",
				RiskPct:      0.01,
				StopMultiple: 2,
			},
			Commission: CommissionConfig{
				Model:   "per_share",
				Rate:    0.005,
				Minimum: 1,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
