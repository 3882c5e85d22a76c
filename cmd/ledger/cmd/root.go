package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/ledger/config"
	"github.com/rustyeddy/ledger/internal/logging"
	"github.com/rustyeddy/ledger/ledger"
	"github.com/rustyeddy/ledger/market"
	"github.com/rustyeddy/ledger/market/data"
	"github.com/rustyeddy/ledger/pkg/id"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/xhit/go-str2duration/v2"
)

var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Trade ledger and indicator pipeline",
	Long: `Ledger records the signals, positions and trades of strategy runs in SQLite.

It provides tools for:
  - Importing daily bars and trading calendars
  - Computing Donchian, ATR and ADX indicators
  - Backtesting strategies into a ledger run
  - Querying and exporting runs as CSV or Org-mode`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var (
	cfgPath  string
	dbPath   string
	mode     string
	logLevel string

	cfg *config.Config
	log *logrus.Logger
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "ledger database (overrides ledger.db_path)")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "", "ledger mode: backtest|live")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		c.Ledger.DBPath = dbPath
	}
	if mode != "" {
		c.Ledger.Mode = mode
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if err := c.Validate(); err != nil {
		return err
	}
	l, err := logging.New(c.Log)
	if err != nil {
		return err
	}
	cfg, log = c, l
	return nil
}

func withStore(fn func(ledger.Store) error) error {
	m, opts, err := cfg.StoreOptions(log)
	if err != nil {
		return err
	}
	return ledger.WithStore(m, cfg.Ledger.DBPath, opts, fn)
}

func withMarket(fn func(*data.SQLiteSource) error) error {
	src, err := data.OpenSQLite(cfg.MarketData.DBPath, log)
	if err != nil {
		return fmt.Errorf("open market data: %w", err)
	}
	defer src.Close()
	return fn(src)
}

// dateRange turns --from/--to flags into a range. Either may be empty.
func dateRange(from, to string) (market.TimeRange, error) {
	var (
		r   market.TimeRange
		err error
	)
	if from != "" {
		if r.From, err = data.ParseTime(from); err != nil {
			return r, fmt.Errorf("--from: %w", err)
		}
	}
	if to != "" {
		if r.To, err = data.ParseTime(to); err != nil {
			return r, fmt.Errorf("--to: %w", err)
		}
	}
	return r, r.Validate()
}

// sinceRange turns a --since value such as "7d" or "36h" into a range
// ending now.
func sinceRange(since string, now time.Time) (market.TimeRange, error) {
	if strings.TrimSpace(since) == "" {
		return market.TimeRange{}, nil
	}
	d, err := str2duration.ParseDuration(since)
	if err != nil {
		return market.TimeRange{}, fmt.Errorf("--since: %w", err)
	}
	return market.Since(now.Add(-d)), nil
}

// runIDArg accepts exactly one well-formed run id.
func runIDArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	return id.Validate(args[0])
}
