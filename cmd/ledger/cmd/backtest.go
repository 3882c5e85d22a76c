package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/rustyeddy/ledger/backtest"
	"github.com/rustyeddy/ledger/ledger"
	"github.com/rustyeddy/ledger/market/data"
	"github.com/rustyeddy/ledger/strategies"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest [symbol]",
	Short: "Run the configured strategy over a symbol's bars into a new run",
	Long: `Backtest replays daily bars through a strategy and records every signal,
position and trade in the ledger under a new run. With --group every member
of a symbol group (see "ledger data group") is replayed into the same run.

Supported strategies:
  - noop: never signals (baseline)
  - volatility_breakout: Donchian breakout filtered by ADX and ATR

Example:
  ledger backtest SPY --from 2020-01-01 --to 2024-12-31
  ledger backtest SPY --csv data/spy.csv --strategy noop
  ledger backtest --group dow_jones --from 2020-01-01 --to 2024-12-31`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBacktest,
}

var (
	btFrom     string
	btTo       string
	btCSV      string
	btGroup    string
	btStrategy string
	btKeepOpen bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btFrom, "from", "", "first bar (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&btTo, "to", "", "last bar (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&btCSV, "csv", "", "read bars from a CSV file instead of the market database")
	backtestCmd.Flags().StringVarP(&btGroup, "group", "g", "", "backtest every symbol of a group into one run")
	backtestCmd.Flags().StringVarP(&btStrategy, "strategy", "s", "", "strategy name (overrides strategy.name)")
	backtestCmd.Flags().BoolVar(&btKeepOpen, "keep-open", false, "leave the final position open instead of closing it at the last bar")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	switch {
	case btGroup == "" && len(args) == 0:
		return fmt.Errorf("backtest needs a symbol or --group")
	case btGroup != "" && len(args) > 0:
		return fmt.Errorf("backtest takes a symbol or --group, not both")
	case btGroup != "" && btCSV != "":
		return fmt.Errorf("--group reads from the market database and cannot be used with --csv")
	}

	name := cfg.Strategy.Name
	if btStrategy != "" {
		name = btStrategy
	}
	strat, err := strategies.ByName(name, cfg.Strategy.Settings())
	if err != nil {
		return err
	}
	sizer, err := cfg.Backtest.Sizer()
	if err != nil {
		return err
	}
	comm, err := cfg.Backtest.CommissionModel()
	if err != nil {
		return err
	}

	var members []backtest.Member
	if btGroup != "" {
		members, err = loadGroup(cmd.Context(), btGroup, btFrom, btTo)
	} else {
		symbol := strings.ToUpper(args[0])
		series, lerr := loadSeries(cmd, symbol, btFrom, btTo, btCSV)
		members, err = []backtest.Member{{Symbol: symbol, Series: series}}, lerr
	}
	if err != nil {
		return err
	}

	return withStore(func(st ledger.Store) error {
		spec := backtest.NewRunSpec(strat, members[0].Series)
		if btGroup != "" {
			spec = backtest.NewGroupRunSpec(strat, btGroup, members)
		}
		sess, err := ledger.Start(cmd.Context(), st, spec)
		if err != nil {
			return err
		}
		fields := logrus.Fields{"run_id": sess.RunID(), "strategy": strat.Name()}
		if btGroup != "" {
			fields["group"] = btGroup
		} else {
			fields["symbol"] = members[0].Symbol
		}
		log.WithFields(fields).Info("backtest started")

		r := &backtest.Runner{
			Session:    sess,
			Strategy:   strat,
			Sizer:      sizer,
			Commission: comm,
			Options: backtest.Options{
				CommitEvery: cfg.Backtest.CommitEvery,
				CloseAtEnd:  cfg.Backtest.CloseAtEnd && !btKeepOpen,
				Equity:      cfg.Backtest.Equity,
			},
			Log: log,
		}

		if btGroup != "" {
			res, err := r.RunGroup(cmd.Context(), btGroup, members)
			if err != nil {
				return err
			}
			if err := sess.End(cmd.Context()); err != nil {
				return err
			}
			res.Print(cmd.OutOrStdout())
			return nil
		}

		res, err := r.Run(cmd.Context(), members[0].Symbol, members[0].Series)
		if err != nil {
			return err
		}
		if err := sess.End(cmd.Context()); err != nil {
			return err
		}
		res.Print(cmd.OutOrStdout())
		return nil
	})
}

// loadGroup reads the bars of every member of group from the market
// database.
func loadGroup(ctx context.Context, group, from, to string) ([]backtest.Member, error) {
	r, err := dateRange(from, to)
	if err != nil {
		return nil, err
	}
	var members []backtest.Member
	err = withMarket(func(src *data.SQLiteSource) error {
		symbols, err := src.GroupSymbols(ctx, group)
		if err != nil {
			return err
		}
		for _, sym := range symbols {
			s, err := readBars(ctx, src, sym, r)
			if err != nil {
				return fmt.Errorf("%s: %w", sym, err)
			}
			members = append(members, backtest.Member{Symbol: sym, Series: s})
		}
		return nil
	})
	return members, err
}
