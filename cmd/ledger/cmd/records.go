package cmd

import (
	"fmt"
	"time"

	"github.com/rustyeddy/ledger/journal"
	"github.com/rustyeddy/ledger/ledger"
	"github.com/spf13/cobra"
)

var signalsCmd = &cobra.Command{
	Use:   "signals <run-id>",
	Short: "Print a run's signals as CSV",
	Args:  runIDArg,
	RunE:  runSignals,
}

var positionsCmd = &cobra.Command{
	Use:   "positions <run-id>",
	Short: "Print a run's open positions as CSV",
	Args:  runIDArg,
	RunE:  runPositions,
}

var tradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "Print a run's trades as CSV or Org-mode",
	Long: `Print the trades of a run, optionally only those that exited recently.

Examples:
  ledger trades 01J9Z... --since 7d
  ledger trades 01J9Z... --org > trades.org`,
	Args: runIDArg,
	RunE: runTrades,
}

var (
	recSince string
	recOrg   bool
)

func init() {
	rootCmd.AddCommand(signalsCmd, positionsCmd, tradesCmd)

	for _, c := range []*cobra.Command{signalsCmd, tradesCmd} {
		c.Flags().StringVar(&recSince, "since", "", "only records from this long ago (e.g. 36h, 7d, 2w)")
	}
	tradesCmd.Flags().BoolVar(&recOrg, "org", false, "render trades as Org-mode entries")
}

func runSignals(cmd *cobra.Command, args []string) error {
	r, err := sinceRange(recSince, time.Now())
	if err != nil {
		return err
	}
	return withStore(func(st ledger.Store) error {
		sigs, err := st.Signals(cmd.Context(), args[0], r)
		if err != nil {
			return err
		}
		return journal.WriteSignalsCSV(cmd.OutOrStdout(), sigs)
	})
}

func runPositions(cmd *cobra.Command, args []string) error {
	return withStore(func(st ledger.Store) error {
		open, err := st.OpenPositions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return journal.WritePositionsCSV(cmd.OutOrStdout(), open)
	})
}

func runTrades(cmd *cobra.Command, args []string) error {
	r, err := sinceRange(recSince, time.Now())
	if err != nil {
		return err
	}
	return withStore(func(st ledger.Store) error {
		trades, err := st.Trades(cmd.Context(), args[0], r)
		if err != nil {
			return err
		}
		if recOrg {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradesOrg(trades))
			return err
		}
		return journal.WriteTradesCSV(cmd.OutOrStdout(), trades)
	})
}
