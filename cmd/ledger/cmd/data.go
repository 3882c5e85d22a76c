package cmd

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/ledger/market"
	"github.com/rustyeddy/ledger/market/data"
	"github.com/spf13/cobra"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Manage the market data database",
}

var dataImportCmd = &cobra.Command{
	Use:   "import <symbol> <bars.csv>",
	Short: "Import daily bars from CSV (time,open,high,low,close[,volume])",
	Args:  cobra.ExactArgs(2),
	RunE:  runDataImport,
}

var dataCalendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Record every weekday in a range as a trading day",
	Args:  cobra.NoArgs,
	RunE:  runDataCalendar,
}

var dataSymbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "List symbols with stored bars",
	Args:  cobra.NoArgs,
	RunE:  runDataSymbols,
}

var dataGroupCmd = &cobra.Command{
	Use:   "group <name> [symbols...]",
	Short: "Define a symbol group, or list its members",
	Long: `Group names a set of symbols so a backtest can run all of them into one run.
With symbols the group's membership is replaced; without, its members are printed.

Example:
  ledger data group dow_jones AAPL MSFT IBM
  ledger backtest --group dow_jones`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDataGroup,
}

var (
	calFrom string
	calTo   string
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataImportCmd, dataCalendarCmd, dataSymbolsCmd, dataGroupCmd)

	dataCalendarCmd.Flags().StringVar(&calFrom, "from", "", "first day (YYYY-MM-DD) (required)")
	dataCalendarCmd.Flags().StringVar(&calTo, "to", "", "last day (YYYY-MM-DD) (required)")
	_ = dataCalendarCmd.MarkFlagRequired("from")
	_ = dataCalendarCmd.MarkFlagRequired("to")
}

func runDataImport(cmd *cobra.Command, args []string) error {
	symbol := strings.ToUpper(args[0])
	series, err := data.LoadCSV(args[1])
	if err != nil {
		return err
	}
	bars := make([]market.Bar, series.Len())
	for i := range bars {
		bars[i] = series.Bar(i)
	}
	return withMarket(func(src *data.SQLiteSource) error {
		if err := src.SaveBars(cmd.Context(), symbol, bars); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d %s bars\n", len(bars), symbol)
		return nil
	})
}

func runDataCalendar(cmd *cobra.Command, args []string) error {
	r, err := dateRange(calFrom, calTo)
	if err != nil {
		return err
	}
	days := data.Weekdays(r.From, r.To)
	return withMarket(func(src *data.SQLiteSource) error {
		if err := src.AddTradingDays(cmd.Context(), days); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recorded %d trading days\n", len(days))
		return nil
	})
}

func runDataSymbols(cmd *cobra.Command, args []string) error {
	return withMarket(func(src *data.SQLiteSource) error {
		syms, err := src.Symbols(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range syms {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
		return nil
	})
}

func runDataGroup(cmd *cobra.Command, args []string) error {
	name, symbols := args[0], args[1:]
	for i := range symbols {
		symbols[i] = strings.ToUpper(symbols[i])
	}
	return withMarket(func(src *data.SQLiteSource) error {
		if len(symbols) > 0 {
			if err := src.SaveGroup(cmd.Context(), name, symbols); err != nil {
				return err
			}
		}
		members, err := src.GroupSymbols(cmd.Context(), name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, strings.Join(members, " "))
		return nil
	})
}
