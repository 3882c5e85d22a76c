package cmd

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/ledger/indicators"
	"github.com/rustyeddy/ledger/market"
	"github.com/rustyeddy/ledger/market/data"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var indicatorsCmd = &cobra.Command{
	Use:   "indicators <symbol>",
	Short: "Print Donchian, ATR and ADX for stored bars",
	Long: `Compute the indicator frame for a symbol using the configured strategy
periods and print the last --last bars.

Example:
  ledger indicators SPY --from 2024-01-01 --last 10`,
	Args: cobra.ExactArgs(1),
	RunE: runIndicators,
}

var (
	indFrom string
	indTo   string
	indLast int
	indCSV  string
)

func init() {
	rootCmd.AddCommand(indicatorsCmd)

	indicatorsCmd.Flags().StringVar(&indFrom, "from", "", "first bar (YYYY-MM-DD)")
	indicatorsCmd.Flags().StringVar(&indTo, "to", "", "last bar (YYYY-MM-DD)")
	indicatorsCmd.Flags().IntVarP(&indLast, "last", "n", 20, "number of bars to print (0 = all)")
	indicatorsCmd.Flags().StringVar(&indCSV, "csv", "", "read bars from a CSV file instead of the market database")
}

func runIndicators(cmd *cobra.Command, args []string) error {
	series, err := loadSeries(cmd, args[0], indFrom, indTo, indCSV)
	if err != nil {
		return err
	}
	p := indicators.Params{
		DonchianPeriod: cfg.Strategy.DonchianPeriod,
		ATRPeriod:      cfg.Strategy.ATRPeriod,
		ADXPeriod:      cfg.Strategy.ADXPeriod,
		LegacyDonchian: cfg.Strategy.LegacyDonchian,
	}
	frame, err := indicators.Compute(series, p)
	if err != nil {
		return err
	}

	start := 0
	if indLast > 0 && series.Len() > indLast {
		start = series.Len() - indLast
	}
	width := frame.Donchian.Width()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %10s %10s %10s %10s %10s %8s %8s %8s\n", "date", "close", "upper", "lower", "width", "atr", "+di", "-di", "adx")
	for i := start; i < series.Len(); i++ {
		fmt.Fprintf(out, "%-10s %10.4f %10s %10s %10s %10s %8s %8s %8s\n",
			series.Time[i].Format("2006-01-02"), series.Close[i],
			num(frame.Donchian.Upper[i], 4), num(frame.Donchian.Lower[i], 4), num(width[i], 4), num(frame.ATR[i], 4),
			num(frame.Directional.PlusDI[i], 2), num(frame.Directional.MinusDI[i], 2), num(frame.Directional.ADX[i], 2))
	}
	return nil
}

// loadSeries reads bars for symbol from csvPath when set, otherwise from
// the market database.
func loadSeries(cmd *cobra.Command, symbol, from, to, csvPath string) (market.Series, error) {
	r, err := dateRange(from, to)
	if err != nil {
		return market.Series{}, err
	}
	if csvPath != "" {
		s, err := data.LoadCSV(csvPath)
		if err != nil {
			return market.Series{}, err
		}
		return within(s, r), nil
	}

	var s market.Series
	err = withMarket(func(src *data.SQLiteSource) error {
		var err error
		s, err = readBars(cmd.Context(), src, strings.ToUpper(symbol), r)
		return err
	})
	return s, err
}

// readBars loads symbol's bars in r. A bounded range is first checked
// against the trading calendar: no trading days is an error, gaps only warn.
func readBars(ctx context.Context, src *data.SQLiteSource, symbol string, r market.TimeRange) (market.Series, error) {
	if !r.From.IsZero() && !r.To.IsZero() {
		c, err := src.Coverage(ctx, symbol, r)
		if err != nil {
			return market.Series{}, err
		}
		fields := logrus.Fields{"symbol": symbol, "trading_days": c.TradingDays}
		if !c.Complete() {
			log.WithFields(fields).WithField("missing", c.Missing()).Warn("bars missing for trading days")
		}
		if c.OffCalendar > 0 {
			log.WithFields(fields).WithField("off_calendar", c.OffCalendar).Warn("bars on non-trading days")
		}
	}

	s, err := src.Bars(ctx, symbol, r)
	if err == nil && s.Len() == 0 {
		err = fmt.Errorf("no bars for %s", symbol)
	}
	return s, err
}

func within(s market.Series, r market.TimeRange) market.Series {
	from, to := 0, s.Len()
	for from < to && !r.Contains(s.Time[from]) {
		from++
	}
	for to > from && !r.Contains(s.Time[to-1]) {
		to--
	}
	return s.Slice(from, to)
}

func num(v float64, prec int) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.*f", prec, v)
}
