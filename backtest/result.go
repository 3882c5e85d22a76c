package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/ledger/ledger"
	"github.com/shopspring/decimal"
)

// Result is a lightweight summary of a backtest run.
type Result struct {
	RunID  string
	Symbol string

	Bars    int
	Signals int

	Trades int
	Wins   int
	Losses int

	Gross      float64
	Commission float64
	Net        float64

	StartEquity float64
	EndEquity   float64

	Start time.Time
	End   time.Time
}

// Summarize totals a set of trades. Break-even trades count as neither
// wins nor losses.
func Summarize(trades []ledger.Trade) Result {
	var (
		res              Result
		gross, comm, net decimal.Decimal
	)
	for _, t := range trades {
		res.Trades++
		switch {
		case t.NetResult > 0:
			res.Wins++
		case t.NetResult < 0:
			res.Losses++
		}
		gross = gross.Add(decimal.NewFromFloat(t.GrossResult))
		comm = comm.Add(decimal.NewFromFloat(t.Commission))
		net = net.Add(decimal.NewFromFloat(t.NetResult))
	}
	res.Gross = gross.InexactFloat64()
	res.Commission = comm.InexactFloat64()
	res.Net = net.InexactFloat64()
	return res
}

// WinRate is the share of trades that made money, in percent.
func (r Result) WinRate() float64 {
	if r.Trades == 0 {
		return 0
	}
	return 100 * float64(r.Wins) / float64(r.Trades)
}

func (r Result) Print(w io.Writer) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "Run ID:        %s\n", r.RunID)
	fmt.Fprintf(w, "Symbol:        %s\n", r.Symbol)
	if !r.Start.IsZero() {
		fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
		fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Bars:          %d\n", r.Bars)
	fmt.Fprintf(w, "Signals:       %d\n", r.Signals)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", r.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", r.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.WinRate())
	fmt.Fprintf(w, "Gross:         %.2f\n", r.Gross)
	fmt.Fprintf(w, "Commission:    %.2f\n", r.Commission)
	fmt.Fprintf(w, "Net:           %.2f\n", r.Net)

	if r.StartEquity > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Start Equity:  %.2f\n", r.StartEquity)
		fmt.Fprintf(w, "End Equity:    %.2f\n", r.EndEquity)
	}
	fmt.Fprintln(w)
}
