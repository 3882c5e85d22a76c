// Package journal exports ledger records as CSV and Org-mode reports.
package journal

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rustyeddy/ledger/ledger"
)

var (
	tradeHeader = []string{
		"trade_id", "run_id", "symbol", "direction", "quantity_type", "quantity",
		"entry_price", "exit_price", "entry_time", "exit_time",
		"gross_result", "commission", "net_result", "entry_signal_id", "exit_signal_id",
	}
	signalHeader = []string{
		"signal_id", "run_id", "symbol", "type", "direction", "time", "price", "confidence", "reason",
	}
	positionHeader = []string{
		"open_position_id", "run_id", "symbol", "direction", "opened_at", "entry_price",
		"quantity_type", "quantity", "entry_signal_id",
	}
)

func WriteTradesCSV(w io.Writer, trades []ledger.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		err := cw.Write([]string{
			i64(t.ID), t.RunID, t.Symbol, t.Direction.String(), t.QuantityType.String(), f(t.Quantity),
			f(t.EntryPrice), f(t.ExitPrice), ts(t.EntryTime), ts(t.ExitTime),
			f(t.GrossResult), f(t.Commission), f(t.NetResult), i64(t.EntrySignalID), i64(t.ExitSignalID),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteSignalsCSV(w io.Writer, signals []ledger.Signal) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(signalHeader); err != nil {
		return err
	}
	for _, s := range signals {
		err := cw.Write([]string{
			i64(s.ID), s.RunID, s.Symbol, s.Type.String(), s.Direction.String(),
			ts(s.Time), f(s.Price), f(s.Confidence), s.Reason,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WritePositionsCSV(w io.Writer, positions []ledger.OpenPosition) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(positionHeader); err != nil {
		return err
	}
	for _, p := range positions {
		err := cw.Write([]string{
			i64(p.ID), p.RunID, p.Symbol, p.Direction.String(), ts(p.OpenedAt), f(p.EntryPrice),
			p.QuantityType.String(), f(p.Quantity), i64(p.EntrySignalID),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func i64(x int64) string {
	return strconv.FormatInt(x, 10)
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
