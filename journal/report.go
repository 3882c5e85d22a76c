package journal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/rustyeddy/ledger/backtest"
	"github.com/rustyeddy/ledger/ledger"
	"github.com/rustyeddy/ledger/market"
)

// RunReport is everything the Org report for one run shows.
type RunReport struct {
	Run       ledger.Run
	Summary   backtest.Result
	Trades    []ledger.Trade
	Open      []ledger.OpenPosition
	Signals   int
	Generated time.Time
}

// NewRunReport reads a run's records back from st.
func NewRunReport(ctx context.Context, st ledger.Store, runID string) (RunReport, error) {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return RunReport{}, err
	}
	trades, err := st.Trades(ctx, runID, market.TimeRange{})
	if err != nil {
		return RunReport{}, err
	}
	signals, err := st.Signals(ctx, runID, market.TimeRange{})
	if err != nil {
		return RunReport{}, err
	}
	open, err := st.OpenPositions(ctx, runID)
	if err != nil {
		return RunReport{}, err
	}

	sum := backtest.Summarize(trades)
	sum.RunID = runID
	sum.Signals = len(signals)
	sum.Start, sum.End = run.DataStart, run.DataEnd
	return RunReport{
		Run:       run,
		Summary:   sum,
		Trades:    trades,
		Open:      open,
		Signals:   len(signals),
		Generated: time.Now().UTC(),
	}, nil
}

var reportFuncs = template.FuncMap{
	"date":   func(t time.Time) string { return t.UTC().Format("2006-01-02") },
	"stamp":  func(t time.Time) string { return t.UTC().Format("2006-01-02 Mon 15:04") },
	"trades": FormatTradesOrg,
	"status": func(r ledger.Run) string {
		if r.Closed() {
			return "closed " + r.EndTime.UTC().Format(time.RFC3339)
		}
		return "open"
	},
}

var reportTemplate = template.Must(template.New("run").Funcs(reportFuncs).Parse(RunOrgTemplate))

func (r RunReport) WriteOrg(w io.Writer) error {
	return reportTemplate.Execute(w, r)
}

const RunOrgTemplate = `* RUN: {{.Run.StrategyName}} {{.Run.StrategyVersion}} {{date .Run.DataStart}}..{{date .Run.DataEnd}}
:PROPERTIES:
:RUN_ID:      {{.Run.ID}}
:STRATEGY:    {{.Run.StrategyName}}
:VERSION:     {{if .Run.StrategyVersion}}{{.Run.StrategyVersion}}{{else}}(version?){{end}}
:STARTED:     [{{stamp .Run.StartTime}}]
:STATUS:      {{status .Run}}
:DATA_START:  {{date .Run.DataStart}}
:DATA_END:    {{date .Run.DataEnd}}
:SIGNALS:     {{.Signals}}
:TRADES:      {{.Summary.Trades}}
:WINS:        {{.Summary.Wins}}
:LOSSES:      {{.Summary.Losses}}
:WIN_RATE:    {{printf "%.2f" .Summary.WinRate}}
:NET:         {{printf "%.2f" .Summary.Net}}
:GENERATED:   [{{stamp .Generated}}]
:END:

** Strategy Parameters
| Parameter | Value |
|-----------+-------|
{{- range $k, $v := .Run.Parameters}}
| {{$k}} | {{$v}} |
{{- end}}

** Performance Summary
- Gross:       *{{printf "%.2f" .Summary.Gross}}*
- Commission:  *{{printf "%.2f" .Summary.Commission}}*
- Net:         *{{printf "%.2f" .Summary.Net}}*
- Win Rate:    *{{printf "%.2f" .Summary.WinRate}}%*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Summary.Wins}} |
| Losses  | {{.Summary.Losses}} |
| Total   | {{.Summary.Trades}} |
{{- if .Open}}

** Open Positions
| ID | Symbol | Direction | Opened | Entry | Quantity |
|----+--------+-----------+--------+-------+----------|
{{- range .Open}}
| {{.ID}} | {{.Symbol}} | {{.Direction}} | {{date .OpenedAt}} | {{printf "%.4f" .EntryPrice}} | {{.Quantity}} |
{{- end}}
{{- end}}
{{- if .Trades}}

* Trades
{{trades .Trades}}
{{- end}}
`

// Export writes trades.csv, signals.csv, positions.csv and report.org for
// a run into dir and returns the paths written.
func Export(ctx context.Context, st ledger.Store, runID, dir string) ([]string, error) {
	rep, err := NewRunReport(ctx, st, runID)
	if err != nil {
		return nil, err
	}
	signals, err := st.Signals(ctx, runID, market.TimeRange{})
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"trades.csv", func(w io.Writer) error { return WriteTradesCSV(w, rep.Trades) }},
		{"signals.csv", func(w io.Writer) error { return WriteSignalsCSV(w, signals) }},
		{"positions.csv", func(w io.Writer) error { return WritePositionsCSV(w, rep.Open) }},
		{"report.org", rep.WriteOrg},
	}
	var paths []string
	for _, file := range files {
		path := filepath.Join(dir, file.name)
		if err := writeFile(path, file.write); err != nil {
			return paths, fmt.Errorf("export %s: %w", file.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fh.Close(); err == nil {
			err = cerr
		}
	}()
	return write(fh)
}
