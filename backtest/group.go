package backtest

import (
	"context"
	"fmt"
	"io"
	"maps"

	"github.com/rustyeddy/ledger/ledger"
	"github.com/rustyeddy/ledger/market"
	"github.com/rustyeddy/ledger/strategies"
	"github.com/sirupsen/logrus"
)

// Member is one symbol of a group backtest.
type Member struct {
	Symbol string
	Series market.Series
}

// GroupResult holds a Result per member and the total over all of them.
type GroupResult struct {
	Group   string
	Members []Result
	Total   Result
}

// RunGroup runs every member through Run against the runner's session, so
// the signals, positions and trades of the whole group share one run. Each
// member is sized from Options.Equity.
func (r *Runner) RunGroup(ctx context.Context, group string, members []Member) (GroupResult, error) {
	if len(members) == 0 {
		return GroupResult{}, fmt.Errorf("backtest: group %q has no members", group)
	}

	out := GroupResult{Group: group}
	for _, m := range members {
		res, err := r.Run(ctx, m.Symbol, m.Series)
		if err != nil {
			return GroupResult{}, fmt.Errorf("%s: %w", m.Symbol, err)
		}
		out.Members = append(out.Members, res)
	}

	trades, err := r.Session.Trades(ctx, market.TimeRange{})
	if err != nil {
		return GroupResult{}, err
	}
	total := Summarize(trades)
	total.RunID = r.Session.RunID()
	total.Symbol = group
	for _, m := range out.Members {
		total.Bars += m.Bars
		total.Signals += m.Signals
		total.StartEquity += m.StartEquity
		total.EndEquity += m.EndEquity
		if !m.Start.IsZero() && (total.Start.IsZero() || m.Start.Before(total.Start)) {
			total.Start = m.Start
		}
		if m.End.After(total.End) {
			total.End = m.End
		}
	}
	out.Total = total

	r.logger().WithFields(logrus.Fields{
		"run_id":  total.RunID,
		"group":   group,
		"symbols": len(members),
		"trades":  total.Trades,
		"net":     total.Net,
	}).Info("group backtest finished")
	return out, nil
}

func (g GroupResult) Print(w io.Writer) {
	fmt.Fprintf(w, "Group %s\n", g.Group)
	fmt.Fprintf(w, "%-8s %6s %8s %7s %9s %12s\n", "symbol", "bars", "signals", "trades", "win rate", "net")
	for _, m := range g.Members {
		fmt.Fprintf(w, "%-8s %6d %8d %7d %8.2f%% %12.2f\n", m.Symbol, m.Bars, m.Signals, m.Trades, m.WinRate(), m.Net)
	}
	fmt.Fprintln(w)
	g.Total.Print(w)
}

// NewGroupRunSpec describes a run of strat over every member of group. The
// data range spans all members.
func NewGroupRunSpec(strat strategies.Strategy, group string, members []Member) ledger.RunSpec {
	params := maps.Clone(strat.Params())
	if params == nil {
		params = map[string]any{}
	}
	symbols := make([]string, len(members))
	for i, m := range members {
		symbols[i] = m.Symbol
	}
	params["group"] = group
	params["symbols"] = symbols

	spec := ledger.RunSpec{
		StrategyName:    strat.Name(),
		StrategyVersion: strat.Version(),
		Parameters:      params,
	}
	for _, m := range members {
		n := m.Series.Len()
		if n == 0 {
			continue
		}
		if first := m.Series.Time[0]; spec.DataStart.IsZero() || first.Before(spec.DataStart) {
			spec.DataStart = first
		}
		if last := m.Series.Time[n-1]; last.After(spec.DataEnd) {
			spec.DataEnd = last
		}
	}
	return spec
}
