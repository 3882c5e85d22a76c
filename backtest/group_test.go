package backtest

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/rustyeddy/ledger/ledger"
	"github.com/rustyeddy/ledger/market"
	"github.com/rustyeddy/ledger/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scaled multiplies every price of s by k. Ratios, and so the signals,
// are unchanged.
func scaled(s market.Series, k float64) market.Series {
	bars := make([]market.Bar, s.Len())
	for i := range bars {
		b := s.Bar(i)
		b.Open, b.High, b.Low, b.Close = b.Open*k, b.High*k, b.Low*k, b.Close*k
		bars[i] = b
	}
	return market.FromBars(bars)
}

func TestRunGroupSharesOneRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	strat := breakoutStrategy(t)
	members := []Member{
		{Symbol: "SPY", Series: breakout()},
		{Symbol: "QQQ", Series: scaled(breakout(), 2)},
	}

	st, err := ledger.OpenBacktest(filepath.Join(t.TempDir(), "group.db"), ledger.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	sess, err := ledger.Start(ctx, st, NewGroupRunSpec(strat, "tech", members))
	require.NoError(t, err)

	r := &Runner{Session: sess, Strategy: strat, Sizer: risk.FixedShares{Shares: 10}, Options: Options{CloseAtEnd: true, Equity: 1000}}
	res, err := r.RunGroup(ctx, "tech", members)
	require.NoError(t, err)

	require.Len(t, res.Members, 2)
	assert.Equal(t, "SPY", res.Members[0].Symbol)
	assert.Equal(t, 2, res.Members[0].Trades)
	assert.InDelta(t, 230.0, res.Members[0].Net, 1e-6)
	assert.Equal(t, "QQQ", res.Members[1].Symbol)
	assert.Equal(t, 2, res.Members[1].Trades)
	assert.InDelta(t, 460.0, res.Members[1].Net, 1e-6)

	assert.Equal(t, sess.RunID(), res.Total.RunID)
	assert.Equal(t, 4, res.Total.Trades)
	assert.Equal(t, 6, res.Total.Signals)
	assert.InDelta(t, 690.0, res.Total.Net, 1e-6)
	assert.InDelta(t, 2000.0, res.Total.StartEquity, 1e-9)
	assert.InDelta(t, 2690.0, res.Total.EndEquity, 1e-6)

	trades, err := sess.Trades(ctx, market.TimeRange{})
	require.NoError(t, err)
	bySymbol := map[string]int{}
	for _, tr := range trades {
		assert.Equal(t, sess.RunID(), tr.RunID)
		bySymbol[tr.Symbol]++
	}
	assert.Equal(t, map[string]int{"SPY": 2, "QQQ": 2}, bySymbol)

	runs, err := st.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "tech", runs[0].Parameters["group"])

	var buf bytes.Buffer
	res.Print(&buf)
	assert.Contains(t, buf.String(), "Group tech")
	assert.Contains(t, buf.String(), "Net:           690.00")
}

func TestRunGroupErrors(t *testing.T) {
	t.Parallel()

	strat := breakoutStrategy(t)
	sess := newSession(t, strat, breakout())
	r := &Runner{Session: sess, Strategy: strat}

	_, err := r.RunGroup(context.Background(), "empty", nil)
	assert.ErrorContains(t, err, "no members")

	bad := market.Series{Time: breakout().Time[:2], Close: []float64{1}}
	_, err = r.RunGroup(context.Background(), "tech", []Member{{Symbol: "SPY", Series: breakout()}, {Symbol: "BAD", Series: bad}})
	assert.ErrorContains(t, err, "BAD")
}

func TestNewGroupRunSpec(t *testing.T) {
	t.Parallel()

	strat := breakoutStrategy(t)
	long := breakout()
	short := long.Slice(5, 10)
	spec := NewGroupRunSpec(strat, "tech", []Member{{Symbol: "A", Series: short}, {Symbol: "B", Series: long}})

	assert.Equal(t, long.Time[0], spec.DataStart)
	assert.Equal(t, long.Time[long.Len()-1], spec.DataEnd)
	assert.Equal(t, []string{"A", "B"}, spec.Parameters["symbols"])
	assert.NotContains(t, strat.Params(), "group")
	require.NoError(t, spec.Validate())
}
