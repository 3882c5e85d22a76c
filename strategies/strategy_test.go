package strategies

import (
	"testing"
	"time"

	"github.com/rustyeddy/ledger/indicators"
	"github.com/rustyeddy/ledger/ledger"
	"github.com/rustyeddy/ledger/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// breakoutSeries chops around 100 for 15 bars, trends up for 10 and then
// drops 5 points a bar for 5.
func breakoutSeries() market.Series {
	var bars []market.Bar
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	add := func(h, l, c float64) {
		bars = append(bars, market.Bar{
			Time: start.AddDate(0, 0, len(bars)), Open: c, High: h, Low: l, Close: c, Volume: 1000,
		})
	}
	for i := 0; i < 15; i++ {
		c := 99.5
		if i%2 == 1 {
			c = 100.5
		}
		add(c+1, c-1, c)
	}
	c := 100.0
	for i := 0; i < 10; i++ {
		c += 2
		add(c+1, c-1.5, c+0.8)
	}
	c = bars[len(bars)-1].Close
	for i := 0; i < 5; i++ {
		c -= 5
		add(c+1, c-1, c)
	}
	return market.FromBars(bars)
}

func testConfig() VolatilityBreakoutConfig {
	return VolatilityBreakoutConfig{
		DonchianPeriod:     5,
		ADXPeriod:          5,
		ATRPeriod:          5,
		ADXThreshold:       20,
		VolatilityRatio:    0.005,
		TrailingExitPeriod: 3,
	}
}

type want struct {
	index int
	typ   ledger.SignalType
	dir   ledger.Direction
	price float64
}

func assertSignals(t *testing.T, s market.Series, got []ledger.Signal, wants []want) {
	t.Helper()

	require.Len(t, got, len(wants))
	for i, w := range wants {
		assert.Equal(t, w.typ, got[i].Type, "signal %d", i)
		assert.Equal(t, w.dir, got[i].Direction, "signal %d", i)
		assert.InDelta(t, w.price, got[i].Price, 1e-9, "signal %d", i)
		assert.Equal(t, s.Time[w.index], got[i].Time, "signal %d", i)
		assert.Equal(t, "SPY", got[i].Symbol)
		assert.NotEmpty(t, got[i].Reason)
		assert.GreaterOrEqual(t, got[i].Confidence, 0.0)
		assert.LessOrEqual(t, got[i].Confidence, 1.0)
	}
}

func TestVolatilityBreakoutReverses(t *testing.T) {
	t.Parallel()

	strat, err := NewVolatilityBreakout(testConfig())
	require.NoError(t, err)

	s := breakoutSeries()
	got, err := Scan(strat, "SPY", s)
	require.NoError(t, err)
	assertSignals(t, s, got, []want{
		{15, ledger.SignalEntry, ledger.Long, 102.8},
		{26, ledger.SignalReverse, ledger.Short, 110.8},
	})
}

func TestVolatilityBreakoutTrailingExit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.DonchianPeriod = 10
	strat, err := NewVolatilityBreakout(cfg)
	require.NoError(t, err)

	s := breakoutSeries()
	got, err := Scan(strat, "SPY", s)
	require.NoError(t, err)
	assertSignals(t, s, got, []want{
		{15, ledger.SignalEntry, ledger.Long, 102.8},
		{26, ledger.SignalExit, ledger.Long, 110.8},
		{28, ledger.SignalEntry, ledger.Short, 100.8},
	})
}

func TestVolatilityBreakoutADXFilter(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.ADXThreshold = 90
	strat, err := NewVolatilityBreakout(cfg)
	require.NoError(t, err)

	got, err := Scan(strat, "SPY", breakoutSeries())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestVolatilityBreakoutLegacyChannel(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.DonchianPeriod = 30
	cfg.LegacyDonchian = true
	strat, err := NewVolatilityBreakout(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, strat.Warmup())

	s := breakoutSeries()
	got, err := Scan(strat, "SPY", s)
	require.NoError(t, err)
	assertSignals(t, s, got, []want{
		{15, ledger.SignalEntry, ledger.Long, 102.8},
		{26, ledger.SignalReverse, ledger.Short, 110.8},
	})
}

func TestVolatilityBreakoutEvaluateBeforeWarmup(t *testing.T) {
	t.Parallel()

	strat, err := NewVolatilityBreakout(testConfig())
	require.NoError(t, err)
	s := breakoutSeries()
	frame, err := indicators.Compute(s, strat.Indicators())
	require.NoError(t, err)

	_, ok, err := strat.Evaluate(Window{Symbol: "SPY", Index: 2, Bars: s, Frame: frame})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewVolatilityBreakoutDefaultsAndErrors(t *testing.T) {
	t.Parallel()

	strat, err := NewVolatilityBreakout(VolatilityBreakoutConfig{ADXThreshold: 25})
	require.NoError(t, err)
	assert.Equal(t, 20, strat.Config().DonchianPeriod)
	assert.Equal(t, 10, strat.Config().TrailingExitPeriod)
	assert.Equal(t, 20, strat.Warmup())
	assert.Equal(t, 20, strat.Params()["donchian_period"])

	_, err = NewVolatilityBreakout(VolatilityBreakoutConfig{DonchianPeriod: -1})
	assert.ErrorIs(t, err, indicators.ErrInvalidPeriod)
	_, err = NewVolatilityBreakout(VolatilityBreakoutConfig{ADXThreshold: 120})
	assert.Error(t, err)
	_, err = NewVolatilityBreakout(VolatilityBreakoutConfig{VolatilityRatio: -0.1})
	assert.Error(t, err)
}

func TestByName(t *testing.T) {
	t.Parallel()

	strat, err := ByName("Volatility_Breakout", Settings{DonchianPeriod: 5, ADXThreshold: 20})
	require.NoError(t, err)
	assert.Equal(t, VolatilityBreakoutName, strat.Name())
	assert.Equal(t, 5, strat.Indicators().DonchianPeriod)

	strat, err = ByName("noop", Settings{})
	require.NoError(t, err)
	got, err := Scan(strat, "SPY", breakoutSeries())
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ByName("martingale", Settings{})
	assert.ErrorContains(t, err, "noop")
	assert.Equal(t, []string{NoopName, VolatilityBreakoutName}, Names())
}

func TestScanRejectsUnorderedSeries(t *testing.T) {
	t.Parallel()

	s := breakoutSeries()
	s.Time[3] = s.Time[1]
	_, err := Scan(Noop{}, "SPY", s)
	assert.ErrorIs(t, err, market.ErrUnordered)
}

func TestTrack(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sig := func(typ ledger.SignalType, dir ledger.Direction) ledger.Signal {
		return ledger.Signal{Symbol: "SPY", Type: typ, Direction: dir, Time: at, Price: 10}
	}

	pos := Track(nil, sig(ledger.SignalEntry, ledger.Long))
	require.NotNil(t, pos)
	assert.Equal(t, ledger.Long, pos.Direction)

	assert.Same(t, pos, Track(pos, sig(ledger.SignalEntry, ledger.Short)), "entry while open is ignored")
	assert.Same(t, pos, Track(pos, sig(ledger.SignalNone, ledger.Long)))

	rev := Track(pos, sig(ledger.SignalReverse, ledger.Short))
	assert.Equal(t, ledger.Short, rev.Direction)
	assert.Nil(t, Track(rev, sig(ledger.SignalExit, ledger.Short)))
}
