package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

func TestNewSignalDefaults(t *testing.T) {
	t.Parallel()

	s, err := NewSignal("AAPL", SignalEntry, Long, t0, 150)
	require.NoError(t, err)
	assert.Equal(t, UnknownConfidence, s.Confidence)
	assert.Empty(t, s.Reason)
	assert.Zero(t, s.ID)

	s, err = NewSignal("AAPL", SignalExit, Long, t0, 160, WithConfidence(0.75), WithReason("channel break"))
	require.NoError(t, err)
	assert.Equal(t, 0.75, s.Confidence)
	assert.Equal(t, "channel break", s.Reason)
}

func TestNewSignalRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		make func() (Signal, error)
	}{
		{"empty symbol", func() (Signal, error) { return NewSignal(" ", SignalEntry, Long, t0, 1) }},
		{"bad type", func() (Signal, error) { return NewSignal("X", "buy", Long, t0, 1) }},
		{"bad direction", func() (Signal, error) { return NewSignal("X", SignalEntry, "up", t0, 1) }},
		{"zero time", func() (Signal, error) { return NewSignal("X", SignalEntry, Long, time.Time{}, 1) }},
		{"negative price", func() (Signal, error) { return NewSignal("X", SignalEntry, Long, t0, -1) }},
		{"bad confidence", func() (Signal, error) { return NewSignal("X", SignalEntry, Long, t0, 1, WithConfidence(-0.5)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.make()
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestNewOpenPosition(t *testing.T) {
	t.Parallel()

	p, err := NewOpenPosition("AAPL", Long, t0, 150, Shares, 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, p.Quantity)

	_, err = NewOpenPosition("AAPL", Long, t0, 150, Shares, 0)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = NewOpenPosition("AAPL", Long, t0, 150, Shares, -3)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = NewOpenPosition("AAPL", Long, t0, 150, "lots", 1)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = NewOpenPosition("AAPL", Long, t0, 0, Capital, 1000)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestNewTradeResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		dir        Direction
		qty        float64
		entry      float64
		exit       float64
		commission float64
		gross      float64
		net        float64
	}{
		{"long win", Long, 10, 150, 160, 2, 100, 98},
		{"long loss", Long, 10, 160, 150, 2, -100, -102},
		{"short win", Short, 10, 160, 150, 2, 100, 98},
		{"short loss", Short, 5, 100, 110, 1, -50, -51},
		{"negative quantity is a magnitude", Short, -5, 100, 110, 0, -50, -50},
		{"decimal prices", Long, 3, 0.1, 0.3, 0.1, 0.6, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTrade(TradeInput{
				Symbol:       "AAPL",
				Direction:    tt.dir,
				QuantityType: Shares,
				Quantity:     tt.qty,
				EntryPrice:   tt.entry,
				ExitPrice:    tt.exit,
				EntryTime:    t0,
				ExitTime:     t0.Add(time.Hour),
				Commission:   tt.commission,
			})
			require.NoError(t, err)
			assert.Greater(t, tr.Quantity, 0.0)
			assert.InDelta(t, tt.gross, tr.GrossResult, 1e-12)
			assert.InDelta(t, tt.net, tr.NetResult, 1e-12)
			assert.InDelta(t, tr.GrossResult-tr.Commission, tr.NetResult, 1e-12)
			assert.NoError(t, tr.Validate())
		})
	}
}

func TestNewTradeRejects(t *testing.T) {
	t.Parallel()

	base := TradeInput{
		Symbol:       "AAPL",
		Direction:    Long,
		QuantityType: Shares,
		Quantity:     1,
		EntryPrice:   10,
		ExitPrice:    11,
		EntryTime:    t0,
		ExitTime:     t0,
	}
	_, err := NewTrade(base)
	require.NoError(t, err, "exit equal to entry is allowed")

	tests := []struct {
		name   string
		mutate func(*TradeInput)
	}{
		{"zero quantity", func(in *TradeInput) { in.Quantity = 0 }},
		{"exit before entry", func(in *TradeInput) { in.ExitTime = t0.Add(-time.Minute) }},
		{"negative commission", func(in *TradeInput) { in.Commission = -1 }},
		{"no symbol", func(in *TradeInput) { in.Symbol = "" }},
		{"bad direction", func(in *TradeInput) { in.Direction = "flat" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := NewTrade(in)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestTradeValidateCatchesInconsistentResults(t *testing.T) {
	t.Parallel()

	tr, err := NewTrade(TradeInput{
		Symbol: "AAPL", Direction: Long, QuantityType: Shares, Quantity: 10,
		EntryPrice: 150, ExitPrice: 160, EntryTime: t0, ExitTime: t0.Add(time.Hour), Commission: 2,
	})
	require.NoError(t, err)

	bad := tr
	bad.GrossResult = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidRecord)

	bad = tr
	bad.NetResult = tr.GrossResult
	assert.ErrorIs(t, bad.Validate(), ErrInvalidRecord)
}

func TestClosingTrade(t *testing.T) {
	t.Parallel()

	entry, err := NewSignal("AAPL", SignalEntry, Long, t0, 150)
	require.NoError(t, err)
	entry.ID = 7

	pos, err := PositionFromSignal(entry, Shares, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(7), pos.EntrySignalID)
	assert.Equal(t, 150.0, pos.EntryPrice)

	exit, err := NewSignal("AAPL", SignalExit, Long, t0.Add(24*time.Hour), 160)
	require.NoError(t, err)
	exit.ID = 9

	tr, err := ClosingTrade(pos, exit, 2)
	require.NoError(t, err)
	assert.Equal(t, 100.0, tr.GrossResult)
	assert.Equal(t, 98.0, tr.NetResult)
	assert.Equal(t, int64(7), tr.EntrySignalID)
	assert.Equal(t, int64(9), tr.ExitSignalID)
	assert.True(t, tr.Won())

	exit.Symbol = "MSFT"
	_, err = ClosingTrade(pos, exit, 2)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestParseEnums(t *testing.T) {
	t.Parallel()

	d, err := ParseDirection("LONG")
	require.NoError(t, err)
	assert.Equal(t, Long, d)
	assert.Equal(t, Short, d.Opposite())

	st, err := ParseSignalType(" Reverse ")
	require.NoError(t, err)
	assert.Equal(t, SignalReverse, st)

	q, err := ParseQuantityType("capital")
	require.NoError(t, err)
	assert.Equal(t, Capital, q)

	_, err = ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = ParseSignalType("")
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = ParseQuantityType("lots")
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestIsRecoverable(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRecoverable(positionNotFound("r", 1)))
	assert.True(t, IsRecoverable(ErrReferentialIntegrity))
	assert.False(t, IsRecoverable(runNotFound("r")))
	assert.False(t, IsRecoverable(ErrInvalidRecord))
	assert.False(t, IsRecoverable(nil))
}
