package risk

import (
	"math"
	"testing"

	"github.com/rustyeddy/ledger/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedShares(t *testing.T) {
	t.Parallel()

	q, err := FixedShares{Shares: 100}.Size(Inputs{Price: 10})
	require.NoError(t, err)
	assert.Equal(t, Quantity{Type: ledger.Shares, Amount: 100}, q)

	_, err = FixedShares{}.Size(Inputs{Price: 10})
	assert.ErrorIs(t, err, ErrCannotSize)
}

func TestFixedCapital(t *testing.T) {
	t.Parallel()

	q, err := FixedCapital{Capital: 1000}.Size(Inputs{Price: 40})
	require.NoError(t, err)
	assert.Equal(t, ledger.Capital, q.Type)
	assert.InDelta(t, 25.0, q.Amount, 1e-12)

	_, err = FixedCapital{Capital: 1000}.Size(Inputs{Price: 0})
	assert.ErrorIs(t, err, ErrCannotSize)
}

func TestATRRisk(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		sizer     ATRRisk
		in        Inputs
		wantUnits float64
		wantErr   bool
	}{
		{"one percent two atr", ATRRisk{RiskPct: 0.01, StopMultiple: 2}, Inputs{Equity: 10000, Price: 50, ATR: 1.5}, 33, false},
		{"floors", ATRRisk{RiskPct: 0.02, StopMultiple: 1}, Inputs{Equity: 5000, Price: 150, ATR: 0.75}, 133, false},
		{"too small", ATRRisk{RiskPct: 0.001, StopMultiple: 3}, Inputs{Equity: 1000, Price: 10, ATR: 2}, 0, true},
		{"undefined atr", ATRRisk{RiskPct: 0.01, StopMultiple: 2}, Inputs{Equity: 10000, Price: 50, ATR: math.NaN()}, 0, true},
		{"no equity", ATRRisk{RiskPct: 0.01, StopMultiple: 2}, Inputs{Price: 50, ATR: 1}, 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q, err := tt.sizer.Size(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCannotSize)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ledger.Shares, q.Type)
			assert.Equal(t, tt.wantUnits, q.Amount)
		})
	}
}

func TestATRRiskPlan(t *testing.T) {
	t.Parallel()

	p := ATRRisk{RiskPct: 0.01, StopMultiple: 2}.Plan(Inputs{Equity: 10000, ATR: 1.25})
	assert.InDelta(t, 2.5, p.StopDistance, 1e-12)
	assert.InDelta(t, 100.0, p.RiskAmount, 1e-12)
	assert.Equal(t, 40.0, p.Units)
	assert.InDelta(t, 0.01, p.Units*p.StopDistance/10000, 1e-12)
}

func TestNewSizer(t *testing.T) {
	t.Parallel()

	s, err := NewSizer("capital", 5000, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, FixedCapital{Capital: 5000}, s)

	s, err = NewSizer("atr_risk", 0, 0.01, 2)
	require.NoError(t, err)
	assert.Equal(t, ATRRisk{RiskPct: 0.01, StopMultiple: 2}, s)

	_, err = NewSizer("atr_risk", 0, 0, 2)
	assert.Error(t, err)
	_, err = NewSizer("kelly", 0, 0, 0)
	assert.ErrorContains(t, err, "kelly")
}

func TestCommissionModels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		model Commission
		qty   float64
		want  float64
	}{
		{"free", Free{}, 100, 0},
		{"per share", PerShare{Rate: 0.005}, 1000, 10},
		{"per share minimum", PerShare{Rate: 0.005, Minimum: 1}, 10, 2},
		{"flat", Flat{PerFill: 4.95}, 1, 9.9},
		{"percent", Percent{Rate: 0.001}, 10, 0.21},
		{"percent short quantity", Percent{Rate: 0.001}, -10, 0.21},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, tt.model.Cost(tt.qty, 10, 11), 1e-9)
		})
	}
}

func TestNewCommission(t *testing.T) {
	t.Parallel()

	c, err := NewCommission("per_share", 0.01, 1)
	require.NoError(t, err)
	assert.Equal(t, PerShare{Rate: 0.01, Minimum: 1}, c)

	c, err = NewCommission("", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, Free{}, c)

	_, err = NewCommission("flat", -1, 0)
	assert.Error(t, err)
	_, err = NewCommission("tiered", 0, 0)
	assert.Error(t, err)
}
