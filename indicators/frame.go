package indicators

import (
	"fmt"

	"github.com/rustyeddy/ledger/market"
)

// Params selects the periods used by Compute.
type Params struct {
	DonchianPeriod int
	ATRPeriod      int
	ADXPeriod      int

	// LegacyDonchian ignores DonchianPeriod and uses the fixed 3 bar window.
	LegacyDonchian bool
}

// DefaultParams are the conventional 20/14/14 periods.
func DefaultParams() Params {
	return Params{DonchianPeriod: 20, ATRPeriod: 14, ADXPeriod: 14}
}

// Warmup is the number of leading bars before every series is defined.
func (p Params) Warmup() int {
	w := p.DonchianPeriod
	if p.LegacyDonchian {
		w = LegacyDonchianWindow
	}
	// TR, and therefore ATR and DI, start at bar 1.
	if p.ATRPeriod > 0 && w < 2 {
		w = 2
	}
	if p.ADXPeriod > 0 && w < 2 {
		w = 2
	}
	return w
}

// Frame bundles every indicator series for one price series.
type Frame struct {
	Donchian    Channel
	TrueRange   []float64
	ATR         []float64
	Directional Directional
}

// Compute runs every indicator over s.
func Compute(s market.Series, p Params) (Frame, error) {
	var (
		f   Frame
		err error
	)

	if p.LegacyDonchian {
		f.Donchian, err = LegacyDonchianChannel(s)
	} else {
		f.Donchian, err = DonchianChannel(s, p.DonchianPeriod)
	}
	if err != nil {
		return Frame{}, fmt.Errorf("donchian: %w", err)
	}
	if f.TrueRange, err = TrueRange(s); err != nil {
		return Frame{}, fmt.Errorf("true range: %w", err)
	}
	if f.ATR, err = AverageTrueRange(s, p.ATRPeriod); err != nil {
		return Frame{}, fmt.Errorf("atr: %w", err)
	}
	if f.Directional, err = DirectionalIndex(s, p.ADXPeriod); err != nil {
		return Frame{}, fmt.Errorf("adx: %w", err)
	}
	return f, nil
}

// Len is the number of bars covered.
func (f Frame) Len() int {
	return len(f.TrueRange)
}
