package strategies

import (
	"fmt"
	"math"

	"github.com/rustyeddy/ledger/indicators"
	"github.com/rustyeddy/ledger/ledger"
)

const VolatilityBreakoutName = "volatility_breakout"

// VolatilityBreakoutConfig mirrors Settings field for field.
type VolatilityBreakoutConfig struct {
	DonchianPeriod     int
	ADXPeriod          int
	ATRPeriod          int
	ADXThreshold       float64 // e.g. 25
	VolatilityRatio    float64 // minimum ATR/close, e.g. 0.01
	TrailingExitPeriod int
	LegacyDonchian     bool
}

// DefaultVolatilityBreakout is 20 bar channels, ADX(14) above 25, ATR(14)
// at least 1% of price and a 10 bar trailing exit.
func DefaultVolatilityBreakout() VolatilityBreakoutConfig {
	return VolatilityBreakoutConfig{
		DonchianPeriod:     20,
		ADXPeriod:          14,
		ATRPeriod:          14,
		ADXThreshold:       25,
		VolatilityRatio:    0.01,
		TrailingExitPeriod: 10,
	}
}

// VolatilityBreakout enters when the close breaks out of the previous
// bar's Donchian channel while ADX shows a trend and ATR relative to price
// shows enough volatility. A long exits when the close falls below the
// lowest low of the trailing exit window; shorts mirror that. A breakout
// against the open position reverses it.
type VolatilityBreakout struct {
	cfg VolatilityBreakoutConfig
}

func NewVolatilityBreakout(cfg VolatilityBreakoutConfig) (*VolatilityBreakout, error) {
	def := DefaultVolatilityBreakout()
	if cfg.DonchianPeriod == 0 {
		cfg.DonchianPeriod = def.DonchianPeriod
	}
	if cfg.ADXPeriod == 0 {
		cfg.ADXPeriod = def.ADXPeriod
	}
	if cfg.ATRPeriod == 0 {
		cfg.ATRPeriod = def.ATRPeriod
	}
	if cfg.TrailingExitPeriod == 0 {
		cfg.TrailingExitPeriod = def.TrailingExitPeriod
	}
	switch {
	case cfg.DonchianPeriod < 0, cfg.ADXPeriod < 0, cfg.ATRPeriod < 0, cfg.TrailingExitPeriod < 0:
		return nil, fmt.Errorf("%w: volatility breakout periods must be positive", indicators.ErrInvalidPeriod)
	case cfg.ADXThreshold < 0 || cfg.ADXThreshold > 100:
		return nil, fmt.Errorf("volatility breakout: adx threshold %v outside 0..100", cfg.ADXThreshold)
	case cfg.VolatilityRatio < 0:
		return nil, fmt.Errorf("volatility breakout: volatility ratio %v must not be negative", cfg.VolatilityRatio)
	}
	return &VolatilityBreakout{cfg: cfg}, nil
}

func (v *VolatilityBreakout) Name() string    { return VolatilityBreakoutName }
func (v *VolatilityBreakout) Version() string { return "1.0" }

func (v *VolatilityBreakout) Config() VolatilityBreakoutConfig { return v.cfg }

func (v *VolatilityBreakout) Params() map[string]any {
	return map[string]any{
		"donchian_period":      v.cfg.DonchianPeriod,
		"adx_period":           v.cfg.ADXPeriod,
		"atr_period":           v.cfg.ATRPeriod,
		"adx_threshold":        v.cfg.ADXThreshold,
		"volatility_ratio":     v.cfg.VolatilityRatio,
		"trailing_exit_period": v.cfg.TrailingExitPeriod,
		"legacy_donchian":      v.cfg.LegacyDonchian,
	}
}

func (v *VolatilityBreakout) Indicators() indicators.Params {
	return indicators.Params{
		DonchianPeriod: v.cfg.DonchianPeriod,
		ATRPeriod:      v.cfg.ATRPeriod,
		ADXPeriod:      v.cfg.ADXPeriod,
		LegacyDonchian: v.cfg.LegacyDonchian,
	}
}

// Warmup leaves room for the previous bar's channel and a full trailing
// window.
func (v *VolatilityBreakout) Warmup() int {
	w := v.Indicators().Warmup()
	if v.cfg.TrailingExitPeriod > w {
		w = v.cfg.TrailingExitPeriod
	}
	return w
}

func (v *VolatilityBreakout) Evaluate(w Window) (ledger.Signal, bool, error) {
	i := w.Index
	if i < v.Warmup() || i >= w.Bars.Len() {
		return ledger.Signal{}, false, nil
	}
	f := w.Frame
	bar := w.Bar()

	upper, lower := f.Donchian.Upper[i-1], f.Donchian.Lower[i-1]
	adx, atr := f.Directional.ADX[i], f.ATR[i]
	if math.IsNaN(upper) || math.IsNaN(lower) || math.IsNaN(adx) || math.IsNaN(atr) || bar.Close <= 0 {
		return ledger.Signal{}, false, nil
	}

	var breakout ledger.Direction
	trending := adx > v.cfg.ADXThreshold && atr/bar.Close > v.cfg.VolatilityRatio
	switch {
	case trending && bar.Close > upper:
		breakout = ledger.Long
	case trending && bar.Close < lower:
		breakout = ledger.Short
	}

	confidence := math.Min(adx/100, 1)
	signal := func(typ ledger.SignalType, dir ledger.Direction, reason string) (ledger.Signal, bool, error) {
		sig, err := ledger.NewSignal(w.Symbol, typ, dir, bar.Time, bar.Close,
			ledger.WithConfidence(confidence), ledger.WithReason(reason))
		if err != nil {
			return ledger.Signal{}, false, err
		}
		return sig, true, nil
	}

	if w.Position == nil {
		if breakout == "" {
			return ledger.Signal{}, false, nil
		}
		return signal(ledger.SignalEntry, breakout,
			fmt.Sprintf("close %.4f broke %s channel [%.4f, %.4f], adx %.1f, atr %.4f",
				bar.Close, breakout, lower, upper, adx, atr))
	}

	held := w.Position.Direction
	if breakout == held.Opposite() {
		return signal(ledger.SignalReverse, breakout,
			fmt.Sprintf("close %.4f broke %s channel against %s position", bar.Close, breakout, held))
	}

	lo, hi := trailing(w, v.cfg.TrailingExitPeriod)
	switch {
	case held == ledger.Long && bar.Close < lo:
		return signal(ledger.SignalExit, held,
			fmt.Sprintf("close %.4f below %d bar trailing low %.4f", bar.Close, v.cfg.TrailingExitPeriod, lo))
	case held == ledger.Short && bar.Close > hi:
		return signal(ledger.SignalExit, held,
			fmt.Sprintf("close %.4f above %d bar trailing high %.4f", bar.Close, v.cfg.TrailingExitPeriod, hi))
	}
	return ledger.Signal{}, false, nil
}

// trailing returns the lowest low and highest high of the n bars before
// the window's bar.
func trailing(w Window, n int) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for j := w.Index - n; j < w.Index; j++ {
		if j < 0 {
			continue
		}
		lo = math.Min(lo, w.Bars.Low[j])
		hi = math.Max(hi, w.Bars.High[j])
	}
	return lo, hi
}
