package strategies

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/ledger/indicators"
	"github.com/rustyeddy/ledger/ledger"
	"github.com/rustyeddy/ledger/market"
)

// Window is what a strategy sees when asked about bar Index.
type Window struct {
	Symbol string
	Index  int
	Bars   market.Series
	Frame  indicators.Frame

	// Position is the open position for Symbol, or nil when flat.
	Position *ledger.OpenPosition
}

// Bar returns the bar under evaluation.
func (w Window) Bar() market.Bar {
	return w.Bars.Bar(w.Index)
}

// Strategy turns a price and indicator window into at most one signal.
type Strategy interface {
	Name() string
	Version() string

	// Params are recorded on the run so a backtest can be reproduced.
	Params() map[string]any

	// Indicators selects the periods the window's Frame is computed with.
	Indicators() indicators.Params

	// Warmup is the first bar index Evaluate may signal on.
	Warmup() int

	// Evaluate returns a signal for the current bar, or ok=false.
	Evaluate(w Window) (sig ledger.Signal, ok bool, err error)
}

// Settings are the knobs a strategy may read when built by name.
type Settings struct {
	DonchianPeriod     int
	ADXPeriod          int
	ATRPeriod          int
	ADXThreshold       float64
	VolatilityRatio    float64
	TrailingExitPeriod int
	LegacyDonchian     bool
}

// Factory builds a strategy from settings.
type Factory func(Settings) (Strategy, error)

var registry = map[string]Factory{}

// Register makes a strategy available to ByName.
func Register(name string, f Factory) {
	registry[strings.ToLower(name)] = f
}

// ByName builds the registered strategy called name.
func ByName(name string, s Settings) (Strategy, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return f(s)
}

// Names lists the registered strategies.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func init() {
	Register(NoopName, func(Settings) (Strategy, error) { return Noop{}, nil })
	Register(VolatilityBreakoutName, func(s Settings) (Strategy, error) {
		return NewVolatilityBreakout(VolatilityBreakoutConfig(s))
	})
}

// Scan evaluates every bar of series in order and returns the signals a
// strategy would emit, tracking its own position as it goes. Signals are
// not persisted and carry no identity.
func Scan(strat Strategy, symbol string, series market.Series) ([]ledger.Signal, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}
	frame, err := indicators.Compute(series, strat.Indicators())
	if err != nil {
		return nil, err
	}

	var (
		out []ledger.Signal
		pos *ledger.OpenPosition
	)
	for i := strat.Warmup(); i < series.Len(); i++ {
		sig, ok, err := strat.Evaluate(Window{Symbol: symbol, Index: i, Bars: series, Frame: frame, Position: pos})
		if err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}
		if !ok {
			continue
		}
		out = append(out, sig)
		pos = Track(pos, sig)
	}
	return out, nil
}

// Track returns the position after sig is acted on with a unit quantity.
func Track(pos *ledger.OpenPosition, sig ledger.Signal) *ledger.OpenPosition {
	open := func(dir ledger.Direction) *ledger.OpenPosition {
		return &ledger.OpenPosition{
			Symbol:       sig.Symbol,
			Direction:    dir,
			OpenedAt:     sig.Time,
			EntryPrice:   sig.Price,
			QuantityType: ledger.Shares,
			Quantity:     1,
		}
	}
	switch sig.Type {
	case ledger.SignalEntry:
		if pos == nil {
			return open(sig.Direction)
		}
	case ledger.SignalExit:
		return nil
	case ledger.SignalReverse:
		return open(sig.Direction)
	}
	return pos
}
