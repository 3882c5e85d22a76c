package ledger

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnknownConfidence marks a signal whose strategy reports no confidence.
const UnknownConfidence = -1.0

// RunSpec describes a run to be created.
type RunSpec struct {
	StrategyName    string
	StrategyVersion string
	Parameters      map[string]any
	DataStart       time.Time
	DataEnd         time.Time
}

func (s RunSpec) Validate() error {
	if strings.TrimSpace(s.StrategyName) == "" {
		return invalid("run: strategy name is required")
	}
	if s.DataStart.IsZero() || s.DataEnd.IsZero() {
		return invalid("run: data range is required")
	}
	return nil
}

// Run groups every signal, position and trade of one execution.
type Run struct {
	ID              string
	StrategyName    string
	StrategyVersion string
	Parameters      map[string]any
	StartTime       time.Time
	EndTime         *time.Time
	DataStart       time.Time
	DataEnd         time.Time
}

// Closed reports whether the run has ended.
func (r Run) Closed() bool {
	return r.EndTime != nil
}

// Signal is a strategy decision at one bar.
type Signal struct {
	ID         int64
	RunID      string
	Symbol     string
	Type       SignalType
	Direction  Direction
	Time       time.Time
	Price      float64
	Confidence float64
	Reason     string
}

// SignalOption customizes NewSignal.
type SignalOption func(*Signal)

func WithConfidence(c float64) SignalOption {
	return func(s *Signal) { s.Confidence = c }
}

func WithReason(reason string) SignalOption {
	return func(s *Signal) { s.Reason = reason }
}

// NewSignal builds a validated signal. Confidence defaults to
// UnknownConfidence.
func NewSignal(symbol string, typ SignalType, dir Direction, at time.Time, price float64, opts ...SignalOption) (Signal, error) {
	s := Signal{
		Symbol:     symbol,
		Type:       typ,
		Direction:  dir,
		Time:       at.UTC(),
		Price:      price,
		Confidence: UnknownConfidence,
	}
	for _, o := range opts {
		o(&s)
	}
	if err := s.Validate(); err != nil {
		return Signal{}, err
	}
	return s, nil
}

func (s Signal) Validate() error {
	switch {
	case strings.TrimSpace(s.Symbol) == "":
		return invalid("signal: symbol is required")
	case !s.Type.Valid():
		return invalid("signal: unknown type %q", s.Type)
	case !s.Direction.Valid():
		return invalid("signal: unknown direction %q", s.Direction)
	case s.Time.IsZero():
		return invalid("signal: timestamp is required")
	case !finite(s.Price) || s.Price < 0:
		return invalid("signal: price %v is not a valid price", s.Price)
	case s.Confidence != UnknownConfidence && (s.Confidence < 0 || math.IsNaN(s.Confidence)):
		return invalid("signal: confidence %v must be >= 0 or %v", s.Confidence, UnknownConfidence)
	}
	return nil
}

// OpenPosition is a position that has been entered and not yet closed.
type OpenPosition struct {
	ID            int64
	RunID         string
	Symbol        string
	Direction     Direction
	OpenedAt      time.Time
	EntryPrice    float64
	QuantityType  QuantityType
	Quantity      float64
	EntrySignalID int64
}

// NewOpenPosition builds a validated position. The entry signal is bound
// when the position is persisted.
func NewOpenPosition(symbol string, dir Direction, openedAt time.Time, entryPrice float64, qt QuantityType, qty float64) (OpenPosition, error) {
	p := OpenPosition{
		Symbol:       symbol,
		Direction:    dir,
		OpenedAt:     openedAt.UTC(),
		EntryPrice:   entryPrice,
		QuantityType: qt,
		Quantity:     qty,
	}
	if err := p.Validate(); err != nil {
		return OpenPosition{}, err
	}
	return p, nil
}

// PositionFromSignal opens a position at the signal's bar and price.
func PositionFromSignal(entry Signal, qt QuantityType, qty float64) (OpenPosition, error) {
	p, err := NewOpenPosition(entry.Symbol, entry.Direction, entry.Time, entry.Price, qt, qty)
	if err != nil {
		return OpenPosition{}, err
	}
	p.EntrySignalID = entry.ID
	return p, nil
}

func (p OpenPosition) Validate() error {
	switch {
	case strings.TrimSpace(p.Symbol) == "":
		return invalid("position: symbol is required")
	case !p.Direction.Valid():
		return invalid("position: unknown direction %q", p.Direction)
	case p.OpenedAt.IsZero():
		return invalid("position: open time is required")
	case !finite(p.EntryPrice) || p.EntryPrice <= 0:
		return invalid("position: entry price %v must be positive", p.EntryPrice)
	case !p.QuantityType.Valid():
		return invalid("position: unknown quantity type %q", p.QuantityType)
	case !finite(p.Quantity) || p.Quantity <= 0:
		return invalid("position: quantity %v must be positive", p.Quantity)
	}
	return nil
}

// Trade is a closed position with its realized result.
type Trade struct {
	ID            int64
	RunID         string
	Symbol        string
	Direction     Direction
	QuantityType  QuantityType
	Quantity      float64
	EntryPrice    float64
	ExitPrice     float64
	EntryTime     time.Time
	ExitTime      time.Time
	GrossResult   float64
	Commission    float64
	NetResult     float64
	EntrySignalID int64
	ExitSignalID  int64
}

// TradeInput carries the facts a trade is derived from.
type TradeInput struct {
	Symbol        string
	Direction     Direction
	QuantityType  QuantityType
	Quantity      float64
	EntryPrice    float64
	ExitPrice     float64
	EntryTime     time.Time
	ExitTime      time.Time
	Commission    float64
	EntrySignalID int64
	ExitSignalID  int64
}

// NewTrade validates in and derives the gross and net results.
// The quantity sign is dropped; results follow Direction.
func NewTrade(in TradeInput) (Trade, error) {
	t := Trade{
		Symbol:        in.Symbol,
		Direction:     in.Direction,
		QuantityType:  in.QuantityType,
		Quantity:      math.Abs(in.Quantity),
		EntryPrice:    in.EntryPrice,
		ExitPrice:     in.ExitPrice,
		EntryTime:     in.EntryTime.UTC(),
		ExitTime:      in.ExitTime.UTC(),
		Commission:    in.Commission,
		EntrySignalID: in.EntrySignalID,
		ExitSignalID:  in.ExitSignalID,
	}
	if err := t.validateInputs(); err != nil {
		return Trade{}, err
	}
	t.GrossResult, t.NetResult = results(t.Direction, t.EntryPrice, t.ExitPrice, t.Quantity, t.Commission)
	return t, nil
}

// ClosingTrade builds the trade that closes p at the exit signal's bar
// and price.
func ClosingTrade(p OpenPosition, exit Signal, commission float64) (Trade, error) {
	if exit.Symbol != p.Symbol {
		return Trade{}, invalid("trade: exit signal symbol %q does not match position %q", exit.Symbol, p.Symbol)
	}
	return NewTrade(TradeInput{
		Symbol:        p.Symbol,
		Direction:     p.Direction,
		QuantityType:  p.QuantityType,
		Quantity:      p.Quantity,
		EntryPrice:    p.EntryPrice,
		ExitPrice:     exit.Price,
		EntryTime:     p.OpenedAt,
		ExitTime:      exit.Time,
		Commission:    commission,
		EntrySignalID: p.EntrySignalID,
		ExitSignalID:  exit.ID,
	})
}

// Validate checks the trade's fields and that its results agree with its
// prices, quantity and commission.
func (t Trade) Validate() error {
	if err := t.validateInputs(); err != nil {
		return err
	}
	gross, net := results(t.Direction, t.EntryPrice, t.ExitPrice, t.Quantity, t.Commission)
	if !approxEqual(gross, t.GrossResult) {
		return invalid("trade: gross result %v, want %v", t.GrossResult, gross)
	}
	if !approxEqual(net, t.NetResult) {
		return invalid("trade: net result %v, want %v", t.NetResult, net)
	}
	return nil
}

// Won reports a positive net result.
func (t Trade) Won() bool {
	return t.NetResult > 0
}

func (t Trade) validateInputs() error {
	switch {
	case strings.TrimSpace(t.Symbol) == "":
		return invalid("trade: symbol is required")
	case !t.Direction.Valid():
		return invalid("trade: unknown direction %q", t.Direction)
	case !t.QuantityType.Valid():
		return invalid("trade: unknown quantity type %q", t.QuantityType)
	case !finite(t.Quantity) || t.Quantity <= 0:
		return invalid("trade: quantity %v must be non-zero", t.Quantity)
	case !finite(t.EntryPrice) || t.EntryPrice <= 0:
		return invalid("trade: entry price %v must be positive", t.EntryPrice)
	case !finite(t.ExitPrice) || t.ExitPrice < 0:
		return invalid("trade: exit price %v is not a valid price", t.ExitPrice)
	case t.EntryTime.IsZero() || t.ExitTime.IsZero():
		return invalid("trade: entry and exit times are required")
	case t.ExitTime.Before(t.EntryTime):
		return invalid("trade: exit %s before entry %s", t.ExitTime, t.EntryTime)
	case !finite(t.Commission) || t.Commission < 0:
		return invalid("trade: commission %v must not be negative", t.Commission)
	}
	return nil
}

// results computes gross and net P&L in decimal so that
// net == gross - commission holds for the float values returned.
func results(dir Direction, entry, exit, qty, commission float64) (gross, net float64) {
	move := decimal.NewFromFloat(exit).Sub(decimal.NewFromFloat(entry))
	if dir == Short {
		move = move.Neg()
	}
	g := move.Mul(decimal.NewFromFloat(qty))
	n := g.Sub(decimal.NewFromFloat(commission))
	return g.InexactFloat64(), n.InexactFloat64()
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
