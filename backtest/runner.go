// Package backtest replays a price series through a strategy and records
// what it does in the ledger.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rustyeddy/ledger/indicators"
	"github.com/rustyeddy/ledger/ledger"
	"github.com/rustyeddy/ledger/market"
	"github.com/rustyeddy/ledger/risk"
	"github.com/rustyeddy/ledger/strategies"
	"github.com/sirupsen/logrus"
)

// EndOfDataReason is recorded on the exit signal CloseAtEnd inserts.
const EndOfDataReason = "end of data"

// Options controls how the runner behaves.
type Options struct {
	// CommitEvery flushes the store every N bars. Zero commits once at the end.
	CommitEvery int

	// CloseAtEnd closes a position still open after the last bar at its close.
	CloseAtEnd bool

	// Equity is the starting account value handed to the sizer.
	Equity float64
}

// Runner drives one symbol's series through a strategy into a session.
type Runner struct {
	Session    *ledger.Session
	Strategy   strategies.Strategy
	Sizer      risk.Sizer
	Commission risk.Commission
	Options    Options
	Log        logrus.FieldLogger
}

// Run executes the backtest loop:
//  1. compute indicators once over the whole series
//  2. evaluate every bar past the strategy's warm-up
//  3. record each signal and open or close positions from it
//
// The summary is read back from the ledger's trades for the run and symbol.
func (r *Runner) Run(ctx context.Context, symbol string, series market.Series) (Result, error) {
	if r.Session == nil {
		return Result{}, fmt.Errorf("backtest: Session is required")
	}
	if r.Strategy == nil {
		return Result{}, fmt.Errorf("backtest: Strategy is required")
	}
	if err := series.Validate(); err != nil {
		return Result{}, fmt.Errorf("backtest: %w", err)
	}
	frame, err := indicators.Compute(series, r.Strategy.Indicators())
	if err != nil {
		return Result{}, fmt.Errorf("backtest: %w", err)
	}

	st := &state{
		Runner: r,
		symbol: symbol,
		frame:  frame,
		equity: r.Options.Equity,
		log:    r.logger().WithFields(logrus.Fields{"run_id": r.Session.RunID(), "symbol": symbol}),
	}
	if err := st.resume(ctx); err != nil {
		return Result{}, err
	}

	for i := r.Strategy.Warmup(); i < series.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		sig, ok, err := r.Strategy.Evaluate(strategies.Window{
			Symbol: symbol, Index: i, Bars: series, Frame: frame, Position: st.pos,
		})
		if err != nil {
			return Result{}, fmt.Errorf("backtest: %s bar %d: %w", symbol, i, err)
		}
		if ok {
			if err := st.act(ctx, i, sig); err != nil {
				return Result{}, err
			}
		}
		if n := r.Options.CommitEvery; n > 0 && (i+1)%n == 0 {
			if err := r.Session.Commit(); err != nil {
				return Result{}, err
			}
		}
	}

	if r.Options.CloseAtEnd && st.pos != nil && series.Len() > 0 {
		last := series.Bar(series.Len() - 1)
		exit, err := ledger.NewSignal(symbol, ledger.SignalExit, st.pos.Direction, last.Time, last.Close,
			ledger.WithReason(EndOfDataReason))
		if err != nil {
			return Result{}, err
		}
		if err := st.act(ctx, series.Len()-1, exit); err != nil {
			return Result{}, err
		}
	}

	if err := r.Session.Commit(); err != nil {
		return Result{}, err
	}

	all, err := r.Session.Trades(ctx, market.TimeRange{})
	if err != nil {
		return Result{}, err
	}
	// A group run shares the session with other symbols.
	var trades []ledger.Trade
	for _, t := range all {
		if t.Symbol == symbol {
			trades = append(trades, t)
		}
	}
	res := Summarize(trades)
	res.RunID = r.Session.RunID()
	res.Symbol = symbol
	res.Bars = series.Len()
	res.Signals = st.signals
	res.StartEquity = r.Options.Equity
	res.EndEquity = st.equity
	if series.Len() > 0 {
		res.Start, res.End = series.Time[0], series.Time[series.Len()-1]
	}
	st.log.WithFields(logrus.Fields{"trades": res.Trades, "net": res.Net}).Info("backtest finished")
	return res, nil
}

func (r *Runner) logger() logrus.FieldLogger {
	if r.Log != nil {
		return r.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (r *Runner) sizer() risk.Sizer {
	if r.Sizer == nil {
		return risk.FixedShares{Shares: 1}
	}
	return r.Sizer
}

func (r *Runner) commission() risk.Commission {
	if r.Commission == nil {
		return risk.Free{}
	}
	return r.Commission
}

// state is the per-Run bookkeeping.
type state struct {
	*Runner
	symbol  string
	frame   indicators.Frame
	pos     *ledger.OpenPosition
	equity  float64
	signals int
	log     logrus.FieldLogger
}

// resume picks up a position left open for the symbol by an earlier run
// of the same session.
func (s *state) resume(ctx context.Context) error {
	open, err := s.Session.OpenPositions(ctx)
	if err != nil {
		return err
	}
	for i := range open {
		if open[i].Symbol == s.symbol {
			p := open[i]
			s.pos = &p
			s.log.WithField("position_id", p.ID).Info("resuming open position")
			return nil
		}
	}
	return nil
}

func (s *state) act(ctx context.Context, i int, sig ledger.Signal) error {
	id, err := s.Session.InsertSignal(ctx, sig)
	if err != nil {
		return fmt.Errorf("record signal: %w", err)
	}
	sig.ID = id
	s.signals++

	switch sig.Type {
	case ledger.SignalEntry:
		if s.pos != nil {
			s.log.WithField("signal_id", id).Debug("entry while a position is open ignored")
			return nil
		}
		return s.open(ctx, i, sig)
	case ledger.SignalExit:
		if s.pos == nil {
			return nil
		}
		return s.close(ctx, sig)
	case ledger.SignalReverse:
		if s.pos != nil {
			if err := s.close(ctx, sig); err != nil {
				return err
			}
		}
		return s.open(ctx, i, sig)
	}
	return nil
}

func (s *state) open(ctx context.Context, i int, sig ledger.Signal) error {
	q, err := s.sizer().Size(risk.Inputs{Equity: s.equity, Price: sig.Price, ATR: s.frame.ATR[i]})
	if errors.Is(err, risk.ErrCannotSize) {
		s.log.WithError(err).WithField("signal_id", sig.ID).Warn("entry skipped")
		return nil
	}
	if err != nil {
		return err
	}

	p, err := ledger.PositionFromSignal(sig, q.Type, q.Amount)
	if err != nil {
		return err
	}
	if p.ID, err = s.Session.OpenPosition(ctx, p, sig.ID); err != nil {
		return fmt.Errorf("open position: %w", err)
	}
	p.RunID = s.Session.RunID()
	s.pos = &p
	s.log.WithFields(logrus.Fields{"position_id": p.ID, "direction": p.Direction, "quantity": p.Quantity}).Debug("position opened")
	return nil
}

func (s *state) close(ctx context.Context, exit ledger.Signal) error {
	p := s.pos
	t, err := ledger.ClosingTrade(*p, exit, s.commission().Cost(p.Quantity, p.EntryPrice, exit.Price))
	if err != nil {
		return err
	}
	if _, err := s.Session.ClosePosition(ctx, p.ID, t); err != nil {
		return fmt.Errorf("close position %d: %w", p.ID, err)
	}
	s.equity += t.NetResult
	s.pos = nil
	s.log.WithFields(logrus.Fields{"position_id": p.ID, "net": t.NetResult}).Debug("position closed")
	return nil
}

// NewRunSpec describes a run of strat over series.
func NewRunSpec(strat strategies.Strategy, series market.Series) ledger.RunSpec {
	spec := ledger.RunSpec{
		StrategyName:    strat.Name(),
		StrategyVersion: strat.Version(),
		Parameters:      strat.Params(),
	}
	if n := series.Len(); n > 0 {
		spec.DataStart, spec.DataEnd = series.Time[0], series.Time[n-1]
	}
	return spec
}
