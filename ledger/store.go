package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rustyeddy/ledger/market"
	"github.com/rustyeddy/ledger/pkg/id"
	"github.com/sirupsen/logrus"
)

// Store is the transactional record of runs, signals, open positions and
// trades. Both backends honour the same contract.
type Store interface {
	CreateRun(ctx context.Context, spec RunSpec) (Run, error)
	CloseRun(ctx context.Context, runID string) error
	GetRun(ctx context.Context, runID string) (Run, error)
	ListRuns(ctx context.Context) ([]Run, error)
	DeleteRun(ctx context.Context, runID string) error

	InsertSignal(ctx context.Context, runID string, s Signal) (int64, error)
	OpenPosition(ctx context.Context, runID string, p OpenPosition, entrySignalID int64) (int64, error)

	// ClosePosition records t and removes the open position in a single
	// transaction. If anything fails the store is left as it was.
	ClosePosition(ctx context.Context, runID string, openPositionID int64, t Trade) (int64, error)

	Signals(ctx context.Context, runID string, r market.TimeRange) ([]Signal, error)
	OpenPositions(ctx context.Context, runID string) ([]OpenPosition, error)
	Trades(ctx context.Context, runID string, r market.TimeRange) ([]Trade, error)

	Commit() error
	Close() error
}

// Mode selects a backend.
type Mode string

const (
	ModeBacktest Mode = "backtest"
	ModeLive     Mode = "live"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeBacktest, ModeLive:
		return m, nil
	}
	return "", fmt.Errorf("unknown ledger mode %q (want backtest or live)", s)
}

const DefaultBusyTimeout = 5 * time.Second

// Options configure either backend. The zero value is usable.
type Options struct {
	Logger      logrus.FieldLogger
	BusyTimeout time.Duration

	// Now stamps run start and end times.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.Logger = l
	}
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = DefaultBusyTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Open returns the backend for mode at path.
func Open(mode Mode, path string, opts Options) (Store, error) {
	switch mode {
	case ModeBacktest:
		return OpenBacktest(path, opts)
	case ModeLive:
		return OpenLive(path, opts)
	}
	return nil, fmt.Errorf("unknown ledger mode %q", mode)
}

// WithStore opens a store, runs fn and always closes the store again.
func WithStore(mode Mode, path string, opts Options, fn func(Store) error) (err error) {
	st, err := Open(mode, path, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, st.Close())
	}()
	return fn(st)
}

func runNotFound(runID string) error {
	return fmt.Errorf("%w: %q", ErrRunNotFound, runID)
}

func positionNotFound(runID string, id int64) error {
	return fmt.Errorf("%w: position %d in run %q", ErrPositionNotFound, id, runID)
}

func newRun(spec RunSpec, now time.Time) (Run, string, error) {
	params, err := encodeParams(spec.Parameters)
	if err != nil {
		return Run{}, "", err
	}
	run := Run{
		ID:              id.NewAt(now),
		StrategyName:    spec.StrategyName,
		StrategyVersion: spec.StrategyVersion,
		Parameters:      spec.Parameters,
		StartTime:       now.UTC(),
		DataStart:       spec.DataStart.UTC(),
		DataEnd:         spec.DataEnd.UTC(),
	}
	if run.Parameters == nil {
		run.Parameters = map[string]any{}
	}
	return run, params, nil
}

// matchTrade checks that t closes p.
func matchTrade(p OpenPosition, t Trade) error {
	switch {
	case t.Symbol != p.Symbol:
		return invalid("trade symbol %q does not match position %q", t.Symbol, p.Symbol)
	case t.Direction != p.Direction:
		return invalid("trade direction %q does not match position %q", t.Direction, p.Direction)
	case t.EntrySignalID != p.EntrySignalID:
		return invalid("trade entry signal %d does not match position entry signal %d", t.EntrySignalID, p.EntrySignalID)
	}
	return nil
}
