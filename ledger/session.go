package ledger

import (
	"context"

	"github.com/rustyeddy/ledger/market"
)

// Session binds a Store to one run so callers need not pass the run id
// on every call. It holds no other state and is safe to share when the
// underlying store is.
type Session struct {
	store Store
	run   Run
}

// Start creates a run and returns a session for it.
func Start(ctx context.Context, st Store, spec RunSpec) (*Session, error) {
	run, err := st.CreateRun(ctx, spec)
	if err != nil {
		return nil, err
	}
	return &Session{store: st, run: run}, nil
}

// Resume attaches to an existing run.
func Resume(ctx context.Context, st Store, runID string) (*Session, error) {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &Session{store: st, run: run}, nil
}

func (s *Session) RunID() string { return s.run.ID }

// Run returns the run as it was when the session started.
func (s *Session) Run() Run { return s.run }

func (s *Session) Store() Store { return s.store }

func (s *Session) InsertSignal(ctx context.Context, sig Signal) (int64, error) {
	return s.store.InsertSignal(ctx, s.run.ID, sig)
}

func (s *Session) OpenPosition(ctx context.Context, p OpenPosition, entrySignalID int64) (int64, error) {
	return s.store.OpenPosition(ctx, s.run.ID, p, entrySignalID)
}

func (s *Session) ClosePosition(ctx context.Context, openPositionID int64, t Trade) (int64, error) {
	return s.store.ClosePosition(ctx, s.run.ID, openPositionID, t)
}

func (s *Session) Signals(ctx context.Context, r market.TimeRange) ([]Signal, error) {
	return s.store.Signals(ctx, s.run.ID, r)
}

func (s *Session) OpenPositions(ctx context.Context) ([]OpenPosition, error) {
	return s.store.OpenPositions(ctx, s.run.ID)
}

func (s *Session) Trades(ctx context.Context, r market.TimeRange) ([]Trade, error) {
	return s.store.Trades(ctx, s.run.ID, r)
}

func (s *Session) Commit() error {
	return s.store.Commit()
}

// End closes the run and flushes pending writes.
func (s *Session) End(ctx context.Context) error {
	if err := s.store.CloseRun(ctx, s.run.ID); err != nil {
		return err
	}
	return s.store.Commit()
}
