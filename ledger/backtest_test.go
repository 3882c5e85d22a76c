package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rustyeddy/ledger/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timeStep(i int) time.Duration {
	return time.Duration(i) * time.Minute
}

func TestBacktestBatchIsFlushedByCommit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "batch.db")
	st, err := OpenBacktest(path, testOptions())
	require.NoError(t, err)

	ctx := context.Background()
	run, err := st.CreateRun(ctx, testRunSpec())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		sig, err := NewSignal("AAPL", SignalNone, Long, t0.Add(timeStep(i)), 150)
		require.NoError(t, err)
		_, err = st.InsertSignal(ctx, run.ID, sig)
		require.NoError(t, err)
	}
	assert.Equal(t, 10, st.pending)
	require.NotNil(t, st.tx)

	// Reads inside the batch see the pending writes.
	sigs, err := st.Signals(ctx, run.ID, market.TimeRange{})
	require.NoError(t, err)
	assert.Len(t, sigs, 10)

	require.NoError(t, st.Commit())
	assert.Nil(t, st.tx)
	assert.Zero(t, st.pending)
	require.NoError(t, st.Close())

	reopened, err := OpenBacktest(path, testOptions())
	require.NoError(t, err)
	defer reopened.Close()
	sigs, err = reopened.Signals(ctx, run.ID, market.TimeRange{})
	require.NoError(t, err)
	assert.Len(t, sigs, 10)
}

func TestBacktestCloseFlushes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "flush.db")
	st, err := OpenBacktest(path, testOptions())
	require.NoError(t, err)
	o := openAAPL(t, st)
	require.NoError(t, st.Close())

	reopened, err := OpenBacktest(path, testOptions())
	require.NoError(t, err)
	defer reopened.Close()
	positions, err := reopened.OpenPositions(context.Background(), o.run.ID)
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}

func TestBacktestFailedCloseKeepsBatch(t *testing.T) {
	t.Parallel()

	st, err := OpenBacktest(":memory:", testOptions())
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	o := openAAPL(t, st)
	_, tr := exitAAPL(t, st, o, 160)
	require.NotNil(t, st.tx)
	pending := st.pending

	_, err = st.ClosePosition(ctx, o.run.ID, 12345, tr)
	require.ErrorIs(t, err, ErrPositionNotFound)

	// The rollback is scoped to the close; earlier batched writes survive.
	assert.Equal(t, pending, st.pending)
	signals, positions, trades := counts(t, st, o.run.ID)
	assert.Equal(t, 2, signals)
	assert.Equal(t, 1, positions)
	assert.Equal(t, 0, trades)

	_, err = st.ClosePosition(ctx, o.run.ID, o.position.ID, tr)
	require.NoError(t, err)
	assert.Nil(t, st.tx, "a successful close commits the batch")
}

func TestBacktestConcurrentUse(t *testing.T) {
	t.Parallel()

	st := newTestBacktest(t)
	ctx := context.Background()

	type round struct {
		o  opened
		tr Trade
	}
	rounds := make([]round, 25)
	for i := range rounds {
		o := openAAPL(t, st)
		_, tr := exitAAPL(t, st, o, 150.0+float64(i))
		rounds[i] = round{o: o, tr: tr}
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		notFound  atomic.Int32
		start     = make(chan struct{})
	)
	for _, r := range rounds {
		r := r
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := st.ClosePosition(ctx, r.o.run.ID, r.o.position.ID, r.tr)
				switch {
				case err == nil:
					succeeded.Add(1)
				case errors.Is(err, ErrPositionNotFound):
					notFound.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := st.Trades(ctx, r.o.run.ID, market.TimeRange{}); err != nil {
				t.Errorf("trades: %v", err)
			}
			if err := st.Commit(); err != nil {
				t.Errorf("commit: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(len(rounds)), succeeded.Load())
	assert.Equal(t, int32(len(rounds)), notFound.Load())
	for _, r := range rounds {
		_, positions, trades := counts(t, st, r.o.run.ID)
		assert.Zero(t, positions)
		assert.Equal(t, 1, trades)
	}
}
