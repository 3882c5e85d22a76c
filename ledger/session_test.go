package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/rustyeddy/ledger/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	t.Parallel()

	eachStore(t, func(t *testing.T, st Store) {
		ctx := context.Background()

		sess, err := Start(ctx, st, testRunSpec())
		require.NoError(t, err)
		require.NotEmpty(t, sess.RunID())
		assert.Equal(t, "volatility_breakout", sess.Run().StrategyName)

		entry, err := NewSignal("AAPL", SignalEntry, Long, t0, 150)
		require.NoError(t, err)
		entry.ID, err = sess.InsertSignal(ctx, entry)
		require.NoError(t, err)

		pos, err := PositionFromSignal(entry, Shares, 10)
		require.NoError(t, err)
		pos.ID, err = sess.OpenPosition(ctx, pos, entry.ID)
		require.NoError(t, err)

		exit, err := NewSignal("AAPL", SignalExit, Long, t0.Add(time.Hour), 160)
		require.NoError(t, err)
		exit.ID, err = sess.InsertSignal(ctx, exit)
		require.NoError(t, err)

		tr, err := ClosingTrade(pos, exit, 2)
		require.NoError(t, err)
		_, err = sess.ClosePosition(ctx, pos.ID, tr)
		require.NoError(t, err)
		require.NoError(t, sess.Commit())

		resumed, err := Resume(ctx, st, sess.RunID())
		require.NoError(t, err)
		trades, err := resumed.Trades(ctx, market.TimeRange{})
		require.NoError(t, err)
		require.Len(t, trades, 1)
		assert.InDelta(t, 98.0, trades[0].NetResult, 1e-9)

		sigs, err := resumed.Signals(ctx, market.TimeRange{})
		require.NoError(t, err)
		assert.Len(t, sigs, 2)
		open, err := resumed.OpenPositions(ctx)
		require.NoError(t, err)
		assert.Empty(t, open)

		require.NoError(t, sess.End(ctx))
		run, err := st.GetRun(ctx, sess.RunID())
		require.NoError(t, err)
		assert.True(t, run.Closed())
		assert.Same(t, st, resumed.Store())

		_, err = Resume(ctx, st, "nope")
		assert.ErrorIs(t, err, ErrRunNotFound)
	})
}
