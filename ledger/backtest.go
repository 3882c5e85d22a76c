package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/rustyeddy/ledger/market"
	"github.com/sirupsen/logrus"

	_ "github.com/mattn/go-sqlite3"
)

// BacktestStore is tuned for one writer and many inserts. Writes collect in
// a batch transaction that Commit flushes; run lifecycle calls and every
// successful ClosePosition commit the batch themselves.
//
// It is safe for concurrent use. Every call holds mu, so callers on
// several goroutines are serialized onto the one connection.
type BacktestStore struct {
	mu   sync.Mutex
	db   *sql.DB
	tx   *sql.Tx
	log  logrus.FieldLogger
	opts Options

	pending int
	closed  bool
}

var _ Store = (*BacktestStore)(nil)

// OpenBacktest opens or creates the ledger at path. ":memory:" is accepted.
func OpenBacktest(path string, opts Options) (*BacktestStore, error) {
	opts = opts.withDefaults()

	q := url.Values{}
	q.Set("_foreign_keys", "1")
	q.Set("_journal_mode", "TRUNCATE")
	q.Set("_synchronous", "OFF")
	q.Set("_busy_timeout", strconv.FormatInt(opts.BusyTimeout.Milliseconds(), 10))

	db, err := sql.Open("sqlite3", path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	// A single connection keeps the batch transaction and ":memory:"
	// databases on one handle.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}

	return &BacktestStore{
		db:   db,
		log:  opts.Logger.WithField("ledger", "backtest"),
		opts: opts,
	}, nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// batch returns the open batch transaction, starting one if needed. The
// caller holds mu.
func (s *BacktestStore) batch() (*sql.Tx, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	// The batch outlives any single call, so it is not bound to a caller's
	// context.
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	s.tx = tx
	return tx, nil
}

// reader routes reads through the batch so they see uncommitted writes.
func (s *BacktestStore) reader() (querier, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	return s.db, nil
}

func (s *BacktestStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *BacktestStore) flush() error {
	if s.closed {
		return ErrClosed
	}
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	s.log.WithField("writes", s.pending).Debug("batch committed")
	s.pending = 0
	return nil
}

// Close flushes pending writes and releases the database. Calling it
// again is a no-op.
func (s *BacktestStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	err := s.flush()
	if err != nil {
		s.log.WithError(err).Warn("flush on close failed")
	}
	s.closed = true
	return errors.Join(err, s.db.Close())
}

func (s *BacktestStore) CreateRun(ctx context.Context, spec RunSpec) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := spec.Validate(); err != nil {
		return Run{}, err
	}
	if err := market.Between(spec.DataStart, spec.DataEnd).Validate(); err != nil {
		return Run{}, err
	}
	run, params, err := newRun(spec, s.opts.Now())
	if err != nil {
		return Run{}, err
	}

	tx, err := s.batch()
	if err != nil {
		return Run{}, err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO run (run_id, strategy_name, strategy_version, parameters, start_time, end_time, data_start, data_end)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?)`,
		run.ID, run.StrategyName, run.StrategyVersion, params,
		formatTime(run.StartTime), formatTime(run.DataStart), formatTime(run.DataEnd),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	if err := s.flush(); err != nil {
		return Run{}, err
	}

	s.log.WithFields(logrus.Fields{"run_id": run.ID, "strategy": run.StrategyName}).Info("run created")
	return run, nil
}

func (s *BacktestStore) CloseRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.batch()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE run SET end_time = COALESCE(end_time, ?) WHERE run_id = ?`,
		formatTime(s.opts.Now()), runID)
	if err != nil {
		return fmt.Errorf("close run: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return runNotFound(runID)
	}
	if err := s.flush(); err != nil {
		return err
	}
	s.log.WithField("run_id", runID).Info("run closed")
	return nil
}

func (s *BacktestStore) GetRun(ctx context.Context, runID string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.reader()
	if err != nil {
		return Run{}, err
	}
	row := q.QueryRowContext(ctx, `
		SELECT run_id, strategy_name, strategy_version, parameters, start_time, end_time, data_start, data_end
		FROM run WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, runNotFound(runID)
	}
	return run, err
}

func (s *BacktestStore) ListRuns(ctx context.Context) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `
		SELECT run_id, strategy_name, strategy_version, parameters, start_time, end_time, data_start, data_end
		FROM run ORDER BY start_time ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteRun removes the run; its signals, positions and trades go with it.
func (s *BacktestStore) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.batch()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM run WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return runNotFound(runID)
	}
	if err := s.flush(); err != nil {
		return err
	}
	s.log.WithField("run_id", runID).Info("run deleted")
	return nil
}

func (s *BacktestStore) InsertSignal(ctx context.Context, runID string, sig Signal) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := sig.Validate(); err != nil {
		return 0, err
	}
	tx, err := s.batch()
	if err != nil {
		return 0, err
	}
	if err := runExists(ctx, tx, runID); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO signal (run_id, symbol, signal_type, direction, timestamp, price, confidence, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, sig.Symbol, string(sig.Type), string(sig.Direction),
		formatTime(sig.Time), sig.Price, sig.Confidence, sig.Reason,
	)
	if err != nil {
		return 0, fmt.Errorf("insert signal: %w", translate(err))
	}
	s.pending++
	return res.LastInsertId()
}

func (s *BacktestStore) OpenPosition(ctx context.Context, runID string, p OpenPosition, entrySignalID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := p.Validate(); err != nil {
		return 0, err
	}
	tx, err := s.batch()
	if err != nil {
		return 0, err
	}
	if err := runExists(ctx, tx, runID); err != nil {
		return 0, err
	}
	if err := signalInRun(ctx, tx, runID, entrySignalID); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO open_position (run_id, symbol, direction, opened_at, entry_price, quantity_type, quantity, entry_signal_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, p.Symbol, string(p.Direction), formatTime(p.OpenedAt),
		p.EntryPrice, string(p.QuantityType), p.Quantity, entrySignalID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert open position: %w", translate(err))
	}
	s.pending++
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"run_id": runID, "position_id": id, "symbol": p.Symbol}).Debug("position opened")
	return id, nil
}

const closeSavepoint = "close_position"

func (s *BacktestStore) ClosePosition(ctx context.Context, runID string, openPositionID int64, t Trade) (tradeID int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := t.Validate(); err != nil {
		return 0, err
	}
	tx, err := s.batch()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+closeSavepoint); err != nil {
		return 0, fmt.Errorf("close position: %w", err)
	}

	tradeID, err = closePosition(ctx, tx, runID, openPositionID, t)
	if err != nil {
		if _, rbErr := tx.ExecContext(context.Background(), "ROLLBACK TO "+closeSavepoint); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback close position: %w", rbErr))
		}
		if _, relErr := tx.ExecContext(context.Background(), "RELEASE "+closeSavepoint); relErr != nil {
			err = errors.Join(err, fmt.Errorf("release savepoint: %w", relErr))
		}
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE "+closeSavepoint); err != nil {
		return 0, fmt.Errorf("release savepoint: %w", err)
	}
	s.pending += 2
	if err := s.flush(); err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{
		"run_id":      runID,
		"position_id": openPositionID,
		"trade_id":    tradeID,
		"symbol":      t.Symbol,
		"net":         t.NetResult,
	}).Debug("position closed")
	return tradeID, nil
}

// closePosition does the work of ClosePosition inside an open transaction.
// The caller rolls back on error.
func closePosition(ctx context.Context, q querier, runID string, id int64, t Trade) (int64, error) {
	row := q.QueryRowContext(ctx, `
		SELECT open_position_id, run_id, symbol, direction, opened_at, entry_price, quantity_type, quantity, entry_signal_id
		FROM open_position WHERE open_position_id = ? AND run_id = ?`, id, runID)
	pos, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, positionNotFound(runID, id)
	}
	if err != nil {
		return 0, err
	}
	if err := matchTrade(pos, t); err != nil {
		return 0, err
	}
	if err := signalInRun(ctx, q, runID, t.ExitSignalID); err != nil {
		return 0, err
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO trade (run_id, symbol, direction, quantity_type, quantity, entry_price, exit_price,
			entry_time, exit_time, gross_result, commission, net_result, entry_signal_id, exit_signal_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, t.Symbol, string(t.Direction), string(t.QuantityType), t.Quantity,
		t.EntryPrice, t.ExitPrice, formatTime(t.EntryTime), formatTime(t.ExitTime),
		t.GrossResult, t.Commission, t.NetResult, t.EntrySignalID, t.ExitSignalID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert trade: %w", translate(err))
	}
	tradeID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	res, err = q.ExecContext(ctx,
		`DELETE FROM open_position WHERE open_position_id = ? AND run_id = ?`, id, runID)
	if err != nil {
		return 0, fmt.Errorf("delete open position: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n != 1 {
		return 0, positionNotFound(runID, id)
	}
	return tradeID, nil
}

func (s *BacktestStore) Signals(ctx context.Context, runID string, r market.TimeRange) ([]Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := r.Validate(); err != nil {
		return nil, err
	}
	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	if err := knownRun(ctx, q, runID); err != nil {
		return nil, err
	}

	where, args := rangeWhere("run_id = ?", []any{runID}, "timestamp", "timestamp", r)
	rows, err := q.QueryContext(ctx, `
		SELECT signal_id, run_id, symbol, signal_type, direction, timestamp, price, confidence, reason
		FROM signal WHERE `+where+` ORDER BY timestamp ASC, signal_id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BacktestStore) OpenPositions(ctx context.Context, runID string) ([]OpenPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	if err := knownRun(ctx, q, runID); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT open_position_id, run_id, symbol, direction, opened_at, entry_price, quantity_type, quantity, entry_signal_id
		FROM open_position WHERE run_id = ? ORDER BY opened_at ASC, open_position_id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OpenPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BacktestStore) Trades(ctx context.Context, runID string, r market.TimeRange) ([]Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := r.Validate(); err != nil {
		return nil, err
	}
	q, err := s.reader()
	if err != nil {
		return nil, err
	}
	if err := knownRun(ctx, q, runID); err != nil {
		return nil, err
	}

	where, args := rangeWhere("run_id = ?", []any{runID}, "entry_time", "exit_time", r)
	rows, err := q.QueryContext(ctx, `
		SELECT trade_id, run_id, symbol, direction, quantity_type, quantity, entry_price, exit_price,
			entry_time, exit_time, gross_result, commission, net_result, entry_signal_id, exit_signal_id
		FROM trade WHERE `+where+` ORDER BY exit_time ASC, trade_id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// rangeWhere appends inclusive bounds on fromCol and toCol to base.
func rangeWhere(base string, args []any, fromCol, toCol string, r market.TimeRange) (string, []any) {
	clauses := []string{base}
	if !r.From.IsZero() {
		clauses = append(clauses, fromCol+" >= ?")
		args = append(args, formatTime(r.From))
	}
	if !r.To.IsZero() {
		clauses = append(clauses, toCol+" <= ?")
		args = append(args, formatTime(r.To))
	}
	return strings.Join(clauses, " AND "), args
}

// runExists reports a missing run as a referential integrity failure.
func runExists(ctx context.Context, q querier, runID string) error {
	err := knownRun(ctx, q, runID)
	if errors.Is(err, ErrRunNotFound) {
		return fmt.Errorf("%w: run %q does not exist", ErrReferentialIntegrity, runID)
	}
	return err
}

func knownRun(ctx context.Context, q querier, runID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM run WHERE run_id = ?`, runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return runNotFound(runID)
	}
	return err
}

func signalInRun(ctx context.Context, q querier, runID string, signalID int64) error {
	var owner string
	err := q.QueryRowContext(ctx, `SELECT run_id FROM signal WHERE signal_id = ?`, signalID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: signal %d does not exist", ErrReferentialIntegrity, signalID)
	}
	if err != nil {
		return err
	}
	if owner != runID {
		return fmt.Errorf("%w: signal %d belongs to run %q, not %q", ErrReferentialIntegrity, signalID, owner, runID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run                               Run
		params, start, dataStart, dataEnd string
		end                               sql.NullString
	)
	if err := sc.Scan(&run.ID, &run.StrategyName, &run.StrategyVersion, &params,
		&start, &end, &dataStart, &dataEnd); err != nil {
		return Run{}, err
	}
	var err error
	if run.Parameters, err = decodeParams(params); err != nil {
		return Run{}, err
	}
	if run.StartTime, err = parseTime(start); err != nil {
		return Run{}, err
	}
	if end.Valid {
		t, err := parseTime(end.String)
		if err != nil {
			return Run{}, err
		}
		run.EndTime = &t
	}
	if run.DataStart, err = parseTime(dataStart); err != nil {
		return Run{}, err
	}
	if run.DataEnd, err = parseTime(dataEnd); err != nil {
		return Run{}, err
	}
	return run, nil
}

func scanSignal(sc scanner) (Signal, error) {
	var (
		sig      Signal
		typ, dir string
		ts       string
	)
	if err := sc.Scan(&sig.ID, &sig.RunID, &sig.Symbol, &typ, &dir, &ts,
		&sig.Price, &sig.Confidence, &sig.Reason); err != nil {
		return Signal{}, err
	}
	sig.Type, sig.Direction = SignalType(typ), Direction(dir)
	var err error
	sig.Time, err = parseTime(ts)
	return sig, err
}

func scanPosition(sc scanner) (OpenPosition, error) {
	var (
		p           OpenPosition
		dir, qt, at string
	)
	if err := sc.Scan(&p.ID, &p.RunID, &p.Symbol, &dir, &at, &p.EntryPrice,
		&qt, &p.Quantity, &p.EntrySignalID); err != nil {
		return OpenPosition{}, err
	}
	p.Direction, p.QuantityType = Direction(dir), QuantityType(qt)
	var err error
	p.OpenedAt, err = parseTime(at)
	return p, err
}

func scanTrade(sc scanner) (Trade, error) {
	var (
		t                    Trade
		dir, qt, entry, exit string
	)
	if err := sc.Scan(&t.ID, &t.RunID, &t.Symbol, &dir, &qt, &t.Quantity,
		&t.EntryPrice, &t.ExitPrice, &entry, &exit, &t.GrossResult,
		&t.Commission, &t.NetResult, &t.EntrySignalID, &t.ExitSignalID); err != nil {
		return Trade{}, err
	}
	t.Direction, t.QuantityType = Direction(dir), QuantityType(qt)
	var err error
	if t.EntryTime, err = parseTime(entry); err != nil {
		return Trade{}, err
	}
	t.ExitTime, err = parseTime(exit)
	return t, err
}
