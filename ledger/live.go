package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rustyeddy/ledger/market"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// LiveStore commits every write on its own and lets readers run alongside
// the writer. The database runs in WAL mode so a reader never waits on, or
// observes part of, a write transaction.
type LiveStore struct {
	db  *gorm.DB
	log logrus.FieldLogger
	now func() time.Time

	// wmu serializes writers within the process. BEGIN IMMEDIATE plus the
	// busy timeout serialize writers across processes.
	wmu sync.Mutex
	mu  sync.RWMutex

	closed bool
}

var _ Store = (*LiveStore)(nil)

const liveMaxConns = 4

// OpenLive opens or creates the ledger at path. The path must name a file;
// an in-memory database is not shared between connections.
func OpenLive(path string, opts Options) (*LiveStore, error) {
	opts = opts.withDefaults()
	if path == "" || path == ":memory:" {
		return nil, fmt.Errorf("live ledger needs a database file, got %q", path)
	}

	q := url.Values{}
	q.Set("_foreign_keys", "1")
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", strconv.FormatInt(opts.BusyTimeout.Milliseconds(), 10))
	q.Set("_txlock", "immediate")

	db, err := gorm.Open(sqlite.Open(path+"?"+q.Encode()), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(liveMaxConns)
	sqlDB.SetMaxIdleConns(liveMaxConns)

	if err := db.Exec(Schema).Error; err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}

	return &LiveStore{
		db:  db,
		log: opts.Logger.WithField("ledger", "live"),
		now: opts.Now,
	}, nil
}

// write runs fn in its own transaction while holding the writer lock.
func (s *LiveStore) write(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.db.WithContext(ctx).Transaction(fn)
}

// read runs fn against the pool. Each query is its own implicit transaction.
func (s *LiveStore) read(ctx context.Context, fn func(db *gorm.DB) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return fn(s.db.WithContext(ctx))
}

// Commit is a no-op: every live write is committed when it returns.
func (s *LiveStore) Commit() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *LiveStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		s.log.WithError(err).Warn("close failed")
		return err
	}
	return nil
}

func (s *LiveStore) CreateRun(ctx context.Context, spec RunSpec) (Run, error) {
	if err := spec.Validate(); err != nil {
		return Run{}, err
	}
	if err := market.Between(spec.DataStart, spec.DataEnd).Validate(); err != nil {
		return Run{}, err
	}
	run, params, err := newRun(spec, s.now())
	if err != nil {
		return Run{}, err
	}

	row := runRow{
		RunID:           run.ID,
		StrategyName:    run.StrategyName,
		StrategyVersion: run.StrategyVersion,
		Parameters:      params,
		StartTime:       formatTime(run.StartTime),
		DataStart:       formatTime(run.DataStart),
		DataEnd:         formatTime(run.DataEnd),
	}
	if err := s.write(ctx, func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	}); err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	s.log.WithFields(logrus.Fields{"run_id": run.ID, "strategy": run.StrategyName}).Info("run created")
	return run, nil
}

func (s *LiveStore) CloseRun(ctx context.Context, runID string) error {
	end := formatTime(s.now())
	err := s.write(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&runRow{}).
			Where("run_id = ?", runID).
			Update("end_time", gorm.Expr("COALESCE(end_time, ?)", end))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return runNotFound(runID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithField("run_id", runID).Info("run closed")
	return nil
}

func (s *LiveStore) GetRun(ctx context.Context, runID string) (Run, error) {
	var row runRow
	err := s.read(ctx, func(db *gorm.DB) error {
		return db.Where("run_id = ?", runID).Take(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Run{}, runNotFound(runID)
	}
	if err != nil {
		return Run{}, err
	}
	return row.toRun()
}

func (s *LiveStore) ListRuns(ctx context.Context) ([]Run, error) {
	var rows []runRow
	if err := s.read(ctx, func(db *gorm.DB) error {
		return db.Order("start_time ASC, rowid ASC").Find(&rows).Error
	}); err != nil {
		return nil, err
	}

	out := make([]Run, 0, len(rows))
	for _, r := range rows {
		run, err := r.toRun()
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

func (s *LiveStore) DeleteRun(ctx context.Context, runID string) error {
	err := s.write(ctx, func(tx *gorm.DB) error {
		res := tx.Where("run_id = ?", runID).Delete(&runRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return runNotFound(runID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithField("run_id", runID).Info("run deleted")
	return nil
}

func (s *LiveStore) InsertSignal(ctx context.Context, runID string, sig Signal) (int64, error) {
	if err := sig.Validate(); err != nil {
		return 0, err
	}
	row := newSignalRow(runID, sig)
	err := s.write(ctx, func(tx *gorm.DB) error {
		if err := gormRunExists(tx, runID); err != nil {
			return err
		}
		return translate(tx.Create(&row).Error)
	})
	if err != nil {
		return 0, fmt.Errorf("insert signal: %w", err)
	}
	return row.SignalID, nil
}

func (s *LiveStore) OpenPosition(ctx context.Context, runID string, p OpenPosition, entrySignalID int64) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	row := newPositionRow(runID, p, entrySignalID)
	err := s.write(ctx, func(tx *gorm.DB) error {
		if err := gormRunExists(tx, runID); err != nil {
			return err
		}
		if err := gormSignalInRun(tx, runID, entrySignalID); err != nil {
			return err
		}
		return translate(tx.Create(&row).Error)
	})
	if err != nil {
		return 0, fmt.Errorf("insert open position: %w", err)
	}
	s.log.WithFields(logrus.Fields{"run_id": runID, "position_id": row.OpenPositionID, "symbol": p.Symbol}).Info("position opened")
	return row.OpenPositionID, nil
}

func (s *LiveStore) ClosePosition(ctx context.Context, runID string, openPositionID int64, t Trade) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	row := newTradeRow(runID, t)
	err := s.write(ctx, func(tx *gorm.DB) error {
		var pos positionRow
		err := tx.Where("open_position_id = ? AND run_id = ?", openPositionID, runID).Take(&pos).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return positionNotFound(runID, openPositionID)
		}
		if err != nil {
			return err
		}
		p, err := pos.toPosition()
		if err != nil {
			return err
		}
		if err := matchTrade(p, t); err != nil {
			return err
		}
		if err := gormSignalInRun(tx, runID, t.ExitSignalID); err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert trade: %w", translate(err))
		}

		res := tx.Where("open_position_id = ? AND run_id = ?", openPositionID, runID).Delete(&positionRow{})
		if res.Error != nil {
			return fmt.Errorf("delete open position: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return positionNotFound(runID, openPositionID)
		}
		return nil
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"run_id":      runID,
			"position_id": openPositionID,
		}).WithError(err).Warn("close position rolled back")
		return 0, err
	}

	s.log.WithFields(logrus.Fields{
		"run_id":      runID,
		"position_id": openPositionID,
		"trade_id":    row.TradeID,
		"symbol":      t.Symbol,
		"net":         t.NetResult,
	}).Info("position closed")
	return row.TradeID, nil
}

func (s *LiveStore) Signals(ctx context.Context, runID string, r market.TimeRange) ([]Signal, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	var rows []signalRow
	err := s.read(ctx, func(db *gorm.DB) error {
		if err := gormKnownRun(db, runID); err != nil {
			return err
		}
		q := gormRange(db.Where("run_id = ?", runID), "timestamp", "timestamp", r)
		return q.Order("timestamp ASC, signal_id ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	out := make([]Signal, 0, len(rows))
	for _, row := range rows {
		sig, err := row.toSignal()
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, nil
}

func (s *LiveStore) OpenPositions(ctx context.Context, runID string) ([]OpenPosition, error) {
	var rows []positionRow
	err := s.read(ctx, func(db *gorm.DB) error {
		if err := gormKnownRun(db, runID); err != nil {
			return err
		}
		return db.Where("run_id = ?", runID).
			Order("opened_at ASC, open_position_id ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	out := make([]OpenPosition, 0, len(rows))
	for _, row := range rows {
		p, err := row.toPosition()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *LiveStore) Trades(ctx context.Context, runID string, r market.TimeRange) ([]Trade, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	var rows []tradeRow
	err := s.read(ctx, func(db *gorm.DB) error {
		if err := gormKnownRun(db, runID); err != nil {
			return err
		}
		q := gormRange(db.Where("run_id = ?", runID), "entry_time", "exit_time", r)
		return q.Order("exit_time ASC, trade_id ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	out := make([]Trade, 0, len(rows))
	for _, row := range rows {
		t, err := row.toTrade()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func gormRange(q *gorm.DB, fromCol, toCol string, r market.TimeRange) *gorm.DB {
	if !r.From.IsZero() {
		q = q.Where(fromCol+" >= ?", formatTime(r.From))
	}
	if !r.To.IsZero() {
		q = q.Where(toCol+" <= ?", formatTime(r.To))
	}
	return q
}

func gormKnownRun(db *gorm.DB, runID string) error {
	var n int64
	if err := db.Model(&runRow{}).Where("run_id = ?", runID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return runNotFound(runID)
	}
	return nil
}

func gormRunExists(tx *gorm.DB, runID string) error {
	err := gormKnownRun(tx, runID)
	if errors.Is(err, ErrRunNotFound) {
		return fmt.Errorf("%w: run %q does not exist", ErrReferentialIntegrity, runID)
	}
	return err
}

func gormSignalInRun(tx *gorm.DB, runID string, signalID int64) error {
	var sig signalRow
	err := tx.Select("signal_id", "run_id").Where("signal_id = ?", signalID).Take(&sig).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: signal %d does not exist", ErrReferentialIntegrity, signalID)
	}
	if err != nil {
		return err
	}
	if sig.RunID != runID {
		return fmt.Errorf("%w: signal %d belongs to run %q, not %q", ErrReferentialIntegrity, signalID, sig.RunID, runID)
	}
	return nil
}
