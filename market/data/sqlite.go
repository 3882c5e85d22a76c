package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/ledger/market"
	"github.com/sirupsen/logrus"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS ohlcv (
	symbol TEXT NOT NULL,
	time   TEXT NOT NULL,
	open   REAL NOT NULL,
	high   REAL NOT NULL,
	low    REAL NOT NULL,
	close  REAL NOT NULL,
	volume REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (symbol, time)
);

CREATE TABLE IF NOT EXISTS calendar (
	day TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS symbol_group (
	group_name TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	PRIMARY KEY (group_name, symbol)
);
`

// ErrUnknownGroup is returned for a symbol group with no members.
var ErrUnknownGroup = errors.New("unknown symbol group")

const (
	timeLayout = "2006-01-02 15:04:05"
	dayLayout  = "2006-01-02"
)

// SQLiteSource stores bars per symbol together with a trading calendar.
type SQLiteSource struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// OpenSQLite opens or creates a market database at path.
func OpenSQLite(path string, log logrus.FieldLogger) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create market schema: %w", err)
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &SQLiteSource{db: db, log: log.WithField("source", "sqlite")}, nil
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// SaveBars upserts bars for symbol in one transaction.
func (s *SQLiteSource) SaveBars(ctx context.Context, symbol string, bars []market.Bar) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO ohlcv (symbol, time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if b.High < b.Low {
			_ = tx.Rollback()
			return fmt.Errorf("%s %s: high %.4f below low %.4f", symbol, b.Time.Format(timeLayout), b.High, b.Low)
		}
		if _, err := stmt.ExecContext(ctx, symbol, b.Time.UTC().Format(timeLayout),
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("save bar: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"symbol": symbol, "bars": len(bars)}).Debug("bars saved")
	return nil
}

// Bars returns the bars for symbol within r, oldest first.
func (s *SQLiteSource) Bars(ctx context.Context, symbol string, r market.TimeRange) (market.Series, error) {
	if err := r.Validate(); err != nil {
		return market.Series{}, err
	}

	query := `SELECT time, open, high, low, close, volume FROM ohlcv WHERE symbol = ?`
	args := []any{symbol}
	if !r.From.IsZero() {
		query += ` AND time >= ?`
		args = append(args, r.From.UTC().Format(timeLayout))
	}
	if !r.To.IsZero() {
		query += ` AND time <= ?`
		args = append(args, r.To.UTC().Format(timeLayout))
	}
	query += ` ORDER BY time ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return market.Series{}, err
	}
	defer rows.Close()

	var bars []market.Bar
	for rows.Next() {
		var (
			b  market.Bar
			ts string
		)
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return market.Series{}, err
		}
		if b.Time, err = time.ParseInLocation(timeLayout, ts, time.UTC); err != nil {
			return market.Series{}, fmt.Errorf("bad stored time %q: %w", ts, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return market.Series{}, err
	}
	return market.FromBars(bars), nil
}

// AddTradingDays records days as trading days. Existing days are kept.
func (s *SQLiteSource) AddTradingDays(ctx context.Context, days []time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, d := range days {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO calendar (day) VALUES (?)`,
			d.UTC().Format(dayLayout)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Weekdays lists Monday to Friday between from and to inclusive.
func Weekdays(from, to time.Time) []time.Time {
	var out []time.Time
	d := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	for !d.After(to) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}

// Coverage compares a symbol's stored bars with the trading calendar
// over a range.
type Coverage struct {
	TradingDays int // calendar days in the range
	Covered     int // trading days with a bar
	OffCalendar int // bars on days the calendar does not list
}

// Missing is the number of trading days without a bar.
func (c Coverage) Missing() int { return c.TradingDays - c.Covered }

func (c Coverage) Complete() bool { return c.Missing() == 0 }

// Coverage checks symbol's bars in r against the calendar. Both bounds
// must be set; a range holding no trading days is an ErrInvalidRange.
func (s *SQLiteSource) Coverage(ctx context.Context, symbol string, r market.TimeRange) (Coverage, error) {
	if err := r.Validate(); err != nil {
		return Coverage{}, err
	}
	if r.From.IsZero() || r.To.IsZero() {
		return Coverage{}, fmt.Errorf("%w: coverage needs both bounds", market.ErrInvalidRange)
	}
	from, to := r.From.UTC().Format(dayLayout), r.To.UTC().Format(dayLayout)

	var c Coverage
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM calendar WHERE day BETWEEN ? AND ?`, from, to).Scan(&c.TradingDays); err != nil {
		return Coverage{}, err
	}
	if c.TradingDays == 0 {
		return Coverage{}, fmt.Errorf("%w: no trading days between %s and %s", market.ErrInvalidRange, from, to)
	}

	if err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT CASE WHEN c.day IS NOT NULL THEN substr(o.time, 1, 10) END),
			COUNT(CASE WHEN c.day IS NULL THEN 1 END)
		FROM ohlcv o LEFT JOIN calendar c ON c.day = substr(o.time, 1, 10)
		WHERE o.symbol = ? AND substr(o.time, 1, 10) BETWEEN ? AND ?`,
		symbol, from, to).Scan(&c.Covered, &c.OffCalendar); err != nil {
		return Coverage{}, err
	}
	return c, nil
}

// Symbols lists every symbol with stored bars.
func (s *SQLiteSource) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM ohlcv ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// SaveGroup replaces the members of group with symbols.
func (s *SQLiteSource) SaveGroup(ctx context.Context, group string, symbols []string) error {
	if group == "" || len(symbols) == 0 {
		return fmt.Errorf("group needs a name and at least one symbol")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM symbol_group WHERE group_name = ?`, group); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, sym := range symbols {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO symbol_group (group_name, symbol) VALUES (?, ?)`, group, sym); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("save group member: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"group": group, "symbols": len(symbols)}).Debug("group saved")
	return nil
}

// GroupSymbols lists the members of group in symbol order.
func (s *SQLiteSource) GroupSymbols(ctx context.Context, group string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol FROM symbol_group WHERE group_name = ? ORDER BY symbol`, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	return out, nil
}
