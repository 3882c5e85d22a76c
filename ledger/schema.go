package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// Schema is shared by both backends. Times are stored as fixed-width UTC
// text so that string comparison orders them chronologically.
const Schema = `
CREATE TABLE IF NOT EXISTS run (
	run_id           TEXT PRIMARY KEY,
	strategy_name    TEXT NOT NULL,
	strategy_version TEXT NOT NULL DEFAULT '',
	parameters       TEXT NOT NULL DEFAULT '{}',
	start_time       TEXT NOT NULL,
	end_time         TEXT,
	data_start       TEXT NOT NULL,
	data_end         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS signal (
	signal_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL REFERENCES run(run_id) ON DELETE CASCADE,
	symbol      TEXT NOT NULL,
	signal_type TEXT NOT NULL,
	direction   TEXT NOT NULL,
	timestamp   TEXT NOT NULL,
	price       REAL NOT NULL,
	confidence  REAL NOT NULL DEFAULT -1,
	reason      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS open_position (
	open_position_id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id           TEXT NOT NULL REFERENCES run(run_id) ON DELETE CASCADE,
	symbol           TEXT NOT NULL,
	direction        TEXT NOT NULL,
	opened_at        TEXT NOT NULL,
	entry_price      REAL NOT NULL,
	quantity_type    TEXT NOT NULL,
	quantity         REAL NOT NULL CHECK (quantity > 0),
	entry_signal_id  INTEGER NOT NULL REFERENCES signal(signal_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS trade (
	trade_id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL REFERENCES run(run_id) ON DELETE CASCADE,
	symbol          TEXT NOT NULL,
	direction       TEXT NOT NULL,
	quantity_type   TEXT NOT NULL,
	quantity        REAL NOT NULL CHECK (quantity >= 0),
	entry_price     REAL NOT NULL,
	exit_price      REAL NOT NULL,
	entry_time      TEXT NOT NULL,
	exit_time       TEXT NOT NULL,
	gross_result    REAL NOT NULL,
	commission      REAL NOT NULL,
	net_result      REAL NOT NULL,
	entry_signal_id INTEGER NOT NULL REFERENCES signal(signal_id) ON DELETE CASCADE,
	exit_signal_id  INTEGER NOT NULL REFERENCES signal(signal_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_signal_run_time ON signal(run_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_open_position_run ON open_position(run_id);
CREATE INDEX IF NOT EXISTS idx_open_position_entry_signal ON open_position(entry_signal_id);
CREATE INDEX IF NOT EXISTS idx_trade_run_entry ON trade(run_id, entry_time);
CREATE INDEX IF NOT EXISTS idx_trade_run_exit ON trade(run_id, exit_time);
CREATE INDEX IF NOT EXISTS idx_trade_entry_signal ON trade(entry_signal_id);
CREATE INDEX IF NOT EXISTS idx_trade_exit_signal ON trade(exit_signal_id);
`

const timeLayout = "2006-01-02 15:04:05.000000000"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("ledger: bad stored time %q: %w", s, err)
	}
	return t, nil
}

func encodeParams(p map[string]any) (string, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("%w: parameters are not JSON encodable: %v", ErrInvalidRecord, err)
	}
	return string(b), nil
}

func decodeParams(s string) (map[string]any, error) {
	p := map[string]any{}
	if s == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, fmt.Errorf("ledger: bad stored parameters: %w", err)
	}
	return p, nil
}
