package ledger

// Row models map the shared schema for gorm. Times travel as the fixed
// width text written by formatTime.

type runRow struct {
	RunID           string  `gorm:"column:run_id;primaryKey"`
	StrategyName    string  `gorm:"column:strategy_name"`
	StrategyVersion string  `gorm:"column:strategy_version"`
	Parameters      string  `gorm:"column:parameters"`
	StartTime       string  `gorm:"column:start_time"`
	EndTime         *string `gorm:"column:end_time"`
	DataStart       string  `gorm:"column:data_start"`
	DataEnd         string  `gorm:"column:data_end"`
}

func (runRow) TableName() string { return "run" }

func (r runRow) toRun() (Run, error) {
	run := Run{
		ID:              r.RunID,
		StrategyName:    r.StrategyName,
		StrategyVersion: r.StrategyVersion,
	}
	var err error
	if run.Parameters, err = decodeParams(r.Parameters); err != nil {
		return Run{}, err
	}
	if run.StartTime, err = parseTime(r.StartTime); err != nil {
		return Run{}, err
	}
	if r.EndTime != nil {
		end, err := parseTime(*r.EndTime)
		if err != nil {
			return Run{}, err
		}
		run.EndTime = &end
	}
	if run.DataStart, err = parseTime(r.DataStart); err != nil {
		return Run{}, err
	}
	if run.DataEnd, err = parseTime(r.DataEnd); err != nil {
		return Run{}, err
	}
	return run, nil
}

type signalRow struct {
	SignalID   int64   `gorm:"column:signal_id;primaryKey;autoIncrement"`
	RunID      string  `gorm:"column:run_id"`
	Symbol     string  `gorm:"column:symbol"`
	SignalType string  `gorm:"column:signal_type"`
	Direction  string  `gorm:"column:direction"`
	Timestamp  string  `gorm:"column:timestamp"`
	Price      float64 `gorm:"column:price"`
	Confidence float64 `gorm:"column:confidence"`
	Reason     string  `gorm:"column:reason"`
}

func (signalRow) TableName() string { return "signal" }

func newSignalRow(runID string, s Signal) signalRow {
	return signalRow{
		RunID:      runID,
		Symbol:     s.Symbol,
		SignalType: string(s.Type),
		Direction:  string(s.Direction),
		Timestamp:  formatTime(s.Time),
		Price:      s.Price,
		Confidence: s.Confidence,
		Reason:     s.Reason,
	}
}

func (r signalRow) toSignal() (Signal, error) {
	at, err := parseTime(r.Timestamp)
	if err != nil {
		return Signal{}, err
	}
	return Signal{
		ID:         r.SignalID,
		RunID:      r.RunID,
		Symbol:     r.Symbol,
		Type:       SignalType(r.SignalType),
		Direction:  Direction(r.Direction),
		Time:       at,
		Price:      r.Price,
		Confidence: r.Confidence,
		Reason:     r.Reason,
	}, nil
}

type positionRow struct {
	OpenPositionID int64   `gorm:"column:open_position_id;primaryKey;autoIncrement"`
	RunID          string  `gorm:"column:run_id"`
	Symbol         string  `gorm:"column:symbol"`
	Direction      string  `gorm:"column:direction"`
	OpenedAt       string  `gorm:"column:opened_at"`
	EntryPrice     float64 `gorm:"column:entry_price"`
	QuantityType   string  `gorm:"column:quantity_type"`
	Quantity       float64 `gorm:"column:quantity"`
	EntrySignalID  int64   `gorm:"column:entry_signal_id"`
}

func (positionRow) TableName() string { return "open_position" }

func newPositionRow(runID string, p OpenPosition, entrySignalID int64) positionRow {
	return positionRow{
		RunID:         runID,
		Symbol:        p.Symbol,
		Direction:     string(p.Direction),
		OpenedAt:      formatTime(p.OpenedAt),
		EntryPrice:    p.EntryPrice,
		QuantityType:  string(p.QuantityType),
		Quantity:      p.Quantity,
		EntrySignalID: entrySignalID,
	}
}

func (r positionRow) toPosition() (OpenPosition, error) {
	at, err := parseTime(r.OpenedAt)
	if err != nil {
		return OpenPosition{}, err
	}
	return OpenPosition{
		ID:            r.OpenPositionID,
		RunID:         r.RunID,
		Symbol:        r.Symbol,
		Direction:     Direction(r.Direction),
		OpenedAt:      at,
		EntryPrice:    r.EntryPrice,
		QuantityType:  QuantityType(r.QuantityType),
		Quantity:      r.Quantity,
		EntrySignalID: r.EntrySignalID,
	}, nil
}

type tradeRow struct {
	TradeID       int64   `gorm:"column:trade_id;primaryKey;autoIncrement"`
	RunID         string  `gorm:"column:run_id"`
	Symbol        string  `gorm:"column:symbol"`
	Direction     string  `gorm:"column:direction"`
	QuantityType  string  `gorm:"column:quantity_type"`
	Quantity      float64 `gorm:"column:quantity"`
	EntryPrice    float64 `gorm:"column:entry_price"`
	ExitPrice     float64 `gorm:"column:exit_price"`
	EntryTime     string  `gorm:"column:entry_time"`
	ExitTime      string  `gorm:"column:exit_time"`
	GrossResult   float64 `gorm:"column:gross_result"`
	Commission    float64 `gorm:"column:commission"`
	NetResult     float64 `gorm:"column:net_result"`
	EntrySignalID int64   `gorm:"column:entry_signal_id"`
	ExitSignalID  int64   `gorm:"column:exit_signal_id"`
}

func (tradeRow) TableName() string { return "trade" }

func newTradeRow(runID string, t Trade) tradeRow {
	return tradeRow{
		RunID:         runID,
		Symbol:        t.Symbol,
		Direction:     string(t.Direction),
		QuantityType:  string(t.QuantityType),
		Quantity:      t.Quantity,
		EntryPrice:    t.EntryPrice,
		ExitPrice:     t.ExitPrice,
		EntryTime:     formatTime(t.EntryTime),
		ExitTime:      formatTime(t.ExitTime),
		GrossResult:   t.GrossResult,
		Commission:    t.Commission,
		NetResult:     t.NetResult,
		EntrySignalID: t.EntrySignalID,
		ExitSignalID:  t.ExitSignalID,
	}
}

func (r tradeRow) toTrade() (Trade, error) {
	entry, err := parseTime(r.EntryTime)
	if err != nil {
		return Trade{}, err
	}
	exit, err := parseTime(r.ExitTime)
	if err != nil {
		return Trade{}, err
	}
	return Trade{
		ID:            r.TradeID,
		RunID:         r.RunID,
		Symbol:        r.Symbol,
		Direction:     Direction(r.Direction),
		QuantityType:  QuantityType(r.QuantityType),
		Quantity:      r.Quantity,
		EntryPrice:    r.EntryPrice,
		ExitPrice:     r.ExitPrice,
		EntryTime:     entry,
		ExitTime:      exit,
		GrossResult:   r.GrossResult,
		Commission:    r.Commission,
		NetResult:     r.NetResult,
		EntrySignalID: r.EntrySignalID,
		ExitSignalID:  r.ExitSignalID,
	}, nil
}
