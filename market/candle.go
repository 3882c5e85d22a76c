package market

import "time"

// Bar is one OHLCV candle for a symbol.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Range returns High - Low.
func (b Bar) Range() float64 {
	return b.High - b.Low
}
