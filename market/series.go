package market

import (
	"errors"
	"fmt"
	"time"
)

// Field names a column of a Series.
type Field string

const (
	FieldTime   Field = "time"
	FieldOpen   Field = "open"
	FieldHigh   Field = "high"
	FieldLow    Field = "low"
	FieldClose  Field = "close"
	FieldVolume Field = "volume"
)

var ErrUnordered = errors.New("market: timestamps are not strictly increasing")

// Series is a chronologically ordered, column-oriented OHLCV frame.
//
// A nil column means the field is absent. Indicators that need a column
// report it as missing rather than treating it as zeros.
type Series struct {
	Time   []time.Time
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// FromBars builds a Series with every column populated.
func FromBars(bars []Bar) Series {
	s := Series{
		Time:   make([]time.Time, len(bars)),
		Open:   make([]float64, len(bars)),
		High:   make([]float64, len(bars)),
		Low:    make([]float64, len(bars)),
		Close:  make([]float64, len(bars)),
		Volume: make([]float64, len(bars)),
	}
	for i, b := range bars {
		s.Time[i] = b.Time
		s.Open[i] = b.Open
		s.High[i] = b.High
		s.Low[i] = b.Low
		s.Close[i] = b.Close
		s.Volume[i] = b.Volume
	}
	return s
}

// Len is the number of bars, taken from the Time column.
func (s Series) Len() int {
	return len(s.Time)
}

// Column returns the float column for f, or nil when absent.
func (s Series) Column(f Field) []float64 {
	switch f {
	case FieldOpen:
		return s.Open
	case FieldHigh:
		return s.High
	case FieldLow:
		return s.Low
	case FieldClose:
		return s.Close
	case FieldVolume:
		return s.Volume
	}
	return nil
}

// Bar returns the i-th bar. Absent columns read as zero.
func (s Series) Bar(i int) Bar {
	b := Bar{Time: s.Time[i]}
	if s.Open != nil {
		b.Open = s.Open[i]
	}
	if s.High != nil {
		b.High = s.High[i]
	}
	if s.Low != nil {
		b.Low = s.Low[i]
	}
	if s.Close != nil {
		b.Close = s.Close[i]
	}
	if s.Volume != nil {
		b.Volume = s.Volume[i]
	}
	return b
}

// Slice returns bars [from, to) sharing the underlying arrays.
func (s Series) Slice(from, to int) Series {
	cut := func(col []float64) []float64 {
		if col == nil {
			return nil
		}
		return col[from:to]
	}
	return Series{
		Time:   s.Time[from:to],
		Open:   cut(s.Open),
		High:   cut(s.High),
		Low:    cut(s.Low),
		Close:  cut(s.Close),
		Volume: cut(s.Volume),
	}
}

// Validate checks column alignment, strictly increasing timestamps and
// High >= Low on every bar.
func (s Series) Validate() error {
	n := s.Len()
	for _, f := range []Field{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume} {
		if col := s.Column(f); col != nil && len(col) != n {
			return fmt.Errorf("market: column %s has %d values, want %d", f, len(col), n)
		}
	}
	for i := 1; i < n; i++ {
		if !s.Time[i].After(s.Time[i-1]) {
			return fmt.Errorf("%w: bar %d at %s", ErrUnordered, i, s.Time[i].Format(time.RFC3339))
		}
	}
	if s.High != nil && s.Low != nil {
		for i := 0; i < n; i++ {
			if s.High[i] < s.Low[i] {
				return fmt.Errorf("market: bar %d high %.4f below low %.4f", i, s.High[i], s.Low[i])
			}
		}
	}
	return nil
}
