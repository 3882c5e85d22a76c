// Package data supplies OHLCV series to the indicator pipeline.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/ledger/market"
)

// CSVBars reads bar rows:
//
//	time,open,high,low,close[,volume]
//
// where time is RFC3339 or a 2006-01-02 date. A header row ("time,...")
// is allowed and blank rows are skipped.
type CSVBars struct {
	r        *csv.Reader
	line     int
	sawFirst bool
}

func NewCSVBars(r io.Reader) *CSVBars {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &CSVBars{r: cr}
}

// Next returns the next bar. ok is false at end of input.
func (c *CSVBars) Next() (bar market.Bar, ok bool, err error) {
	for {
		row, err := c.r.Read()
		if err == io.EOF {
			return market.Bar{}, false, nil
		}
		if err != nil {
			return market.Bar{}, false, err
		}
		c.line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		if !c.sawFirst {
			c.sawFirst = true
			if h := strings.ToLower(strings.TrimSpace(row[0])); h == "time" || h == "date" {
				continue
			}
		}

		bar, err := parseBarRow(row)
		if err != nil {
			return market.Bar{}, false, fmt.Errorf("line %d: %w", c.line, err)
		}
		return bar, true, nil
	}
}

// ReadCSV reads every bar from r.
func ReadCSV(r io.Reader) ([]market.Bar, error) {
	c := NewCSVBars(r)
	var out []market.Bar
	for {
		bar, ok, err := c.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, bar)
	}
}

// LoadCSV reads a bar file and checks the result is a valid series.
func LoadCSV(path string) (market.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return market.Series{}, err
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return market.Series{}, fmt.Errorf("%s: %w", path, err)
	}
	s := market.FromBars(bars)
	if err := s.Validate(); err != nil {
		return market.Series{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func parseBarRow(row []string) (market.Bar, error) {
	if len(row) < 5 {
		return market.Bar{}, fmt.Errorf("want at least 5 fields, got %d", len(row))
	}

	t, err := ParseTime(row[0])
	if err != nil {
		return market.Bar{}, err
	}

	var vals [5]float64
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i := 0; i < 5 && i+1 < len(row); i++ {
		s := strings.TrimSpace(row[i+1])
		if s == "" && i == 4 {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad %s %q: %w", names[i], s, err)
		}
		vals[i] = v
	}

	return market.Bar{
		Time:   t,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime accepts RFC3339, "2006-01-02 15:04:05" or a bare date, and
// returns UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

// WriteCSV writes bars in the format ReadCSV accepts.
func WriteCSV(w io.Writer, bars []market.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, b := range bars {
		if err := cw.Write([]string{
			b.Time.UTC().Format(time.RFC3339),
			f(b.Open), f(b.High), f(b.Low), f(b.Close), f(b.Volume),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
