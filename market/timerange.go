package market

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange reports a date range that is inverted or covers no
// trading days.
var ErrInvalidRange = errors.New("invalid date range")

// TimeRange is an inclusive [From, To] window. A zero bound is open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Between is shorthand for TimeRange{From: from, To: to}.
func Between(from, to time.Time) TimeRange {
	return TimeRange{From: from, To: to}
}

// Since returns a range open at the top.
func Since(from time.Time) TimeRange {
	return TimeRange{From: from}
}

func (r TimeRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Validate rejects ranges whose From is after To.
func (r TimeRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.From.After(r.To) {
		return fmt.Errorf("%w: from %s is after to %s", ErrInvalidRange,
			r.From.Format(time.RFC3339), r.To.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t lies inside the range, bounds included.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// UTC returns the range with both bounds normalized to UTC.
func (r TimeRange) UTC() TimeRange {
	out := r
	if !out.From.IsZero() {
		out.From = out.From.UTC()
	}
	if !out.To.IsZero() {
		out.To = out.To.UTC()
	}
	return out
}
