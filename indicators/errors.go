package indicators

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/ledger/market"
)

var (
	// ErrMissingField matches any *MissingFieldError.
	ErrMissingField = errors.New("missing field")

	ErrInvalidPeriod = errors.New("invalid period")
)

// MissingFieldError reports an input column that is absent or not aligned
// with the series timestamps.
type MissingFieldError struct {
	Field market.Field
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("indicators: series is missing field %q", e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

func checkPeriod(period int) error {
	if period <= 0 {
		return fmt.Errorf("%w: period must be positive, got %d", ErrInvalidPeriod, period)
	}
	return nil
}

func requireFields(s market.Series, fields ...market.Field) error {
	n := s.Len()
	for _, f := range fields {
		col := s.Column(f)
		if col == nil || len(col) != n {
			return &MissingFieldError{Field: f}
		}
	}
	return nil
}
