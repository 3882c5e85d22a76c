package indicators

import (
	"math"

	"github.com/rustyeddy/ledger/market"
)

// TrueRange returns max(H-L, |H-Cprev|, |L-Cprev|) per bar. The first bar
// has no previous close and is NaN.
func TrueRange(s market.Series) ([]float64, error) {
	if err := requireFields(s, market.FieldHigh, market.FieldLow, market.FieldClose); err != nil {
		return nil, err
	}

	tr := nanSlice(s.Len())
	for i := 1; i < s.Len(); i++ {
		prev := s.Close[i-1]
		tr[i] = math.Max(s.High[i]-s.Low[i],
			math.Max(math.Abs(s.High[i]-prev), math.Abs(s.Low[i]-prev)))
	}
	return tr, nil
}

// AverageTrueRange is the Wilder-smoothed true range.
func AverageTrueRange(s market.Series, period int) ([]float64, error) {
	if err := checkPeriod(period); err != nil {
		return nil, err
	}
	tr, err := TrueRange(s)
	if err != nil {
		return nil, err
	}
	return Wilder(tr, period)
}
