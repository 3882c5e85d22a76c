// Package indicators derives technical series from OHLC prices.
//
// Every function is pure. Outputs are aligned with the input series and
// hold NaN on bars where the value is not yet defined.
package indicators

import "math"

// Wilder applies Wilder's smoothing, an exponential average with
// alpha = 1/period:
//
//	out[t] = out[t-1] + alpha*(v[t]-out[t-1])
//
// The recursion is seeded by the first defined value. Bars before the seed
// are NaN and a NaN input later on carries the previous value forward.
func Wilder(values []float64, period int) ([]float64, error) {
	if err := checkPeriod(period); err != nil {
		return nil, err
	}

	alpha := 1.0 / float64(period)
	out := make([]float64, len(values))
	prev := math.NaN()
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			out[i] = prev
			continue
		case math.IsNaN(prev):
			prev = v
		default:
			prev += alpha * (v - prev)
		}
		out[i] = prev
	}
	return out, nil
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
