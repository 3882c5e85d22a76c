package indicators

import (
	"math"

	"github.com/rustyeddy/ledger/market"
)

// epsilon keeps DI and DX finite when the smoothed range or the DI sum is zero.
const epsilon = 1e-10

// Directional holds Wilder's directional movement system.
type Directional struct {
	PlusDI  []float64
	MinusDI []float64
	DX      []float64
	ADX     []float64
}

// DirectionalIndex computes +DI, -DI, DX and ADX.
//
// Directional movement needs the previous bar, so every output is NaN at
// index 0. ADX is the Wilder-smoothed DX using the same period.
func DirectionalIndex(s market.Series, period int) (Directional, error) {
	if err := checkPeriod(period); err != nil {
		return Directional{}, err
	}
	tr, err := TrueRange(s)
	if err != nil {
		return Directional{}, err
	}

	n := s.Len()
	plusDM := nanSlice(n)
	minusDM := nanSlice(n)
	for i := 1; i < n; i++ {
		up := s.High[i] - s.High[i-1]
		down := s.Low[i-1] - s.Low[i]
		plusDM[i], minusDM[i] = 0, 0
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	sTR, _ := Wilder(tr, period)
	sPlus, _ := Wilder(plusDM, period)
	sMinus, _ := Wilder(minusDM, period)

	d := Directional{
		PlusDI:  nanSlice(n),
		MinusDI: nanSlice(n),
		DX:      nanSlice(n),
	}
	for i := 1; i < n; i++ {
		d.PlusDI[i] = di(sPlus[i], sTR[i])
		d.MinusDI[i] = di(sMinus[i], sTR[i])
		d.DX[i] = dx(d.PlusDI[i], d.MinusDI[i])
	}
	d.ADX, _ = Wilder(d.DX, period)
	return d, nil
}

func di(dm, tr float64) float64 {
	return 100 * dm / (tr + epsilon)
}

func dx(plus, minus float64) float64 {
	return 100 * math.Abs(plus-minus) / (plus + minus + epsilon)
}
