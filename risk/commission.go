package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Commission prices a round trip: one fill at entry, one at exit.
type Commission interface {
	Cost(qty, entry, exit float64) float64
}

// Free charges nothing.
type Free struct{}

func (Free) Cost(float64, float64, float64) float64 { return 0 }

// PerShare charges Rate per unit on each fill, never less than Minimum
// per fill.
type PerShare struct {
	Rate    float64
	Minimum float64
}

func (p PerShare) Cost(qty, _, _ float64) float64 {
	fill := decimal.NewFromFloat(p.Rate).Mul(decimal.NewFromFloat(qty).Abs())
	if floor := decimal.NewFromFloat(p.Minimum); fill.LessThan(floor) {
		fill = floor
	}
	return fill.Mul(decimal.NewFromInt(2)).InexactFloat64()
}

// Flat charges the same amount per fill.
type Flat struct {
	PerFill float64
}

func (f Flat) Cost(float64, float64, float64) float64 {
	return decimal.NewFromFloat(f.PerFill).Mul(decimal.NewFromInt(2)).InexactFloat64()
}

// Percent charges Rate of the notional of each fill.
type Percent struct {
	Rate float64 // 0.001 = 10 bps
}

func (p Percent) Cost(qty, entry, exit float64) float64 {
	q := decimal.NewFromFloat(qty).Abs()
	notional := q.Mul(decimal.NewFromFloat(entry)).Add(q.Mul(decimal.NewFromFloat(exit)))
	return notional.Mul(decimal.NewFromFloat(p.Rate)).InexactFloat64()
}

// NewCommission builds a commission model by name: "none", "per_share",
// "flat" or "percent".
func NewCommission(model string, rate, minimum float64) (Commission, error) {
	if rate < 0 || minimum < 0 {
		return nil, fmt.Errorf("commission %s: negative rate %v or minimum %v", model, rate, minimum)
	}
	switch model {
	case "none", "":
		return Free{}, nil
	case "per_share":
		return PerShare{Rate: rate, Minimum: minimum}, nil
	case "flat":
		return Flat{PerFill: rate}, nil
	case "percent":
		return Percent{Rate: rate}, nil
	}
	return nil, fmt.Errorf("unknown commission model %q", model)
}
