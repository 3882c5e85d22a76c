// Package risk decides how much to trade and what it costs.
package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/ledger/ledger"
	"github.com/shopspring/decimal"
)

// ErrCannotSize means the inputs do not support opening a position.
var ErrCannotSize = errors.New("cannot size position")

// Inputs describe the account and market at the entry bar.
type Inputs struct {
	Equity float64
	Price  float64
	ATR    float64
}

// Quantity is the amount a position is opened with.
type Quantity struct {
	Type   ledger.QuantityType
	Amount float64
}

type Sizer interface {
	Size(in Inputs) (Quantity, error)
}

// FixedShares always trades the same number of units.
type FixedShares struct {
	Shares float64
}

func (f FixedShares) Size(Inputs) (Quantity, error) {
	if !(f.Shares > 0) {
		return Quantity{}, fmt.Errorf("%w: fixed shares %v", ErrCannotSize, f.Shares)
	}
	return Quantity{Type: ledger.Shares, Amount: f.Shares}, nil
}

// FixedCapital commits the same cash amount to every position. The
// quantity is the fractional number of units Capital buys at the entry
// price, so the ledger's P&L stays in account currency.
type FixedCapital struct {
	Capital float64
}

func (f FixedCapital) Size(in Inputs) (Quantity, error) {
	if !(f.Capital > 0) || !(in.Price > 0) {
		return Quantity{}, fmt.Errorf("%w: capital %v at price %v", ErrCannotSize, f.Capital, in.Price)
	}
	units := decimal.NewFromFloat(f.Capital).Div(decimal.NewFromFloat(in.Price))
	return Quantity{Type: ledger.Capital, Amount: units.InexactFloat64()}, nil
}

// ATRRisk risks RiskPct of equity against a stop StopMultiple ATRs away.
type ATRRisk struct {
	RiskPct      float64 // 0.01
	StopMultiple float64 // 2
}

func (a ATRRisk) Size(in Inputs) (Quantity, error) {
	r := a.Plan(in)
	if r.Units < 1 {
		return Quantity{}, fmt.Errorf("%w: equity %.2f risk %.4f atr %v", ErrCannotSize, in.Equity, a.RiskPct, in.ATR)
	}
	return Quantity{Type: ledger.Shares, Amount: r.Units}, nil
}

// Plan is the sizing arithmetic behind Size.
type Plan struct {
	Units        float64
	StopDistance float64
	RiskAmount   float64
}

func (a ATRRisk) Plan(in Inputs) Plan {
	stop := in.ATR * a.StopMultiple
	risk := in.Equity * a.RiskPct
	if math.IsNaN(stop) || stop <= 0 || !(risk > 0) {
		return Plan{StopDistance: stop, RiskAmount: risk}
	}
	return Plan{
		Units:        math.Floor(risk / stop),
		StopDistance: stop,
		RiskAmount:   risk,
	}
}

// NewSizer builds a sizer by method name: "shares", "capital" or
// "atr_risk". Amount is the share count or capital for the fixed methods.
func NewSizer(method string, amount, riskPct, stopMultiple float64) (Sizer, error) {
	switch method {
	case "shares", "":
		return FixedShares{Shares: amount}, nil
	case "capital":
		return FixedCapital{Capital: amount}, nil
	case "atr_risk":
		if !(riskPct > 0) || !(stopMultiple > 0) {
			return nil, fmt.Errorf("atr_risk sizing needs positive risk_pct and stop_multiple")
		}
		return ATRRisk{RiskPct: riskPct, StopMultiple: stopMultiple}, nil
	}
	return nil, fmt.Errorf("unknown sizing method %q", method)
}
