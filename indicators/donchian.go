package indicators

import (
	"math"
	"time"

	"github.com/rustyeddy/ledger/market"
	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"
)

// LegacyDonchianWindow is the fixed window older backtests were recorded with.
const LegacyDonchianWindow = 3

// Channel is a pair of price bands.
type Channel struct {
	Upper []float64
	Lower []float64
}

// DonchianChannel returns the highest high and lowest low over the trailing
// period bars. Bars before the first full window are NaN.
func DonchianChannel(s market.Series, period int) (Channel, error) {
	if err := checkPeriod(period); err != nil {
		return Channel{}, err
	}
	if err := requireFields(s, market.FieldHigh, market.FieldLow); err != nil {
		return Channel{}, err
	}

	ts := toTimeSeries(s)
	upper := techan.NewMaximumValueIndicator(techan.NewHighPriceIndicator(ts), period)
	lower := techan.NewMinimumValueIndicator(techan.NewLowPriceIndicator(ts), period)

	ch := Channel{Upper: nanSlice(s.Len()), Lower: nanSlice(s.Len())}
	for i := period - 1; i < s.Len(); i++ {
		ch.Upper[i] = upper.Calculate(i).Float()
		ch.Lower[i] = lower.Calculate(i).Float()
	}
	return ch, nil
}

// LegacyDonchianChannel reproduces channels computed with a fixed three bar
// window regardless of the configured period.
func LegacyDonchianChannel(s market.Series) (Channel, error) {
	return DonchianChannel(s, LegacyDonchianWindow)
}

func toTimeSeries(s market.Series) *techan.TimeSeries {
	step := time.Minute
	if s.Len() > 1 {
		step = s.Time[1].Sub(s.Time[0])
	}

	candles := make([]*techan.Candle, s.Len())
	for i := range candles {
		c := techan.NewCandle(techan.NewTimePeriod(s.Time[i], step))
		c.MaxPrice = big.NewDecimal(s.High[i])
		c.MinPrice = big.NewDecimal(s.Low[i])
		if s.Close != nil && len(s.Close) == s.Len() {
			c.ClosePrice = big.NewDecimal(s.Close[i])
		}
		candles[i] = c
	}
	return &techan.TimeSeries{Candles: candles}
}

// Width returns Upper-Lower per bar.
func (c Channel) Width() []float64 {
	out := make([]float64, len(c.Upper))
	for i := range out {
		if math.IsNaN(c.Upper[i]) || math.IsNaN(c.Lower[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = c.Upper[i] - c.Lower[i]
	}
	return out
}
