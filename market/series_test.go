package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func sampleBars() []Bar {
	return []Bar{
		{Time: day(0), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{Time: day(1), Open: 10.5, High: 12, Low: 10, Close: 11.5, Volume: 120},
		{Time: day(2), Open: 11.5, High: 13, Low: 11, Close: 12, Volume: 90},
	}
}

func TestFromBars(t *testing.T) {
	t.Parallel()

	s := FromBars(sampleBars())
	require.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{11, 12, 13}, s.High)
	assert.Equal(t, []float64{9, 10, 11}, s.Low)
	assert.Equal(t, sampleBars()[1], s.Bar(1))
	require.NoError(t, s.Validate())
}

func TestSeriesSlice(t *testing.T) {
	t.Parallel()

	s := FromBars(sampleBars())
	s.Volume = nil

	sub := s.Slice(1, 3)
	assert.Equal(t, 2, sub.Len())
	assert.Equal(t, []float64{11.5, 12}, sub.Close)
	assert.Nil(t, sub.Volume)
	assert.Equal(t, 0.0, sub.Bar(0).Volume)
}

func TestSeriesValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Series)
		wantErr bool
	}{
		{name: "ok", mutate: func(*Series) {}},
		{name: "duplicate time", mutate: func(s *Series) { s.Time[2] = s.Time[1] }, wantErr: true},
		{name: "descending time", mutate: func(s *Series) { s.Time[0] = day(5) }, wantErr: true},
		{name: "high below low", mutate: func(s *Series) { s.High[1] = 9 }, wantErr: true},
		{name: "short column", mutate: func(s *Series) { s.Close = s.Close[:2] }, wantErr: true},
		{name: "missing column ok", mutate: func(s *Series) { s.Open = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := FromBars(sampleBars())
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateUnordered(t *testing.T) {
	t.Parallel()

	s := FromBars(sampleBars())
	s.Time[2] = s.Time[0]
	assert.ErrorIs(t, s.Validate(), ErrUnordered)
}
