package data

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rustyeddy/ledger/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `time,open,high,low,close,volume
2024-01-02,100,105,99,102,1000

2024-01-03T00:00:00Z,102,107,101,105,1200
2024-01-04 00:00:00,105,108,104,106,
`

func TestReadCSV(t *testing.T) {
	t.Parallel()

	bars, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[0].Time)
	assert.Equal(t, 105.0, bars[0].High)
	assert.Equal(t, 1000.0, bars[0].Volume)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), bars[2].Time)
	assert.Zero(t, bars[2].Volume)
}

func TestReadCSVWithoutHeaderOrVolume(t *testing.T) {
	t.Parallel()

	bars, err := ReadCSV(strings.NewReader("2024-01-02,1,2,0.5,1.5\n"))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 1.5, bars[0].Close)
}

func TestReadCSVErrors(t *testing.T) {
	t.Parallel()

	_, err := ReadCSV(strings.NewReader("time,open\n2024-01-02,1,2,3\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = ReadCSV(strings.NewReader("yesterday,1,2,0,1\n"))
	assert.ErrorContains(t, err, "bad time")

	_, err = ReadCSV(strings.NewReader("2024-01-02,1,x,0,1\n"))
	assert.ErrorContains(t, err, "bad high")
}

func TestLoadCSVValidatesOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.csv")
	require.NoError(t, os.WriteFile(good, []byte(sampleCSV), 0o644))
	s, err := LoadCSV(good)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("2024-01-03,1,2,0,1\n2024-01-02,1,2,0,1\n"), 0o644))
	_, err = LoadCSV(bad)
	assert.ErrorIs(t, err, market.ErrUnordered)

	_, err = LoadCSV(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	t.Parallel()

	bars, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, bars))
	again, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, bars, again)
}
