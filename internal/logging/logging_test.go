package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rustyeddy/ledger/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := NewWithOutput(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	l.WithField("run_id", "01HZX").Debug("opened")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "01HZX", entry["run_id"])
	assert.Equal(t, "opened", entry["msg"])
}

func TestNewText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l, err := NewWithOutput(config.LogConfig{Format: "text"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())

	l.Debug("hidden")
	l.WithField("symbol", "SPY").Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "symbol=SPY")
}

func TestNewBadLevel(t *testing.T) {
	t.Parallel()

	_, err := New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
