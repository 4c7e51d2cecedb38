package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]hclog.Level{
		"":      hclog.Info,
		"trace": hclog.Trace,
		"debug": hclog.Debug,
		"INFO":  hclog.Info,
		"warn":  hclog.Warn,
		"error": hclog.Error,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestNewLogger_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(Options{Level: "debug", JSON: true, Output: &buf})
	require.NoError(t, err)

	logger.Named("pipeline").Debug("calling plugin", "plugin", "scan")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "calling plugin", line["@message"])
	assert.Equal(t, "cryoflow.pipeline", line["@module"])
	assert.Equal(t, "scan", line["plugin"])
}

func TestNewLogger_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(Options{Level: "warn", Output: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	_, err = NewLogger(Options{Level: "loud"})
	require.Error(t, err)
}
