package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	require.NoError(t, Init(Options{Level: "warn", Format: "json", Out: &buf}))

	logger := WithComponent("render")
	logger.Info().Msg("dropped")
	logger.Warn().Int("frame", 3).Msg("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "render", entry["component"])
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, float64(3), entry["frame"])
}

func TestInitVerboseAndInvalid(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	require.NoError(t, Init(Options{Level: "error", Verbose: true, Out: &bytes.Buffer{}}))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	assert.Error(t, Init(Options{Level: "loud"}))
}

func TestNewLoggerWritesToAllWriters(t *testing.T) {
	var a, b bytes.Buffer
	logger := NewLogger(&a, &b)
	logger.Error().Msg("both")
	assert.Contains(t, a.String(), "both")
	assert.Contains(t, b.String(), "both")
}
