package monitoring

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSON(t *testing.T) {
	original := *Logger()
	defer SetLogger(original)

	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	Logger().Debug().Str("stage", "smooth").Int("rows", 10).Msg("stage complete")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "debug", event["level"])
	assert.Equal(t, "smooth", event["stage"])
	assert.Equal(t, float64(10), event["rows"])
	assert.Equal(t, "stage complete", event["message"])
}

func TestLevelFilters(t *testing.T) {
	original := *Logger()
	defer SetLogger(original)

	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	Logger().Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	Logf("migrate %d", 3)
	assert.Zero(t, buf.Len())

	Logger().Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetLoggerNop(t *testing.T) {
	original := *Logger()
	defer SetLogger(original)

	SetLogger(zerolog.Nop())
	// Must not panic or write anywhere.
	Logf("test message")
	Logger().Error().Msg("ignored")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		"DEBUG":    zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"off":      zerolog.Disabled,
		"":         zerolog.InfoLevel,
		"nonsense": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}
