package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelParsing(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  zerolog.Level
	}{
		{"trace", "trace", zerolog.TraceLevel},
		{"debug", "debug", zerolog.DebugLevel},
		{"info", "info", zerolog.InfoLevel},
		{"warn", "warn", zerolog.WarnLevel},
		{"error", "error", zerolog.ErrorLevel},
		{"unrecognized falls back to info", "verbose", zerolog.InfoLevel},
		{"empty falls back to info", "", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			New(Config{Level: tt.level})
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}

func TestNew_WritesStructuredOutput(t *testing.T) {
	log := New(Config{Level: "info"})

	var buf bytes.Buffer
	log = log.Output(&buf)
	log.Info().Str("component", "test").Msg("hello")

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"component":"test"`)
	assert.Contains(t, out, "hello")
}

func TestNew_LevelFiltering(t *testing.T) {
	log := New(Config{Level: "warn"})

	var buf bytes.Buffer
	log = log.Output(&buf)

	log.Debug().Msg("filtered")
	log.Info().Msg("filtered too")
	assert.Empty(t, buf.String())

	log.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_TimestampFormat(t *testing.T) {
	New(Config{Level: "info"})
	assert.Equal(t, "2006-01-02T15:04:05Z07:00", zerolog.TimeFieldFormat)
}

func TestNew_PrettyOutput(t *testing.T) {
	log := New(Config{Level: "info", Pretty: true})

	var buf bytes.Buffer
	log = log.Output(&buf)
	log.Info().Msg("console message")

	assert.Contains(t, buf.String(), "console message")
}

func TestSetGlobalLogger(t *testing.T) {
	log := New(Config{Level: "info"})
	SetGlobalLogger(log)

	var buf bytes.Buffer
	derived := log.Output(&buf)
	derived.Info().Msg("shared root")

	assert.Contains(t, buf.String(), "shared root")
}
