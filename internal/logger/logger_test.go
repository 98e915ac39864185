package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"":        zapcore.InfoLevel,
		" INFO ":  zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("chatty")
	require.False(t, ok)
}

// TestSetLevelName rejects unknown names without touching the current level.
func TestSetLevelName(t *testing.T) {
	t.Parallel()

	before := Level()

	require.Error(t, SetLevelName("chatty"))
	require.Equal(t, before, Level())
}

// TestWithLevel verifies the option narrows a logger below the shared level.
func TestWithLevel(t *testing.T) {
	t.Parallel()

	l := New(zapcore.DebugLevel, WithLevel(zapcore.WarnLevel))

	require.False(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
	require.True(t, l.Desugar().Core().Enabled(zapcore.ErrorLevel))
}
