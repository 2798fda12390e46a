package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"info", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"  DEBUG ", zapcore.DebugLevel},
	}

	for _, tt := range tests {
		got, err := parseLevel(tt.input)
		require.NoError(t, err, "level %q", tt.input)
		assert.Equal(t, tt.want, got, "level %q", tt.input)
	}

	_, err := parseLevel("loud")
	assert.Error(t, err)
}

func TestInitCLILogger(t *testing.T) {
	prev := CLILogger
	t.Cleanup(func() { CLILogger = prev })

	require.NoError(t, InitCLILogger("debug", true))
	assert.True(t, CLILogger.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, InitCLILogger("warn", false))
	assert.False(t, CLILogger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, CLILogger.Core().Enabled(zapcore.WarnLevel))

	assert.Error(t, InitCLILogger("bogus", true))
}
