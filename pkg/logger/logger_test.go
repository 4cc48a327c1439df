package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitAcceptsEnvironmentNames(t *testing.T) {
	// Deployments hand the environment name straight through as the
	// level; startup must never fail on it.
	for _, env := range []string{"development", "staging", "production"} {
		t.Run(env, func(t *testing.T) {
			err := Init(&Config{Level: env, ServiceName: "reservation-service"})
			require.NoError(t, err)
			assert.NotNil(t, Get())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"DEBUG", zapcore.DebugLevel},
		{" info ", zapcore.InfoLevel},
		{"development", zapcore.DebugLevel},
		{"staging", zapcore.InfoLevel},
		{"production", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.input), "parseLevel(%q)", tt.input)
	}
}

func TestGetNeverNil(t *testing.T) {
	mu.Lock()
	global = nil
	mu.Unlock()

	l := Get()
	require.NotNil(t, l)
	l.Info("default logger works")
}
