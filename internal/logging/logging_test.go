package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/su1ph3r/fencer/pkg/types"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		cfg   types.LogSettings
		level zapcore.Level
	}{
		{"console default level", types.LogSettings{Format: "console"}, zapcore.WarnLevel},
		{"json debug", types.LogSettings{Format: "json", Level: "debug"}, zapcore.DebugLevel},
		{"console error", types.LogSettings{Level: "error"}, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			assert.True(t, logger.Desugar().Core().Enabled(tt.level))
			assert.False(t, logger.Desugar().Core().Enabled(tt.level-1))
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(types.LogSettings{Level: "loud"})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.Infow("discarded", "key", "value")
	assert.False(t, logger.Desugar().Core().Enabled(zapcore.ErrorLevel))
}
