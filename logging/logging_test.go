package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(Config{Level: tt.level, Format: "console", OutputPath: "stderr"})
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestZapAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Zap(zap.New(core))

	l.Debug("erasing", "chip", "ESP32")
	l.Info("writing part", "file", "firmware.bin", "address", 0x10000)
	l.Error("write failed", "error", "timeout")

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, "writing part", entries[1].Message)
	assert.Equal(t, "firmware.bin", entries[1].ContextMap()["file"])
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		OrNop(nil).Info("ignored", "k", "v")
		Zap(nil).Error("ignored")
	})
}
