package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestSetGlobalLogLevel(t *testing.T) {
	t.Cleanup(func() { SetGlobalLogLevel("info") })

	SetGlobalLogLevel("debug")
	assert.Equal(t, zapcore.DebugLevel, level.Level())
	assert.True(t, Zap().Core().Enabled(zapcore.DebugLevel))

	SetGlobalLogLevel("error")
	assert.Equal(t, zapcore.ErrorLevel, level.Level())
	assert.False(t, Zap().Core().Enabled(zapcore.WarnLevel))

	SetGlobalLogLevel("verbose")
	assert.Equal(t, zapcore.InfoLevel, level.Level())
}

func TestNewLogger(t *testing.T) {
	t.Cleanup(func() { NewLogger("info") })

	l := NewLogger("warn")
	assert.NotNil(t, l)
	assert.Equal(t, zapcore.WarnLevel, level.Level())
	assert.NotPanics(t, func() {
		Infof("suppressed %d", 1)
		Warn("visible")
		Sync()
	})
}
