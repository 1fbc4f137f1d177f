package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	Debug("render_layer_failed", zap.Int("layer", 2))
	Warn("vector_open_failed", zap.String("url", "x.fgb"))

	assert.Equal(t, 2, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "render_layer_failed", entry.Message)
	assert.Equal(t, int64(2), entry.ContextMap()["layer"])
}

func TestSetLoggerNil(t *testing.T) {
	SetLogger(nil)
	assert.NotNil(t, L())
	// must not panic
	Error("ignored")
}
