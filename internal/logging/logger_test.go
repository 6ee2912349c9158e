package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNamedBeforeInit(t *testing.T) {
	// Must not panic: the default logger is a nop.
	log := Named("test")
	require.NotNil(t, log)
	log.Debugw("discarded", "k", "v")
}

func TestInit(t *testing.T) {
	require.NoError(t, Init(false))
	assert.NotNil(t, L())
	require.NoError(t, Init(true))
	assert.True(t, L().Core().Enabled(zapcore.DebugLevel))
}
