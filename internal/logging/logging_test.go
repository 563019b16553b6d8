package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	require.Equal(t, zapcore.WarnLevel, parseLevel(" WARNING "))
	require.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	require.Equal(t, zapcore.InfoLevel, parseLevel(""))
	require.Equal(t, zapcore.InfoLevel, parseLevel("trace"))
}

func TestOrNop(t *testing.T) {
	require.NotNil(t, OrNop(nil))

	l, err := New("debug")
	require.NoError(t, err)
	require.Same(t, l, OrNop(l))
}
