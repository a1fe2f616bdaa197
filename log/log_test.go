package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl)

	lvl, err = ParseLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestSetupWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookrule.log")
	logger, closer, err := Setup("info", path)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("fetched", zap.String("url", "https://h.com"))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"INFO"`)
	assert.Contains(t, string(data), `"url":"https://h.com"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestSetupRejectsBadLevel(t *testing.T) {
	_, _, err := Setup("loud", "")
	assert.Error(t, err)
}
