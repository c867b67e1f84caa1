package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bot.log")
	require.NoError(t, Init(Config{Level: "debug", OutputFile: path, MaxSize: 1, NoColors: true}))
	assert.Equal(t, path, GetCurrentLogFile())

	WithField("scope", "BTC/LTC:BID").Info("placed order")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "placed order")
	assert.Contains(t, string(b), "BTC/LTC:BID")
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	require.NoError(t, Init(Config{Level: "chatty", NoColors: true}))
	assert.Equal(t, "info", Logger.GetLevel().String())
	assert.Empty(t, GetCurrentLogFile())
}
