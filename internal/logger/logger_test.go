package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	log, err := New(Config{Level: "debug", Format: "json", Dir: dir})
	require.NoError(t, err)

	log.Info("server registered")
	_ = log.Sync()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "server registered")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Format: "xml"})
	assert.Error(t, err)
}
