package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel(" WARN "))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
}

func TestIsDevelopment(t *testing.T) {
	assert.True(t, isDevelopment("development"))
	assert.True(t, isDevelopment(""))
	assert.False(t, isDevelopment("production"))
	assert.False(t, isDevelopment("PROD"))
}

func TestTeeFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	closer, err := TeeFile("production", "info", dir, "run.log")
	require.NoError(t, err)
	defer closer.Close()

	log.Info().Str("component", "logger_test").Msg("tee check")

	raw, err := os.ReadFile(filepath.Join(dir, "run.log"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "tee check")
	assert.Contains(t, string(raw), `"component":"logger_test"`)
}
