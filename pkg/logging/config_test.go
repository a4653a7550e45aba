package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/shelf/pkg/logging"
)

func TestConfigFunctions(t *testing.T) {
	originalLogger := *logging.Default()
	originalLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		logging.SetDefault(originalLogger)
		zerolog.SetGlobalLevel(originalLevel)
	})

	t.Run("DefaultConfig returns sensible defaults", func(t *testing.T) {
		cfg := logging.DefaultConfig()
		assert.Equal(t, "info", cfg.Level)
		assert.Equal(t, "auto", cfg.Format)
		assert.Equal(t, "stderr", cfg.Output)
		assert.False(t, cfg.AddCaller)
	})

	t.Run("file output with default fields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "shelf.log")

		logger := logging.NewLoggerFromConfig(&logging.Config{
			Level:  "debug",
			Format: "json",
			Output: path,
			Fields: map[string]any{"component": "server"},
		})
		logger.Info().Msg("test message")

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "test message")
		assert.Contains(t, string(content), `"component":"server"`)
	})

	t.Run("Configure sets global logger from config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "global.log")

		logging.Configure(&logging.Config{Level: "warn", Format: "json", Output: path})
		logging.Info().Msg("info message")
		logging.Warn().Msg("warn message")

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(content), "info message")
		assert.Contains(t, string(content), "warn message")
	})

	t.Run("ConfigureFromEnv reads LOG_ variables", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "env.log")
		t.Setenv("LOG_LEVEL", "error")
		t.Setenv("LOG_FORMAT", "json")
		t.Setenv("LOG_OUTPUT", path)
		t.Setenv("LOG_FIELDS", "app=shelf, env = test")

		logging.ConfigureFromEnv()
		logging.Warn().Msg("dropped")
		logging.Error().Msg("kept")

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(content), "dropped")
		assert.Contains(t, string(content), `"app":"shelf"`)
		assert.Contains(t, string(content), `"env":"test"`)
	})
}
