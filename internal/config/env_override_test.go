package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides(t *testing.T) {
	t.Run("ARWEN_ENGINE_CMD replaces the command", func(t *testing.T) {
		t.Setenv("ARWEN_ENGINE_CMD", "stub.exe --test")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "stub.exe --test", cfg.Engine.Command)
		assert.Equal(t, "stub.exe", cfg.EngineCommand().Path)
	})

	t.Run("ARWEN_ENGINE_DIR sets the working directory", func(t *testing.T) {
		t.Setenv("ARWEN_ENGINE_DIR", "/srv/engine")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "/srv/engine", cfg.EngineCommand().Dir)
	})

	t.Run("ARWEN_STORE enables the store", func(t *testing.T) {
		t.Setenv("ARWEN_STORE", "/tmp/runs.db")
		cfg := &Config{}
		cfg.applyEnvOverrides()
		assert.True(t, cfg.Store.Enabled)
		assert.Equal(t, "/tmp/runs.db", cfg.Store.Path)
	})

	t.Run("ARWEN_DEBUG turns on debug logging", func(t *testing.T) {
		t.Setenv("ARWEN_DEBUG", "1")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.True(t, cfg.Logging.DebugMode)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("ARWEN_DEBUG other values are ignored", func(t *testing.T) {
		t.Setenv("ARWEN_DEBUG", "0")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.False(t, cfg.Logging.DebugMode)
	})

	t.Run("empty values do not override", func(t *testing.T) {
		t.Setenv("ARWEN_ENGINE_CMD", "")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, DefaultEngineCommand, cfg.Engine.Command)
	})
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arwen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  command: from-file\n"), 0o644))
	t.Setenv("ARWEN_ENGINE_CMD", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Engine.Command)
}
