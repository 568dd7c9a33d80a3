package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(100<<20), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, 24*time.Hour, cfg.Storage.RetentionTTL)
	assert.Equal(t, "local", cfg.Runner.Mode)
	assert.Equal(t, 2*time.Minute, cfg.AutoML.Budget)
	assert.True(t, cfg.LLM.Enabled)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
}

func TestNewManager_LoadsFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: "9090"
runner:
  mode: docker
  image: dataspect/runner:v2
storage:
  retention_ttl: 1h
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cm, err := NewManager(path)
	require.NoError(t, err)

	cfg := cm.Get()
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "docker", cfg.Runner.Mode)
	assert.Equal(t, "dataspect/runner:v2", cfg.Runner.Image)
	assert.Equal(t, time.Hour, cfg.Storage.RetentionTTL)
	// Unset keys fall back to defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "pdflatex", cfg.Report.LatexCmd)
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("DS_TEST_KEY", "secret123")

	assert.Equal(t, "secret123", ResolveEnvVars("${DS_TEST_KEY}"))
	assert.Equal(t, "prefix-secret123", ResolveEnvVars("prefix-${DS_TEST_KEY}"))
	assert.Equal(t, "plain", ResolveEnvVars("plain"))
	assert.Equal(t, "", ResolveEnvVars(""))
	assert.Equal(t, "", ResolveEnvVars("${DS_TEST_MISSING_KEY}"))
}
