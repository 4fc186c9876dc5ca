// Package config tests.
package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_MODE", "none")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "Advanced Multi-Agent Generator", cfg.AppName)
	assert.Equal(t, ":8000", cfg.APIListenAddr)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, 60*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, 1, cfg.CompletionRetries)
	assert.InDelta(t, 0.2, cfg.StageTemperature, 1e-9)
	assert.Equal(t, 3000, cfg.StageMaxTokens)
	assert.Equal(t, 12, cfg.MaxAgents)
	assert.Equal(t, time.Duration(0), cfg.RunTimeout)
	assert.Empty(t, cfg.WorkflowGraph)
	assert.Equal(t, "@every 1h", cfg.RetentionSchedule)
	assert.Equal(t, 7*24*time.Hour, cfg.TaskMaxAge)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH_MODE", "api-key")
	t.Setenv("API_KEY", "secret")
	t.Setenv("CONTEXT_MAX_CHARS", "250")
	t.Setenv("LLM_PRIMARY", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "api-key", cfg.AuthMode)
	assert.Equal(t, 250, cfg.ContextMaxChars)
	assert.Equal(t, "gemini", cfg.LLMPrimary)
	assert.True(t, cfg.GeminiEnabled())
}

func TestLoad_APIKeyModeRequiresKey(t *testing.T) {
	t.Setenv("AUTH_MODE", "api-key")
	t.Setenv("API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires API_KEY")
}

func TestLoad_UnknownAuthMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "mtls")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown AUTH_MODE "mtls"`)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("COMPLETION_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestLoadWithPrefix(t *testing.T) {
	t.Setenv("APPFORGE_WORKERS", "9")
	cfg, err := LoadWithPrefix("APPFORGE")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Workers)
}

func TestResolvedOutputDir(t *testing.T) {
	cfg := &Config{OutputDir: "relative/out"}
	dir, err := cfg.ResolvedOutputDir()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(dir))
	assert.Equal(t, "out", filepath.Base(dir))

	cfg = &Config{}
	dir, err = cfg.ResolvedOutputDir()
	require.NoError(t, err)
	assert.Equal(t, "appforge", filepath.Base(dir))
}

func TestCORSOriginList(t *testing.T) {
	cfg := &Config{CORSOrigins: " https://a.dev,  ,https://b.dev "}
	assert.Equal(t, "https://a.dev, https://b.dev", cfg.CORSOriginList())
}
