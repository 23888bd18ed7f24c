package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 4, cfg.Agent.MaxIterations)
	assert.Equal(t, "local", cfg.STT.Provider)
	assert.Equal(t, "espeak", cfg.TTS.Provider)
	assert.Equal(t, 4, cfg.RAG.TopK)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("USE_LLM", "ollama")
	t.Setenv("LLM_MODEL", "llama3.1")
	t.Setenv("STT_PROVIDER", "openai")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3.1", cfg.LLM.Model)
	assert.Equal(t, "openai", cfg.STT.Provider)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("server:\n  port: 9001\ntts:\n  provider: mock\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "mock", cfg.TTS.Provider)
}

func TestValidateRejectsUnknownProviders(t *testing.T) {
	t.Setenv("USE_LLM", "parrot")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown llm provider")
}
