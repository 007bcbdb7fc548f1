package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMergesProjectOverGlobal(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("AGENTX_MODEL", "")

	globalDir := filepath.Join(home, "agentx")
	require.NoError(t, os.MkdirAll(globalDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "agentx.jsonc"), []byte(`{
		// global defaults
		"model": "claude-opus-4",
		"dataPath": "/global/data"
	}`), 0o644))

	projectDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(projectDir, ".agentx"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".agentx", "agentx.jsonc"), []byte(`{
		"model": "claude-sonnet-4"
	}`), 0o644))

	cfg, err := Load(projectDir)
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4", cfg.Model, "project config overrides global")
	assert.Equal(t, "/global/data", cfg.DataPath, "global config fields not overridden by project survive")
}

func TestLoadAppliesEnvAPIKeyWhenUnset(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-123")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", cfg.APIKey)
}

func TestLoadMissingFilesUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.CompactionThreshold)
}

func TestSaveRoundTripsJSON(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "sub", "agentx.json")

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Model = "claude-opus-4"

	require.NoError(t, Save(cfg, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "claude-opus-4")
}
