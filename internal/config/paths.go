// Package config loads the JSONC configuration surface, generalizing an
// XDG-style path layout and env-override convention onto a new schema.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds the standard on-disk locations for AgentX's local state.
type Paths struct {
	Data   string // ~/.local/share/agentx (or $XDG_DATA_HOME/agentx)
	Config string // ~/.config/agentx
	Cache  string // ~/.cache/agentx
	State  string // ~/.local/state/agentx
}

// DefaultPaths returns the standard paths, honoring XDG_* overrides on
// platforms that set them and falling back to OS-conventional locations.
func DefaultPaths() *Paths {
	return &Paths{
		Data:   filepath.Join(getEnvOrDefault("XDG_DATA_HOME", defaultDataHome()), "agentx"),
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), "agentx"),
		Cache:  filepath.Join(getEnvOrDefault("XDG_CACHE_HOME", defaultCacheHome()), "agentx"),
		State:  filepath.Join(getEnvOrDefault("XDG_STATE_HOME", defaultStateHome()), "agentx"),
	}
}

// EnsurePaths creates every directory in Paths if missing.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.Config, p.Cache, p.State} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// StoragePath is where the sqlite repository backend (internal/store/sqlite)
// keeps its database file by default.
func (p *Paths) StoragePath() string {
	return filepath.Join(p.Data, "store", "agentx.db")
}

// WorkspaceRoot is the parent directory under which Sandbox (C-supplement)
// creates one subdirectory per container, "{WorkspaceRoot}/{containerId}/".
func (p *Paths) WorkspaceRoot() string {
	return filepath.Join(p.Data, "workspaces")
}

// ConfigFilePath returns the default agentx.jsonc location.
func (p *Paths) ConfigFilePath() string {
	return filepath.Join(p.Config, "agentx.jsonc")
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultDataHome() string {
	home, _ := os.UserHomeDir()
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support")
	}
	return filepath.Join(home, ".local", "share")
}

func defaultConfigHome() string {
	home, _ := os.UserHomeDir()
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support")
	}
	return filepath.Join(home, ".config")
}

func defaultCacheHome() string {
	home, _ := os.UserHomeDir()
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Caches")
	}
	return filepath.Join(home, ".cache")
}

func defaultStateHome() string {
	home, _ := os.UserHomeDir()
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Application Support")
	}
	return filepath.Join(home, ".local", "state")
}
