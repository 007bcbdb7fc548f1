package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/agentx/agentx/pkg/apitypes"
)

// Load resolves a Config by merging, in priority order:
//  1. built-in defaults (apitypes.DefaultConfig)
//  2. the global config file (~/.config/agentx/agentx.jsonc)
//  3. a project config file under directory/.agentx/agentx.jsonc, if directory is non-empty
//  4. environment variable overrides
//
// Missing files are skipped silently; a malformed file that exists returns
// an error, since a file present but unreadable is more likely a typo than
// an absent optional override.
func Load(directory string) (apitypes.Config, error) {
	cfg := apitypes.DefaultConfig()

	paths := DefaultPaths()
	if err := mergeFile(&cfg, paths.ConfigFilePath()); err != nil {
		return cfg, err
	}
	if directory != "" {
		if err := mergeFile(&cfg, filepath.Join(directory, ".agentx", "agentx.jsonc")); err != nil {
			return cfg, err
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// fileConfig mirrors the subset of apitypes.Config a JSONC file may set;
// Headers/Context are intentionally excluded since HeaderValue.Func cannot
// round-trip through JSON.
type fileConfig struct {
	ServerURL             string                     `json:"serverUrl"`
	APIKey                string                     `json:"apiKey"`
	AuthToken             string                     `json:"authToken"`
	Provider              apitypes.Provider          `json:"provider"`
	Model                 string                     `json:"model"`
	BaseURL               string                     `json:"baseUrl"`
	DataPath              string                     `json:"dataPath"`
	TimeoutSeconds        *int                       `json:"timeoutSeconds"`
	AutoReconnect         *bool                      `json:"autoReconnect"`
	ReliableDelivery      *bool                      `json:"reliableDelivery"`
	Debug                 *bool                      `json:"debug"`
	CompactionThreshold   *int                       `json:"compactionThreshold"`
	SandboxWorkspaceRoot  string                     `json:"sandboxWorkspaceRoot"`
	MCPServers            []apitypes.MCPServerConfig `json:"mcpServers"`
}

func mergeFile(cfg *apitypes.Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil // absent optional file
	}

	var fc fileConfig
	if err := json.Unmarshal(jsonc.ToJSON(raw), &fc); err != nil {
		return err
	}
	mergeFileConfig(cfg, fc)
	return nil
}

func mergeFileConfig(cfg *apitypes.Config, fc fileConfig) {
	if fc.ServerURL != "" {
		cfg.ServerURL = fc.ServerURL
	}
	if fc.APIKey != "" {
		cfg.APIKey = fc.APIKey
	}
	if fc.AuthToken != "" {
		cfg.AuthToken = fc.AuthToken
	}
	if fc.Provider != "" {
		cfg.Provider = fc.Provider
	}
	if fc.Model != "" {
		cfg.Model = fc.Model
	}
	if fc.BaseURL != "" {
		cfg.BaseURL = fc.BaseURL
	}
	if fc.DataPath != "" {
		cfg.DataPath = fc.DataPath
	}
	if fc.TimeoutSeconds != nil {
		cfg.Timeout = secondsToDuration(*fc.TimeoutSeconds)
	}
	if fc.AutoReconnect != nil {
		cfg.AutoReconnect = *fc.AutoReconnect
	}
	if fc.ReliableDelivery != nil {
		cfg.ReliableDelivery = *fc.ReliableDelivery
	}
	if fc.Debug != nil {
		cfg.Debug = *fc.Debug
	}
	if fc.CompactionThreshold != nil {
		cfg.CompactionThreshold = *fc.CompactionThreshold
	}
	if fc.SandboxWorkspaceRoot != "" {
		cfg.SandboxWorkspaceRoot = fc.SandboxWorkspaceRoot
	}
	if fc.MCPServers != nil {
		cfg.MCPServers = mergeMCPServers(cfg.MCPServers, fc.MCPServers)
	}
}

// mergeMCPServers overlays incoming on existing by Name, appending unseen
// entries, so project config can override or add to global config.
func mergeMCPServers(existing, incoming []apitypes.MCPServerConfig) []apitypes.MCPServerConfig {
	byName := make(map[string]int, len(existing))
	out := append([]apitypes.MCPServerConfig(nil), existing...)
	for i, s := range out {
		byName[s.Name] = i
	}
	for _, s := range incoming {
		if i, ok := byName[s.Name]; ok {
			out[i] = s
			continue
		}
		byName[s.Name] = len(out)
		out = append(out, s)
	}
	return out
}

func secondsToDuration(s int) time.Duration { return time.Duration(s) * time.Second }

// providerEnvVars maps each Provider to the environment variable that
// supplies its API key when no config file sets one.
var providerEnvVars = map[apitypes.Provider]string{
	apitypes.ProviderAnthropic:       "ANTHROPIC_API_KEY",
	apitypes.ProviderOpenAI:          "OPENAI_API_KEY",
	apitypes.ProviderGoogle:          "GOOGLE_API_KEY",
	apitypes.ProviderXAI:             "XAI_API_KEY",
	apitypes.ProviderDeepSeek:        "DEEPSEEK_API_KEY",
	apitypes.ProviderMistral:         "MISTRAL_API_KEY",
	apitypes.ProviderOpenAICompatible: "OPENAI_COMPATIBLE_API_KEY",
}

func applyEnvOverrides(cfg *apitypes.Config) {
	if cfg.APIKey == "" {
		if v := os.Getenv("LLM_PROVIDER_KEY"); v != "" {
			cfg.APIKey = v
		} else if envVar, ok := providerEnvVars[cfg.Provider]; ok {
			if v := os.Getenv(envVar); v != "" {
				cfg.APIKey = v
			}
		}
	}
	if v := os.Getenv("LLM_PROVIDER_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("LLM_PROVIDER_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("AGENTX_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("AGENTX_AUTH_TOKEN"); v != "" {
		cfg.AuthToken = v
	}
	if v := os.Getenv("AGENTX_RELIABLE_DELIVERY"); v == "1" || v == "true" {
		cfg.ReliableDelivery = true
	}
	if v := os.Getenv("AGENTX_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("AGENTX_DATA_PATH"); v != "" {
		cfg.DataPath = v
	}
	if v := os.Getenv("AGENTX_DEBUG"); v == "1" || v == "true" {
		cfg.Debug = true
	}
}

// Save writes cfg's JSON-serializable subset to path as pretty-printed JSON.
func Save(cfg apitypes.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
