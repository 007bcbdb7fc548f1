package apitypes

import "time"

// Provider enumerates the LLM vendors a Driver can be built for.
type Provider string

const (
	ProviderAnthropic       Provider = "anthropic"
	ProviderOpenAI          Provider = "openai"
	ProviderGoogle          Provider = "google"
	ProviderXAI             Provider = "xai"
	ProviderDeepSeek        Provider = "deepseek"
	ProviderMistral         Provider = "mistral"
	ProviderOpenAICompatible Provider = "openai-compatible"
)

// HeaderValue is a header/context value that may be static, or resolved by a
// sync or async function (e.g. for token refresh). Local runtime builders
// that embed this SDK in a Go process can set Func directly; JSON-configured
// deployments only ever populate Static.
type HeaderValue struct {
	Static string
	Func   func() (string, error)
}

// Resolve returns the current value, invoking Func if one is set.
func (h HeaderValue) Resolve() (string, error) {
	if h.Func != nil {
		return h.Func()
	}
	return h.Static, nil
}

// Config is the enumerated client configuration surface.
// Presence of ServerURL selects remote mode; presence of APIKey selects
// local mode (ServerURL takes precedence if both are set).
type Config struct {
	ServerURL string   `json:"serverUrl,omitempty"`
	APIKey    string   `json:"apiKey,omitempty"`
	Provider  Provider `json:"provider,omitempty"`
	Model     string   `json:"model,omitempty"`
	BaseURL   string   `json:"baseUrl,omitempty"`

	// AuthToken is the shared secret a remote client sends as the first
	// frame on a fresh RPC connection (the "auth" notification) and the
	// server validates before dispatching any other method. Empty on
	// either side means that side does not gate/present a token.
	AuthToken string `json:"authToken,omitempty"`

	// DataPath is the local repository location; ":memory:" selects the
	// in-memory backend. Defaults to "~/.agentx/data".
	DataPath string `json:"dataPath,omitempty"`

	Headers map[string]HeaderValue `json:"-"`
	Context map[string]HeaderValue `json:"-"`

	Timeout       time.Duration `json:"timeout,omitempty"`
	AutoReconnect bool          `json:"autoReconnect"`
	Debug         bool          `json:"debug,omitempty"`

	// ReliableDelivery opts into the JSON-RPC msgId/control.ack wrapper for
	// server-pushed stream.event notifications: the server resends each
	// event with backoff until the client acks it, giving up after three
	// unanswered sends, instead of the
	// default best-effort fire-and-forget push. Off by default since it
	// costs a round trip per event; callers running over an unreliable
	// transport (edge, flaky mobile networks) opt in explicitly.
	ReliableDelivery bool `json:"reliableDelivery,omitempty"`

	// CompactionThreshold is a message count for session compaction. Nothing
	// reads it: session.Manager.Compact runs only when called, and takes its
	// threshold as an argument.
	CompactionThreshold int `json:"compactionThreshold,omitempty"`

	// SandboxWorkspaceRoot overrides the default per-container workspace
	// directory template "~/.agentx/workspaces/{containerId}/".
	SandboxWorkspaceRoot string `json:"sandboxWorkspaceRoot,omitempty"`

	// MCPServers configures Runtime-level default MCP servers. Loading merges
	// the global and project lists; they are not combined with the servers
	// named on a Definition.
	MCPServers []MCPServerConfig `json:"mcpServers,omitempty"`
}

// IsRemote reports whether this configuration selects remote (RPC) mode.
func (c Config) IsRemote() bool { return c.ServerURL != "" }

// DefaultConfig returns the runtime's documented defaults.
func DefaultConfig() Config {
	return Config{
		Provider:            ProviderAnthropic,
		DataPath:            "~/.agentx/data",
		Timeout:             30 * time.Second,
		AutoReconnect:       true,
		CompactionThreshold: 200,
	}
}
