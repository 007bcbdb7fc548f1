package apitypes

import "time"

// MCPServerConfig describes an externally configured MCP tool provider
// surfaced to a Driver. It carries only the fields relevant to the core
// runtime; transport details live in the Local runtime's MCP client, not
// here.
type MCPServerConfig struct {
	Name    string            `json:"name"`
	Type    string            `json:"type"` // "stdio" | "http" | "sse"
	Command []string          `json:"command,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Definition is a design-time agent blueprint. It is immutable once
// registered; registration auto-materializes a MetaImage (see Image).
type Definition struct {
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	SystemPrompt string            `json:"systemPrompt,omitempty"`
	MCPServers   []MCPServerConfig `json:"mcpServers,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}
