package apitypes

import "time"

// Image is the Docker-style record produced either automatically from a
// Definition (a "MetaImage", SessionID empty) or by snapshotting a running
// Agent (a "Snapshot Image", SessionID set). Both flavors share this shape;
// IsSnapshot reports which one a given record is.
type Image struct {
	ImageID        string         `json:"imageId"`
	DefinitionName string         `json:"definitionName"`
	ContainerID    string         `json:"containerId,omitempty"`
	Name           string         `json:"name,omitempty"`
	SystemPrompt   string         `json:"systemPrompt,omitempty"`
	MCPServers     []MCPServerConfig `json:"mcpServers,omitempty"`
	SessionID      string         `json:"sessionId,omitempty"`
	CustomData     map[string]any `json:"customData,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// IsSnapshot reports whether this Image carries concrete session history.
func (img Image) IsSnapshot() bool {
	return img.SessionID != ""
}

// ImagePatch carries the only fields Image.update (C8) is allowed to modify.
type ImagePatch struct {
	Name       *string
	CustomData map[string]any
}
