// Package runtime implements the Runtime factory (C9): Local and Remote
// backings for the Platform API façade (C12), generalizing how a storage
// layer, driver registry, tool registry, and event bus are wired together
// into one object, exposed here through a single interface so C12 does not
// need to know which mode it is running in: mode selection is by config.
package runtime

import (
	"context"

	"github.com/agentx/agentx/internal/bus"
	"github.com/agentx/agentx/pkg/apitypes"
)

// AgentHandle is the lightweight cross-boundary reference to a live Agent;
// unlike internal/agent.Agent, it carries no unexported state and is safe
// to marshal across the RPC transport (C10).
type AgentHandle struct {
	AgentID     string `json:"agentId"`
	SessionID   string `json:"sessionId"`
	ContainerID string `json:"containerId"`
}

// Runtime is the backing every Platform API (C12) namespace method calls
// into. Local implements it with direct in-process object calls; Remote
// implements it by round-tripping through the RPC Transport (C10). Both
// honor the same contracts for the Agent/Container/Session/Image object
// graph.
type Runtime interface {
	// Containers namespace.
	CreateContainer(ctx context.Context, workspaceRoot string) (apitypes.Container, error)
	DestroyContainer(ctx context.Context, containerID string) error
	ListContainers(ctx context.Context) ([]apitypes.Container, error)

	// Images namespace.
	RegisterDefinition(ctx context.Context, def apitypes.Definition) (apitypes.Image, error)
	GetMetaImage(ctx context.Context, definitionName string) (apitypes.Image, error)
	CreateImage(ctx context.Context, containerID, sessionID, definitionName, name string) (apitypes.Image, error)
	UpdateImage(ctx context.Context, imageID string, patch apitypes.ImagePatch) (apitypes.Image, error)
	DeleteImage(ctx context.Context, imageID string) error

	// Agents namespace.
	RunImage(ctx context.Context, imageID, containerID string, cfg apitypes.Config) (AgentHandle, error)
	InterruptAgent(ctx context.Context, containerID, sessionID string) error
	DestroyAgent(ctx context.Context, containerID, sessionID string) error

	// Sessions namespace.
	CreateSession(ctx context.Context, img apitypes.Image, userID, title string) (apitypes.Session, error)
	GetMessages(ctx context.Context, sessionID string) ([]apitypes.Message, error)
	Send(ctx context.Context, sessionID string, content []apitypes.ContentPart, img apitypes.Image, cfg apitypes.Config) (*apitypes.Message, error)
	ResumeSession(ctx context.Context, img apitypes.Image, cfg apitypes.Config) error
	ForkSession(ctx context.Context, sourceSessionID, forkPointMessageID string, newImg apitypes.Image, userID, title string) (apitypes.Session, error)
	CollectSession(ctx context.Context, sessionID string) (apitypes.Session, []apitypes.Message, error)

	// Event subscription API, shared verbatim across both modes.
	On(eventType string, handler bus.Handler, opts ...bus.Options) *bus.Subscription
	OnAny(handler bus.Handler, opts ...bus.Options) *bus.Subscription

	// SubscribeTopic/UnsubscribeTopic declare caller interest in a topic
	// (typically a sessionId) ahead of an OnAny registration that filters
	// on it. Local is a no-op (every event is already in-process and
	// On/OnAny's own Filter does the scoping); Remote forwards to the RPC
	// Transport's subscribe/unsubscribe notifications, since the server
	// only fans stream.event out to sockets that asked for that topic.
	SubscribeTopic(ctx context.Context, topic string) error
	UnsubscribeTopic(ctx context.Context, topic string) error

	Close() error
}
