// Package platform implements the Platform API façade (C12): a single
// "AgentX" struct exposing five namespaces (containers, images, agents,
// sessions, presentations) plus subscription helpers, generalizing how a
// server aggregates a session service, driver registry, tool registry,
// bus, and MCP client behind one struct. AgentX stays transport-agnostic,
// backed by either runtime.Local or runtime.Remote.
package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentx/agentx/internal/bus"
	"github.com/agentx/agentx/internal/presentation"
	"github.com/agentx/agentx/internal/rpc"
	"github.com/agentx/agentx/internal/runtime"
	"github.com/agentx/agentx/pkg/apitypes"
)

// AgentX is the top-level façade. A non-empty Config.ServerURL selects
// Remote, otherwise Local.
type AgentX struct {
	rt runtime.Runtime

	Containers    *ContainersAPI
	Images        *ImagesAPI
	Agents        *AgentsAPI
	Sessions      *SessionsAPI
	Presentations *PresentationsAPI
}

// New builds an AgentX backed by Local or Remote depending on cfg.
func New(ctx context.Context, cfg apitypes.Config, log zerolog.Logger) (*AgentX, error) {
	var rt runtime.Runtime
	if cfg.IsRemote() {
		client, err := rpc.Dial(ctx, cfg.ServerURL, cfg.AuthToken, cfg.ReliableDelivery, cfg.AutoReconnect, log)
		if err != nil {
			return nil, fmt.Errorf("platform: dial %s: %w", cfg.ServerURL, err)
		}
		remote, err := runtime.NewRemote(client, log)
		if err != nil {
			return nil, err
		}
		rt = remote
	} else {
		local, err := runtime.NewLocal(cfg, log)
		if err != nil {
			return nil, err
		}
		rt = local
	}
	return newWithRuntime(rt), nil
}

func newWithRuntime(rt runtime.Runtime) *AgentX {
	return &AgentX{
		rt:            rt,
		Containers:    &ContainersAPI{rt: rt},
		Images:        &ImagesAPI{rt: rt},
		Agents:        &AgentsAPI{rt: rt},
		Sessions:      &SessionsAPI{rt: rt},
		Presentations: &PresentationsAPI{rt: rt},
	}
}

// On subscribes handler to a single Bus event type.
func (a *AgentX) On(eventType string, handler bus.Handler, opts ...bus.Options) *bus.Subscription {
	return a.rt.On(eventType, handler, opts...)
}

// OnAny subscribes handler to every Bus event.
func (a *AgentX) OnAny(handler bus.Handler, opts ...bus.Options) *bus.Subscription {
	return a.rt.OnAny(handler, opts...)
}

// Close releases the backing runtime (Local: closes the store; Remote:
// closes the transport).
func (a *AgentX) Close() error {
	return a.rt.Close()
}

// ContainersAPI is the "containers" namespace.
type ContainersAPI struct{ rt runtime.Runtime }

func (c *ContainersAPI) Create(ctx context.Context, workspaceRoot string) (apitypes.Container, error) {
	return c.rt.CreateContainer(ctx, workspaceRoot)
}

func (c *ContainersAPI) Destroy(ctx context.Context, containerID string) error {
	return c.rt.DestroyContainer(ctx, containerID)
}

func (c *ContainersAPI) List(ctx context.Context) ([]apitypes.Container, error) {
	return c.rt.ListContainers(ctx)
}

// ImagesAPI is the "images" namespace, mirroring the Image Registry (C8)
// contract.
type ImagesAPI struct{ rt runtime.Runtime }

func (i *ImagesAPI) RegisterDefinition(ctx context.Context, def apitypes.Definition) (apitypes.Image, error) {
	return i.rt.RegisterDefinition(ctx, def)
}

func (i *ImagesAPI) GetMetaImage(ctx context.Context, definitionName string) (apitypes.Image, error) {
	return i.rt.GetMetaImage(ctx, definitionName)
}

func (i *ImagesAPI) Create(ctx context.Context, containerID, sessionID, definitionName, name string) (apitypes.Image, error) {
	return i.rt.CreateImage(ctx, containerID, sessionID, definitionName, name)
}

func (i *ImagesAPI) Update(ctx context.Context, imageID string, patch apitypes.ImagePatch) (apitypes.Image, error) {
	return i.rt.UpdateImage(ctx, imageID, patch)
}

func (i *ImagesAPI) Delete(ctx context.Context, imageID string) error {
	return i.rt.DeleteImage(ctx, imageID)
}

// AgentsAPI is the "agents" namespace.
type AgentsAPI struct{ rt runtime.Runtime }

func (a *AgentsAPI) Run(ctx context.Context, imageID, containerID string, cfg apitypes.Config) (runtime.AgentHandle, error) {
	return a.rt.RunImage(ctx, imageID, containerID, cfg)
}

func (a *AgentsAPI) Interrupt(ctx context.Context, containerID, sessionID string) error {
	return a.rt.InterruptAgent(ctx, containerID, sessionID)
}

func (a *AgentsAPI) Destroy(ctx context.Context, containerID, sessionID string) error {
	return a.rt.DestroyAgent(ctx, containerID, sessionID)
}

// SessionsAPI is the "sessions" namespace: getMessages/send/resume/fork/
// collect.
type SessionsAPI struct{ rt runtime.Runtime }

func (s *SessionsAPI) Create(ctx context.Context, img apitypes.Image, userID, title string) (apitypes.Session, error) {
	return s.rt.CreateSession(ctx, img, userID, title)
}

func (s *SessionsAPI) GetMessages(ctx context.Context, sessionID string) ([]apitypes.Message, error) {
	return s.rt.GetMessages(ctx, sessionID)
}

func (s *SessionsAPI) Send(ctx context.Context, sessionID string, content []apitypes.ContentPart, img apitypes.Image, cfg apitypes.Config) (*apitypes.Message, error) {
	return s.rt.Send(ctx, sessionID, content, img, cfg)
}

func (s *SessionsAPI) Resume(ctx context.Context, img apitypes.Image, cfg apitypes.Config) error {
	return s.rt.ResumeSession(ctx, img, cfg)
}

func (s *SessionsAPI) Fork(ctx context.Context, sourceSessionID, forkPointMessageID string, newImg apitypes.Image, userID, title string) (apitypes.Session, error) {
	return s.rt.ForkSession(ctx, sourceSessionID, forkPointMessageID, newImg, userID, title)
}

func (s *SessionsAPI) Collect(ctx context.Context, sessionID string) (apitypes.Session, []apitypes.Message, error) {
	return s.rt.CollectSession(ctx, sessionID)
}

// PresentationsAPI is the "presentations" namespace: it folds Bus events
// scoped to one session into a presentation.State stream, generalizing the
// teacher's sse.go eventBelongsToSession topic filtering into a typed
// subscription instead of an SSE writer.
type PresentationsAPI struct{ rt runtime.Runtime }

// Subscribe starts folding every event whose Context.SessionID matches
// sessionID into a running presentation.State, pushed to the returned
// channel after each update. The returned func unsubscribes and closes the
// channel; callers must call it to avoid leaking the subscription.
func (p *PresentationsAPI) Subscribe(sessionID string) (<-chan presentation.State, func()) {
	ch := make(chan presentation.State, 32)
	var mu sync.Mutex
	state := presentation.Initial()

	_ = p.rt.SubscribeTopic(context.Background(), sessionID)

	sub := p.rt.OnAny(func(ev apitypes.Event) {
		if ev.Context == nil || ev.Context.SessionID != sessionID {
			return
		}
		mu.Lock()
		state = presentation.Reduce(state, ev)
		next := state
		mu.Unlock()
		select {
		case ch <- next:
		default:
			// Slow consumer: drop the intermediate frame, the next event
			// still carries a superset of its accumulated state.
		}
	})

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			sub.Close()
			_ = p.rt.UnsubscribeTopic(context.Background(), sessionID)
			close(ch)
		})
	}
	return ch, unsubscribe
}
