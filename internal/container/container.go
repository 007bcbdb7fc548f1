// Package container implements the Container live object (C6): the
// per-tenant isolation boundary that owns a Sandbox and the set of live
// Agents running within it, generalizing an active-session bookkeeping
// pattern (map + mutex keyed by session ID) onto the Container/Agent
// ownership model.
package container

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentx/agentx/internal/agent"
	"github.com/agentx/agentx/internal/apierror"
	"github.com/agentx/agentx/internal/bus"
	"github.com/agentx/agentx/internal/driver"
	"github.com/agentx/agentx/internal/sandbox"
	"github.com/agentx/agentx/internal/store"
	"github.com/agentx/agentx/internal/tools"
	"github.com/agentx/agentx/pkg/apitypes"
)

// Container owns one Sandbox and every Agent live within it. Containers
// are the unit of resource isolation: destroying one tears down every
// agent and the workspace directory underneath it.
type Container struct {
	ID      string
	Sandbox *sandbox.Sandbox

	store         *store.Store
	bus           *bus.Bus
	driverFactory driver.Factory
	tools         *tools.Registry
	log           zerolog.Logger

	mu     sync.RWMutex
	agents map[string]*agent.Agent // keyed by sessionID
}

// New constructs a Container rooted at workspaceRoot.
func New(containerID, workspaceRoot string, st *store.Store, b *bus.Bus, driverFactory driver.Factory, toolRegistry *tools.Registry, log zerolog.Logger) (*Container, error) {
	sb, err := sandbox.New(workspaceRoot, nil)
	if err != nil {
		return nil, fmt.Errorf("container: %w", err)
	}
	return &Container{
		ID:            containerID,
		Sandbox:       sb,
		store:         st,
		bus:           b,
		driverFactory: driverFactory,
		tools:         toolRegistry,
		log:           log,
		agents:        make(map[string]*agent.Agent),
	}, nil
}

// Run starts a new live Agent for sessionID, bound to image's system
// prompt; the image's MCP servers are not passed to the agent. It is an
// error to Run a session that already has a live agent; callers should
// Resume instead.
func (c *Container) Run(ctx context.Context, img apitypes.Image, cfg apitypes.Config) (*agent.Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.agents[img.SessionID]; ok {
		return nil, apierror.Conflict("session %s already has a live agent", img.SessionID)
	}

	drv, err := c.driverFactory(ctx, cfg)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindDriver, "construct driver", err)
	}

	a := agent.New(apitypes.NewID(apitypes.PrefixAgent), img.SessionID, c.ID, c.log)
	a.Driver = drv
	a.Tools = c.tools
	a.Sandbox = c.Sandbox
	a.Messages = c.store.Messages
	a.Bus = c.bus
	a.SystemPrompt = img.SystemPrompt

	c.agents[img.SessionID] = a
	c.bus.Emit(apitypes.NewEvent(apitypes.SourceContainer, apitypes.CategoryState, apitypes.IntentNotification,
		"agent_started", map[string]string{"agentId": a.AgentID, "sessionId": img.SessionID}).
		WithContext(apitypes.EventContext{AgentID: a.AgentID, SessionID: img.SessionID, ContainerID: c.ID}))
	return a, nil
}

// Resume returns the live Agent for sessionID, recreating it from img if
// it is not currently live (e.g. after a process restart).
func (c *Container) Resume(ctx context.Context, img apitypes.Image, cfg apitypes.Config) (*agent.Agent, error) {
	c.mu.RLock()
	a, ok := c.agents[img.SessionID]
	c.mu.RUnlock()
	if ok {
		return a, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.agents[img.SessionID]; ok {
		return a, nil
	}

	drv, err := c.driverFactory(ctx, cfg)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindDriver, "construct driver", err)
	}
	a = agent.New(apitypes.NewID(apitypes.PrefixAgent), img.SessionID, c.ID, c.log)
	a.Driver = drv
	a.Tools = c.tools
	a.Sandbox = c.Sandbox
	a.Messages = c.store.Messages
	a.Bus = c.bus
	a.SystemPrompt = img.SystemPrompt
	c.agents[img.SessionID] = a
	return a, nil
}

// Get returns the live agent for sessionID, if any.
func (c *Container) Get(sessionID string) (*agent.Agent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.agents[sessionID]
	return a, ok
}

// Has reports whether sessionID currently has a live agent.
func (c *Container) Has(sessionID string) bool {
	_, ok := c.Get(sessionID)
	return ok
}

// List returns every live agent in this container.
func (c *Container) List() []*agent.Agent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*agent.Agent, 0, len(c.agents))
	for _, a := range c.agents {
		out = append(out, a)
	}
	return out
}

// Destroy tears down the agent for sessionID, if live.
func (c *Container) Destroy(sessionID string) error {
	c.mu.Lock()
	a, ok := c.agents[sessionID]
	if ok {
		delete(c.agents, sessionID)
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}
	a.Destroy()
	c.bus.Emit(apitypes.NewEvent(apitypes.SourceContainer, apitypes.CategoryState, apitypes.IntentNotification,
		"agent_destroyed", map[string]string{"agentId": a.AgentID, "sessionId": sessionID}).
		WithContext(apitypes.EventContext{AgentID: a.AgentID, SessionID: sessionID, ContainerID: c.ID}))
	return nil
}

// DestroyAll tears down every live agent and removes the sandbox
// workspace directory.
func (c *Container) DestroyAll() error {
	c.mu.Lock()
	agents := make([]*agent.Agent, 0, len(c.agents))
	for _, a := range c.agents {
		agents = append(agents, a)
	}
	c.agents = make(map[string]*agent.Agent)
	c.mu.Unlock()

	for _, a := range agents {
		a.Destroy()
	}
	return c.Sandbox.Destroy()
}
