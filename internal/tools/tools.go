// Package tools implements the tool-call execution loop: a Registry of
// named Tools the Agent (C5) invokes when the Driver emits a
// tool_use_content_block_stop, generalizing an ID/Description/Parameters/
// Execute tool shape onto a Sandbox-scoped workspace instead of a bare
// working-directory context.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/agentx/agentx/internal/sandbox"
)

// Context is passed to every tool invocation.
type Context struct {
	SessionID string
	AgentID   string
	CallID    string
	Sandbox   *sandbox.Sandbox
}

// Result is a tool's output, fed back to the model as a ToolResultPart.
type Result struct {
	Output   string
	IsError  bool
	Metadata map[string]any
}

// Tool is one callable capability exposed to the model.
type Tool interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	Execute(ctx context.Context, input json.RawMessage, tc Context) (Result, error)
}

// Registry holds the set of Tools available to an agent, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a Tool by name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the named Tool, or false if it is not registered.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered Tool, in no particular order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Execute looks up name and runs it, enforcing the Sandbox's allow/deny
// decision first so a tool implementation never has to re-check
// permissions itself.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage, tc Context) (Result, error) {
	t, ok := r.Get(name)
	if !ok {
		return Result{}, fmt.Errorf("tools: unknown tool %q", name)
	}

	if tc.Sandbox != nil {
		path := pathArgument(input)
		switch tc.Sandbox.Check(name, path) {
		case sandbox.DecisionDeny:
			return Result{IsError: true, Output: fmt.Sprintf("tool %q denied by sandbox policy", name)}, nil
		case sandbox.DecisionAsk:
			return Result{IsError: true, Output: fmt.Sprintf("tool %q requires approval", name)}, nil
		}
	}

	return t.Execute(ctx, input, tc)
}

// pathArgument extracts a conventional "path" field from a tool's JSON
// input, if present, for Sandbox rule matching against filesystem tools.
func pathArgument(input json.RawMessage) string {
	var v struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &v); err != nil {
		return ""
	}
	return v.Path
}
