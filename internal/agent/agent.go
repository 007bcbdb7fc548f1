// Package agent implements the Agent live object (C5): the single-flight
// per-turn driver of one Driver + the tool-call loop, folding every
// DriveableEvent through an Engine and persisting/publishing the result.
// It generalizes a single-flight-per-session guard and agentic loop shape
// onto a Driver/Engine/Tools boundary instead of directly iterating an
// Eino CompletionStream.
package agent

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentx/agentx/internal/apierror"
	"github.com/agentx/agentx/internal/bus"
	"github.com/agentx/agentx/internal/driver"
	"github.com/agentx/agentx/internal/engine"
	"github.com/agentx/agentx/internal/sandbox"
	"github.com/agentx/agentx/internal/store"
	"github.com/agentx/agentx/internal/tools"
	"github.com/agentx/agentx/pkg/apitypes"
)

// MaxToolSteps bounds the tool-calling loop within one turn, guarding
// against a model stuck requesting the same (or any) tool forever.
const MaxToolSteps = 50

// Agent is the live per-session driver of one model's turn-taking loop.
// One Agent exists per live Session; the Container (C6) owns its
// lifecycle.
type Agent struct {
	AgentID     string
	SessionID   string
	ContainerID string

	SystemPrompt string
	Driver       driver.Driver
	Tools        *tools.Registry
	Sandbox      *sandbox.Sandbox
	Messages     store.MessageRepository
	Bus          *bus.Bus
	Pricing      engine.ModelPricing

	log zerolog.Logger

	mu     sync.Mutex
	busy   bool
	cancel context.CancelFunc
	destroyed bool
}

// New constructs an Agent. Callers (Container/Session) are responsible for
// wiring Driver/Tools/Sandbox/Messages/Bus before the first Receive.
func New(agentID, sessionID, containerID string, log zerolog.Logger) *Agent {
	return &Agent{
		AgentID:     agentID,
		SessionID:   sessionID,
		ContainerID: containerID,
		Pricing:     engine.DefaultPricing,
		log:         log,
	}
}

// Receive runs one user turn to completion: persists userMessage, then
// drives the Driver/tool loop until the model stops without requesting
// another tool call, is interrupted, or errors. It returns the final
// assistant Message. On interrupt, the partial Message assembled so far is
// persisted and returned; its Content is empty if nothing was produced.
//
// Receive is single-flight: a second call while one is already running
// returns apierror.AgentBusy rather than queuing, the single-flight-per-
// agent rule. Callers that want queuing implement it themselves at the
// Session layer.
func (a *Agent) Receive(ctx context.Context, userMessage apitypes.Message) (*apitypes.Message, error) {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return nil, apierror.New(apierror.KindNotFound, "agent destroyed")
	}
	if a.busy {
		a.mu.Unlock()
		return nil, apierror.AgentBusy(a.AgentID)
	}
	turnCtx, cancel := context.WithCancel(ctx)
	a.busy = true
	a.cancel = cancel
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.busy = false
		a.cancel = nil
		a.mu.Unlock()
		cancel()
	}()

	if err := a.Messages.Append(turnCtx, userMessage); err != nil {
		return nil, apierror.Wrap(apierror.KindInternal, "persist user message", err)
	}
	a.emit(apitypes.NewEvent(apitypes.SourceSession, apitypes.CategoryMessage, apitypes.IntentNotification,
		"message_received", userMessage))

	turnID := apitypes.NewID(apitypes.PrefixTurn)
	a.emitWithTurn(turnID, apitypes.NewEvent(apitypes.SourceAgent, apitypes.CategoryTurn, apitypes.IntentNotification,
		"turn_request", map[string]string{"turnId": turnID}))

	return a.runLoop(turnCtx, turnID)
}

// Interrupt cancels the in-flight Receive, if any. It is a no-op if the
// agent is idle.
func (a *Agent) Interrupt() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Destroy marks the agent unusable; any in-flight Receive is interrupted.
func (a *Agent) Destroy() {
	a.Interrupt()
	a.mu.Lock()
	a.destroyed = true
	a.mu.Unlock()
}

// IsBusy reports whether a Receive is currently in flight.
func (a *Agent) IsBusy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.busy
}

func (a *Agent) runLoop(ctx context.Context, turnID string) (*apitypes.Message, error) {
	eng := engine.New(apitypes.EventContext{
		AgentID:     a.AgentID,
		SessionID:   a.SessionID,
		ContainerID: a.ContainerID,
		TurnID:      turnID,
	}, a.SessionID)

	var lastMessage *apitypes.Message

	for step := 0; step < MaxToolSteps; step++ {
		history, err := a.Messages.ListBySession(ctx, a.SessionID)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindInternal, "load history", err)
		}

		req := driver.Request{
			SystemPrompt: a.SystemPrompt,
			Messages:     history,
			Tools:        a.toolDefinitions(),
		}

		stream, err := a.Driver.Stream(ctx, req)
		if err != nil {
			return nil, apierror.Wrap(apierror.KindDriver, "start stream", err)
		}

		var msg *apitypes.Message
		var turn *engine.Turn
		var state engine.State

		for de := range stream {
			out := eng.Fold(de)
			for _, ev := range out.Events {
				a.emit(ev)
			}
			state = out.State
			if out.Message != nil {
				msg = out.Message
			}
			if out.Turn != nil {
				turn = out.Turn
			}
		}

		if state == engine.StateError {
			return lastMessage, apierror.New(apierror.KindDriver, "driver reported an error")
		}
		if state == engine.StateInterrupted {
			if msg != nil {
				_ = a.Messages.Append(ctx, *msg)
				lastMessage = msg
			}
			return lastMessage, nil
		}

		if msg == nil {
			return lastMessage, apierror.New(apierror.KindDriver, "stream closed without a message_stop")
		}
		if err := a.Messages.Append(ctx, *msg); err != nil {
			return lastMessage, apierror.Wrap(apierror.KindInternal, "persist assistant message", err)
		}
		lastMessage = msg

		if turn != nil {
			// turn closed: the model stopped without requesting a tool call.
			return lastMessage, nil
		}

		if err := a.executeToolCalls(ctx, *msg); err != nil {
			return lastMessage, err
		}
	}

	return lastMessage, apierror.New(apierror.KindInternal, "exceeded maximum tool steps")
}

func (a *Agent) executeToolCalls(ctx context.Context, msg apitypes.Message) error {
	for _, part := range msg.Content {
		call, ok := part.(*apitypes.ToolCallPart)
		if !ok {
			continue
		}

		tc := tools.Context{SessionID: a.SessionID, AgentID: a.AgentID, CallID: call.ToolCallID, Sandbox: a.Sandbox}
		result, err := a.Tools.Execute(ctx, call.ToolName, call.Input, tc)
		if err != nil {
			result = tools.Result{IsError: true, Output: err.Error()}
		}

		resultMsg := apitypes.Message{
			MessageID: apitypes.NewID(apitypes.PrefixMessage),
			SessionID: a.SessionID,
			Role:      apitypes.RoleToolResult,
			Content: []apitypes.ContentPart{&apitypes.ToolResultPart{
				ToolCallID: call.ToolCallID,
				ToolName:   call.ToolName,
				Output:     mustMarshalString(result.Output),
				IsError:    result.IsError,
			}},
		}
		if err := a.Messages.Append(ctx, resultMsg); err != nil {
			return apierror.Wrap(apierror.KindInternal, "persist tool result", err)
		}
		a.emit(apitypes.NewEvent(apitypes.SourceAgent, apitypes.CategoryMessage, apitypes.IntentNotification,
			"tool_result", resultMsg))
	}
	return nil
}

func (a *Agent) toolDefinitions() []driver.ToolDefinition {
	if a.Tools == nil {
		return nil
	}
	list := a.Tools.List()
	out := make([]driver.ToolDefinition, len(list))
	for i, t := range list {
		out[i] = driver.ToolDefinition{Name: t.Name(), Description: t.Description(), InputSchema: t.InputSchema()}
	}
	return out
}

func (a *Agent) emit(ev apitypes.Event) {
	if a.Bus == nil {
		return
	}
	a.Bus.Emit(ev.WithContext(apitypes.EventContext{
		AgentID:     a.AgentID,
		SessionID:   a.SessionID,
		ContainerID: a.ContainerID,
	}))
}

// emitWithTurn is emit with turnID stamped into the EventContext, used for
// the turn_request notification that precedes the Engine's own turn_response
// (both carry the same turnId so a subscriber can correlate them).
func (a *Agent) emitWithTurn(turnID string, ev apitypes.Event) {
	if a.Bus == nil {
		return
	}
	a.Bus.Emit(ev.WithContext(apitypes.EventContext{
		AgentID:     a.AgentID,
		SessionID:   a.SessionID,
		ContainerID: a.ContainerID,
		TurnID:      turnID,
	}))
}

// mustMarshalString encodes s as a JSON string, the wire shape tool
// results use for ToolResultPart.Output (raw JSON, not raw text).
func mustMarshalString(s string) []byte {
	out, _ := json.Marshal(s)
	return out
}
