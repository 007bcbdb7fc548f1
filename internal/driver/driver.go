// Package driver defines the per-vendor LLM adapter boundary (C2):
// every Driver exposes the same DriveableEvent stream regardless of the
// underlying vendor, generalizing a provider-interface pattern from a bare
// Eino-ChatModel accessor into a full streaming adapter.
package driver

import (
	"context"

	"github.com/agentx/agentx/pkg/apitypes"
)

// DriveableEventType enumerates the uniform event stream every Driver
// produces, regardless of vendor wire format.
type DriveableEventType string

const (
	EventMessageStart           DriveableEventType = "message_start"
	EventTextDelta              DriveableEventType = "text_delta"
	EventThinkingDelta          DriveableEventType = "thinking_delta"
	EventToolUseContentBlockStart DriveableEventType = "tool_use_content_block_start"
	EventToolUseContentBlockDelta DriveableEventType = "tool_use_content_block_delta"
	EventToolUseContentBlockStop  DriveableEventType = "tool_use_content_block_stop"
	EventMessageStop            DriveableEventType = "message_stop"
	EventInterrupted            DriveableEventType = "interrupted"
	EventError                  DriveableEventType = "error"
)

// StopReason enumerates why a Driver ended a message.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
	StopStop      StopReason = "stop_sequence"
)

// Usage reports token accounting for a completed message, the basis for the
// Turn Tracker's cost calculation (C3).
type Usage struct {
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
}

// DriveableEvent is one item in the uniform stream a Driver's Stream method
// yields. Exactly one of the typed payload fields is populated, matching
// Type; consumers (the Message Assembler) switch on Type, not on which
// field is non-nil, so a zero-value payload on an unrelated field is never
// mistaken for data.
type DriveableEvent struct {
	Type DriveableEventType

	// Populated on EventMessageStart.
	MessageID string

	// Populated on EventTextDelta / EventThinkingDelta.
	Delta string

	// Populated on the ToolUseContentBlock* events.
	ToolCallID   string
	ToolName     string
	InputDelta   string // raw JSON fragment, concatenated across Delta events

	// Populated on EventMessageStop.
	StopReason StopReason
	Usage      Usage

	// Populated on EventError.
	Err error
}

// Request is the normalized request a Driver turns into a vendor call.
type Request struct {
	SystemPrompt string
	Messages     []apitypes.Message
	Tools        []ToolDefinition
	MaxTokens    int
	Temperature  float64
}

// ToolDefinition describes one callable tool's JSON-schema shape, passed
// through to the vendor's native tool-calling support.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema []byte // JSON Schema
}

// Driver adapts one LLM vendor to the uniform DriveableEvent stream.
// Implementations are not safe for concurrent Stream calls on the same
// Driver value; the Agent (C5) enforces single-flight and the Runtime (C9)
// constructs one Driver instance per live agent.
type Driver interface {
	// Name identifies the vendor/model combination, used in DriverBusy
	// errors and logging.
	Name() string

	// Stream begins a completion and returns a channel of DriveableEvents.
	// The channel is closed after EventMessageStop, EventInterrupted, or
	// EventError is sent. Canceling ctx requests EventInterrupted as soon
	// as the vendor SDK acknowledges cancellation.
	Stream(ctx context.Context, req Request) (<-chan DriveableEvent, error)
}

// Factory builds a Driver for the given model configuration. The Runtime
// (C9) holds one Factory per apitypes.Provider.
type Factory func(ctx context.Context, cfg apitypes.Config) (Driver, error)
