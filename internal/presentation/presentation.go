// Package presentation implements the Presentation reducer (C11): a pure
// client-side fold of Bus events (or, remotely, stream.event notifications)
// into a UI state projection, generalizing an SDKEvent-framing-and-topic-
// filtering approach into a typed (State, Event) -> State function.
package presentation

import (
	"encoding/json"
	"time"

	"github.com/agentx/agentx/pkg/apitypes"
)

// Status summarizes what a single agent is doing right now.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusThinking   Status = "thinking"
	StatusResponding Status = "responding"
	StatusExecuting  Status = "executing"
)

// ConversationRole distinguishes the three kinds of turn a conversation
// entry can represent.
type ConversationRole string

const (
	RoleUser      ConversationRole = "user"
	RoleAssistant ConversationRole = "assistant"
	RoleError     ConversationRole = "error"
)

// BlockType enumerates the content shapes an assistant conversation's
// blocks can take.
type BlockType string

const (
	BlockText  BlockType = "text"
	BlockTool  BlockType = "tool"
	BlockImage BlockType = "image"
)

// Block is one ordered unit of an AssistantConv's content. Exactly the
// fields relevant to Type are populated.
type Block struct {
	Type BlockType `json:"type"`

	Text string `json:"text,omitempty"`

	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	ToolInput  json.RawMessage `json:"toolInput,omitempty"`
	ToolOutput string          `json:"toolOutput,omitempty"`
	ToolError  bool            `json:"toolError,omitempty"`

	ImageURL string `json:"imageUrl,omitempty"`
}

// Conversation is one entry in PresentationState.Conversations: a
// completed user message, a completed assistant turn, or a surfaced error.
type Conversation struct {
	Role      ConversationRole `json:"role"`
	Blocks    []Block          `json:"blocks,omitempty"`
	Text      string           `json:"text,omitempty"` // set for user/error conversations
	CreatedAt time.Time        `json:"createdAt"`
}

// State is the full UI projection the reducer maintains for a single agent.
type State struct {
	Conversations []Conversation `json:"conversations"`
	Streaming     *Conversation  `json:"streaming"`
	Status        Status         `json:"status"`
}

// Initial returns an empty, idle State.
func Initial() State {
	return State{Status: StatusIdle}
}

// decodeData coerces ev.Data into T. Locally-emitted events carry Data as a
// genuine Go value (e.g. apitypes.Message) and the type assertion succeeds
// directly; events that arrived over the RPC transport have Data already
// JSON-decoded into the generic shape encoding/json produces (map[string]any,
// string, etc.), so the assertion is re-attempted by round-tripping through
// JSON into T. The round trip is a no-op cost-wise for the common local path
// since it is only attempted after the direct assertion fails.
func decodeData[T any](data any) (T, bool) {
	var zero T
	if v, ok := data.(T); ok {
		return v, true
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false
	}
	return v, true
}

// Reduce folds one Event into state, returning the next State. It never
// mutates state's slices in place (copy-on-write), so callers can safely
// retain a reference to a previous State (e.g. for undo or diffing).
func Reduce(state State, ev apitypes.Event) State {
	switch ev.Type {
	case "message_received":
		return reduceMessageReceived(state, ev)
	case "thinking_delta":
		state.Status = StatusThinking
		return state
	case "text_delta":
		return reduceTextDelta(state, ev)
	case "tool_use_content_block_start":
		return reduceToolStart(state, ev)
	case "tool_use_content_block_delta":
		return reduceToolDelta(state, ev)
	case "tool_result":
		return reduceToolResult(state, ev)
	case "message_assembled", "message_interrupted":
		return reduceMessageFinal(state, ev)
	case "driver_error":
		return reduceError(state, ev)
	default:
		return state
	}
}

func reduceMessageReceived(state State, ev apitypes.Event) State {
	msg, ok := decodeData[apitypes.Message](ev.Data)
	text := ""
	createdAt := time.Now()
	if ok {
		text = apitypes.ConcatText(msg.Content)
		createdAt = msg.CreatedAt
	}
	state.Conversations = append(append([]Conversation(nil), state.Conversations...), Conversation{
		Role:      RoleUser,
		Text:      text,
		CreatedAt: createdAt,
	})
	state.Status = StatusThinking
	return state
}

func (s State) ensureStreaming() *Conversation {
	if s.Streaming == nil {
		return &Conversation{Role: RoleAssistant, CreatedAt: time.Now()}
	}
	cp := *s.Streaming
	cp.Blocks = append([]Block(nil), s.Streaming.Blocks...)
	return &cp
}

func reduceTextDelta(state State, ev apitypes.Event) State {
	delta, _ := decodeData[string](ev.Data)
	streaming := state.ensureStreaming()

	if n := len(streaming.Blocks); n > 0 && streaming.Blocks[n-1].Type == BlockText {
		streaming.Blocks[n-1].Text += delta
	} else {
		streaming.Blocks = append(streaming.Blocks, Block{Type: BlockText, Text: delta})
	}

	state.Streaming = streaming
	state.Status = StatusResponding
	return state
}

func reduceToolStart(state State, ev apitypes.Event) State {
	data, _ := decodeData[map[string]string](ev.Data)
	streaming := state.ensureStreaming()
	streaming.Blocks = append(streaming.Blocks, Block{
		Type:       BlockTool,
		ToolCallID: data["toolCallId"],
		ToolName:   data["toolName"],
	})
	state.Streaming = streaming
	state.Status = StatusExecuting
	return state
}

func reduceToolDelta(state State, ev apitypes.Event) State {
	data, _ := decodeData[map[string]string](ev.Data)
	if state.Streaming == nil {
		return state
	}
	streaming := state.ensureStreaming()
	for i, b := range streaming.Blocks {
		if b.Type == BlockTool && b.ToolCallID == data["toolCallId"] {
			streaming.Blocks[i].ToolInput = append(streaming.Blocks[i].ToolInput, []byte(data["inputDelta"])...)
			break
		}
	}
	state.Streaming = streaming
	return state
}

func reduceToolResult(state State, ev apitypes.Event) State {
	msg, ok := decodeData[apitypes.Message](ev.Data)
	if !ok || state.Streaming == nil {
		return state
	}
	streaming := state.ensureStreaming()
	for _, part := range msg.Content {
		tr, ok := part.(*apitypes.ToolResultPart)
		if !ok {
			continue
		}
		for i, b := range streaming.Blocks {
			if b.Type == BlockTool && b.ToolCallID == tr.ToolCallID {
				streaming.Blocks[i].ToolOutput = string(tr.Output)
				streaming.Blocks[i].ToolError = tr.IsError
			}
		}
	}
	state.Streaming = streaming
	return state
}

func reduceMessageFinal(state State, ev apitypes.Event) State {
	if state.Streaming == nil {
		state.Status = StatusIdle
		return state
	}
	final := *state.Streaming
	state.Conversations = append(append([]Conversation(nil), state.Conversations...), final)
	state.Streaming = nil
	state.Status = StatusIdle
	return state
}

func reduceError(state State, ev apitypes.Event) State {
	msg, _ := decodeData[string](ev.Data)
	state.Conversations = append(append([]Conversation(nil), state.Conversations...), Conversation{
		Role:      RoleError,
		Text:      msg,
		CreatedAt: time.Now(),
	})
	state.Streaming = nil
	state.Status = StatusIdle
	return state
}
