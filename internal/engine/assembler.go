package engine

import (
	"time"

	"github.com/agentx/agentx/internal/driver"
	"github.com/agentx/agentx/pkg/apitypes"
)

// assembler is the Message Assembler processor: it folds a DriveableEvent
// stream into a single apitypes.Message, accumulating text/thinking deltas
// and tool-call input fragments incrementally before finalizing them into
// ContentParts.
type assembler struct {
	sessionID string
	messageID string

	textBuf     string
	thinkingBuf string

	toolOrder []string
	toolCalls map[string]*pendingToolCall

	started bool
}

type pendingToolCall struct {
	name      string
	inputJSON string
}

func newAssembler(sessionID string) *assembler {
	return &assembler{
		sessionID: sessionID,
		toolCalls: make(map[string]*pendingToolCall),
	}
}

// fold consumes one DriveableEvent. It returns a non-nil *apitypes.Message
// only on the event that completes assembly (message_stop or interrupted),
// together with a message_assembled or message_interrupted event. Text,
// thinking and tool-call fragments each produce their own stream event
// (text_delta, thinking_delta, tool_use_content_block_start/_delta/_stop),
// an error produces driver_error, and message_start produces none.
func (a *assembler) fold(de driver.DriveableEvent) (*apitypes.Message, []apitypes.Event) {
	switch de.Type {
	case driver.EventMessageStart:
		a.started = true
		a.messageID = de.MessageID
		return nil, nil

	case driver.EventTextDelta:
		a.textBuf += de.Delta
		return nil, []apitypes.Event{
			apitypes.NewEvent(apitypes.SourceAgent, apitypes.CategoryStream, apitypes.IntentNotification,
				"text_delta", de.Delta),
		}

	case driver.EventThinkingDelta:
		a.thinkingBuf += de.Delta
		return nil, []apitypes.Event{
			apitypes.NewEvent(apitypes.SourceAgent, apitypes.CategoryStream, apitypes.IntentNotification,
				"thinking_delta", de.Delta),
		}

	case driver.EventToolUseContentBlockStart:
		a.toolOrder = append(a.toolOrder, de.ToolCallID)
		a.toolCalls[de.ToolCallID] = &pendingToolCall{name: de.ToolName}
		return nil, []apitypes.Event{
			apitypes.NewEvent(apitypes.SourceAgent, apitypes.CategoryStream, apitypes.IntentNotification,
				"tool_use_content_block_start", map[string]string{"toolCallId": de.ToolCallID, "toolName": de.ToolName}),
		}

	case driver.EventToolUseContentBlockDelta:
		if tc, ok := a.toolCalls[de.ToolCallID]; ok {
			tc.inputJSON += de.InputDelta
		}
		return nil, []apitypes.Event{
			apitypes.NewEvent(apitypes.SourceAgent, apitypes.CategoryStream, apitypes.IntentNotification,
				"tool_use_content_block_delta", map[string]string{"toolCallId": de.ToolCallID, "inputDelta": de.InputDelta}),
		}

	case driver.EventToolUseContentBlockStop:
		return nil, []apitypes.Event{
			apitypes.NewEvent(apitypes.SourceAgent, apitypes.CategoryStream, apitypes.IntentNotification,
				"tool_use_content_block_stop", map[string]string{"toolCallId": de.ToolCallID}),
		}

	case driver.EventMessageStop:
		msg := a.build()
		a.reset()
		return msg, []apitypes.Event{
			apitypes.NewEvent(apitypes.SourceAgent, apitypes.CategoryMessage, apitypes.IntentNotification,
				"message_assembled", msg),
		}

	case driver.EventInterrupted:
		msg := a.build()
		a.reset()
		return msg, []apitypes.Event{
			apitypes.NewEvent(apitypes.SourceAgent, apitypes.CategoryMessage, apitypes.IntentNotification,
				"message_interrupted", msg),
		}

	case driver.EventError:
		return nil, []apitypes.Event{
			apitypes.NewEvent(apitypes.SourceAgent, apitypes.CategoryError, apitypes.IntentNotification,
				"driver_error", de.Err.Error()),
		}
	}
	return nil, nil
}

// reset clears accumulated fragments so the assembler can build the next
// assistant message within the same multi-step tool-calling turn.
func (a *assembler) reset() {
	a.messageID = ""
	a.textBuf = ""
	a.thinkingBuf = ""
	a.toolOrder = nil
	a.toolCalls = make(map[string]*pendingToolCall)
	a.started = false
}

// build materializes the accumulated fragments into a Message. It is safe
// to call even when no message_start was observed (a driver that skips the
// start event still produces a usable message).
func (a *assembler) build() *apitypes.Message {
	var parts []apitypes.ContentPart
	if a.thinkingBuf != "" {
		parts = append(parts, &apitypes.ThinkingPart{Text: a.thinkingBuf})
	}
	if a.textBuf != "" {
		parts = append(parts, &apitypes.TextPart{Text: a.textBuf})
	}
	for _, id := range a.toolOrder {
		tc := a.toolCalls[id]
		parts = append(parts, &apitypes.ToolCallPart{
			ToolCallID: id,
			ToolName:   tc.name,
			Input:      []byte(tc.inputJSON),
		})
	}

	messageID := a.messageID
	if messageID == "" {
		messageID = apitypes.NewID(apitypes.PrefixMessage)
	}

	return &apitypes.Message{
		MessageID: messageID,
		SessionID: a.sessionID,
		Role:      apitypes.RoleAssistant,
		Content:   parts,
		CreatedAt: time.Now(),
	}
}
