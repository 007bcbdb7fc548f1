package presentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/agentx/pkg/apitypes"
)

func deltaEvent(typ string, data any) apitypes.Event {
	return apitypes.NewEvent(apitypes.SourceAgent, apitypes.CategoryStream, apitypes.IntentNotification, typ, data)
}

func TestReduceTextDeltaSequenceAccumulatesThenAssembles(t *testing.T) {
	state := Initial()

	state = Reduce(state, deltaEvent("message_received", apitypes.Message{
		Role:    apitypes.RoleUser,
		Content: apitypes.TextOnly("hi there"),
	}))
	assert.Equal(t, StatusThinking, state.Status)
	assert.Len(t, state.Conversations, 1)
	assert.Equal(t, "hi there", state.Conversations[0].Text)

	state = Reduce(state, deltaEvent("text_delta", "Hel"))
	state = Reduce(state, deltaEvent("text_delta", "lo!"))

	assert.Equal(t, StatusResponding, state.Status)
	assert.NotNil(t, state.Streaming)
	assert.Len(t, state.Streaming.Blocks, 1)
	assert.Equal(t, "Hello!", state.Streaming.Blocks[0].Text)

	state = Reduce(state, deltaEvent("message_assembled", nil))

	assert.Nil(t, state.Streaming)
	assert.Equal(t, StatusIdle, state.Status)
	assert.Len(t, state.Conversations, 2)
	assert.Equal(t, RoleAssistant, state.Conversations[1].Role)
	assert.Equal(t, "Hello!", state.Conversations[1].Blocks[0].Text)
}

func TestReduceToolCallLifecycleUpdatesInPlace(t *testing.T) {
	state := Initial()

	state = Reduce(state, deltaEvent("tool_use_content_block_start", map[string]string{
		"toolCallId": "tc_1",
		"toolName":   "read_file",
	}))
	assert.Equal(t, StatusExecuting, state.Status)
	require.NotNil(t, state.Streaming)
	assert.Len(t, state.Streaming.Blocks, 1)
	assert.Equal(t, "read_file", state.Streaming.Blocks[0].ToolName)

	state = Reduce(state, deltaEvent("tool_use_content_block_delta", map[string]string{
		"toolCallId": "tc_1",
		"inputDelta": `{"path":`,
	}))
	state = Reduce(state, deltaEvent("tool_use_content_block_delta", map[string]string{
		"toolCallId": "tc_1",
		"inputDelta": `"a.go"}`,
	}))
	assert.Equal(t, `{"path":"a.go"}`, string(state.Streaming.Blocks[0].ToolInput))

	result := apitypes.Message{
		Role: apitypes.RoleToolResult,
		Content: []apitypes.ContentPart{
			&apitypes.ToolResultPart{ToolCallID: "tc_1", ToolName: "read_file", Output: []byte(`"contents"`)},
		},
	}
	state = Reduce(state, deltaEvent("tool_result", result))
	assert.Equal(t, `"contents"`, state.Streaming.Blocks[0].ToolOutput)
	assert.False(t, state.Streaming.Blocks[0].ToolError)
}

func TestReduceDriverErrorAppendsErrorConversationAndClearsStreaming(t *testing.T) {
	state := Initial()
	state = Reduce(state, deltaEvent("text_delta", "partial"))
	assert.NotNil(t, state.Streaming)

	state = Reduce(state, deltaEvent("driver_error", "rate limited"))

	assert.Nil(t, state.Streaming)
	assert.Equal(t, StatusIdle, state.Status)
	require.Len(t, state.Conversations, 1)
	assert.Equal(t, RoleError, state.Conversations[0].Role)
	assert.Equal(t, "rate limited", state.Conversations[0].Text)
}

func TestReducePriorStateUnaffectedByLaterReduce(t *testing.T) {
	before := Initial()
	after := Reduce(before, deltaEvent("text_delta", "x"))

	assert.Empty(t, before.Conversations)
	assert.Nil(t, before.Streaming)
	assert.NotNil(t, after.Streaming)
}
