package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/agentx/internal/driver"
	"github.com/agentx/agentx/pkg/apitypes"
)

func TestFoldAssemblesTextMessage(t *testing.T) {
	e := New(apitypes.EventContext{SessionID: "sess_1"}, "sess_1")

	e.Fold(driver.DriveableEvent{Type: driver.EventMessageStart, MessageID: "msg_1"})
	e.Fold(driver.DriveableEvent{Type: driver.EventTextDelta, Delta: "hello "})
	e.Fold(driver.DriveableEvent{Type: driver.EventTextDelta, Delta: "world"})
	out := e.Fold(driver.DriveableEvent{
		Type:       driver.EventMessageStop,
		StopReason: driver.StopEndTurn,
		Usage:      driver.Usage{InputTokens: 10, OutputTokens: 2},
	})

	require.NotNil(t, out.Message)
	assert.Equal(t, "hello world", apitypes.ConcatText(out.Message.Content))
	assert.Equal(t, apitypes.RoleAssistant, out.Message.Role)
	require.NotNil(t, out.Turn)
	assert.Equal(t, 10, out.Turn.TotalUsage.InputTokens)
	assert.Greater(t, out.Turn.CostUSD, 0.0)
}

func TestFoldStateTransitions(t *testing.T) {
	e := New(apitypes.EventContext{}, "sess_1")

	out := e.Fold(driver.DriveableEvent{Type: driver.EventMessageStart, MessageID: "m1"})
	assert.Equal(t, StateStreaming, out.State)

	out = e.Fold(driver.DriveableEvent{Type: driver.EventMessageStop, StopReason: driver.StopEndTurn})
	assert.Equal(t, StateDone, out.State)
}

func TestTurnStaysOpenAcrossToolCall(t *testing.T) {
	e := New(apitypes.EventContext{}, "sess_1")

	e.Fold(driver.DriveableEvent{Type: driver.EventMessageStart, MessageID: "m1"})
	e.Fold(driver.DriveableEvent{Type: driver.EventToolUseContentBlockStart, ToolCallID: "tc1", ToolName: "read_file"})
	e.Fold(driver.DriveableEvent{Type: driver.EventToolUseContentBlockDelta, ToolCallID: "tc1", InputDelta: `{"path":"a"}`})
	e.Fold(driver.DriveableEvent{Type: driver.EventToolUseContentBlockStop, ToolCallID: "tc1"})
	out := e.Fold(driver.DriveableEvent{Type: driver.EventMessageStop, StopReason: driver.StopToolUse})

	require.NotNil(t, out.Message)
	assert.Nil(t, out.Turn, "turn stays open when the model asked for a tool call")

	// second message within the same turn, after the tool result
	e.Fold(driver.DriveableEvent{Type: driver.EventMessageStart, MessageID: "m2"})
	e.Fold(driver.DriveableEvent{Type: driver.EventTextDelta, Delta: "done"})
	out = e.Fold(driver.DriveableEvent{Type: driver.EventMessageStop, StopReason: driver.StopEndTurn})

	require.NotNil(t, out.Turn)
	assert.Equal(t, driver.StopEndTurn, out.Turn.StopReason)
	assert.Len(t, out.Turn.MessageIDs, 2)
}

func TestFoldInterruptedClosesTurn(t *testing.T) {
	e := New(apitypes.EventContext{}, "sess_1")

	e.Fold(driver.DriveableEvent{Type: driver.EventMessageStart, MessageID: "m1"})
	e.Fold(driver.DriveableEvent{Type: driver.EventTextDelta, Delta: "partial"})
	out := e.Fold(driver.DriveableEvent{Type: driver.EventInterrupted})

	require.NotNil(t, out.Message)
	assert.Equal(t, "partial", apitypes.ConcatText(out.Message.Content))
	require.NotNil(t, out.Turn)
	assert.True(t, out.Turn.Interrupted)
	assert.Equal(t, StateInterrupted, out.State)
}

func TestEventsAreStampedWithContext(t *testing.T) {
	ctx := apitypes.EventContext{AgentID: "agent_1", SessionID: "sess_1"}
	e := New(ctx, "sess_1")

	out := e.Fold(driver.DriveableEvent{Type: driver.EventTextDelta, Delta: "x"})
	require.NotEmpty(t, out.Events)
	for _, ev := range out.Events {
		require.NotNil(t, ev.Context)
		assert.Equal(t, "agent_1", ev.Context.AgentID)
	}
}
