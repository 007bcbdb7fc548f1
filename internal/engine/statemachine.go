package engine

import (
	"github.com/agentx/agentx/internal/driver"
	"github.com/agentx/agentx/pkg/apitypes"
)

// State enumerates the agent-visible lifecycle states an Engine drives an
// agent through over one turn.
type State string

const (
	StateIdle          State = "idle"
	StateStreaming      State = "streaming"
	StateToolExecuting  State = "tool_executing"
	StateDone           State = "done"
	StateInterrupted    State = "interrupted"
	StateError          State = "error"
)

// stateMachine is the State Machine processor: a small, total transition
// table over DriveableEventType, independent of the text/tool content the
// assembler accumulates. It never produces a Message itself and does not
// look at the assembled Message: every message_stop moves it to done,
// whether or not the message carries tool calls.
type stateMachine struct {
	current State
}

func newStateMachine() *stateMachine {
	return &stateMachine{current: StateIdle}
}

func (sm *stateMachine) fold(de driver.DriveableEvent, assembled *apitypes.Message) []apitypes.Event {
	prev := sm.current

	switch de.Type {
	case driver.EventMessageStart:
		sm.current = StateStreaming
	case driver.EventTextDelta, driver.EventThinkingDelta:
		sm.current = StateStreaming
	case driver.EventToolUseContentBlockStart, driver.EventToolUseContentBlockDelta, driver.EventToolUseContentBlockStop:
		sm.current = StateToolExecuting
	case driver.EventMessageStop:
		sm.current = StateDone
	case driver.EventInterrupted:
		sm.current = StateInterrupted
	case driver.EventError:
		sm.current = StateError
	}

	if sm.current == prev {
		return nil
	}
	return []apitypes.Event{
		apitypes.NewEvent(apitypes.SourceAgent, apitypes.CategoryState, apitypes.IntentNotification,
			"state_changed", map[string]string{"from": string(prev), "to": string(sm.current)}),
	}
}
