// Package engine implements the purely functional event-folding core (C3):
// Stream -> Message -> State -> Turn, generalizing an incremental
// stream-processing loop's part assembly into three co-resident,
// side-effect-free processors folded by one Mealy-style Engine. The Engine
// never performs I/O; Agent (C5) drives it and is responsible for
// persistence and bus emission.
package engine

import (
	"github.com/agentx/agentx/internal/driver"
	"github.com/agentx/agentx/pkg/apitypes"
)

// Output is everything one driver.DriveableEvent fold step produces: zero or
// more domain Events to publish on the Bus, and the updated State.
type Output struct {
	Events []apitypes.Event
	State  State
	// Message is set once assembly completes (on message_stop/interrupted),
	// nil otherwise.
	Message *apitypes.Message
	// Turn is set once the turn tracker closes a turn (one Message fully
	// assembled and, if it contained tool calls, resolved).
	Turn *Turn
}

// Engine folds a stream of driver.DriveableEvent into Output, maintaining
// the Message Assembler, State Machine, and Turn Tracker as co-resident
// processors over one logical turn. A fresh Engine is constructed per
// agent turn by the Agent (C5); it is not reused across turns.
type Engine struct {
	ctx       apitypes.EventContext
	assembler *assembler
	sm        *stateMachine
	tracker   *turnTracker
}

// New constructs an Engine scoped to ctx (agent/session/container/turn IDs
// used to stamp every emitted Event).
func New(ctx apitypes.EventContext, sessionID string) *Engine {
	return &Engine{
		ctx:       ctx,
		assembler: newAssembler(sessionID),
		sm:        newStateMachine(),
		tracker:   newTurnTracker(ctx.TurnID),
	}
}

// Fold processes one DriveableEvent through all three processors in order
// (assembler first since state/turn both react to assembled fragments) and
// returns everything that step produced.
func (e *Engine) Fold(de driver.DriveableEvent) Output {
	var events []apitypes.Event

	assembled, msgEvents := e.assembler.fold(de)
	events = append(events, e.stampAll(msgEvents)...)

	stateEvents := e.sm.fold(de, assembled)
	events = append(events, e.stampAll(stateEvents)...)

	turn, turnEvents := e.tracker.fold(de, assembled)
	events = append(events, e.stampAll(turnEvents)...)

	return Output{
		Events:  events,
		State:   e.sm.current,
		Message: assembled,
		Turn:    turn,
	}
}

func (e *Engine) stampAll(events []apitypes.Event) []apitypes.Event {
	for i := range events {
		events[i] = events[i].WithContext(e.ctx)
	}
	return events
}
