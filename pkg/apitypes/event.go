package apitypes

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventSource identifies the subsystem that produced an Event.
type EventSource string

const (
	SourceEnvironment EventSource = "environment"
	SourceAgent       EventSource = "agent"
	SourceSession     EventSource = "session"
	SourceContainer   EventSource = "container"
	SourceSandbox     EventSource = "sandbox"
	SourceCommand     EventSource = "command"
)

// EventCategory refines Source (e.g. agent -> stream|state|message|turn|error).
type EventCategory string

const (
	CategoryStream  EventCategory = "stream"
	CategoryState   EventCategory = "state"
	CategoryMessage EventCategory = "message"
	CategoryTurn    EventCategory = "turn"
	CategoryError   EventCategory = "error"
	CategoryControl EventCategory = "control"
)

// EventIntent classifies why an event was emitted.
type EventIntent string

const (
	IntentRequest      EventIntent = "request"
	IntentResult       EventIntent = "result"
	IntentNotification EventIntent = "notification"
)

// EventContext carries scoping identifiers so multi-agent subscribers route
// correctly.
type EventContext struct {
	AgentID     string `json:"agentId,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
	ContainerID string `json:"containerId,omitempty"`
	TurnID      string `json:"turnId,omitempty"`
}

// Event is the discriminated envelope indexed by (Source, Category, Intent,
// Type) that flows through the Bus (C1) and, for client-facing events, the
// RPC Transport's stream.event notification.
type Event struct {
	UUID      string        `json:"uuid"`
	Timestamp time.Time     `json:"timestamp"`
	Source    EventSource   `json:"source"`
	Category  EventCategory `json:"category"`
	Intent    EventIntent   `json:"intent"`
	Type      string        `json:"type"`
	Data      any           `json:"data,omitempty"`
	Context   *EventContext `json:"context,omitempty"`
}

// NewEvent constructs an Event stamped with a fresh UUID and the current
// time. Callers set Context afterward when scoping IDs are known.
func NewEvent(source EventSource, category EventCategory, intent EventIntent, typ string, data any) Event {
	return Event{
		UUID:      ulid.MustNew(ulid.Now(), rand.Reader).String(),
		Timestamp: time.Now(),
		Source:    source,
		Category:  category,
		Intent:    intent,
		Type:      typ,
		Data:      data,
	}
}

// WithContext returns a copy of the event scoped to the given context.
func (e Event) WithContext(ctx EventContext) Event {
	e.Context = &ctx
	return e
}
