// Package apierror defines the runtime's error taxonomy as typed, wrapped
// errors so the RPC Transport can map them onto JSON-RPC application error
// codes without string matching.
package apierror

import (
	"errors"
	"fmt"
)

// Kind enumerates the runtime's error taxonomy.
type Kind string

const (
	KindTransport     Kind = "transport"
	KindProtocol      Kind = "protocol"
	KindUnauthorized  Kind = "unauthorized"
	KindForbidden     Kind = "forbidden"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindDriver        Kind = "driver"
	KindAgentBusy     Kind = "agent_busy"
	KindDriverBusy    Kind = "driver_busy"
	KindTimeout       Kind = "timeout"
	KindInternal      Kind = "internal"
)

// Error is a typed runtime error carrying the taxonomy Kind and the
// JSON-RPC application code it maps to over the wire.
type Error struct {
	Kind    Kind
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

var codes = map[Kind]int{
	KindTransport:    -32000,
	KindProtocol:     -32600,
	KindUnauthorized: 401,
	KindForbidden:    403,
	KindNotFound:     404,
	KindConflict:     409,
	KindDriver:       -32000,
	KindAgentBusy:    409,
	KindDriverBusy:   409,
	KindTimeout:      408,
	KindInternal:     -32603,
}

// New builds an Error of the given kind, deriving its wire code from the
// taxonomy table.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Code: codes[kind]}
}

// Wrap builds an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Code: codes[kind], Err: err}
}

// Is reports whether err (or anything it wraps) is an *Error of kind k.
func Is(err error, k Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == k
	}
	return false
}

// Convenience constructors for the most common kinds.

func NotFound(format string, args ...any) error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

func AgentBusy(agentID string) error {
	return New(KindAgentBusy, fmt.Sprintf("agent %s has a receive already in flight", agentID))
}

func DriverBusy(driverName string) error {
	return New(KindDriverBusy, fmt.Sprintf("driver %s has a call already in flight", driverName))
}

func Timeout(format string, args ...any) error {
	return New(KindTimeout, fmt.Sprintf(format, args...))
}

func Internal(format string, args ...any) error {
	return New(KindInternal, fmt.Sprintf(format, args...))
}
