// Package rpc implements the RPC Transport (C10): JSON-RPC 2.0 framed over
// coder/websocket text frames, generalizing a JSONRPCRequest/JSONRPCResponse
// wire shape and bidirectional request/response-over-websocket pattern from
// a single-method RPC surface to the full Runtime namespace set plus
// server-pushed stream.event notifications.
package rpc

import (
	"encoding/json"

	"github.com/agentx/agentx/pkg/apitypes"
)

// Request is one JSON-RPC 2.0 call frame. ID is omitted on notifications
// (server -> client pushes carry no ID and expect no Response).
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one JSON-RPC 2.0 reply frame, Error xor Result populated.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object. Code follows the standard reserved
// ranges for protocol-level failures and apierror.Kind's wire codes for
// application-level ones (see apierror.codes).
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Standard JSON-RPC 2.0 reserved error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Notification is a frame with no ID and no expected reply: server-pushed
// stream.event, or client-pushed auth/subscribe/unsubscribe.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// StreamEventMethod is the notification method name the server uses to push
// Bus events to a connected client, the RPC analogue of the local Bus's
// OnAny subscription. Its Params is a StreamEventPayload, not a bare Event,
// so a client can filter/route on Topic without decoding Event first.
const StreamEventMethod = "stream.event"

// AuthMethod is the client->server notification a fresh connection MUST
// send, carrying an AuthParams payload, before any other method is
// dispatched.
const AuthMethod = "auth"

// SubscribeMethod and UnsubscribeMethod are client->server notifications
// carrying a TopicParams payload; fan-out of stream.event for a topic is
// restricted to sockets that have subscribed to it.
const (
	SubscribeMethod   = "subscribe"
	UnsubscribeMethod = "unsubscribe"
)

// AuthParams is the auth notification's payload. Reliable opts this
// connection's stream.event push into the msgId/control.ack wrapper; the
// server also honors its own ServerConfig.ReliableDelivery regardless of
// what the client requests.
type AuthParams struct {
	Token    string `json:"token"`
	Reliable bool   `json:"reliable,omitempty"`
}

// TopicParams is the subscribe/unsubscribe notification payload.
type TopicParams struct {
	Topic string `json:"topic"`
}

// StreamEventPayload is stream.event's Params: the event plus the topic it
// fanned out on, typically the event's Context.SessionID.
type StreamEventPayload struct {
	Topic string         `json:"topic"`
	Event apitypes.Event `json:"event"`
}

// ControlAckMethod is the notification either side sends to acknowledge
// receipt of a reliably-delivered message, carrying ControlAckParams.
const ControlAckMethod = "control.ack"

// ControlAckParams is control.ack's payload.
type ControlAckParams struct {
	MsgID string `json:"msgId"`
}

// ReliableEnvelope wraps a notification's Params when Config.ReliableDelivery
// is enabled: the receiver unwraps Payload, processes it, then sends
// control.ack{msgId} back. The sender resends the envelope with backoff
// until it is acked, giving up after three unanswered sends.
type ReliableEnvelope struct {
	MsgID   string          `json:"msgId"`
	Payload json.RawMessage `json:"payload"`
}
