package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/agentx/agentx/internal/runtime"
	"github.com/agentx/agentx/pkg/apitypes"
)

var _ runtime.Transport = (*Client)(nil)

// Client dials a Server's /rpc endpoint and implements runtime.Transport,
// generalizing a WriteJSON/ReadJSON-over-websocket client with pending
// requests keyed by request ID and auto-reconnect, onto coder/websocket
// framing and a cenkalti/backoff/v4 exponential reconnect policy instead of
// a fixed linear backoff.
type Client struct {
	url              string
	token            string
	reliableDelivery bool
	log              zerolog.Logger
	autoReconnect    bool

	mu   sync.Mutex
	conn *websocket.Conn

	nextID int64

	pendingMu sync.Mutex
	pending   map[string]chan Response

	topicsMu sync.Mutex
	topics   map[string]bool

	ackMu    sync.Mutex
	ackSeen  map[string]struct{}
	ackOrder []string

	events chan apitypes.Event

	cancel context.CancelFunc
	done   chan struct{}
}

// Dial connects to url (e.g. "ws://localhost:8080/rpc") and starts the
// background read loop. autoReconnect mirrors Config.AutoReconnect: when
// true, a dropped connection is retried with exponential backoff instead
// of failing outstanding and future calls permanently. token is sent as the
// first frame's auth notification (even when empty), and resent on every
// reconnect since the server's auth/subscription state is per-connection.
// reliableDelivery mirrors Config.ReliableDelivery, requesting the server
// wrap this connection's stream.event push in the msgId/control.ack
// retry wrapper instead of best-effort fire-and-forget.
func Dial(ctx context.Context, url, token string, reliableDelivery, autoReconnect bool, log zerolog.Logger) (*Client, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		url:              url,
		token:            token,
		reliableDelivery: reliableDelivery,
		log:              log,
		autoReconnect:    autoReconnect,
		pending:          make(map[string]chan Response),
		topics:           make(map[string]bool),
		events:           make(chan apitypes.Event, 256),
		cancel:           cancel,
		done:             make(chan struct{}),
	}

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("rpc: dial %s: %w", url, err)
	}
	c.conn = conn
	if err := c.sendAuthAndResubscribe(ctx); err != nil {
		cancel()
		return nil, err
	}

	go c.run(runCtx)
	return c, nil
}

// sendAuthAndResubscribe sends the auth notification (always, even with an
// empty token, so the server's structural "first frame must be auth" gate
// is satisfied) followed by every topic currently in c.topics, restoring
// subscription state lost when the prior connection dropped.
func (c *Client) sendAuthAndResubscribe(ctx context.Context) error {
	if err := c.sendNotification(ctx, AuthMethod, AuthParams{Token: c.token, Reliable: c.reliableDelivery}); err != nil {
		return err
	}
	c.topicsMu.Lock()
	topics := make([]string, 0, len(c.topics))
	for t := range c.topics {
		topics = append(topics, t)
	}
	c.topicsMu.Unlock()
	for _, t := range topics {
		if err := c.sendNotification(ctx, SubscribeMethod, TopicParams{Topic: t}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sendNotification(ctx context.Context, method string, params any) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(Notification{JSONRPC: "2.0", Method: method, Params: paramsJSON})
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("rpc: not connected")
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Subscribe requests topic's stream.event notifications from the server;
// idempotent, and restored automatically across reconnects.
func (c *Client) Subscribe(ctx context.Context, topic string) error {
	c.topicsMu.Lock()
	c.topics[topic] = true
	c.topicsMu.Unlock()
	return c.sendNotification(ctx, SubscribeMethod, TopicParams{Topic: topic})
}

// Unsubscribe stops topic's stream.event notifications.
func (c *Client) Unsubscribe(ctx context.Context, topic string) error {
	c.topicsMu.Lock()
	delete(c.topics, topic)
	c.topicsMu.Unlock()
	return c.sendNotification(ctx, UnsubscribeMethod, TopicParams{Topic: topic})
}

// decodeStreamEvent unwraps a stream.event frame's Params, which is either a
// bare StreamEventPayload (best-effort delivery) or a ReliableEnvelope
// wrapping one (Config.ReliableDelivery on the server). msgID is empty in
// the former case, signaling no control.ack is expected.
func decodeStreamEvent(params json.RawMessage) (StreamEventPayload, string, error) {
	var probe struct {
		MsgID string `json:"msgId"`
	}
	_ = json.Unmarshal(params, &probe)
	if probe.MsgID == "" {
		var payload StreamEventPayload
		err := json.Unmarshal(params, &payload)
		return payload, "", err
	}

	var envelope ReliableEnvelope
	if err := json.Unmarshal(params, &envelope); err != nil {
		return StreamEventPayload{}, "", err
	}
	var payload StreamEventPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return StreamEventPayload{}, "", err
	}
	return payload, envelope.MsgID, nil
}

// alreadyAcked reports whether msgID was already seen and acked, guarding
// against the narrow race where a retried envelope arrives just after this
// client's earlier ack crossed it on the wire. Bounded to the last 256
// message ids so long-lived reliable connections don't grow this unbounded.
func (c *Client) alreadyAcked(msgID string) bool {
	c.ackMu.Lock()
	defer c.ackMu.Unlock()
	if c.ackSeen == nil {
		c.ackSeen = make(map[string]struct{})
	}
	if _, ok := c.ackSeen[msgID]; ok {
		return true
	}
	c.ackSeen[msgID] = struct{}{}
	c.ackOrder = append(c.ackOrder, msgID)
	if len(c.ackOrder) > 256 {
		oldest := c.ackOrder[0]
		c.ackOrder = c.ackOrder[1:]
		delete(c.ackSeen, oldest)
	}
	return false
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	for {
		err := c.readLoop(ctx)
		if ctx.Err() != nil {
			return
		}
		c.clearPending(fmt.Errorf("rpc: connection lost: %w", err))
		if !c.autoReconnect {
			return
		}
		if !c.reconnect(ctx) {
			return
		}
	}
}

func (c *Client) readLoop(ctx context.Context) error {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return fmt.Errorf("no connection")
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var frame struct {
			ID     json.RawMessage `json:"id,omitempty"`
			Method string          `json:"method,omitempty"`
			Params json.RawMessage `json:"params,omitempty"`
			Result json.RawMessage `json:"result,omitempty"`
			Error  *Error          `json:"error,omitempty"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Warn().Err(err).Msg("rpc: malformed frame")
			continue
		}

		if frame.Method == StreamEventMethod {
			payload, msgID, err := decodeStreamEvent(frame.Params)
			if err != nil {
				c.log.Warn().Err(err).Msg("rpc: malformed stream.event")
				continue
			}
			if msgID != "" {
				if c.alreadyAcked(msgID) {
					continue
				}
				_ = c.sendNotification(ctx, ControlAckMethod, ControlAckParams{MsgID: msgID})
			}
			select {
			case c.events <- payload.Event:
			default:
				c.log.Warn().Msg("rpc: events channel full, dropping event")
			}
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[string(frame.ID)]
		c.pendingMu.Unlock()
		if !ok {
			continue
		}
		ch <- Response{ID: frame.ID, Result: frame.Result, Error: frame.Error}
	}
}

func (c *Client) reconnect(ctx context.Context) bool {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0 // retry indefinitely until ctx is canceled
	operation := func() error {
		conn, _, err := websocket.Dial(ctx, c.url, nil)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		return c.sendAuthAndResubscribe(ctx)
	}
	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return err == nil
}

func (c *Client) clearPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		ch <- Response{Error: &Error{Code: InternalError, Message: err.Error()}}
		delete(c.pending, id)
	}
}

// Call sends a Request and blocks for its matching Response.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	id := strconv.FormatInt(atomic.AddInt64(&c.nextID, 1), 10)

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return err
	}

	req := Request{JSONRPC: "2.0", ID: json.RawMessage(id), Method: method, Params: paramsJSON}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	ch := make(chan Response, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("rpc: not connected")
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("rpc: write: %w", err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return fmt.Errorf("rpc error [%d]: %s", resp.Error.Code, resp.Error.Message)
		}
		if result != nil && len(resp.Result) > 0 {
			return json.Unmarshal(resp.Result, result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("rpc: client closed")
	}
}

// Events returns the channel every stream.event notification is delivered
// on; it stays open across reconnects until Close is called.
func (c *Client) Events(ctx context.Context) (<-chan apitypes.Event, error) {
	return c.events, nil
}

// Close tears down the connection and stops the read loop.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	conn := c.conn
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	<-c.done
	close(c.events)
	return nil
}
