package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/agentx/agentx/internal/apierror"
	"github.com/agentx/agentx/internal/bus"
	"github.com/agentx/agentx/internal/runtime"
	"github.com/agentx/agentx/pkg/apitypes"
)

// ServerConfig configures Server, generalizing a Port/Directory/CORS/
// timeouts server config down to the one /rpc upgrade route this transport
// needs instead of a full REST surface.
type ServerConfig struct {
	Port       int
	EnableCORS bool

	// AuthToken, when non-empty, is the shared secret every fresh
	// connection's first "auth" notification must carry. When empty, the
	// auth handshake is still required structurally (the first frame must
	// be "auth") but any token value is accepted.
	AuthToken string

	// ReliableDelivery opts every connection's stream.event push into the
	// msgId/control.ack wrapper with bounded retry, mirroring
	// Config.ReliableDelivery on the client. Off by default (best-effort).
	ReliableDelivery bool
}

// DefaultServerConfig returns sensible server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{Port: 8080, EnableCORS: true}
}

// Server exposes a Runtime over JSON-RPC 2.0 framed on coder/websocket text
// frames at /rpc, plus a /healthz route, generalizing
// internal/server.Server.setupRoutes' chi wiring.
type Server struct {
	cfg     ServerConfig
	runtime runtime.Runtime
	log     zerolog.Logger
	router  *chi.Mux
	httpSrv *http.Server
}

// NewServer builds a Server dispatching onto rt.
func NewServer(cfg ServerConfig, rt runtime.Runtime, log zerolog.Logger) *Server {
	s := &Server{cfg: cfg, runtime: rt, log: log, router: chi.NewRouter()}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)
	if s.cfg.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/rpc", s.handleRPC)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleRPC upgrades the connection and runs one bidirectional session:
// inbound Request frames are dispatched against s.runtime and answered with
// a Response. The connection starts unauthenticated and rejects every frame
// but "auth"; once authenticated it accepts "subscribe"/"unsubscribe"
// notifications that gate which topics this socket's stream.event fan-out
// carries, generalizing Remote's single local-bus fan-out to a per-socket,
// per-topic one.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("rpc: websocket accept failed")
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var writeMu sync.Mutex
	writeJSON := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.Write(ctx, websocket.MessageText, data)
	}

	rc := &rpcConn{srv: s, writeJSON: writeJSON}
	defer rc.close()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			_ = writeJSON(Response{JSONRPC: "2.0", Error: &Error{Code: ParseError, Message: "invalid JSON"}})
			continue
		}

		if !rc.authenticated() {
			rc.handleAuth(req)
			continue
		}

		switch req.Method {
		case SubscribeMethod:
			rc.handleSubscribe(req)
			continue
		case UnsubscribeMethod:
			rc.handleUnsubscribe(req)
			continue
		case ControlAckMethod:
			rc.handleControlAck(req)
			continue
		}

		go s.dispatch(ctx, req, writeJSON)
	}
}

// rpcConn holds the per-connection authentication and topic-subscription
// state handleRPC needs to enforce the auth gate and filtered fan-out.
type rpcConn struct {
	srv       *Server
	writeJSON func(any) error

	mu          sync.Mutex
	authed      bool
	reliable    bool
	sub         *bus.Subscription
	topics      map[string]bool
	pendingAcks map[string]context.CancelFunc
}

func (c *rpcConn) authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authed
}

// handleAuth validates the first frame on a fresh connection. Any method
// other than "auth" is rejected; once a valid auth notification arrives the
// connection starts receiving its own filtered stream.event fan-out.
func (c *rpcConn) handleAuth(req Request) {
	if req.Method != AuthMethod {
		if len(req.ID) > 0 {
			_ = c.writeJSON(Response{JSONRPC: "2.0", ID: req.ID,
				Error: toWireError(apierror.New(apierror.KindUnauthorized, "authentication required"))})
		}
		return
	}

	var p AuthParams
	_ = json.Unmarshal(req.Params, &p)
	if c.srv.cfg.AuthToken != "" && p.Token != c.srv.cfg.AuthToken {
		if len(req.ID) > 0 {
			_ = c.writeJSON(Response{JSONRPC: "2.0", ID: req.ID,
				Error: toWireError(apierror.New(apierror.KindUnauthorized, "invalid token"))})
		}
		return
	}

	c.mu.Lock()
	c.authed = true
	c.reliable = p.Reliable || c.srv.cfg.ReliableDelivery
	c.topics = make(map[string]bool)
	c.mu.Unlock()

	c.sub = c.srv.runtime.OnAny(func(ev apitypes.Event) {
		topic := topicFor(ev)
		if topic == "" {
			return
		}
		c.mu.Lock()
		ok := c.topics[topic]
		c.mu.Unlock()
		if !ok {
			return
		}
		c.pushEvent(topic, ev)
	})

	if len(req.ID) > 0 {
		_ = c.writeJSON(Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage("true")})
	}
}

func (c *rpcConn) handleSubscribe(req Request) {
	var p TopicParams
	_ = json.Unmarshal(req.Params, &p)
	if p.Topic == "" {
		return
	}
	c.mu.Lock()
	c.topics[p.Topic] = true
	c.mu.Unlock()
}

func (c *rpcConn) handleUnsubscribe(req Request) {
	var p TopicParams
	_ = json.Unmarshal(req.Params, &p)
	c.mu.Lock()
	delete(c.topics, p.Topic)
	c.mu.Unlock()
}

// pushEvent sends ev as a stream.event notification, wrapped in a
// ReliableEnvelope and retried until acked when Config.ReliableDelivery
// opted in, or fire-and-forget otherwise.
func (c *rpcConn) pushEvent(topic string, ev apitypes.Event) {
	payload, err := json.Marshal(StreamEventPayload{Topic: topic, Event: ev})
	if err != nil {
		return
	}
	c.mu.Lock()
	reliable := c.reliable
	c.mu.Unlock()
	if !reliable {
		_ = c.writeJSON(Notification{JSONRPC: "2.0", Method: StreamEventMethod, Params: payload})
		return
	}
	c.sendReliable(StreamEventMethod, payload)
}

// sendReliable wraps payload in a ReliableEnvelope and resends it on an
// exponential backoff schedule (1-10s) for up to 3 attempts, stopping as
// soon as the client's control.ack for msgId arrives. Exhausting the retry
// budget drops the message; the event was already observed locally via the
// Bus, so no caller is waiting on this specific delivery to surface an
// error to.
func (c *rpcConn) sendReliable(method string, payload json.RawMessage) {
	msgID := apitypes.NewID(apitypes.PrefixAck)
	envelope, err := json.Marshal(ReliableEnvelope{MsgID: msgID, Payload: payload})
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.pendingAcks == nil {
		c.pendingAcks = make(map[string]context.CancelFunc)
	}
	c.pendingAcks[msgID] = cancel
	c.mu.Unlock()

	go func() {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = time.Second
		b.MaxInterval = 10 * time.Second
		b.MaxElapsedTime = 0

		attempt := 0
		_ = backoff.Retry(func() error {
			attempt++
			if attempt > 3 {
				return backoff.Permanent(fmt.Errorf("rpc: control.ack retry budget exhausted for %s", msgID))
			}
			if err := c.writeJSON(Notification{JSONRPC: "2.0", Method: method, Params: envelope}); err != nil {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("rpc: awaiting control.ack for %s", msgID)
		}, backoff.WithContext(b, ctx))

		c.mu.Lock()
		delete(c.pendingAcks, msgID)
		c.mu.Unlock()
	}()
}

func (c *rpcConn) handleControlAck(req Request) {
	var p ControlAckParams
	_ = json.Unmarshal(req.Params, &p)
	c.mu.Lock()
	cancel, ok := c.pendingAcks[p.MsgID]
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *rpcConn) close() {
	if c.sub != nil {
		c.sub.Close()
	}
	c.mu.Lock()
	pending := c.pendingAcks
	c.pendingAcks = nil
	c.mu.Unlock()
	for _, cancel := range pending {
		cancel()
	}
}

// topicFor derives the stream.event topic for ev: the session it belongs
// to. Events with no EventContext carry no topic and are never fanned out
// over RPC, since there is nothing for a socket to have subscribed to.
func topicFor(ev apitypes.Event) string {
	if ev.Context == nil {
		return ""
	}
	return ev.Context.SessionID
}

func (s *Server) dispatch(ctx context.Context, req Request, writeJSON func(any) error) {
	fn, ok := methods[req.Method]
	if !ok {
		_ = writeJSON(Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &Error{Code: MethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)},
		})
		return
	}

	result, err := fn(ctx, s.runtime, req.Params)
	if err != nil {
		_ = writeJSON(Response{JSONRPC: "2.0", ID: req.ID, Error: toWireError(err)})
		return
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		_ = writeJSON(Response{JSONRPC: "2.0", ID: req.ID, Error: &Error{Code: InternalError, Message: err.Error()}})
		return
	}
	_ = writeJSON(Response{JSONRPC: "2.0", ID: req.ID, Result: resultJSON})
}

func toWireError(err error) *Error {
	var ae *apierror.Error
	if errors.As(err, &ae) {
		return &Error{Code: ae.Code, Message: ae.Message}
	}
	return &Error{Code: InternalError, Message: err.Error()}
}

// Start listens and serves, blocking until the server is shut down.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
