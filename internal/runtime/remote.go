package runtime

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/agentx/agentx/internal/bus"
	"github.com/agentx/agentx/pkg/apitypes"
)

// Transport is the subset of the RPC Transport (C10) client Remote needs:
// a request/response call and a server-push event feed. The concrete
// implementation (internal/rpc.Client) dials coder/websocket and applies
// cenkalti/backoff/v4 reconnect policy; Remote stays agnostic of that so it
// can be unit-tested against a fake.
type Transport interface {
	Call(ctx context.Context, method string, params, result any) error
	// Events returns a channel of every Event the server pushes (via its
	// stream.event notification) until Close is called.
	Events(ctx context.Context) (<-chan apitypes.Event, error)
	// Subscribe/Unsubscribe declare interest in a topic's stream.event
	// fan-out, mirroring the server's per-connection subscribe/unsubscribe
	// notifications.
	Subscribe(ctx context.Context, topic string) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}

var _ Runtime = (*Remote)(nil)

// Remote implements Runtime by round-tripping every namespace method
// through a Transport, generalizing how a thin SDK client wraps a JSON-RPC
// connection. The façade (C12) is identical to Local; only this backing
// differs.
type Remote struct {
	transport Transport
	bus       *bus.Bus
	cancel    context.CancelFunc
}

// NewRemote wraps an already-connected transport and starts forwarding its
// pushed events onto a
// local Bus so On/OnAny behave identically to Local's.
func NewRemote(transport Transport, log zerolog.Logger) (*Remote, error) {
	ctx, cancel := context.WithCancel(context.Background())
	events, err := transport.Events(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	b := bus.New(log)
	go func() {
		for ev := range events {
			b.Emit(ev)
		}
	}()

	return &Remote{transport: transport, bus: b, cancel: cancel}, nil
}

func (r *Remote) CreateContainer(ctx context.Context, workspaceRoot string) (apitypes.Container, error) {
	var out apitypes.Container
	err := r.transport.Call(ctx, "containers.create", map[string]string{"workspaceRoot": workspaceRoot}, &out)
	return out, err
}

func (r *Remote) DestroyContainer(ctx context.Context, containerID string) error {
	return r.transport.Call(ctx, "containers.destroy", map[string]string{"containerId": containerID}, nil)
}

func (r *Remote) ListContainers(ctx context.Context) ([]apitypes.Container, error) {
	var out []apitypes.Container
	err := r.transport.Call(ctx, "containers.list", nil, &out)
	return out, err
}

func (r *Remote) RegisterDefinition(ctx context.Context, def apitypes.Definition) (apitypes.Image, error) {
	var out apitypes.Image
	err := r.transport.Call(ctx, "images.registerDefinition", def, &out)
	return out, err
}

func (r *Remote) GetMetaImage(ctx context.Context, definitionName string) (apitypes.Image, error) {
	var out apitypes.Image
	err := r.transport.Call(ctx, "images.getMetaImage", map[string]string{"definitionName": definitionName}, &out)
	return out, err
}

func (r *Remote) CreateImage(ctx context.Context, containerID, sessionID, definitionName, name string) (apitypes.Image, error) {
	var out apitypes.Image
	params := map[string]string{
		"containerId":    containerID,
		"sessionId":      sessionID,
		"definitionName": definitionName,
		"name":           name,
	}
	err := r.transport.Call(ctx, "images.create", params, &out)
	return out, err
}

func (r *Remote) UpdateImage(ctx context.Context, imageID string, patch apitypes.ImagePatch) (apitypes.Image, error) {
	var out apitypes.Image
	params := map[string]any{"imageId": imageID, "patch": patch}
	err := r.transport.Call(ctx, "images.update", params, &out)
	return out, err
}

func (r *Remote) DeleteImage(ctx context.Context, imageID string) error {
	return r.transport.Call(ctx, "images.delete", map[string]string{"imageId": imageID}, nil)
}

func (r *Remote) RunImage(ctx context.Context, imageID, containerID string, cfg apitypes.Config) (AgentHandle, error) {
	var out AgentHandle
	params := map[string]string{"imageId": imageID, "containerId": containerID}
	err := r.transport.Call(ctx, "agents.run", params, &out)
	return out, err
}

func (r *Remote) InterruptAgent(ctx context.Context, containerID, sessionID string) error {
	params := map[string]string{"containerId": containerID, "sessionId": sessionID}
	return r.transport.Call(ctx, "agents.interrupt", params, nil)
}

func (r *Remote) DestroyAgent(ctx context.Context, containerID, sessionID string) error {
	params := map[string]string{"containerId": containerID, "sessionId": sessionID}
	return r.transport.Call(ctx, "agents.destroy", params, nil)
}

func (r *Remote) CreateSession(ctx context.Context, img apitypes.Image, userID, title string) (apitypes.Session, error) {
	var out apitypes.Session
	params := map[string]any{"image": img, "userId": userID, "title": title}
	err := r.transport.Call(ctx, "sessions.create", params, &out)
	return out, err
}

func (r *Remote) GetMessages(ctx context.Context, sessionID string) ([]apitypes.Message, error) {
	var out []apitypes.Message
	err := r.transport.Call(ctx, "sessions.getMessages", map[string]string{"sessionId": sessionID}, &out)
	return out, err
}

func (r *Remote) Send(ctx context.Context, sessionID string, content []apitypes.ContentPart, img apitypes.Image, cfg apitypes.Config) (*apitypes.Message, error) {
	wireContent, err := apitypes.MarshalContentParts(content)
	if err != nil {
		return nil, err
	}
	var out apitypes.Message
	params := map[string]any{
		"sessionId": sessionID,
		"content":   json.RawMessage(wireContent),
		"image":     img,
	}
	if err := r.transport.Call(ctx, "sessions.send", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Remote) ResumeSession(ctx context.Context, img apitypes.Image, cfg apitypes.Config) error {
	return r.transport.Call(ctx, "sessions.resume", map[string]any{"image": img}, nil)
}

func (r *Remote) ForkSession(ctx context.Context, sourceSessionID, forkPointMessageID string, newImg apitypes.Image, userID, title string) (apitypes.Session, error) {
	var out apitypes.Session
	params := map[string]any{
		"sourceSessionId":    sourceSessionID,
		"forkPointMessageId": forkPointMessageID,
		"newImage":           newImg,
		"userId":             userID,
		"title":              title,
	}
	err := r.transport.Call(ctx, "sessions.fork", params, &out)
	return out, err
}

func (r *Remote) CollectSession(ctx context.Context, sessionID string) (apitypes.Session, []apitypes.Message, error) {
	var out struct {
		Session  apitypes.Session   `json:"session"`
		Messages []apitypes.Message `json:"messages"`
	}
	err := r.transport.Call(ctx, "sessions.collect", map[string]string{"sessionId": sessionID}, &out)
	return out.Session, out.Messages, err
}

func (r *Remote) On(eventType string, handler bus.Handler, opts ...bus.Options) *bus.Subscription {
	return r.bus.On(eventType, handler, opts...)
}

func (r *Remote) OnAny(handler bus.Handler, opts ...bus.Options) *bus.Subscription {
	return r.bus.OnAny(handler, opts...)
}

// SubscribeTopic asks the server to forward topic's stream.event traffic to
// this connection; without it, a Remote-backed OnAny filter would never see
// the events in the first place since the server only fans out to sockets
// that asked.
func (r *Remote) SubscribeTopic(ctx context.Context, topic string) error {
	return r.transport.Subscribe(ctx, topic)
}

func (r *Remote) UnsubscribeTopic(ctx context.Context, topic string) error {
	return r.transport.Unsubscribe(ctx, topic)
}

func (r *Remote) Close() error {
	r.cancel()
	r.bus.Destroy()
	return r.transport.Close()
}
