package rpc

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/agentx/internal/logging"
	"github.com/agentx/agentx/internal/runtime"
	"github.com/agentx/agentx/pkg/apitypes"
)

func newTestServer(t *testing.T) (*httptest.Server, runtime.Runtime) {
	t.Helper()
	rt, err := runtime.NewLocalWithDriverFactory(
		apitypes.Config{DataPath: ":memory:"},
		logging.Noop(),
		runtime.AlwaysFactory(runtime.EchoDriverFactory),
	)
	require.NoError(t, err)

	s := NewServer(DefaultServerConfig(), rt, logging.Noop())
	ts := httptest.NewServer(s.router)
	t.Cleanup(func() {
		ts.Close()
		_ = rt.Close()
	})
	return ts, rt
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/rpc"
}

func TestClientRoundTripsContainerCreate(t *testing.T) {
	ts, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, wsURL(ts.URL), "", false, false, logging.Noop())
	require.NoError(t, err)
	defer client.Close()

	r, err := runtime.NewRemote(client, logging.Noop())
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.CreateContainer(ctx, t.TempDir())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ContainerID)
}

func TestClientRoundTripsEndToEndSend(t *testing.T) {
	ts, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, wsURL(ts.URL), "", false, false, logging.Noop())
	require.NoError(t, err)
	defer client.Close()

	r, err := runtime.NewRemote(client, logging.Noop())
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.CreateContainer(ctx, t.TempDir())
	require.NoError(t, err)

	meta, err := r.RegisterDefinition(ctx, apitypes.Definition{Name: "assistant"})
	require.NoError(t, err)

	handle, err := r.RunImage(ctx, meta.ImageID, rec.ContainerID, apitypes.Config{})
	require.NoError(t, err)

	reply, err := r.Send(ctx, handle.SessionID, apitypes.TextOnly("hello"), apitypes.Image{
		ImageID: meta.ImageID, ContainerID: rec.ContainerID, SessionID: handle.SessionID,
	}, apitypes.Config{})
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", apitypes.ConcatText(reply.Content))
}

// TestClientReceivesPushedEvents exercises the per-topic subscription gate
// (§4.10): only a socket that subscribed to a session's topic receives that
// session's stream.event traffic, so the test subscribes to the session
// before sending and only then expects its events to arrive.
func TestClientReceivesPushedEvents(t *testing.T) {
	ts, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, wsURL(ts.URL), "", false, false, logging.Noop())
	require.NoError(t, err)
	defer client.Close()

	r, err := runtime.NewRemote(client, logging.Noop())
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.CreateContainer(ctx, t.TempDir())
	require.NoError(t, err)
	meta, err := r.RegisterDefinition(ctx, apitypes.Definition{Name: "assistant"})
	require.NoError(t, err)
	handle, err := r.RunImage(ctx, meta.ImageID, rec.ContainerID, apitypes.Config{})
	require.NoError(t, err)

	received := make(chan string, 4)
	r.OnAny(func(ev apitypes.Event) { received <- ev.Type })

	require.NoError(t, client.Subscribe(ctx, handle.SessionID))

	_, err = r.Send(ctx, handle.SessionID, apitypes.TextOnly("hi"), apitypes.Image{
		ImageID: meta.ImageID, ContainerID: rec.ContainerID, SessionID: handle.SessionID,
	}, apitypes.Config{})
	require.NoError(t, err)

	select {
	case typ := <-received:
		assert.Equal(t, "message_received", typ)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for pushed event")
	}
}

// TestClientDoesNotReceiveUnsubscribedTopic confirms an authenticated socket
// that never subscribed to a topic gets none of that topic's stream.event
// traffic, guarding against the cross-tenant fan-out this gate exists to
// close.
func TestClientDoesNotReceiveUnsubscribedTopic(t *testing.T) {
	ts, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, wsURL(ts.URL), "", false, false, logging.Noop())
	require.NoError(t, err)
	defer client.Close()

	r, err := runtime.NewRemote(client, logging.Noop())
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.CreateContainer(ctx, t.TempDir())
	require.NoError(t, err)
	meta, err := r.RegisterDefinition(ctx, apitypes.Definition{Name: "assistant"})
	require.NoError(t, err)
	handle, err := r.RunImage(ctx, meta.ImageID, rec.ContainerID, apitypes.Config{})
	require.NoError(t, err)

	received := make(chan string, 4)
	r.OnAny(func(ev apitypes.Event) { received <- ev.Type })

	_, err = r.Send(ctx, handle.SessionID, apitypes.TextOnly("hi"), apitypes.Image{
		ImageID: meta.ImageID, ContainerID: rec.ContainerID, SessionID: handle.SessionID,
	}, apitypes.Config{})
	require.NoError(t, err)

	select {
	case typ := <-received:
		t.Fatalf("received event %q for a topic never subscribed to", typ)
	case <-time.After(500 * time.Millisecond):
	}
}
