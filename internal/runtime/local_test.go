package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/agentx/internal/logging"
	"github.com/agentx/agentx/pkg/apitypes"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocalWithDriverFactory(apitypes.Config{DataPath: ":memory:"}, logging.Noop(), AlwaysFactory(EchoDriverFactory))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLocalRunImageEndToEndEcho(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	rec, err := l.CreateContainer(ctx, t.TempDir())
	require.NoError(t, err)

	meta, err := l.RegisterDefinition(ctx, apitypes.Definition{Name: "assistant", SystemPrompt: "be helpful"})
	require.NoError(t, err)

	handle, err := l.RunImage(ctx, meta.ImageID, rec.ContainerID, apitypes.Config{})
	require.NoError(t, err)
	assert.NotEmpty(t, handle.SessionID)

	img := apitypes.Image{ImageID: meta.ImageID, ContainerID: rec.ContainerID, SessionID: handle.SessionID}
	reply, err := l.Send(ctx, handle.SessionID, apitypes.TextOnly("hello"), img, apitypes.Config{})
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", apitypes.ConcatText(reply.Content))

	msgs, err := l.GetMessages(ctx, handle.SessionID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestLocalCreateAndDestroyContainer(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	rec, err := l.CreateContainer(ctx, t.TempDir())
	require.NoError(t, err)

	list, err := l.ListContainers(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, l.DestroyContainer(ctx, rec.ContainerID))
	list, err = l.ListContainers(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLocalOnAnyReceivesAgentLifecycleEvents(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	received := make(chan string, 4)
	l.OnAny(func(ev apitypes.Event) { received <- ev.Type })

	rec, err := l.CreateContainer(ctx, t.TempDir())
	require.NoError(t, err)

	meta, err := l.RegisterDefinition(ctx, apitypes.Definition{Name: "assistant"})
	require.NoError(t, err)

	_, err = l.RunImage(ctx, meta.ImageID, rec.ContainerID, apitypes.Config{})
	require.NoError(t, err)

	select {
	case typ := <-received:
		assert.Equal(t, "agent_started", typ)
	default:
		t.Fatal("expected an event")
	}
}

func TestLocalDeleteImageRefusesWhileAgentLive(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	rec, err := l.CreateContainer(ctx, t.TempDir())
	require.NoError(t, err)
	meta, err := l.RegisterDefinition(ctx, apitypes.Definition{Name: "assistant"})
	require.NoError(t, err)

	handle, err := l.RunImage(ctx, meta.ImageID, rec.ContainerID, apitypes.Config{})
	require.NoError(t, err)

	snap, err := l.CreateImage(ctx, rec.ContainerID, handle.SessionID, "assistant", "snapshot")
	require.NoError(t, err)

	err = l.DeleteImage(ctx, snap.ImageID)
	assert.Error(t, err)

	require.NoError(t, l.DestroyAgent(ctx, rec.ContainerID, handle.SessionID))
	assert.NoError(t, l.DeleteImage(ctx, snap.ImageID))
}
