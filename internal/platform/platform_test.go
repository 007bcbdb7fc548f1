package platform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/agentx/internal/logging"
	"github.com/agentx/agentx/internal/runtime"
	"github.com/agentx/agentx/pkg/apitypes"
)

func newTestPlatform(t *testing.T) *AgentX {
	t.Helper()
	local, err := runtime.NewLocalWithDriverFactory(
		apitypes.Config{DataPath: ":memory:"},
		logging.Noop(),
		runtime.AlwaysFactory(runtime.EchoDriverFactory),
	)
	require.NoError(t, err)
	ax := newWithRuntime(local)
	t.Cleanup(func() { _ = ax.Close() })
	return ax
}

func TestPlatformEndToEndEchoConversation(t *testing.T) {
	ax := newTestPlatform(t)
	ctx := context.Background()

	rec, err := ax.Containers.Create(ctx, t.TempDir())
	require.NoError(t, err)

	meta, err := ax.Images.RegisterDefinition(ctx, apitypes.Definition{Name: "assistant"})
	require.NoError(t, err)

	handle, err := ax.Agents.Run(ctx, meta.ImageID, rec.ContainerID, apitypes.Config{})
	require.NoError(t, err)

	img := apitypes.Image{ImageID: meta.ImageID, ContainerID: rec.ContainerID, SessionID: handle.SessionID}
	reply, err := ax.Sessions.Send(ctx, handle.SessionID, apitypes.TextOnly("hi"), img, apitypes.Config{})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", apitypes.ConcatText(reply.Content))

	sess, msgs, err := ax.Sessions.Collect(ctx, handle.SessionID)
	require.NoError(t, err)
	assert.Equal(t, handle.SessionID, sess.SessionID)
	assert.Len(t, msgs, 2)
}

func TestPlatformPresentationsSubscribeReceivesScopedUpdates(t *testing.T) {
	ax := newTestPlatform(t)
	ctx := context.Background()

	rec, err := ax.Containers.Create(ctx, t.TempDir())
	require.NoError(t, err)
	meta, err := ax.Images.RegisterDefinition(ctx, apitypes.Definition{Name: "assistant"})
	require.NoError(t, err)
	handle, err := ax.Agents.Run(ctx, meta.ImageID, rec.ContainerID, apitypes.Config{})
	require.NoError(t, err)

	states, unsubscribe := ax.Presentations.Subscribe(handle.SessionID)
	defer unsubscribe()

	img := apitypes.Image{ImageID: meta.ImageID, ContainerID: rec.ContainerID, SessionID: handle.SessionID}
	_, err = ax.Sessions.Send(ctx, handle.SessionID, apitypes.TextOnly("hi"), img, apitypes.Config{})
	require.NoError(t, err)

	select {
	case st := <-states:
		_ = st
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a presentation update")
	}
}
