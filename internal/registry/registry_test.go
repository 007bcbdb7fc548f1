package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/agentx/internal/bus"
	"github.com/agentx/agentx/internal/container"
	agentxdriver "github.com/agentx/agentx/internal/driver"
	"github.com/agentx/agentx/internal/driver/echo"
	"github.com/agentx/agentx/internal/logging"
	"github.com/agentx/agentx/internal/store/inmem"
	"github.com/agentx/agentx/internal/tools"
	"github.com/agentx/agentx/pkg/apitypes"
)

func echoFactory(ctx context.Context, cfg apitypes.Config) (agentxdriver.Driver, error) {
	return echo.New(), nil
}

func newTestRegistryAndContainer(t *testing.T) (*Registry, *container.Container) {
	t.Helper()
	st := inmem.New()
	b := bus.New(logging.Noop())
	toolReg := tools.NewRegistry()
	tools.RegisterBuiltins(toolReg)

	c, err := container.New("ctr_1", filepath.Join(t.TempDir(), "ws"), st, b, echoFactory, toolReg, logging.Noop())
	require.NoError(t, err)

	return New(st), c
}

func TestRegisterDefinitionBuildsMetaImage(t *testing.T) {
	r, _ := newTestRegistryAndContainer(t)
	ctx := context.Background()

	meta, err := r.RegisterDefinition(ctx, apitypes.Definition{Name: "assistant", SystemPrompt: "be helpful"})
	require.NoError(t, err)
	assert.False(t, meta.IsSnapshot())

	got, err := r.GetMetaImage(ctx, "assistant")
	require.NoError(t, err)
	assert.Equal(t, meta.ImageID, got.ImageID)
}

func TestRunFromMetaImageStartsFreshSession(t *testing.T) {
	r, c := newTestRegistryAndContainer(t)
	ctx := context.Background()

	meta, err := r.RegisterDefinition(ctx, apitypes.Definition{Name: "assistant"})
	require.NoError(t, err)

	a, err := r.Run(ctx, meta.ImageID, "", c, apitypes.Config{})
	require.NoError(t, err)
	assert.True(t, c.Has(a.SessionID))
}

func TestRunFromSnapshotImageResumesSession(t *testing.T) {
	r, c := newTestRegistryAndContainer(t)
	ctx := context.Background()

	meta, err := r.RegisterDefinition(ctx, apitypes.Definition{Name: "assistant"})
	require.NoError(t, err)

	a1, err := r.Run(ctx, meta.ImageID, "", c, apitypes.Config{})
	require.NoError(t, err)

	snap, err := r.Create(ctx, CreateParams{DefinitionName: "assistant", ContainerID: c.ID, SessionID: a1.SessionID})
	require.NoError(t, err)
	assert.True(t, snap.IsSnapshot())

	require.NoError(t, c.Destroy(a1.SessionID))

	a2, err := r.Run(ctx, snap.ImageID, "", c, apitypes.Config{})
	require.NoError(t, err)
	assert.Equal(t, a1.SessionID, a2.SessionID)
}

func TestUpdateOnlyTouchesNameAndCustomData(t *testing.T) {
	r, _ := newTestRegistryAndContainer(t)
	ctx := context.Background()

	meta, err := r.RegisterDefinition(ctx, apitypes.Definition{Name: "assistant", SystemPrompt: "be helpful"})
	require.NoError(t, err)

	newName := "renamed"
	updated, err := r.Update(ctx, meta.ImageID, apitypes.ImagePatch{Name: &newName, CustomData: map[string]any{"k": "v"}})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, "be helpful", updated.SystemPrompt)
}

func TestDeleteRefusesWhileAgentLive(t *testing.T) {
	r, c := newTestRegistryAndContainer(t)
	ctx := context.Background()

	meta, err := r.RegisterDefinition(ctx, apitypes.Definition{Name: "assistant"})
	require.NoError(t, err)
	a, err := r.Run(ctx, meta.ImageID, "", c, apitypes.Config{})
	require.NoError(t, err)

	snap, err := r.Create(ctx, CreateParams{DefinitionName: "assistant", ContainerID: c.ID, SessionID: a.SessionID})
	require.NoError(t, err)

	err = r.Delete(ctx, snap.ImageID, c)
	assert.Error(t, err)

	require.NoError(t, c.Destroy(a.SessionID))
	assert.NoError(t, r.Delete(ctx, snap.ImageID, c))
}
