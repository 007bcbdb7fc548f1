package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/agentx/internal/bus"
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

func newTestContainer(t *testing.T) *Container {
	t.Helper()
	st := inmem.New()
	b := bus.New(logging.Noop())
	toolReg := tools.NewRegistry()
	tools.RegisterBuiltins(toolReg)

	c, err := New("ctr_1", filepath.Join(t.TempDir(), "ws"), st, b, echoFactory, toolReg, logging.Noop())
	require.NoError(t, err)
	return c
}

func TestRunCreatesLiveAgent(t *testing.T) {
	c := newTestContainer(t)
	img := apitypes.Image{SessionID: "sess_1", SystemPrompt: "be helpful"}

	a, err := c.Run(context.Background(), img, apitypes.Config{})
	require.NoError(t, err)
	assert.True(t, c.Has("sess_1"))

	got, ok := c.Get("sess_1")
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestRunTwiceConflicts(t *testing.T) {
	c := newTestContainer(t)
	img := apitypes.Image{SessionID: "sess_1"}

	_, err := c.Run(context.Background(), img, apitypes.Config{})
	require.NoError(t, err)

	_, err = c.Run(context.Background(), img, apitypes.Config{})
	assert.Error(t, err)
}

func TestResumeReturnsExistingOrRecreates(t *testing.T) {
	c := newTestContainer(t)
	img := apitypes.Image{SessionID: "sess_1"}

	a1, err := c.Run(context.Background(), img, apitypes.Config{})
	require.NoError(t, err)

	a2, err := c.Resume(context.Background(), img, apitypes.Config{})
	require.NoError(t, err)
	assert.Same(t, a1, a2)

	require.NoError(t, c.Destroy("sess_1"))
	assert.False(t, c.Has("sess_1"))

	a3, err := c.Resume(context.Background(), img, apitypes.Config{})
	require.NoError(t, err)
	assert.NotSame(t, a1, a3)
}

func TestDestroyAllTearsDownEverything(t *testing.T) {
	c := newTestContainer(t)
	_, err := c.Run(context.Background(), apitypes.Image{SessionID: "s1"}, apitypes.Config{})
	require.NoError(t, err)
	_, err = c.Run(context.Background(), apitypes.Image{SessionID: "s2"}, apitypes.Config{})
	require.NoError(t, err)

	require.NoError(t, c.DestroyAll())
	assert.Empty(t, c.List())
}
