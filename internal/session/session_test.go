package session

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

	"github.com/agentx/agentx/internal/container"
	"github.com/agentx/agentx/internal/store/inmem"
	"github.com/agentx/agentx/internal/tools"
	"github.com/agentx/agentx/pkg/apitypes"
)

func echoFactory(ctx context.Context, cfg apitypes.Config) (agentxdriver.Driver, error) {
	return echo.New(), nil
}

func newTestManager(t *testing.T) (*Manager, apitypes.Image) {
	t.Helper()
	st := inmem.New()
	b := bus.New(logging.Noop())
	toolReg := tools.NewRegistry()
	tools.RegisterBuiltins(toolReg)

	c, err := container.New("ctr_1", filepath.Join(t.TempDir(), "ws"), st, b, echoFactory, toolReg, logging.Noop())
	require.NoError(t, err)

	m := New(st, c)
	img := apitypes.Image{ImageID: "img_1", DefinitionName: "def_1", SessionID: "sess_1"}
	return m, img
}

func TestCreateThenSendAppendsUserAndAssistantMessages(t *testing.T) {
	m, img := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, img, "user_1", "")
	require.NoError(t, err)
	assert.Equal(t, "New Session", s.Title)

	img.SessionID = s.SessionID
	_, err = m.Container.Run(ctx, img, apitypes.Config{})
	require.NoError(t, err)

	reply, err := m.Send(ctx, s.SessionID, apitypes.TextOnly("hi"), img, apitypes.Config{})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", apitypes.ConcatText(reply.Content))

	history, err := m.GetMessages(ctx, s.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestSendResumesWhenNoLiveAgent(t *testing.T) {
	m, img := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, img, "user_1", "")
	require.NoError(t, err)
	img.SessionID = s.SessionID

	reply, err := m.Send(ctx, s.SessionID, apitypes.TextOnly("hello"), img, apitypes.Config{})
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", apitypes.ConcatText(reply.Content))
	assert.True(t, m.Container.Has(s.SessionID))
}

func TestForkCopiesHistoryIntoNewSession(t *testing.T) {
	m, img := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, img, "user_1", "")
	require.NoError(t, err)
	img.SessionID = s.SessionID
	_, err = m.Container.Run(ctx, img, apitypes.Config{})
	require.NoError(t, err)

	_, err = m.Send(ctx, s.SessionID, apitypes.TextOnly("first"), img, apitypes.Config{})
	require.NoError(t, err)

	forkedImg := apitypes.Image{ImageID: "img_2", DefinitionName: "def_1"}
	forked, err := m.Fork(ctx, s.SessionID, "", forkedImg, "user_1", "forked")
	require.NoError(t, err)
	assert.Equal(t, "forked", forked.Title)

	forkedHistory, err := m.GetMessages(ctx, forked.SessionID)
	require.NoError(t, err)
	sourceHistory, err := m.GetMessages(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Len(t, forkedHistory, len(sourceHistory))
}

func TestCollectReturnsSessionAndHistory(t *testing.T) {
	m, img := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, img, "user_1", "my chat")
	require.NoError(t, err)

	got, msgs, err := m.Collect(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "my chat", got.Title)
	assert.Empty(t, msgs)
}

func TestCompactSummarizesWhenOverThreshold(t *testing.T) {
	m, img := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, img, "user_1", "")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Store.Messages.Append(ctx, apitypes.Message{
			MessageID: apitypes.NewID(apitypes.PrefixMessage),
			SessionID: s.SessionID,
			Role:      apitypes.RoleUser,
			Content:   apitypes.TextOnly("msg"),
		}))
	}

	err = m.Compact(ctx, s.SessionID, 3, func(history []apitypes.Message) (string, error) {
		return "summary of 5 messages", nil
	})
	require.NoError(t, err)

	history, err := m.GetMessages(ctx, s.SessionID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "summary of 5 messages", apitypes.ConcatText(history[0].Content))
}

func TestCompactNoopsUnderThreshold(t *testing.T) {
	m, img := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, img, "user_1", "")
	require.NoError(t, err)
	require.NoError(t, m.Store.Messages.Append(ctx, apitypes.Message{
		MessageID: apitypes.NewID(apitypes.PrefixMessage),
		SessionID: s.SessionID,
		Role:      apitypes.RoleUser,
		Content:   apitypes.TextOnly("msg"),
	}))

	called := false
	err = m.Compact(ctx, s.SessionID, 10, func(history []apitypes.Message) (string, error) {
		called = true
		return "", nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}
