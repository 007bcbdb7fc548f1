package inmem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentx/agentx/internal/store"
	"github.com/agentx/agentx/pkg/apitypes"
)

func TestDefinitionsRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	def := apitypes.Definition{Name: "coder", SystemPrompt: "you write code"}
	require.NoError(t, s.Definitions.Put(ctx, def))

	got, err := s.Definitions.Get(ctx, "coder")
	require.NoError(t, err)
	assert.Equal(t, def, got)

	require.NoError(t, s.Definitions.Delete(ctx, "coder"))
	_, err = s.Definitions.Get(ctx, "coder")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestImagesListByDefinitionAndContainer(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Images.Put(ctx, apitypes.Image{ImageID: "img_1", DefinitionName: "coder", ContainerID: "ctr_1"}))
	require.NoError(t, s.Images.Put(ctx, apitypes.Image{ImageID: "img_2", DefinitionName: "coder", ContainerID: "ctr_2"}))
	require.NoError(t, s.Images.Put(ctx, apitypes.Image{ImageID: "img_3", DefinitionName: "other", ContainerID: "ctr_1"}))

	byDef, err := s.Images.ListByDefinition(ctx, "coder")
	require.NoError(t, err)
	assert.Len(t, byDef, 2)

	byCtr, err := s.Images.ListByContainer(ctx, "ctr_1")
	require.NoError(t, err)
	assert.Len(t, byCtr, 2)
}

func TestMessagesAppendIsOrderedAndIsolatedPerSession(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Messages.Append(ctx, apitypes.Message{MessageID: "m1", SessionID: "s1", Role: apitypes.RoleUser}))
	require.NoError(t, s.Messages.Append(ctx, apitypes.Message{MessageID: "m2", SessionID: "s1", Role: apitypes.RoleAssistant}))
	require.NoError(t, s.Messages.Append(ctx, apitypes.Message{MessageID: "m3", SessionID: "s2", Role: apitypes.RoleUser}))

	got, err := s.Messages.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].MessageID)
	assert.Equal(t, "m2", got[1].MessageID)

	require.NoError(t, s.Messages.DeleteBySession(ctx, "s1"))
	got, err = s.Messages.ListBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSessionsListByImage(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Sessions.Put(ctx, apitypes.Session{SessionID: "sess_1", ImageID: "img_1"}))
	require.NoError(t, s.Sessions.Put(ctx, apitypes.Session{SessionID: "sess_2", ImageID: "img_1"}))
	require.NoError(t, s.Sessions.Put(ctx, apitypes.Session{SessionID: "sess_3", ImageID: "img_2"}))

	got, err := s.Sessions.ListByImage(ctx, "img_1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestContainersNotFound(t *testing.T) {
	s := New()
	_, err := s.Containers.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
