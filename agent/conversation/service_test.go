package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/BaSui01/cortex/agent/memory"
	"github.com/BaSui01/cortex/agent/persistence"
	"github.com/BaSui01/cortex/testutil/mocks"
	"github.com/BaSui01/cortex/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type consolidatorFunc func(ctx context.Context, conv *types.Conversation) (memory.Action, *types.Memory, error)

func (f consolidatorFunc) Consolidate(ctx context.Context, conv *types.Conversation) (memory.Action, *types.Memory, error) {
	return f(ctx, conv)
}

func newService(t *testing.T, reply string, c Consolidator) (*Service, *persistence.MemoryConversationStore) {
	t.Helper()
	store := persistence.NewMemoryConversationStore()
	agent := NewAgent(mocks.NewMockProvider().WithResponse(reply), &fakeThinker{}, &fakeTables{}, store, nil, DefaultConfig(), zap.NewNop())
	return NewService(agent, store, c, zap.NewNop()), store
}

func TestService_RespondCreatesThenAppends(t *testing.T) {
	var seen []int
	svc, store := newService(t, "Hello!", consolidatorFunc(func(_ context.Context, conv *types.Conversation) (memory.Action, *types.Memory, error) {
		seen = append(seen, len(conv.Messages))
		return memory.ActionNone, nil, nil
	}))
	ctx := context.Background()

	res, err := svc.Respond(ctx, RespondRequest{OwnerID: "u1", Content: "Hi"})
	require.NoError(t, err)
	require.NotEmpty(t, res.ConversationID)
	assert.Equal(t, "Hello!", res.Response.Content)

	res2, err := svc.Respond(ctx, RespondRequest{OwnerID: "u1", Content: "Again", ConversationID: res.ConversationID})
	require.NoError(t, err)
	assert.Equal(t, res.ConversationID, res2.ConversationID)

	conv, err := store.Get(ctx, res.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 4)
	assert.Equal(t, types.KindQuery, conv.Messages[0].Kind)
	assert.Equal(t, "u1", conv.Messages[0].Sender)
	assert.Equal(t, types.KindFromConversation, conv.Messages[1].Kind)
	assert.NotNil(t, conv.OutputTable)
	assert.Equal(t, []int{2, 4}, seen)
}

func TestService_ConsolidationFailureIsNotFatal(t *testing.T) {
	svc, _ := newService(t, "ok", consolidatorFunc(func(context.Context, *types.Conversation) (memory.Action, *types.Memory, error) {
		return memory.ActionCreate, nil, errors.New("vector store down")
	}))
	res, err := svc.Respond(context.Background(), RespondRequest{OwnerID: "u1", Content: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Response.Content)
}

func TestService_Validation(t *testing.T) {
	svc, _ := newService(t, "ok", nil)
	ctx := context.Background()

	_, err := svc.Respond(ctx, RespondRequest{Content: "Hi"})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	_, err = svc.Respond(ctx, RespondRequest{OwnerID: "u1"})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	_, err = svc.Respond(ctx, RespondRequest{OwnerID: "u1", Content: "Hi", Kind: "shout"})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	_, err = svc.Respond(ctx, RespondRequest{OwnerID: "u1", Content: "Hi", ConversationID: "missing"})
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))

	_, err = svc.Get(ctx, "missing")
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))
}

func TestService_List(t *testing.T) {
	svc, _ := newService(t, "ok", nil)
	ctx := context.Background()

	convs, err := svc.List(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, convs)
	assert.Empty(t, convs)

	_, err = svc.Respond(ctx, RespondRequest{OwnerID: "u1", Content: "Hi"})
	require.NoError(t, err)
	convs, err = svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}
