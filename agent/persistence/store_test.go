package persistence

import (
	"context"
	"testing"

	"github.com/BaSui01/cortex/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryConversationStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryConversationStore()
	defer store.Close()

	conv, err := store.Create(ctx, &types.Conversation{
		OwnerID:  "u1",
		Messages: []types.Message{types.NewMessage("alice", types.KindQuery, "hello")},
	})
	require.NoError(t, err)
	require.NotEmpty(t, conv.ID)
	assert.False(t, conv.CreatedAt.IsZero())

	t.Run("AppendKeepsTableWhenNil", func(t *testing.T) {
		table := types.Table{{"name": "x"}}
		reply := types.NewMessage(types.AssistantSender, types.KindInternalKnowledge, "answer")
		updated, err := store.Append(ctx, AppendRequest{ConversationID: conv.ID, Message: reply, OutputTable: table})
		require.NoError(t, err)
		assert.Len(t, updated.Messages, 2)
		assert.Equal(t, table, updated.OutputTable)

		updated, err = store.Append(ctx, AppendRequest{ConversationID: conv.ID, Message: types.NewMessage("alice", types.KindQuery, "thanks")})
		require.NoError(t, err)
		assert.Len(t, updated.Messages, 3)
		assert.Equal(t, table, updated.OutputTable)
		assert.False(t, updated.LastUpdated.Before(conv.LastUpdated))
	})

	t.Run("ReturnedCopiesAreIsolated", func(t *testing.T) {
		got, err := store.Get(ctx, conv.ID)
		require.NoError(t, err)
		got.Messages[0].Content = "mutated"
		got.OutputTable[0]["name"] = "mutated"

		again, err := store.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, "hello", again.Messages[0].Content)
		assert.Equal(t, "x", again.OutputTable[0]["name"])
	})

	t.Run("UnknownID", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.Append(ctx, AppendRequest{ConversationID: "missing"})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.SetSummary(ctx, "missing", "t", "s"), ErrNotFound)
	})

	t.Run("ListByOwner", func(t *testing.T) {
		_, err := store.Create(ctx, &types.Conversation{OwnerID: "u2"})
		require.NoError(t, err)
		second, err := store.Create(ctx, &types.Conversation{OwnerID: "u1"})
		require.NoError(t, err)

		list, err := store.ListByOwner(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, conv.ID, list[0].ID)
		assert.Equal(t, second.ID, list[1].ID)
	})

	t.Run("SetSummary", func(t *testing.T) {
		require.NoError(t, store.SetSummary(ctx, conv.ID, "Greetings", "user said hello"))
		got, err := store.Get(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, "Greetings", got.Title)
		assert.Equal(t, "user said hello", got.Summary)
	})

	t.Run("Closed", func(t *testing.T) {
		s := NewMemoryConversationStore()
		require.NoError(t, s.Close())
		assert.ErrorIs(t, s.Ping(ctx), ErrStoreClosed)
		_, err := s.Create(ctx, &types.Conversation{OwnerID: "u1"})
		assert.ErrorIs(t, err, ErrStoreClosed)
	})
}

func TestMemoryDocumentStore_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocumentStore()

	require.NoError(t, store.UpsertDocument(ctx, types.Document{OwnerID: "u1", Name: "a.pdf", Summary: "v1"}))
	first, err := store.GetDocument(ctx, "u1", "a.pdf")
	require.NoError(t, err)

	require.NoError(t, store.UpsertDocument(ctx, types.Document{OwnerID: "u1", Name: "a.pdf", Summary: "v2", Highlights: []string{"h"}}))
	require.NoError(t, store.UpsertDocument(ctx, types.Document{OwnerID: "u1", Name: "b.pdf", Summary: "other"}))
	require.NoError(t, store.UpsertDocument(ctx, types.Document{OwnerID: "u2", Name: "a.pdf", Summary: "foreign"}))

	docs, err := store.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.pdf", docs[0].Name)
	assert.Equal(t, "v2", docs[0].Summary)
	assert.Equal(t, first.ID, docs[0].ID)
	assert.Equal(t, []string{"h"}, docs[0].Highlights)

	assert.ErrorIs(t, store.UpsertDocument(ctx, types.Document{Name: "x"}), ErrInvalidInput)
	_, err = store.GetDocument(ctx, "u3", "a.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryMemoryStore()

	_, err := store.GetByConversation(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)

	saved, err := store.Save(ctx, &types.Memory{ConversationID: "c1", OwnerID: "u1", Summary: "s1", LastUpdateCount: 3})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	saved.Summary = "s2"
	saved.LastUpdateCount = 6
	_, err = store.Save(ctx, saved)
	require.NoError(t, err)

	got, err := store.GetByConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "s2", got.Summary)
	assert.Equal(t, 6, got.LastUpdateCount)

	_, err = store.Save(ctx, &types.Memory{ID: "ghost", ConversationID: "c9"})
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNewStores(t *testing.T) {
	stores, err := NewStores(context.Background(), DefaultStoreConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, stores.Ping(context.Background()))
	require.NoError(t, stores.Close())
	assert.ErrorIs(t, stores.Ping(context.Background()), ErrStoreClosed)

	_, err = NewStores(context.Background(), StoreConfig{Type: "file"}, nil)
	assert.Error(t, err)
}

func TestConversationDocConversion(t *testing.T) {
	msg := types.NewMessage(types.AssistantSender, types.KindInternalKnowledge, "answer")
	msg.Reasoning = []types.ReasoningStep{{SubQueryText: "q", StructuredHint: "A, B", ComposedContext: "ctx"}}
	msg.Table = types.Table{{"k": "v"}}
	conv := &types.Conversation{ID: "c1", OwnerID: "u1", Messages: []types.Message{msg}}

	doc := toConversationDoc(conv)
	assert.Equal(t, "internal_knowledge", doc.Messages[0].Type)
	assert.Equal(t, "A, B", doc.Messages[0].Reasoning[0].Properties)
	assert.NotNil(t, doc.OutputTable)

	back := fromConversationDoc(doc)
	assert.Equal(t, conv.Messages, back.Messages)
	assert.Empty(t, back.OutputTable)
}
