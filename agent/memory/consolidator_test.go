package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BaSui01/cortex/agent/persistence"
	"github.com/BaSui01/cortex/llm/tokenizer"
	"github.com/BaSui01/cortex/rag/vectorstore"
	"github.com/BaSui01/cortex/testutil/mocks"
	"github.com/BaSui01/cortex/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const updateJSON = `{"updated_summary":"User asked about X twice.","recall_memory":"User works on X.","title":"About X"}`

type fixture struct {
	provider      *mocks.MockProvider
	vectors       *vectorstore.MemoryStore
	memories      *persistence.MemoryMemoryStore
	conversations *persistence.MemoryConversationStore
	consolidator  *Consolidator
}

func newFixture(t *testing.T, response string) *fixture {
	t.Helper()
	f := &fixture{
		provider:      mocks.NewMockProvider().WithResponse(response),
		vectors:       vectorstore.NewMemoryStore(zap.NewNop()),
		memories:      persistence.NewMemoryMemoryStore(),
		conversations: persistence.NewMemoryConversationStore(),
	}
	f.consolidator = NewConsolidator(Deps{
		Provider:      f.provider,
		Embedder:      mocks.NewMockEmbedder(),
		Vectors:       f.vectors,
		Memories:      f.memories,
		Conversations: f.conversations,
		Tokenizer:     tokenizer.WordTokenizer{},
	}, DefaultConfig(), zap.NewNop())
	return f
}

func (f *fixture) conversation(t *testing.T, n int) *types.Conversation {
	t.Helper()
	conv := &types.Conversation{OwnerID: "u1"}
	for i := 0; i < n; i++ {
		sender := "u1"
		if i%2 == 1 {
			sender = types.AssistantSender
		}
		conv.Messages = append(conv.Messages, types.NewMessage(sender, types.KindQuery, "message about X"))
	}
	created, err := f.conversations.Create(context.Background(), conv)
	require.NoError(t, err)
	return created
}

func TestConsolidate_NoneBelowThreshold(t *testing.T) {
	f := newFixture(t, updateJSON)
	conv := f.conversation(t, 2)

	action, mem, err := f.consolidator.Consolidate(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, action)
	assert.Nil(t, mem)
	assert.Zero(t, f.provider.GetCallCount())
}

func TestConsolidate_CreateThenUpdate(t *testing.T) {
	f := newFixture(t, updateJSON)
	conv := f.conversation(t, 3)
	ctx := context.Background()

	action, mem, err := f.consolidator.Consolidate(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, action)
	assert.Equal(t, 3, mem.LastUpdateCount)
	assert.Equal(t, "User asked about X twice.", mem.Summary)
	assert.Equal(t, "About X", mem.Title)
	assert.Empty(t, mem.Highlights)
	assert.NotEmpty(t, mem.ID)

	got, err := f.conversations.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "About X", got.Title)
	assert.Equal(t, "User asked about X twice.", got.Summary)
	assert.Equal(t, 1, f.vectors.Count("memory"))

	// 新增 2 条不触发，新增 3 条触发更新
	conv.Messages = append(conv.Messages, types.NewMessage("u1", types.KindQuery, "a"), types.NewMessage(types.AssistantSender, types.KindFromConversation, "b"))
	action, _, err = f.consolidator.Consolidate(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, action)

	conv.Messages = append(conv.Messages, types.NewMessage("u1", types.KindQuery, "newest question"))
	action, mem, err = f.consolidator.Consolidate(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, action)
	assert.Equal(t, 6, mem.LastUpdateCount)

	prompt := f.provider.GetLastCall().Request.Messages[1].Content
	assert.Contains(t, prompt, "Current Summary: \nUser asked about X twice.")
	assert.Contains(t, prompt, "Human: newest question")
	assert.NotContains(t, prompt, "message about X")

	system := f.provider.GetLastCall().Request.Messages[0].Content
	assert.Contains(t, system, "<recall_memory>\nUser works on X.\n</recall_memory>")

	// 同一对话的召回向量被覆盖
	assert.Equal(t, 1, f.vectors.Count("memory"))
	mems, err := f.memories.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mems, 1)
}

func TestConsolidate_RecallScopedToOwner(t *testing.T) {
	f := newFixture(t, updateJSON)
	ctx := context.Background()
	require.NoError(t, f.vectors.Upsert(ctx, "memory", []vectorstore.Record{{
		ID:       "u2/other",
		Values:   make([]float64, mocks.NewMockEmbedder().Dimensions()),
		Text:     "secret of u2",
		Metadata: map[string]string{MetaOwner: "u2", MetaType: TypeRecall},
	}}))

	_, _, err := f.consolidator.Consolidate(ctx, f.conversation(t, 3))
	require.NoError(t, err)
	system := f.provider.GetLastCall().Request.Messages[0].Content
	assert.NotContains(t, system, "secret of u2")
}

func TestConsolidate_InvalidOutput(t *testing.T) {
	f := newFixture(t, `{"title":"only"}`)
	conv := f.conversation(t, 3)

	action, _, err := f.consolidator.Consolidate(context.Background(), conv)
	require.Error(t, err)
	assert.Equal(t, ActionCreate, action)
	assert.True(t, types.IsErrorCode(err, types.ErrMemoryConsolidation))

	_, gerr := f.memories.GetByConversation(context.Background(), conv.ID)
	assert.True(t, errors.Is(gerr, persistence.ErrNotFound))
}

func TestConsolidate_TruncatesTranscript(t *testing.T) {
	f := newFixture(t, updateJSON)
	f.consolidator.cfg.MaxTokens = 4
	conv := f.conversation(t, 3)

	_, _, err := f.consolidator.Consolidate(context.Background(), conv)
	require.NoError(t, err)
	prompt := f.provider.GetLastCall().Request.Messages[1].Content
	transcript := strings.TrimPrefix(strings.SplitN(prompt, "\n\nCurrent Summary", 2)[0], "Conversation:\n")
	n, err := tokenizer.WordTokenizer{}.CountTokens(transcript)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 4)
}

func TestRenderTranscript(t *testing.T) {
	msgs := []types.Message{
		types.NewMessage("u1", types.KindQuery, "hi"),
		types.NewMessage(types.AssistantSender, types.KindFromConversation, "hello"),
	}
	assert.Equal(t, "Human: hi\nAI: hello", RenderTranscript(msgs))
	assert.Equal(t, "u1/c1", RecallPath("u1", "c1"))
}
