package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/BaSui01/cortex/rag/docstore"
	"github.com/BaSui01/cortex/rag/vectorstore"
	"github.com/BaSui01/cortex/testutil/mocks"
	"github.com/BaSui01/cortex/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	vectorPageOne = "Go is a statically typed language."
	vectorPageTwo = "Rust guarantees memory safety."
	featuresReply = `{"summary":"Two languages.","highlights":["a","b","c","d","e","f","g"],"document_type":"notes"}`
)

func vectorLLM() *mocks.MockProvider {
	return mocks.NewMockProvider().
		WithRoute("Summarize the following document", "A page summary.").
		WithRoute("hypothetical questions", `{"questions":["Q1?","Q2?","Q3?","Q4?"]}`).
		WithRoute("expert summarizer", featuresReply)
}

type vectorFixture struct {
	vectors  *vectorstore.MemoryStore
	docs     *docstore.MemoryStore
	embedder *mocks.MockEmbedder
	index    *VectorIndex
}

func newVectorFixture(provider *mocks.MockProvider) *vectorFixture {
	f := &vectorFixture{
		vectors:  vectorstore.NewMemoryStore(zap.NewNop()),
		docs:     docstore.NewMemoryStore(),
		embedder: mocks.NewMockEmbedder(),
	}
	f.index = NewVectorIndex(f.vectors, f.docs, provider, f.embedder, VectorIndexConfig{}, zap.NewNop())
	return f
}

func TestVectorIndex_Upsert(t *testing.T) {
	f := newVectorFixture(vectorLLM())
	ctx := context.Background()

	_, err := f.index.Load(ctx, "alice")
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	res, err := f.index.Upsert(ctx, "alice", types.ParsedDocument{Name: "langs.md", Content: vectorPageOne + types.PageSeparator + vectorPageTwo})
	require.NoError(t, err)

	// 每页：1 个子块 + 1 个摘要 + 3 个问题
	assert.Equal(t, 10, res.Nodes)
	assert.Equal(t, 10, f.vectors.Count("alice"))
	require.NotNil(t, res.Features)
	assert.Equal(t, "Two languages.", res.Features.Summary)
	assert.Equal(t, "notes", res.Features.DocumentType)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, res.Features.Highlights)

	coll, err := f.index.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", coll.Name)

	summaries, err := f.docs.ListByFile(ctx, "alice", "langs.md", docstore.RecordTypeSummary)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "A page summary.", summaries[0].Content)

	pages, err := f.docs.ListByFile(ctx, "alice", "langs.md", docstore.RecordTypePage)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, vectorPageOne, pages[0].Content)
	assert.Equal(t, pages[0].ID, pages[0].DocID)
}

func TestVectorIndex_LLMFailureWritesNothing(t *testing.T) {
	// 错误路由需要优先匹配
	provider := mocks.NewMockProvider().
		WithRouteError("Rust guarantees", errors.New("rate limited")).
		WithRoute("Summarize the following document", "A page summary.").
		WithRoute("hypothetical questions", `{"questions":["Q1?"]}`)
	f := newVectorFixture(provider)

	_, err := f.index.Upsert(context.Background(), "alice", types.ParsedDocument{Name: "langs.md", Content: vectorPageOne + types.PageSeparator + vectorPageTwo})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, 0, f.vectors.Count("alice"))

	recs, err := f.docs.ListByFile(context.Background(), "alice", "langs.md", docstore.RecordTypePage)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestVectorRetriever_ParentsByDocID(t *testing.T) {
	f := newVectorFixture(vectorLLM())
	ctx := context.Background()
	_, err := f.index.Upsert(ctx, "alice", types.ParsedDocument{Name: "langs.md", Content: vectorPageOne + types.PageSeparator + vectorPageTwo})
	require.NoError(t, err)

	r := NewVectorRetriever(f.vectors, f.docs, f.embedder, VectorRetrieverConfig{}, zap.NewNop())
	items, err := r.Retrieve(ctx, "alice", vectorPageOne)
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.Equal(t, vectorPageOne, items[0].Text)
	assert.InDelta(t, 1.0, items[0].Score, 1e-9)

	seen := map[string]bool{}
	for _, it := range items {
		assert.GreaterOrEqual(t, it.Score, 0.7)
		assert.False(t, seen[it.ID], "duplicate parent %s", it.ID)
		seen[it.ID] = true
		assert.Equal(t, types.SourceVector, it.Source)
	}

	items, err = r.Retrieve(ctx, "nobody", vectorPageOne)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestVectorRetriever_ThresholdDropsWeakHits(t *testing.T) {
	vectors := vectorstore.NewMemoryStore(zap.NewNop())
	docs := docstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, docs.Put(ctx, []docstore.Record{
		{ID: "p1", OwnerID: "o", FileName: "f", DocID: "p1", RecordType: docstore.RecordTypePage, Content: "parent one"},
		{ID: "p2", OwnerID: "o", FileName: "f", DocID: "p2", RecordType: docstore.RecordTypePage, Content: "parent two"},
	}))
	require.NoError(t, vectors.Upsert(ctx, "o", []vectorstore.Record{
		{ID: "c1", Values: []float64{1, 0}, Text: "child a", Metadata: map[string]string{MetaDocID: "p1"}},
		{ID: "c2", Values: []float64{0.95, 0.05}, Text: "child b", Metadata: map[string]string{MetaDocID: "p1"}},
		{ID: "c3", Values: []float64{0.1, 1}, Text: "child c", Metadata: map[string]string{MetaDocID: "p2"}},
	}))
	embedder := mocks.NewMockEmbedder().WithVector("q", []float64{1, 0})

	items, err := NewVectorRetriever(vectors, docs, embedder, DefaultVectorRetrieverConfig(), nil).Retrieve(ctx, "o", "q")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ID)
	assert.Equal(t, "parent one", items[0].Text)
}

func TestVectorIndex_DocumentColumn(t *testing.T) {
	f := newVectorFixture(vectorLLM())
	ctx := context.Background()

	_, err := f.index.DocumentColumn(ctx, "alice", "langs.md", "colour")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))

	v, err := f.index.DocumentColumn(ctx, "alice", "langs.md", ColumnSummary)
	require.NoError(t, err)
	assert.Equal(t, "", v)
	v, err = f.index.DocumentColumn(ctx, "alice", "langs.md", ColumnHighlights)
	require.NoError(t, err)
	assert.Equal(t, []string{}, v)

	_, err = f.index.Upsert(ctx, "alice", types.ParsedDocument{Name: "langs.md", Content: vectorPageOne})
	require.NoError(t, err)

	v, err = f.index.DocumentColumn(ctx, "alice", "langs.md", ColumnDocumentType)
	require.NoError(t, err)
	assert.Equal(t, "notes", v)
	v, err = f.index.DocumentColumn(ctx, "alice", "langs.md", ColumnHighlights)
	require.NoError(t, err)
	assert.Len(t, v, 5)
}
