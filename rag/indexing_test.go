package rag

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/cortex/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

// fakeIndexer 以函数字段驱动 Upsert。
type fakeIndexer struct {
	source   types.IndexSource
	upsertFn func(ctx context.Context, collectionID string, doc types.ParsedDocument) (UpsertResult, error)
	calls    atomic.Int32
}

func (f *fakeIndexer) Source() types.IndexSource { return f.source }

func (f *fakeIndexer) Upsert(ctx context.Context, collectionID string, doc types.ParsedDocument) (UpsertResult, error) {
	f.calls.Add(1)
	return f.upsertFn(ctx, collectionID, doc)
}

func okIndexer(src types.IndexSource, features *types.DocumentFeatures) *fakeIndexer {
	return &fakeIndexer{source: src, upsertFn: func(context.Context, string, types.ParsedDocument) (UpsertResult, error) {
		return UpsertResult{Nodes: 2, Features: features}, nil
	}}
}

func failingIndexer(src types.IndexSource, err error) *fakeIndexer {
	return &fakeIndexer{source: src, upsertFn: func(context.Context, string, types.ParsedDocument) (UpsertResult, error) {
		return UpsertResult{}, err
	}}
}

type fakeDocuments struct {
	mu   sync.Mutex
	docs []types.Document
	err  error
}

func (f *fakeDocuments) UpsertDocument(_ context.Context, doc types.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, doc)
	return nil
}

type recordingObserver struct {
	mu    sync.Mutex
	tasks map[string]bool
}

func (r *recordingObserver) ObserveIndexTask(source string, success bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tasks == nil {
		r.tasks = map[string]bool{}
	}
	r.tasks[source] = success
}

func (r *recordingObserver) ObserveRetrieval(string, bool, time.Duration) {}

var testFeatures = &types.DocumentFeatures{
	Summary:      "A short note about two topics.",
	Highlights:   []string{"topic one", "topic two"},
	DocumentType: "note",
}

const twoParagraphs = "First paragraph about X.\n\nSecond paragraph about Y."

func TestOrchestrator_SparseFailsVectorSucceeds(t *testing.T) {
	docs := &fakeDocuments{}
	obs := &recordingObserver{}
	o := NewOrchestrator([]Indexer{
		okIndexer(types.SourceGraph, nil),
		failingIndexer(types.SourceSparse, errors.New("disk full")),
		okIndexer(types.SourceVector, testFeatures),
	}, docs, obs, zap.NewNop())

	out, err := o.Index(context.Background(), types.ParsedDocument{Name: "notes.md", Content: twoParagraphs}, "u1")
	require.NoError(t, err)
	assert.True(t, out.Success)
	require.Len(t, docs.docs, 1)
	assert.Equal(t, "A short note about two topics.", docs.docs[0].Summary)
	assert.Equal(t, "u1", docs.docs[0].OwnerID)
	assert.Equal(t, "notes.md", docs.docs[0].Name)
	assert.Equal(t, "note", docs.docs[0].DocType)
	require.NotNil(t, out.Document)

	require.Len(t, out.Failures, 1)
	assert.Equal(t, types.ErrBackendIndex, out.Failures[0].Code)
	assert.Contains(t, out.Failures[0].Error(), "sparse")

	assert.Equal(t, map[string]bool{"graph": true, "sparse": false, "vector": true}, obs.tasks)
}

func TestOrchestrator_VectorFailureWritesNothing(t *testing.T) {
	docs := &fakeDocuments{}
	o := NewOrchestrator([]Indexer{
		okIndexer(types.SourceGraph, nil),
		okIndexer(types.SourceSparse, nil),
		failingIndexer(types.SourceVector, errors.New("pinecone 503")),
	}, docs, nil, nil)

	out, err := o.Index(context.Background(), types.ParsedDocument{Name: "a.md", Content: "content"}, "u1")
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Nil(t, out.Document)
	assert.Empty(t, docs.docs)
	require.Len(t, out.Failures, 1)
	assert.Contains(t, out.Failures[0].Error(), "vector")
}

func TestOrchestrator_AllFail(t *testing.T) {
	docs := &fakeDocuments{}
	boom := errors.New("boom")
	o := NewOrchestrator([]Indexer{
		failingIndexer(types.SourceGraph, boom),
		failingIndexer(types.SourceSparse, boom),
		failingIndexer(types.SourceVector, boom),
	}, docs, nil, nil)

	out, err := o.Index(context.Background(), types.ParsedDocument{Name: "a.md", Content: "content"}, "u1")
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Len(t, out.Failures, 3)
	assert.Empty(t, docs.docs)
}

func TestOrchestrator_EmptyContentSkipsBackends(t *testing.T) {
	vector := okIndexer(types.SourceVector, testFeatures)
	o := NewOrchestrator([]Indexer{vector}, &fakeDocuments{}, nil, nil)

	_, err := o.Index(context.Background(), types.ParsedDocument{Name: "blank.md", Content: " \n\t"}, "u1")
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrParse))
	assert.Zero(t, vector.calls.Load())
}

func TestOrchestrator_PanicBecomesFailure(t *testing.T) {
	docs := &fakeDocuments{}
	panicking := &fakeIndexer{source: types.SourceGraph, upsertFn: func(context.Context, string, types.ParsedDocument) (UpsertResult, error) {
		panic("nil graph")
	}}
	o := NewOrchestrator([]Indexer{panicking, okIndexer(types.SourceVector, testFeatures)}, docs, nil, nil)

	out, err := o.Index(context.Background(), types.ParsedDocument{Name: "a.md", Content: "content"}, "u1")
	require.NoError(t, err)
	assert.True(t, out.Success)
	require.Len(t, out.Failures, 1)
	assert.Contains(t, out.Outcomes[types.SourceGraph].Err.Error(), "panic in graph backend")
}

func TestOrchestrator_SiblingsNotCancelled(t *testing.T) {
	var sparseSawCancel atomic.Bool
	slow := &fakeIndexer{source: types.SourceSparse, upsertFn: func(ctx context.Context, _ string, _ types.ParsedDocument) (UpsertResult, error) {
		time.Sleep(20 * time.Millisecond)
		sparseSawCancel.Store(ctx.Err() != nil)
		return UpsertResult{Nodes: 1}, nil
	}}
	o := NewOrchestrator([]Indexer{
		failingIndexer(types.SourceGraph, errors.New("fast failure")),
		slow,
		okIndexer(types.SourceVector, testFeatures),
	}, &fakeDocuments{}, nil, nil)

	out, err := o.Index(context.Background(), types.ParsedDocument{Name: "a.md", Content: "content"}, "u1")
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.False(t, sparseSawCancel.Load())
	assert.Equal(t, 1, out.Outcomes[types.SourceSparse].Nodes)
}

func TestOrchestrator_DocumentWriteFailure(t *testing.T) {
	o := NewOrchestrator([]Indexer{okIndexer(types.SourceVector, testFeatures)},
		&fakeDocuments{err: errors.New("mongo down")}, nil, nil)

	out, err := o.Index(context.Background(), types.ParsedDocument{Name: "a.md", Content: "content"}, "u1")
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrInternalError))
	assert.False(t, out.Success)
}

func TestSucceeded_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		outcomes := Outcomes{}
		for _, src := range types.AllSources() {
			if !rapid.Bool().Draw(t, "present-"+string(src)) {
				continue
			}
			out := Outcome{Kind: src}
			if rapid.Bool().Draw(t, "fail-"+string(src)) {
				out.Err = errors.New("failed")
			}
			if rapid.Bool().Draw(t, "features-"+string(src)) {
				out.Features = &types.DocumentFeatures{}
			}
			outcomes[src] = out
		}

		v, ok := outcomes[types.SourceVector]
		want := ok && v.Err == nil && v.Features != nil
		if got := Succeeded(outcomes); got != want {
			t.Fatalf("Succeeded = %v, want %v for %+v", got, want, outcomes)
		}
	})
}
