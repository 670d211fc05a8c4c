package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/cortex/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type retrieverFunc func(ctx context.Context, ownerID, query string) ([]types.EvidenceItem, error)

func (f retrieverFunc) Retrieve(ctx context.Context, ownerID, query string) ([]types.EvidenceItem, error) {
	return f(ctx, ownerID, query)
}

type sparseFunc func(ctx context.Context, collectionID, query string, threshold float64) ([]types.EvidenceItem, error)

func (f sparseFunc) Retrieve(ctx context.Context, collectionID, query string, threshold float64) ([]types.EvidenceItem, error) {
	return f(ctx, collectionID, query, threshold)
}

func echoRetriever(src types.IndexSource) retrieverFunc {
	return func(_ context.Context, _ string, query string) ([]types.EvidenceItem, error) {
		return []types.EvidenceItem{{ID: string(src) + ":" + query, Text: string(src) + " says " + query, Score: 0.8, Source: src}}, nil
	}
}

func noSparse() sparseFunc {
	return func(context.Context, string, string, float64) ([]types.EvidenceItem, error) { return nil, nil }
}

func TestEngine_RetrieveSeparatesPaths(t *testing.T) {
	var graphQuery string
	graph := retrieverFunc(func(_ context.Context, _ string, q string) ([]types.EvidenceItem, error) {
		graphQuery = q
		return []types.EvidenceItem{{ID: "g1", Text: "fact", Score: 1, Source: types.SourceGraph}}, nil
	})
	sparse := sparseFunc(func(_ context.Context, coll, q string, threshold float64) ([]types.EvidenceItem, error) {
		assert.Equal(t, "u1", coll)
		assert.Zero(t, threshold)
		return []types.EvidenceItem{{ID: "s1", Text: "keyword hit", Score: 0.5}}, nil
	})
	e := NewEngine(echoRetriever(types.SourceVector), graph, sparse, HybridConfig{}, nil, zap.NewNop())

	ev, err := e.Retrieve(context.Background(), "u1", types.SubQuery{Text: "What is X?", StructuredHint: "X, Y"})
	require.NoError(t, err)
	assert.Equal(t, "X, Y", graphQuery)
	assert.Equal(t, "vector says What is X?", ev.VectorContext)
	assert.Equal(t, "fact", ev.KnowledgeGraphContext)
	assert.Equal(t, "keyword hit", ev.SparseContext)
	assert.Len(t, ev.Items, 3)
	assert.Equal(t, "vector says What is X?\n\nfact\n\nkeyword hit", ev.Text())

	_, err = e.Retrieve(context.Background(), "u1", types.SubQuery{Text: "plain"})
	require.NoError(t, err)
	assert.Equal(t, "plain", graphQuery)
}

func TestEvidence_TextSkipsEmpty(t *testing.T) {
	assert.Equal(t, "", (*Evidence)(nil).Text())
	assert.Equal(t, "only graph", (&Evidence{KnowledgeGraphContext: " only graph "}).Text())
}

func TestEngine_ErrorCodes(t *testing.T) {
	graphErr := retrieverFunc(func(context.Context, string, string) ([]types.EvidenceItem, error) {
		return nil, types.NewKnowledgeGraphRetrieverError("no graph", ErrCollectionNotFound)
	})
	e := NewEngine(echoRetriever(types.SourceVector), graphErr, noSparse(), HybridConfig{}, nil, nil)
	_, err := e.Retrieve(context.Background(), "u1", types.SubQuery{Text: "q"})
	assert.True(t, types.IsErrorCode(err, types.ErrKnowledgeGraphRetrieval))

	vectorErr := retrieverFunc(func(context.Context, string, string) ([]types.EvidenceItem, error) {
		return nil, errors.New("pinecone down")
	})
	e = NewEngine(vectorErr, echoRetriever(types.SourceGraph), noSparse(), HybridConfig{}, nil, nil)
	_, err = e.Retrieve(context.Background(), "u1", types.SubQuery{Text: "q"})
	assert.True(t, types.IsErrorCode(err, types.ErrRetrieval))
}

func TestEngine_RetrieveAllKeepsOrder(t *testing.T) {
	var inFlight, peak atomic.Int32
	vector := retrieverFunc(func(_ context.Context, _ string, q string) ([]types.EvidenceItem, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return []types.EvidenceItem{{ID: q, Text: q, Score: 0.8}}, nil
	})
	e := NewEngine(vector, echoRetriever(types.SourceGraph), noSparse(), DefaultHybridConfig(), nil, nil)

	var sqs []types.SubQuery
	for i := 0; i < 10; i++ {
		sqs = append(sqs, types.SubQuery{Text: fmt.Sprintf("q%d", i)})
	}
	evs, err := e.RetrieveAll(context.Background(), "u1", sqs)
	require.NoError(t, err)
	require.Len(t, evs, 10)
	for i, ev := range evs {
		assert.Equal(t, fmt.Sprintf("q%d", i), ev.VectorContext)
	}
	assert.LessOrEqual(t, peak.Load(), int32(4))
}

func TestEngine_RetrieveAllAbortsBatch(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	vector := retrieverFunc(func(_ context.Context, _ string, q string) ([]types.EvidenceItem, error) {
		mu.Lock()
		seen = append(seen, q)
		mu.Unlock()
		if q == "q5" {
			return nil, errors.New("timeout")
		}
		return nil, nil
	})
	e := NewEngine(vector, echoRetriever(types.SourceGraph), noSparse(), DefaultHybridConfig(), nil, nil)

	var sqs []types.SubQuery
	for i := 0; i < 12; i++ {
		sqs = append(sqs, types.SubQuery{Text: fmt.Sprintf("q%d", i)})
	}
	evs, err := e.RetrieveAll(context.Background(), "u1", sqs)
	require.Error(t, err)
	assert.Nil(t, evs)
	assert.True(t, types.IsErrorCode(err, types.ErrRetrieval))

	// 第二批的 4 个都执行完，第三批未启动
	assert.Len(t, seen, 8)
	for _, q := range []string{"q8", "q9", "q10", "q11"} {
		assert.NotContains(t, seen, q)
	}
}

func TestEngine_RetrieveAllGraphCodeKept(t *testing.T) {
	graphErr := retrieverFunc(func(context.Context, string, string) ([]types.EvidenceItem, error) {
		return nil, types.NewKnowledgeGraphRetrieverError("no graph", nil)
	})
	e := NewEngine(echoRetriever(types.SourceVector), graphErr, noSparse(), DefaultHybridConfig(), nil, nil)
	_, err := e.RetrieveAll(context.Background(), "u1", []types.SubQuery{{Text: "q"}})
	assert.True(t, types.IsErrorCode(err, types.ErrKnowledgeGraphRetrieval))
}

func TestEngine_SparseRetrieve(t *testing.T) {
	sparse := sparseFunc(func(_ context.Context, coll, q string, threshold float64) ([]types.EvidenceItem, error) {
		assert.Equal(t, "index-a", coll)
		assert.Equal(t, 0.6, threshold)
		return []types.EvidenceItem{{ID: "n1", Text: "one"}, {ID: "n2", Text: "two"}}, nil
	})
	e := NewEngine(echoRetriever(types.SourceVector), echoRetriever(types.SourceGraph), sparse, HybridConfig{}, nil, nil)

	ids, text, err := e.SparseRetrieve(context.Background(), "index-a", "q", 0.6)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2"}, ids)
	assert.Equal(t, "one two", text)
}
