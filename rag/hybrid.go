package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/cortex/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EvidenceRetriever is one owner-scoped retrieval path.
type EvidenceRetriever interface {
	Retrieve(ctx context.Context, ownerID, query string) ([]types.EvidenceItem, error)
}

// SparseSearcher is the sparse retrieval path; threshold <= 0 uses its default.
type SparseSearcher interface {
	Retrieve(ctx context.Context, collectionID, query string, threshold float64) ([]types.EvidenceItem, error)
}

// Evidence is the retrieval result for one sub-query. Vector and graph
// contexts are kept apart; no scores are compared across paths.
type Evidence struct {
	VectorContext         string               `json:"vector_context"`
	KnowledgeGraphContext string               `json:"knowledge_graph_context"`
	SparseContext         string               `json:"sparse_context"`
	Items                 []types.EvidenceItem `json:"items"`
}

// Text concatenates the non-empty contexts.
func (e *Evidence) Text() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, s := range []string{e.VectorContext, e.KnowledgeGraphContext, e.SparseContext} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// HybridConfig 混合检索配置
type HybridConfig struct {
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// DefaultHybridConfig 每批 4 个子查询
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{BatchSize: 4}
}

// Engine runs the vector, graph and sparse paths for each sub-query.
type Engine struct {
	vector   EvidenceRetriever
	graph    EvidenceRetriever
	sparse   SparseSearcher
	cfg      HybridConfig
	observer Observer
	logger   *zap.Logger
}

// NewEngine 创建混合检索引擎
func NewEngine(vector, graph EvidenceRetriever, sparse SparseSearcher, cfg HybridConfig, observer Observer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultHybridConfig().BatchSize
	}
	return &Engine{
		vector:   vector,
		graph:    graph,
		sparse:   sparse,
		cfg:      cfg,
		observer: observerOrNop(observer),
		logger:   logger.With(zap.String("component", "hybrid_retrieval")),
	}
}

// Retrieve runs the three paths concurrently. The graph path queries with
// the structured hint when present. A graph failure keeps its own error
// code; the other paths fail as RetrievalError.
func (e *Engine) Retrieve(ctx context.Context, ownerID string, sq types.SubQuery) (*Evidence, error) {
	ctx, span := tracer.Start(ctx, "rag.retrieve", trace.WithAttributes(
		attribute.String("owner.id", ownerID),
		attribute.String("sub_query", sq.Text),
	))
	defer span.End()

	graphQuery := strings.TrimSpace(sq.StructuredHint)
	if graphQuery == "" {
		graphQuery = sq.Text
	}

	var vectorItems, graphItems, sparseItems []types.EvidenceItem
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		items, err := e.observe("vector", func() ([]types.EvidenceItem, error) {
			return e.vector.Retrieve(egCtx, ownerID, sq.Text)
		})
		if err != nil {
			return types.NewRetrievalError("vector retrieval failed", err)
		}
		vectorItems = items
		return nil
	})
	eg.Go(func() error {
		items, err := e.observe("graph", func() ([]types.EvidenceItem, error) {
			return e.graph.Retrieve(egCtx, ownerID, graphQuery)
		})
		if err != nil {
			if types.IsErrorCode(err, types.ErrKnowledgeGraphRetrieval) {
				return err
			}
			return types.NewKnowledgeGraphRetrieverError("graph retrieval failed", err)
		}
		graphItems = items
		return nil
	})
	eg.Go(func() error {
		items, err := e.observe("sparse", func() ([]types.EvidenceItem, error) {
			return e.sparse.Retrieve(egCtx, ownerID, sq.Text, 0)
		})
		if err != nil {
			return types.NewRetrievalError("sparse retrieval failed", err)
		}
		sparseItems = items
		return nil
	})
	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ev := &Evidence{
		VectorContext:         JoinTexts(vectorItems),
		KnowledgeGraphContext: JoinTexts(graphItems),
		SparseContext:         JoinTexts(sparseItems),
	}
	ev.Items = make([]types.EvidenceItem, 0, len(vectorItems)+len(graphItems)+len(sparseItems))
	ev.Items = append(ev.Items, vectorItems...)
	ev.Items = append(ev.Items, graphItems...)
	ev.Items = append(ev.Items, sparseItems...)

	span.SetAttributes(
		attribute.Int("vector.items", len(vectorItems)),
		attribute.Int("graph.items", len(graphItems)),
		attribute.Int("sparse.items", len(sparseItems)),
	)
	return ev, nil
}

func (e *Engine) observe(path string, fn func() ([]types.EvidenceItem, error)) ([]types.EvidenceItem, error) {
	start := time.Now()
	items, err := fn()
	e.observer.ObserveRetrieval(path, err == nil, time.Since(start))
	return items, err
}

// RetrieveAll retrieves every sub-query, BatchSize at a time. All calls of
// a batch finish; if any failed the batch is discarded and no further
// batches start. Output order equals input order.
func (e *Engine) RetrieveAll(ctx context.Context, ownerID string, subQueries []types.SubQuery) ([]*Evidence, error) {
	out := make([]*Evidence, 0, len(subQueries))
	for start := 0; start < len(subQueries); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(subQueries))
		batch := subQueries[start:end]

		results := make([]*Evidence, len(batch))
		errs := make([]error, len(batch))
		var eg errgroup.Group
		for i, sq := range batch {
			eg.Go(func() error {
				results[i], errs[i] = e.Retrieve(ctx, ownerID, sq)
				return nil
			})
		}
		_ = eg.Wait()

		for i, err := range errs {
			if err == nil {
				continue
			}
			e.logger.Warn("retrieval batch aborted",
				zap.String("owner", ownerID),
				zap.Int("batch_start", start),
				zap.String("sub_query", batch[i].Text),
				zap.Error(err))
			if types.IsErrorCode(err, types.ErrKnowledgeGraphRetrieval) {
				return nil, err
			}
			return nil, types.NewRetrievalError(fmt.Sprintf("retrieval failed for sub-query %q", batch[i].Text), err)
		}
		out = append(out, results...)
	}
	return out, nil
}

// SparseRetrieve queries one sparse collection and returns the hit ids and
// their joined text.
func (e *Engine) SparseRetrieve(ctx context.Context, indexName, query string, threshold float64) ([]string, string, error) {
	items, err := e.observe("sparse", func() ([]types.EvidenceItem, error) {
		return e.sparse.Retrieve(ctx, indexName, query, threshold)
	})
	if err != nil {
		return nil, "", types.NewRetrievalError("sparse retrieval failed", err)
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids, JoinTexts(items), nil
}
