package reasoning

import (
	"context"
	"strings"
	"time"

	"github.com/BaSui01/cortex/rag"
	"github.com/BaSui01/cortex/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/BaSui01/cortex/agent/reasoning")

// QueryDecomposer splits a query into sub-queries.
type QueryDecomposer interface {
	Decompose(ctx context.Context, query string) ([]types.SubQuery, error)
}

// EvidenceRetriever retrieves evidence for every sub-query in order.
type EvidenceRetriever interface {
	RetrieveAll(ctx context.Context, ownerID string, subQueries []types.SubQuery) ([]*rag.Evidence, error)
}

// Engine runs decompose → retrieve → compose contexts → answer → table.
type Engine struct {
	decomposer QueryDecomposer
	retriever  EvidenceRetriever
	composer   *Composer
	logger     *zap.Logger
}

// NewEngine 创建推理引擎
func NewEngine(decomposer QueryDecomposer, retriever EvidenceRetriever, composer *Composer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		decomposer: decomposer,
		retriever:  retriever,
		composer:   composer,
		logger:     logger.With(zap.String("component", "reasoning")),
	}
}

// Think answers query over the owner's indexes.
func (e *Engine) Think(ctx context.Context, ownerID, query string) (out *types.ThinkingOutput, err error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, types.NewInvalidRequestError("owner id is required")
	}
	ctx, span := tracer.Start(ctx, "reasoning.think", trace.WithAttributes(
		attribute.String("owner.id", ownerID),
		attribute.String("query", query),
	))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.logger.Error("reasoning failed",
				zap.String("owner", ownerID),
				zap.String("code", string(types.GetErrorCode(err))),
				zap.Error(err))
		}
		span.End()
	}()

	subQueries, err := e.decomposer.Decompose(ctx, query)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("sub_queries", len(subQueries)))

	evidence, err := e.retriever.RetrieveAll(ctx, ownerID, subQueries)
	if err != nil {
		return nil, err
	}

	steps, err := e.composer.ComposeContexts(ctx, subQueries, evidence)
	if err != nil {
		return nil, err
	}

	answer, err := e.composer.ComposeAnswer(ctx, query, steps)
	if err != nil {
		return nil, err
	}

	table, err := e.composer.ComposeTable(ctx, answer)
	if err != nil {
		return nil, err
	}

	e.logger.Info("reasoning completed",
		zap.String("owner", ownerID),
		zap.Int("steps", len(steps)),
		zap.Int("table_rows", len(table)),
		zap.Duration("duration", time.Since(start)))
	return &types.ThinkingOutput{Reasoning: steps, FinalAnswer: answer, Table: table}, nil
}
