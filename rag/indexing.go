package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/cortex/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/BaSui01/cortex/rag"

var tracer = otel.Tracer(instrumentationName)

// DocumentWriter persists the per-file Document record.
type DocumentWriter interface {
	UpsertDocument(ctx context.Context, doc types.Document) error
}

// Outcome is the result of one backend task.
type Outcome struct {
	Kind     types.IndexSource
	Nodes    int
	Err      error
	Features *types.DocumentFeatures
	Duration time.Duration
}

// Outcomes collects task results keyed by backend.
type Outcomes map[types.IndexSource]Outcome

// Succeeded reports whether an indexing run counts as successful: the
// vector task finished without error and produced document features.
func Succeeded(o Outcomes) bool {
	v, ok := o[types.SourceVector]
	return ok && v.Err == nil && v.Features != nil
}

// IndexOutcome is the report of one indexing run.
type IndexOutcome struct {
	Success  bool
	Document *types.Document
	Outcomes Outcomes
	Failures []*types.Error
}

// Orchestrator fans a document out to every backend and records the
// Document when the vector backend succeeds.
type Orchestrator struct {
	backends  []Indexer
	documents DocumentWriter
	observer  Observer
	logger    *zap.Logger
}

// NewOrchestrator 创建索引编排器
func NewOrchestrator(backends []Indexer, documents DocumentWriter, observer Observer, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		backends:  backends,
		documents: documents,
		observer:  observerOrNop(observer),
		logger:    logger.With(zap.String("component", "indexing")),
	}
}

// Index runs every backend concurrently and waits for all of them; one
// backend failing does not cancel the others.
func (o *Orchestrator) Index(ctx context.Context, doc types.ParsedDocument, ownerID string) (*IndexOutcome, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, types.NewParseError(fmt.Sprintf("document %q has no extractable content", doc.Name))
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, types.NewInvalidRequestError("owner id is required")
	}

	ctx, span := tracer.Start(ctx, "rag.index", trace.WithAttributes(
		attribute.String("owner.id", ownerID),
		attribute.String("document.name", doc.Name),
	))
	defer span.End()

	outcomes := make(Outcomes, len(o.backends))
	var mu sync.Mutex
	var eg errgroup.Group
	for _, b := range o.backends {
		eg.Go(func() error {
			out := o.run(ctx, b, ownerID, doc)
			mu.Lock()
			outcomes[out.Kind] = out
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	result := &IndexOutcome{Outcomes: outcomes}
	for _, src := range types.AllSources() {
		out, ok := outcomes[src]
		if !ok || out.Err == nil {
			continue
		}
		failure := types.NewBackendIndexError(string(src), out.Err)
		result.Failures = append(result.Failures, failure)
		o.logger.Warn("index backend failed",
			zap.String("backend", string(src)),
			zap.String("owner", ownerID),
			zap.String("document", doc.Name),
			zap.Error(out.Err))
	}

	if !Succeeded(outcomes) {
		span.SetStatus(codes.Error, "vector backend failed")
		o.logger.Error("indexing failed",
			zap.String("owner", ownerID),
			zap.String("document", doc.Name),
			zap.Int("failures", len(result.Failures)))
		return result, nil
	}

	record := outcomes[types.SourceVector].Features.ToDocument(ownerID, doc.Name)
	if err := o.documents.UpsertDocument(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "document write failed")
		return result, types.NewInternalError("store document record", err)
	}
	result.Success = true
	result.Document = &record

	o.logger.Info("document indexed",
		zap.String("owner", ownerID),
		zap.String("document", doc.Name),
		zap.String("type", record.DocType),
		zap.Int("failures", len(result.Failures)))
	return result, nil
}

// run executes one backend and turns panics into failures.
func (o *Orchestrator) run(ctx context.Context, b Indexer, ownerID string, doc types.ParsedDocument) (out Outcome) {
	start := time.Now()
	out.Kind = b.Source()
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic in %s backend: %v", out.Kind, r)
			out.Features = nil
		}
		out.Duration = time.Since(start)
		o.observer.ObserveIndexTask(string(out.Kind), out.Err == nil, out.Duration)
	}()

	ctx, span := tracer.Start(ctx, "rag.index."+string(out.Kind))
	defer span.End()

	res, err := b.Upsert(ctx, ownerID, doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		out.Err = err
		return out
	}
	out.Nodes = res.Nodes
	out.Features = res.Features
	span.SetAttributes(attribute.Int("nodes", res.Nodes))
	return out
}
