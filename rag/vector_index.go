package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/cortex/llm"
	"github.com/BaSui01/cortex/llm/embedding"
	"github.com/BaSui01/cortex/rag/docstore"
	"github.com/BaSui01/cortex/rag/vectorstore"
	"github.com/BaSui01/cortex/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 向量记录元数据键
const (
	MetaDocID      = "doc_id"
	MetaSource     = "source"
	MetaRecordType = "record_type"
	MetaOwnerID    = "owner_id"
)

// 向量记录类型
const (
	RecordTypeChunk    = "chunk"
	RecordTypeSummary  = docstore.RecordTypeSummary
	RecordTypeQuestion = "question"
)

// Document feature columns served by DocumentColumn.
const (
	ColumnSummary      = "summary"
	ColumnHighlights   = "highlights"
	ColumnDocumentType = "document_type"
)

// VectorIndexConfig 多向量索引配置
type VectorIndexConfig struct {
	ChildChunking ChunkingConfig `json:"child_chunking" yaml:"child_chunking"`
	Concurrency   int            `json:"concurrency" yaml:"concurrency"`
	Questions     int            `json:"questions" yaml:"questions"`
	MaxHighlights int            `json:"max_highlights" yaml:"max_highlights"`
}

// DefaultVectorIndexConfig 400 字符子块，5 并发，每页 3 个假设问题，最多 5 条要点
func DefaultVectorIndexConfig() VectorIndexConfig {
	return VectorIndexConfig{
		ChildChunking: DefaultChildChunking(),
		Concurrency:   5,
		Questions:     3,
		MaxHighlights: 5,
	}
}

// VectorCollection is the handle of a loaded vector collection.
type VectorCollection struct {
	Name string
}

// VectorIndex is the multi-vector backend. Each page is stored as a parent
// record in the docstore; its child chunks, LLM summary and hypothetical
// questions are embedded into the owner's vector collection, all tagged
// with the parent's doc_id.
type VectorIndex struct {
	vectors  vectorstore.Store
	docs     docstore.Store
	llm      llm.Provider
	embedder embedding.Provider
	splitter *RecursiveSplitter
	cfg      VectorIndexConfig
	logger   *zap.Logger
}

// NewVectorIndex 创建多向量索引后端
func NewVectorIndex(vectors vectorstore.Store, docs docstore.Store, provider llm.Provider, embedder embedding.Provider, cfg VectorIndexConfig, logger *zap.Logger) *VectorIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultVectorIndexConfig()
	if cfg.ChildChunking.ChunkSize <= 0 {
		cfg.ChildChunking = def.ChildChunking
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Questions <= 0 {
		cfg.Questions = def.Questions
	}
	if cfg.MaxHighlights <= 0 {
		cfg.MaxHighlights = def.MaxHighlights
	}
	return &VectorIndex{
		vectors:  vectors,
		docs:     docs,
		llm:      provider,
		embedder: embedder,
		splitter: NewRecursiveSplitter(cfg.ChildChunking),
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "vector_index")),
	}
}

// Source implements Indexer.
func (v *VectorIndex) Source() types.IndexSource { return types.SourceVector }

// Load reports whether the owner's collection exists.
func (v *VectorIndex) Load(ctx context.Context, collectionID string) (VectorCollection, error) {
	ok, err := v.vectors.CollectionExists(ctx, collectionID)
	if err != nil {
		return VectorCollection{}, err
	}
	if !ok {
		return VectorCollection{}, ErrCollectionNotFound
	}
	return VectorCollection{Name: collectionID}, nil
}

type pageDerivation struct {
	summary   string
	questions []string
}

// Upsert indexes every page and derives the document features from the page summaries.
func (v *VectorIndex) Upsert(ctx context.Context, collectionID string, doc types.ParsedDocument) (UpsertResult, error) {
	start := time.Now()
	pages := SplitPages(doc.Content)
	if len(pages) == 0 {
		return UpsertResult{}, fmt.Errorf("document %q has no pages", doc.Name)
	}

	derived := make([]pageDerivation, len(pages))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(v.cfg.Concurrency)
	for i, page := range pages {
		eg.Go(func() error {
			summary, err := llm.CompletePrompt(egCtx, v.llm, "", fmt.Sprintf(pageSummaryPrompt, page))
			if err != nil {
				return fmt.Errorf("summarize page %d: %w", i, err)
			}
			derived[i].summary = summary
			return nil
		})
		eg.Go(func() error {
			qs, err := v.questions(egCtx, page)
			if err != nil {
				return fmt.Errorf("questions for page %d: %w", i, err)
			}
			derived[i].questions = qs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return UpsertResult{}, err
	}

	var (
		parents []docstore.Record
		records []vectorstore.Record
	)
	now := time.Now().UTC()
	tag := func(docID, recordType string) map[string]string {
		return map[string]string{
			MetaDocID:      docID,
			MetaSource:     doc.Name,
			MetaRecordType: recordType,
			MetaOwnerID:    collectionID,
		}
	}
	summaries := make([]string, 0, len(pages))
	for i, page := range pages {
		docID := uuid.NewString()
		parents = append(parents, docstore.Record{
			ID: docID, OwnerID: collectionID, FileName: doc.Name, DocID: docID,
			RecordType: docstore.RecordTypePage, Page: i, Content: page, CreatedAt: now,
		})
		for _, chunk := range v.splitter.Split(page) {
			records = append(records, vectorstore.Record{ID: uuid.NewString(), Text: chunk, Metadata: tag(docID, RecordTypeChunk)})
		}
		if s := derived[i].summary; s != "" {
			summaries = append(summaries, s)
			parents = append(parents, docstore.Record{
				ID: uuid.NewString(), OwnerID: collectionID, FileName: doc.Name, DocID: docID,
				RecordType: docstore.RecordTypeSummary, Page: i, Content: s, CreatedAt: now,
			})
			records = append(records, vectorstore.Record{ID: uuid.NewString(), Text: s, Metadata: tag(docID, RecordTypeSummary)})
		}
		for _, q := range derived[i].questions {
			records = append(records, vectorstore.Record{ID: uuid.NewString(), Text: q, Metadata: tag(docID, RecordTypeQuestion)})
		}
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}
	vecs, err := v.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("embed records: %w", err)
	}
	if len(vecs) != len(records) {
		return UpsertResult{}, fmt.Errorf("embed records: got %d vectors for %d records", len(vecs), len(records))
	}
	for i := range records {
		records[i].Values = vecs[i]
	}

	// 父文档先落盘，检索时按 doc_id 回查
	if err := v.docs.Put(ctx, parents); err != nil {
		return UpsertResult{}, fmt.Errorf("store parents: %w", err)
	}
	if err := v.vectors.Upsert(ctx, collectionID, records); err != nil {
		return UpsertResult{}, fmt.Errorf("upsert vectors: %w", err)
	}

	features, err := v.GenerateFeatures(ctx, summaries)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("generate features: %w", err)
	}

	v.logger.Info("vector index updated",
		zap.String("collection", collectionID),
		zap.String("document", doc.Name),
		zap.Int("pages", len(pages)),
		zap.Int("records", len(records)),
		zap.Duration("duration", time.Since(start)))
	return UpsertResult{Nodes: len(records), Features: &features}, nil
}

func (v *VectorIndex) questions(ctx context.Context, page string) ([]string, error) {
	var out struct {
		Questions []string `json:"questions"`
	}
	req := &llm.ChatRequest{Messages: llm.PromptMessages("", fmt.Sprintf(hypotheticalQuestionsPrompt, page))}
	if err := llm.CompleteJSON(ctx, v.llm, req, questionsSchema, &out); err != nil {
		return nil, err
	}
	qs := make([]string, 0, v.cfg.Questions)
	for _, q := range out.Questions {
		if q = strings.TrimSpace(q); q != "" && len(qs) < v.cfg.Questions {
			qs = append(qs, q)
		}
	}
	return qs, nil
}

// GenerateFeatures derives the document summary, highlights and type from
// the page summaries joined by blank lines.
func (v *VectorIndex) GenerateFeatures(ctx context.Context, summaries []string) (types.DocumentFeatures, error) {
	var f types.DocumentFeatures
	req := &llm.ChatRequest{
		Messages: llm.PromptMessages("", fmt.Sprintf(documentFeaturesPrompt, strings.Join(summaries, "\n\n"))),
	}
	if err := llm.CompleteJSON(ctx, v.llm, req, featuresSchema, &f); err != nil {
		return types.DocumentFeatures{}, err
	}
	if len(f.Highlights) > v.cfg.MaxHighlights {
		f.Highlights = f.Highlights[:v.cfg.MaxHighlights]
	}
	if f.Highlights == nil {
		f.Highlights = []string{}
	}
	return f, nil
}

// DocumentColumn re-derives one feature column of an indexed file from its
// stored page summaries. A file without summaries yields an empty value.
func (v *VectorIndex) DocumentColumn(ctx context.Context, ownerID, fileName, column string) (any, error) {
	switch column {
	case ColumnSummary, ColumnHighlights, ColumnDocumentType:
	default:
		return nil, types.NewInvalidRequestError(fmt.Sprintf("unknown document column %q", column))
	}

	recs, err := v.docs.ListByFile(ctx, ownerID, fileName, docstore.RecordTypeSummary)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		if column == ColumnHighlights {
			return []string{}, nil
		}
		return "", nil
	}

	summaries := make([]string, len(recs))
	for i, r := range recs {
		summaries[i] = r.Content
	}
	f, err := v.GenerateFeatures(ctx, summaries)
	if err != nil {
		return nil, err
	}
	switch column {
	case ColumnSummary:
		return f.Summary, nil
	case ColumnHighlights:
		return f.Highlights, nil
	default:
		return f.DocumentType, nil
	}
}

// VectorRetrieverConfig 向量检索配置
type VectorRetrieverConfig struct {
	TopK      int     `json:"top_k" yaml:"top_k"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// DefaultVectorRetrieverConfig k=3，阈值 0.7
func DefaultVectorRetrieverConfig() VectorRetrieverConfig {
	return VectorRetrieverConfig{TopK: 3, Threshold: 0.7}
}

// VectorRetriever queries child vectors and returns their parent pages.
type VectorRetriever struct {
	vectors  vectorstore.Store
	docs     docstore.Store
	embedder embedding.Provider
	cfg      VectorRetrieverConfig
	logger   *zap.Logger
}

// NewVectorRetriever 创建向量检索器
func NewVectorRetriever(vectors vectorstore.Store, docs docstore.Store, embedder embedding.Provider, cfg VectorRetrieverConfig, logger *zap.Logger) *VectorRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultVectorRetrieverConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	return &VectorRetriever{
		vectors:  vectors,
		docs:     docs,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "vector_retriever")),
	}
}

// Retrieve returns one item per parent page whose best child scored at
// least the threshold, in best-score order. An absent collection yields no items.
func (r *VectorRetriever) Retrieve(ctx context.Context, ownerID, query string) ([]types.EvidenceItem, error) {
	exists, err := r.vectors.CollectionExists(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("check vector collection: %w", err)
	}
	if !exists {
		return nil, nil
	}

	qv, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := r.vectors.Query(ctx, ownerID, qv, r.cfg.TopK, nil)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}

	var (
		order []string
		best  = make(map[string]float64)
	)
	for _, m := range matches {
		score := vectorstore.ClampScore(m.Score)
		docID := m.Metadata[MetaDocID]
		if score < r.cfg.Threshold || docID == "" {
			continue
		}
		if prev, seen := best[docID]; !seen {
			order = append(order, docID)
			best[docID] = score
		} else if score > prev {
			best[docID] = score
		}
	}
	if len(order) == 0 {
		return nil, nil
	}

	parents, err := r.docs.Get(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("fetch parents: %w", err)
	}
	items := make([]types.EvidenceItem, 0, len(order))
	for _, docID := range order {
		p, ok := parents[docID]
		if !ok {
			r.logger.Warn("parent record missing", zap.String("doc_id", docID))
			continue
		}
		items = append(items, types.EvidenceItem{
			ID:     docID,
			Text:   p.Content,
			Score:  best[docID],
			Source: types.SourceVector,
		})
	}
	return items, nil
}
