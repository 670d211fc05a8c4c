package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/BaSui01/cortex/llm/embedding"
	"github.com/BaSui01/cortex/llm/tokenizer"
	"github.com/BaSui01/cortex/rag/diskstore"
	"github.com/BaSui01/cortex/rag/vectorstore"
	"github.com/BaSui01/cortex/types"
	"github.com/google/uuid"
	"github.com/orsinium-labs/stopwords"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BM25 参数
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

var englishStopwords = stopwords.MustGet("en")

// Keywords lowercases text, splits it on anything that is not a letter or
// digit and drops stopwords and single-character tokens.
func Keywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 || englishStopwords.Contains(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// SparseNode is one token-window chunk of the sparse index.
type SparseNode struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding"`
}

// SparseCollection is the persisted sparse index of one owner together with
// its in-memory BM25 statistics.
type SparseCollection struct {
	Nodes []SparseNode `json:"nodes"`

	termFreqs []map[string]int
	docLens   []int
	docFreq   map[string]int
	avgLen    float64
}

func (c *SparseCollection) rebuild() {
	c.termFreqs = make([]map[string]int, len(c.Nodes))
	c.docLens = make([]int, len(c.Nodes))
	c.docFreq = make(map[string]int)
	total := 0
	for i, n := range c.Nodes {
		terms := Keywords(n.Text)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		for t := range tf {
			c.docFreq[t]++
		}
		c.termFreqs[i] = tf
		c.docLens[i] = len(terms)
		total += len(terms)
	}
	c.avgLen = 0
	if len(c.Nodes) > 0 {
		c.avgLen = float64(total) / float64(len(c.Nodes))
	}
}

// KeywordSearch ranks nodes with BM25 and normalizes scores by the best
// score so the top hit is 1.0.
func (c *SparseCollection) KeywordSearch(query string, topK int) []types.EvidenceItem {
	terms := Keywords(query)
	if len(terms) == 0 || len(c.Nodes) == 0 || topK <= 0 {
		return nil
	}
	n := float64(len(c.Nodes))
	scores := make([]float64, len(c.Nodes))
	for _, term := range terms {
		df := c.docFreq[term]
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
		for i, tf := range c.termFreqs {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			norm := 1 - bm25B
			if c.avgLen > 0 {
				norm += bm25B * float64(c.docLens[i]) / c.avgLen
			}
			scores[i] += idf * f * (bm25K1 + 1) / (f + bm25K1*norm)
		}
	}
	return c.rank(scores, topK, true)
}

// VectorSearch ranks nodes by cosine similarity to qv.
func (c *SparseCollection) VectorSearch(qv []float64, topK int) []types.EvidenceItem {
	if len(c.Nodes) == 0 || topK <= 0 {
		return nil
	}
	scores := make([]float64, len(c.Nodes))
	for i, n := range c.Nodes {
		scores[i] = vectorstore.ClampScore(vectorstore.Cosine(qv, n.Embedding))
	}
	return c.rank(scores, topK, false)
}

func (c *SparseCollection) rank(scores []float64, topK int, normalize bool) []types.EvidenceItem {
	idx := make([]int, 0, len(scores))
	var best float64
	for i, s := range scores {
		if s > 0 {
			idx = append(idx, i)
			best = max(best, s)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	if len(idx) > topK {
		idx = idx[:topK]
	}
	out := make([]types.EvidenceItem, len(idx))
	for k, i := range idx {
		s := scores[i]
		if normalize && best > 0 {
			s /= best
		}
		out[k] = types.EvidenceItem{
			ID:     c.Nodes[i].ID,
			Text:   c.Nodes[i].Text,
			Score:  vectorstore.ClampScore(s),
			Source: types.SourceSparse,
		}
	}
	return out
}

// SparseIndex is the keyword backend: token-window chunks persisted under
// sparse/<owner>/index.json with their embeddings.
type SparseIndex struct {
	store    *diskstore.Store
	embedder embedding.Provider
	splitter *TokenSplitter
	logger   *zap.Logger
}

// NewSparseIndex 创建稀疏索引后端
func NewSparseIndex(store *diskstore.Store, embedder embedding.Provider, tok tokenizer.Tokenizer, chunking ChunkingConfig, logger *zap.Logger) *SparseIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SparseIndex{
		store:    store,
		embedder: embedder,
		splitter: NewTokenSplitter(chunking, tok),
		logger:   logger.With(zap.String("component", "sparse_index")),
	}
}

// Source implements Indexer.
func (s *SparseIndex) Source() types.IndexSource { return types.SourceSparse }

func (s *SparseIndex) key(collectionID string) types.CollectionKey {
	return types.CollectionKey{Source: types.SourceSparse, OwnerID: collectionID}
}

// Load reads a sparse collection and rebuilds its BM25 statistics.
func (s *SparseIndex) Load(ctx context.Context, collectionID string) (*SparseCollection, error) {
	c := &SparseCollection{}
	if err := s.store.Load(ctx, s.key(collectionID), c); err != nil {
		if errors.Is(err, diskstore.ErrNotFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, err
	}
	c.rebuild()
	return c, nil
}

// Upsert chunks every page, embeds the chunks and appends them to the collection.
func (s *SparseIndex) Upsert(ctx context.Context, collectionID string, doc types.ParsedDocument) (UpsertResult, error) {
	start := time.Now()
	var nodes []SparseNode
	for _, page := range SplitPages(doc.Content) {
		chunks, err := s.splitter.Split(page)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("split page: %w", err)
		}
		for _, c := range chunks {
			nodes = append(nodes, SparseNode{ID: uuid.NewString(), Source: doc.Name, Text: c})
		}
	}
	if len(nodes) == 0 {
		return UpsertResult{}, nil
	}

	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = n.Text
	}
	vecs, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(nodes) {
		return UpsertResult{}, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vecs), len(nodes))
	}
	for i := range nodes {
		nodes[i].Embedding = vecs[i]
	}

	existing, err := s.Load(ctx, collectionID)
	if errors.Is(err, ErrCollectionNotFound) {
		existing = &SparseCollection{}
	} else if err != nil {
		return UpsertResult{}, fmt.Errorf("load sparse collection: %w", err)
	}
	existing.Nodes = append(existing.Nodes, nodes...)

	if err := s.store.Save(ctx, s.key(collectionID), existing); err != nil {
		return UpsertResult{}, fmt.Errorf("save sparse collection: %w", err)
	}

	s.logger.Info("sparse index updated",
		zap.String("collection", collectionID),
		zap.String("document", doc.Name),
		zap.Int("nodes", len(nodes)),
		zap.Int("total_nodes", len(existing.Nodes)),
		zap.Duration("duration", time.Since(start)))
	return UpsertResult{Nodes: len(nodes)}, nil
}

// SparseLoader loads sparse collections.
type SparseLoader interface {
	Load(ctx context.Context, collectionID string) (*SparseCollection, error)
}

// SparseRetrieverConfig 稀疏检索配置
type SparseRetrieverConfig struct {
	TopK      int     `json:"top_k" yaml:"top_k"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
	BatchSize int     `json:"batch_size" yaml:"batch_size"`
}

// DefaultSparseRetrieverConfig 关键词与向量各取 5 个，阈值 0.45，每批 10 个节点
func DefaultSparseRetrieverConfig() SparseRetrieverConfig {
	return SparseRetrieverConfig{TopK: 5, Threshold: 0.45, BatchSize: 10}
}

// SparseRetriever runs a vector and a BM25 sub-retriever over one sparse
// collection and fuses their hits in concurrent batches.
type SparseRetriever struct {
	loader   SparseLoader
	embedder embedding.Provider
	cfg      SparseRetrieverConfig
	logger   *zap.Logger
}

// NewSparseRetriever 创建稀疏检索器
func NewSparseRetriever(loader SparseLoader, embedder embedding.Provider, cfg SparseRetrieverConfig, logger *zap.Logger) *SparseRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultSparseRetrieverConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	return &SparseRetriever{
		loader:   loader,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "sparse_retriever")),
	}
}

// Threshold returns the default score threshold.
func (r *SparseRetriever) Threshold() float64 { return r.cfg.Threshold }

// Retrieve returns fused hits at or above threshold. An absent collection
// yields no hits and no error. threshold <= 0 uses the configured default.
func (r *SparseRetriever) Retrieve(ctx context.Context, collectionID, query string, threshold float64) ([]types.EvidenceItem, error) {
	if threshold <= 0 {
		threshold = r.cfg.Threshold
	}
	coll, err := r.loader.Load(ctx, collectionID)
	if errors.Is(err, ErrCollectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load sparse collection: %w", err)
	}

	qv, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	candidates := append(coll.VectorSearch(qv, r.cfg.TopK), coll.KeywordSearch(query, r.cfg.TopK)...)

	var batches [][]types.EvidenceItem
	for start := 0; start < len(candidates); start += r.cfg.BatchSize {
		end := min(start+r.cfg.BatchSize, len(candidates))
		batches = append(batches, candidates[start:end])
	}
	fused := make([][]types.EvidenceItem, len(batches))
	eg, _ := errgroup.WithContext(ctx)
	for i, batch := range batches {
		eg.Go(func() error {
			fused[i] = Fuse(batch, threshold)
			return nil
		})
	}
	_ = eg.Wait()

	var all []types.EvidenceItem
	for _, b := range fused {
		all = append(all, b...)
	}
	// 批次之间再去重一次，保留首次出现
	return Fuse(all, threshold), nil
}
