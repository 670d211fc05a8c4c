package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/BaSui01/cortex/llm"
	"github.com/BaSui01/cortex/llm/embedding"
	"github.com/BaSui01/cortex/rag/vectorstore"
	"github.com/BaSui01/cortex/types"
	"github.com/coregx/ahocorasick"
	"go.uber.org/zap"
)

const graphFactsHeader = "Here are some facts extracted from the provided text:\n\n"

// GraphLoader loads an owner's knowledge graph.
type GraphLoader interface {
	Load(ctx context.Context, collectionID string) (*Graph, error)
}

// GraphRetrieverConfig 图检索配置
type GraphRetrieverConfig struct {
	MaxResults  int `json:"max_results" yaml:"max_results"`
	EntityTopK  int `json:"entity_top_k" yaml:"entity_top_k"`
	MaxKeywords int `json:"max_keywords" yaml:"max_keywords"`
}

// DefaultGraphRetrieverConfig 最多 5 个节点，向量上下文取前 4 个实体，同义词最多 10 个
func DefaultGraphRetrieverConfig() GraphRetrieverConfig {
	return GraphRetrieverConfig{MaxResults: 5, EntityTopK: 4, MaxKeywords: 10}
}

// GraphRetriever combines a vector-context retriever (entity embeddings)
// with an LLM synonym retriever (keyword expansion matched against entity
// names). Results are unioned by chunk id, vector results first.
type GraphRetriever struct {
	graphs   GraphLoader
	llm      llm.Provider
	embedder embedding.Provider
	cfg      GraphRetrieverConfig
	logger   *zap.Logger
}

// NewGraphRetriever 创建图检索器
func NewGraphRetriever(graphs GraphLoader, provider llm.Provider, embedder embedding.Provider, cfg GraphRetrieverConfig, logger *zap.Logger) *GraphRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultGraphRetrieverConfig()
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.EntityTopK <= 0 {
		cfg.EntityTopK = def.EntityTopK
	}
	if cfg.MaxKeywords <= 0 {
		cfg.MaxKeywords = def.MaxKeywords
	}
	return &GraphRetriever{
		graphs:   graphs,
		llm:      provider,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "graph_retriever")),
	}
}

// Retrieve returns at most MaxResults graph nodes for query. Every failure,
// including a missing graph, is a KnowledgeGraphRetrieverError.
func (r *GraphRetriever) Retrieve(ctx context.Context, ownerID, query string) ([]types.EvidenceItem, error) {
	graph, err := r.graphs.Load(ctx, ownerID)
	if err != nil {
		return nil, types.NewKnowledgeGraphRetrieverError(
			fmt.Sprintf("load knowledge graph for %q", ownerID), err)
	}

	vectorItems, err := r.vectorContext(ctx, graph, query)
	if err != nil {
		return nil, types.NewKnowledgeGraphRetrieverError("vector context retrieval failed", err)
	}
	synonymItems, err := r.synonyms(ctx, graph, query)
	if err != nil {
		return nil, types.NewKnowledgeGraphRetrieverError("synonym retrieval failed", err)
	}

	out := make([]types.EvidenceItem, 0, r.cfg.MaxResults)
	seen := make(map[string]struct{})
	for _, it := range append(vectorItems, synonymItems...) {
		if len(out) == r.cfg.MaxResults {
			break
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}

	r.logger.Debug("graph retrieval",
		zap.String("owner", ownerID),
		zap.Int("vector_nodes", len(vectorItems)),
		zap.Int("synonym_nodes", len(synonymItems)),
		zap.Int("returned", len(out)))
	return out, nil
}

// vectorContext scores entities against the query embedding and returns
// the chunks their relations came from, best entity score first.
func (r *GraphRetriever) vectorContext(ctx context.Context, graph *Graph, query string) ([]types.EvidenceItem, error) {
	if len(graph.Entities) == 0 {
		return nil, nil
	}
	qv, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	type scored struct {
		id    string
		score float64
	}
	candidates := make([]scored, 0, len(graph.Entities))
	for _, e := range graph.Entities {
		if len(e.Embedding) == 0 {
			continue
		}
		if s := vectorstore.ClampScore(vectorstore.Cosine(qv, e.Embedding)); s > 0 {
			candidates = append(candidates, scored{id: e.ID, score: s})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > r.cfg.EntityTopK {
		candidates = candidates[:r.cfg.EntityTopK]
	}

	entityScore := make(map[string]float64, len(candidates))
	selected := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		entityScore[c.id] = c.score
		selected[c.id] = struct{}{}
	}

	byChunk, order := graph.RelationsFor(selected)
	items := make([]types.EvidenceItem, 0, len(order))
	for _, chunkID := range order {
		var best float64
		for _, rel := range byChunk[chunkID] {
			best = max(best, entityScore[rel.Subject], entityScore[rel.Object])
		}
		if it, ok := r.node(graph, chunkID, byChunk[chunkID], best); ok {
			items = append(items, it)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	return items, nil
}

// synonyms expands the query into keywords and matches them against entity names.
func (r *GraphRetriever) synonyms(ctx context.Context, graph *Graph, query string) ([]types.EvidenceItem, error) {
	if len(graph.Entities) == 0 {
		return nil, nil
	}
	reply, err := llm.CompletePrompt(ctx, r.llm, "", fmt.Sprintf(synonymKeywordsPrompt, r.cfg.MaxKeywords, query))
	if err != nil {
		return nil, err
	}
	keywords := ParseKeywords(reply)
	if len(keywords) == 0 {
		return nil, nil
	}

	matched, err := matchEntities(graph, keywords)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, nil
	}

	byChunk, order := graph.RelationsFor(matched)
	items := make([]types.EvidenceItem, 0, len(order))
	for _, chunkID := range order {
		if it, ok := r.node(graph, chunkID, byChunk[chunkID], 1.0); ok {
			items = append(items, it)
		}
	}
	return items, nil
}

func (r *GraphRetriever) node(graph *Graph, chunkID string, rels []Relation, score float64) (types.EvidenceItem, bool) {
	chunk, ok := graph.Chunk(chunkID)
	if !ok {
		return types.EvidenceItem{}, false
	}
	return types.EvidenceItem{
		ID:     chunkID,
		Text:   NodeText(graph, rels, chunk),
		Score:  score,
		Source: types.SourceGraph,
	}, true
}

// NodeText renders the facts of a chunk followed by the chunk text.
func NodeText(graph *Graph, rels []Relation, chunk TextChunk) string {
	var b strings.Builder
	b.WriteString(graphFactsHeader)
	for i, rel := range rels {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(entityName(graph, rel.Subject))
		b.WriteString(" -> ")
		b.WriteString(rel.Label)
		b.WriteString(" -> ")
		b.WriteString(entityName(graph, rel.Object))
	}
	b.WriteString("\n\n")
	b.WriteString(chunk.Text)
	return b.String()
}

func entityName(graph *Graph, id string) string {
	if e, ok := graph.Entity(id); ok && e.Name != "" {
		return e.Name
	}
	return id
}

// ParseKeywords splits a "KEYWORDS: a^b^c" reply into lowercased keywords.
func ParseKeywords(reply string) []string {
	s := strings.TrimSpace(reply)
	if len(s) >= len("KEYWORDS:") && strings.EqualFold(s[:len("KEYWORDS:")], "KEYWORDS:") {
		s = s[len("KEYWORDS:"):]
	}
	parts := strings.Split(s, "^")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		k := NormalizeEntity(strings.Trim(p, " \t\r\n'\"`"))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// matchEntities finds entity names occurring as whole words in the keywords.
func matchEntities(graph *Graph, keywords []string) (map[string]struct{}, error) {
	patterns := make([]string, len(graph.Entities))
	for i, e := range graph.Entities {
		patterns[i] = e.ID
	}
	ac, err := ahocorasick.NewBuilder().
		AddStrings(patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build entity automaton: %w", err)
	}

	haystack := []byte(strings.Join(keywords, "^"))
	matched := make(map[string]struct{})
	for _, m := range ac.FindAllOverlapping(haystack) {
		if m.Start > 0 && isWordByte(haystack[m.Start-1]) {
			continue
		}
		if m.End < len(haystack) && isWordByte(haystack[m.End]) {
			continue
		}
		if m.PatternID >= 0 && m.PatternID < len(patterns) {
			matched[patterns[m.PatternID]] = struct{}{}
		}
	}
	return matched, nil
}

func isWordByte(b byte) bool {
	return b >= 0x80 || b == '_' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
