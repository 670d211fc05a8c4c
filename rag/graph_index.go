package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/cortex/llm"
	"github.com/BaSui01/cortex/llm/embedding"
	"github.com/BaSui01/cortex/rag/diskstore"
	"github.com/BaSui01/cortex/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Entity is a knowledge-graph node. ID is the normalized name.
type Entity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Embedding []float64 `json:"embedding,omitempty"`
}

// Relation is a directed, labelled edge between two entities, tagged with
// the chunk it was extracted from.
type Relation struct {
	Subject string `json:"subject"`
	Label   string `json:"label"`
	Object  string `json:"object"`
	ChunkID string `json:"chunk_id"`
}

// TextChunk is one source page. Next links to the following chunk of the same file.
type TextChunk struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Text   string `json:"text"`
	Next   string `json:"next,omitempty"`
}

// Graph is the persisted property graph of one owner.
type Graph struct {
	Entities  []Entity    `json:"entities"`
	Relations []Relation  `json:"relations"`
	Chunks    []TextChunk `json:"chunks"`

	entityIdx map[string]int
	chunkIdx  map[string]int
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	g := &Graph{}
	g.reindex()
	return g
}

func (g *Graph) reindex() {
	g.entityIdx = make(map[string]int, len(g.Entities))
	for i, e := range g.Entities {
		g.entityIdx[e.ID] = i
	}
	g.chunkIdx = make(map[string]int, len(g.Chunks))
	for i, c := range g.Chunks {
		g.chunkIdx[c.ID] = i
	}
}

// NormalizeEntity lowercases a name and collapses inner whitespace.
func NormalizeEntity(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// AddEntity inserts the entity if absent and reports whether it is new.
func (g *Graph) AddEntity(name string) (string, bool) {
	id := NormalizeEntity(name)
	if id == "" {
		return "", false
	}
	if _, ok := g.entityIdx[id]; ok {
		return id, false
	}
	g.entityIdx[id] = len(g.Entities)
	g.Entities = append(g.Entities, Entity{ID: id, Name: strings.TrimSpace(name)})
	return id, true
}

// Entity looks up an entity by id.
func (g *Graph) Entity(id string) (Entity, bool) {
	i, ok := g.entityIdx[id]
	if !ok {
		return Entity{}, false
	}
	return g.Entities[i], true
}

// AddChunk appends a chunk.
func (g *Graph) AddChunk(c TextChunk) {
	g.chunkIdx[c.ID] = len(g.Chunks)
	g.Chunks = append(g.Chunks, c)
}

// Chunk looks up a chunk by id.
func (g *Graph) Chunk(id string) (TextChunk, bool) {
	i, ok := g.chunkIdx[id]
	if !ok {
		return TextChunk{}, false
	}
	return g.Chunks[i], true
}

// RelationsFor returns the relations touching any of the given entities,
// grouped by source chunk in first-seen order.
func (g *Graph) RelationsFor(entityIDs map[string]struct{}) (map[string][]Relation, []string) {
	byChunk := make(map[string][]Relation)
	var order []string
	for _, r := range g.Relations {
		_, s := entityIDs[r.Subject]
		_, o := entityIDs[r.Object]
		if !s && !o {
			continue
		}
		if _, seen := byChunk[r.ChunkID]; !seen {
			order = append(order, r.ChunkID)
		}
		byChunk[r.ChunkID] = append(byChunk[r.ChunkID], r)
	}
	return byChunk, order
}

// Triplet is one extracted (subject, relation, object) fact.
type Triplet struct {
	Subject  string `json:"subject"`
	Relation string `json:"relation"`
	Object   string `json:"object"`
}

// GraphIndexConfig 图索引配置
type GraphIndexConfig struct {
	MaxTriplesPerChunk int `json:"max_triples_per_chunk" yaml:"max_triples_per_chunk"`
	Workers            int `json:"workers" yaml:"workers"`
}

// DefaultGraphIndexConfig 每块最多 10 个三元组，4 个抽取协程
func DefaultGraphIndexConfig() GraphIndexConfig {
	return GraphIndexConfig{MaxTriplesPerChunk: 10, Workers: 4}
}

// GraphIndex is the knowledge-graph backend. Collections live on disk
// under graph/<owner>/graph.json.
type GraphIndex struct {
	store    *diskstore.Store
	llm      llm.Provider
	embedder embedding.Provider
	cfg      GraphIndexConfig
	logger   *zap.Logger
}

// NewGraphIndex 创建图索引后端
func NewGraphIndex(store *diskstore.Store, provider llm.Provider, embedder embedding.Provider, cfg GraphIndexConfig, logger *zap.Logger) *GraphIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultGraphIndexConfig()
	if cfg.MaxTriplesPerChunk <= 0 {
		cfg.MaxTriplesPerChunk = def.MaxTriplesPerChunk
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	return &GraphIndex{
		store:    store,
		llm:      provider,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "graph_index")),
	}
}

// Source implements Indexer.
func (g *GraphIndex) Source() types.IndexSource { return types.SourceGraph }

func (g *GraphIndex) key(collectionID string) types.CollectionKey {
	return types.CollectionKey{Source: types.SourceGraph, OwnerID: collectionID}
}

// Load reads the owner's graph; ErrCollectionNotFound when never indexed.
func (g *GraphIndex) Load(ctx context.Context, collectionID string) (*Graph, error) {
	graph := &Graph{}
	if err := g.store.Load(ctx, g.key(collectionID), graph); err != nil {
		if errors.Is(err, diskstore.ErrNotFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, err
	}
	graph.reindex()
	return graph, nil
}

// Upsert extracts triplets from every page and appends them to the owner's graph.
func (g *GraphIndex) Upsert(ctx context.Context, collectionID string, doc types.ParsedDocument) (UpsertResult, error) {
	start := time.Now()
	pages := SplitPages(doc.Content)
	if len(pages) == 0 {
		return UpsertResult{}, nil
	}

	graph, err := g.Load(ctx, collectionID)
	if errors.Is(err, ErrCollectionNotFound) {
		graph = NewGraph()
	} else if err != nil {
		return UpsertResult{}, fmt.Errorf("load graph: %w", err)
	}

	chunks := make([]TextChunk, len(pages))
	for i, p := range pages {
		chunks[i] = TextChunk{ID: uuid.NewString(), Source: doc.Name, Text: p}
	}
	for i := 0; i+1 < len(chunks); i++ {
		chunks[i].Next = chunks[i+1].ID
	}

	triplets := make([][]Triplet, len(chunks))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)
	for i := range chunks {
		i := i
		eg.Go(func() error {
			ts, err := g.extract(egCtx, chunks[i].Text)
			if err != nil {
				return fmt.Errorf("extract triplets for chunk %d: %w", i, err)
			}
			triplets[i] = ts
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return UpsertResult{}, err
	}

	var newEntities []string
	for i, c := range chunks {
		graph.AddChunk(c)
		for _, t := range triplets[i] {
			subj, isNew := graph.AddEntity(t.Subject)
			if isNew {
				newEntities = append(newEntities, subj)
			}
			obj, isNew := graph.AddEntity(t.Object)
			if isNew {
				newEntities = append(newEntities, obj)
			}
			label := strings.TrimSpace(t.Relation)
			if subj == "" || obj == "" || label == "" {
				continue
			}
			graph.Relations = append(graph.Relations, Relation{Subject: subj, Label: label, Object: obj, ChunkID: c.ID})
		}
	}

	if len(newEntities) > 0 {
		names := make([]string, len(newEntities))
		for i, id := range newEntities {
			e, _ := graph.Entity(id)
			names[i] = e.Name
		}
		vecs, err := g.embedder.EmbedDocuments(ctx, names)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("embed entities: %w", err)
		}
		if len(vecs) != len(newEntities) {
			return UpsertResult{}, fmt.Errorf("embed entities: got %d vectors for %d names", len(vecs), len(newEntities))
		}
		for i, id := range newEntities {
			graph.Entities[graph.entityIdx[id]].Embedding = vecs[i]
		}
	}

	if err := g.store.Save(ctx, g.key(collectionID), graph); err != nil {
		return UpsertResult{}, fmt.Errorf("save graph: %w", err)
	}

	g.logger.Info("graph index updated",
		zap.String("collection", collectionID),
		zap.String("document", doc.Name),
		zap.Int("chunks", len(chunks)),
		zap.Int("new_entities", len(newEntities)),
		zap.Int("relations", len(graph.Relations)),
		zap.Duration("duration", time.Since(start)))

	return UpsertResult{Nodes: len(chunks)}, nil
}

func (g *GraphIndex) extract(ctx context.Context, text string) ([]Triplet, error) {
	var out struct {
		Triplets []Triplet `json:"triplets"`
	}
	req := &llm.ChatRequest{
		Messages: llm.PromptMessages("", fmt.Sprintf(tripletExtractionPrompt, g.cfg.MaxTriplesPerChunk, text)),
	}
	if err := llm.CompleteJSON(ctx, g.llm, req, tripletsSchema, &out); err != nil {
		return nil, err
	}
	if len(out.Triplets) > g.cfg.MaxTriplesPerChunk {
		out.Triplets = out.Triplets[:g.cfg.MaxTriplesPerChunk]
	}
	return out.Triplets, nil
}
