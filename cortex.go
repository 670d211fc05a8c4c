// Package cortex wires the storage backends, LLM clients, indexes and
// agents described by a [config.Config] into one dependency graph.
//
// Usage:
//
//	deps, err := cortex.New(ctx, cfg, cortex.WithLogger(logger), cortex.WithMetrics(collector))
//	if err != nil { ... }
//	defer deps.Close()
//
//	out, err := deps.Reasoning.Think(ctx, "alice", "what changed in Q3?")
//
// Callers that bring their own model clients (tests, offline tools) use
// [WithProvider] and [WithEmbedder]; everything else is built from cfg.
package cortex

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/cortex/agent/conversation"
	"github.com/BaSui01/cortex/agent/memory"
	"github.com/BaSui01/cortex/agent/persistence"
	"github.com/BaSui01/cortex/agent/reasoning"
	"github.com/BaSui01/cortex/config"
	"github.com/BaSui01/cortex/internal/cache"
	"github.com/BaSui01/cortex/internal/metrics"
	"github.com/BaSui01/cortex/llm"
	"github.com/BaSui01/cortex/llm/embedding"
	"github.com/BaSui01/cortex/llm/providers"
	"github.com/BaSui01/cortex/llm/providers/gemini"
	"github.com/BaSui01/cortex/llm/tokenizer"
	"github.com/BaSui01/cortex/rag"
	"github.com/BaSui01/cortex/rag/diskstore"
	"github.com/BaSui01/cortex/rag/docstore"
	"github.com/BaSui01/cortex/rag/parser"
	"github.com/BaSui01/cortex/rag/vectorstore"
)

// Option configures [New].
type Option func(*options)

type options struct {
	logger    *zap.Logger
	collector *metrics.Collector
	provider  llm.Provider
	embedder  embedding.Provider
	stores    *persistence.Stores
	vectors   vectorstore.Store
}

// WithLogger sets the root logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics reports LLM, indexing, retrieval, turn and memory metrics to c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithProvider replaces the configured LLM provider. The resilience and
// instrumentation wrappers are still applied.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithEmbedder replaces the configured embedding provider.
func WithEmbedder(e embedding.Provider) Option {
	return func(o *options) { o.embedder = e }
}

// WithStores replaces the conversation/document/memory stores. The caller
// keeps ownership; Close does not close them.
func WithStores(s *persistence.Stores) Option {
	return func(o *options) { o.stores = s }
}

// WithVectorStore replaces the configured vector database.
func WithVectorStore(v vectorstore.Store) Option {
	return func(o *options) { o.vectors = v }
}

// HealthCheck is a named dependency probe for readiness endpoints.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Dependencies is the assembled service graph.
type Dependencies struct {
	Provider llm.Provider
	Embedder embedding.Provider
	// Cache is nil when Redis is not configured.
	Cache     *cache.Manager
	Stores    *persistence.Stores
	Docstore  *docstore.SQLiteStore
	Vectors   vectorstore.Store
	Disk      *diskstore.Store
	Parser    *parser.Registry
	Tokenizer tokenizer.Tokenizer

	GraphIndex  *rag.GraphIndex
	SparseIndex *rag.SparseIndex
	VectorIndex *rag.VectorIndex
	Retrieval   *rag.Engine
	Indexing    *rag.Orchestrator

	Reasoning     *reasoning.Engine
	Composer      *reasoning.Composer
	Consolidator  *memory.Consolidator
	Agent         *conversation.Agent
	Conversations *conversation.Service

	checks  []HealthCheck
	closers []func() error
	logger  *zap.Logger
}

// New builds every component from cfg. On error, whatever was already
// opened is closed before returning.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (deps *Dependencies, err error) {
	if cfg == nil {
		return nil, errors.New("cortex: nil config")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	logger := o.logger

	// 观察者接口必须保持字面量 nil，不能是 typed nil
	var (
		llmObs    llm.Observer
		ragObs    rag.Observer
		turnObs   conversation.Observer
		memoryObs memory.Observer
	)
	if o.collector != nil {
		llmObs, ragObs, turnObs, memoryObs = o.collector, o.collector, o.collector, o.collector
	}

	d := &Dependencies{logger: logger.With(zap.String("component", "cortex"))}
	defer func() {
		if err != nil {
			_ = d.Close()
			deps = nil
		}
	}()

	// ========================================
	// 缓存（可选）
	// ========================================
	var decompositionCache reasoning.DecompositionCache
	cacheCfg := cache.Config{
		Addr:                cfg.Redis.Addr,
		Password:            cfg.Redis.Password,
		DB:                  cfg.Redis.DB,
		Namespace:           cfg.Redis.Namespace,
		DefaultTTL:          cfg.Redis.DefaultTTL,
		MaxRetries:          cache.DefaultConfig().MaxRetries,
		PoolSize:            cfg.Redis.PoolSize,
		TLS:                 cfg.Redis.TLS,
		HealthCheckInterval: cache.DefaultConfig().HealthCheckInterval,
	}
	if cacheCfg.Enabled() {
		d.Cache, err = cache.NewManager(cacheCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		d.closers = append(d.closers, d.closeCache)
		d.checks = append(d.checks, HealthCheck{Name: "redis", Ping: d.Cache.Ping})
		decompositionCache = d.Cache
	} else {
		logger.Info("redis not configured, caching disabled")
	}

	// ========================================
	// LLM 与嵌入
	// ========================================
	base := o.provider
	if base == nil {
		if cfg.LLM.APIKey == "" {
			logger.Warn("llm.api_key is empty, model calls will fail")
		}
		base = gemini.NewGeminiProvider(providers.GeminiConfig{
			BaseProviderConfig: providers.BaseProviderConfig{
				APIKey:  cfg.LLM.APIKey,
				BaseURL: cfg.LLM.BaseURL,
				Model:   cfg.LLM.Model,
				Timeout: cfg.LLM.Timeout,
			},
			RequestsPerMinute: cfg.LLM.RequestsPerMinute,
			Temperature:       cfg.LLM.Temperature,
		}, logger)
	}
	retry := llm.DefaultRetryPolicy()
	retry.MaxRetries = cfg.LLM.MaxRetries
	resilient := llm.NewResilientProvider(base, retry, llm.DefaultBreakerConfig(), logger)
	d.Provider = llm.NewInstrumentedProvider(resilient, llmObs, logger)

	embedder := o.embedder
	if embedder == nil {
		ecfg := embedding.DefaultGeminiConfig()
		ecfg.APIKey = cfg.LLM.APIKey
		if cfg.LLM.EmbeddingModel != "" {
			ecfg.Model = cfg.LLM.EmbeddingModel
		}
		if cfg.LLM.EmbeddingDimensions > 0 {
			ecfg.Dimensions = cfg.LLM.EmbeddingDimensions
		}
		if cfg.LLM.Timeout > 0 {
			ecfg.Timeout = cfg.LLM.Timeout
		}
		embedder = embedding.NewGeminiProvider(ecfg)
	}
	d.Embedder = embedding.NewCachedProvider(embedder, d.Cache, cfg.LLM.EmbeddingCacheTTL, logger)
	d.Tokenizer = tokenizer.ForModel("gpt-4o")

	// ========================================
	// 存储
	// ========================================
	if o.stores != nil {
		d.Stores = o.stores
	} else {
		d.Stores, err = persistence.NewStores(ctx, persistence.StoreConfig{
			Type: persistence.StoreType(cfg.Storage.Backend),
			Mongo: persistence.MongoConfig{
				URI:         cfg.Mongo.URI,
				Database:    cfg.Mongo.Database,
				Timeout:     cfg.Mongo.Timeout,
				MaxPoolSize: cfg.Mongo.MaxPoolSize,
			},
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init stores: %w", err)
		}
		d.closers = append(d.closers, d.Stores.Close)
	}
	d.checks = append(d.checks, HealthCheck{Name: "stores", Ping: d.Stores.Ping})

	d.Docstore, err = docstore.OpenSQLite(docstore.DefaultPath(cfg.Storage.Root), logger)
	if err != nil {
		return nil, fmt.Errorf("init docstore: %w", err)
	}
	d.closers = append(d.closers, d.Docstore.Close)
	d.checks = append(d.checks, HealthCheck{Name: "docstore", Ping: d.Docstore.Ping})

	switch {
	case o.vectors != nil:
		d.Vectors = o.vectors
	case cfg.Storage.VectorBackend == "pinecone":
		d.Vectors = vectorstore.NewPineconeStore(vectorstore.PineconeConfig{
			APIKey:  cfg.Pinecone.APIKey,
			Index:   cfg.Pinecone.Index,
			BaseURL: cfg.Pinecone.BaseURL,
			Timeout: cfg.Pinecone.Timeout,
		}, logger)
	default:
		d.Vectors = vectorstore.NewMemoryStore(logger)
	}

	d.Disk = diskstore.New(filepath.Clean(cfg.Storage.Root), logger)

	// ========================================
	// 解析器
	// ========================================
	d.Parser = parser.NewRegistry()
	if cfg.Parser.LlamaParseAPIKey != "" {
		d.Parser.SetFallback(parser.NewLlamaParseParser(parser.LlamaParseConfig{
			APIKey:   cfg.Parser.LlamaParseAPIKey,
			BaseURL:  cfg.Parser.LlamaParseBaseURL,
			Language: cfg.Parser.Language,
			Timeout:  cfg.Parser.Timeout,
		}, logger))
	}

	// ========================================
	// 索引与检索
	// ========================================
	d.GraphIndex = rag.NewGraphIndex(d.Disk, d.Provider, d.Embedder, rag.DefaultGraphIndexConfig(), logger)
	d.SparseIndex = rag.NewSparseIndex(d.Disk, d.Embedder, d.Tokenizer, rag.DefaultSparseChunking(), logger)
	d.VectorIndex = rag.NewVectorIndex(d.Vectors, d.Docstore, d.Provider, d.Embedder, rag.DefaultVectorIndexConfig(), logger)

	d.Indexing = rag.NewOrchestrator(
		[]rag.Indexer{d.VectorIndex, d.GraphIndex, d.SparseIndex},
		d.Stores.Documents, ragObs, logger,
	)
	d.Retrieval = rag.NewEngine(
		rag.NewVectorRetriever(d.Vectors, d.Docstore, d.Embedder, rag.DefaultVectorRetrieverConfig(), logger),
		rag.NewGraphRetriever(d.GraphIndex, d.Provider, d.Embedder, rag.DefaultGraphRetrieverConfig(), logger),
		rag.NewSparseRetriever(d.SparseIndex, d.Embedder, rag.DefaultSparseRetrieverConfig(), logger),
		rag.DefaultHybridConfig(), ragObs, logger,
	)

	// ========================================
	// 推理、对话与记忆
	// ========================================
	decomposer := reasoning.NewDecomposer(d.Provider, decompositionCache, reasoning.DecomposerConfig{
		HintWorkers: reasoning.DefaultDecomposerConfig().HintWorkers,
		CacheTTL:    cfg.Agent.DecompositionCacheTTL,
	}, logger)
	d.Composer = reasoning.NewComposer(d.Provider, reasoning.ComposerConfig{Workers: cfg.Agent.ComposerWorkers}, logger)
	d.Reasoning = reasoning.NewEngine(decomposer, d.Retrieval, d.Composer, logger)

	d.Consolidator = memory.NewConsolidator(memory.Deps{
		Provider:      d.Provider,
		Embedder:      d.Embedder,
		Vectors:       d.Vectors,
		Memories:      d.Stores.Memories,
		Conversations: d.Stores.Conversations,
		Tokenizer:     d.Tokenizer,
		Observer:      memoryObs,
	}, memory.Config{
		MaxTokens:  cfg.Agent.MemoryMaxTokens,
		RecallTopK: cfg.Agent.RecallTopK,
		Collection: memory.DefaultConfig().Collection,
	}, logger)

	policy, err := conversation.ParseToolCallPolicy(cfg.Agent.ToolCallPolicy)
	if err != nil {
		return nil, err
	}
	d.Agent = conversation.NewAgent(d.Provider, d.Reasoning, d.Composer, d.Stores.Conversations, turnObs, conversation.Config{
		HistoryWindow:  cfg.Agent.HistoryWindow,
		ToolCallPolicy: policy,
		Timeout:        cfg.Agent.TurnTimeout,
	}, logger)
	d.Conversations = conversation.NewService(d.Agent, d.Stores.Conversations, d.Consolidator, logger)

	d.logger.Info("dependencies assembled",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("vector_backend", cfg.Storage.VectorBackend),
		zap.Bool("cache", d.Cache != nil),
		zap.Strings("parsers", d.Parser.SupportedTypes()),
	)
	return d, nil
}

// HealthChecks returns the probes for every external dependency in use.
func (d *Dependencies) HealthChecks() []HealthCheck {
	out := make([]HealthCheck, len(d.checks))
	copy(out, d.checks)
	return out
}

// Close releases resources in reverse order of acquisition.
func (d *Dependencies) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// closeCache 记录本进程的缓存命中情况后关闭连接
func (d *Dependencies) closeCache() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if st, err := d.Cache.GetStats(ctx); err == nil {
		d.logger.Info("cache stats",
			zap.Uint64("hits", st.Hits),
			zap.Uint64("misses", st.Misses),
			zap.Int64("keys", st.Keys),
		)
	}
	return d.Cache.Close()
}
