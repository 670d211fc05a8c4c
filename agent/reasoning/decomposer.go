package reasoning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/cortex/internal/cache"
	"github.com/BaSui01/cortex/llm"
	"github.com/BaSui01/cortex/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DecompositionCache stores decompositions by query; *cache.Manager satisfies it.
type DecompositionCache interface {
	Key(kind string, parts ...string) string
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// DecomposerConfig 查询分解配置
type DecomposerConfig struct {
	// HintWorkers 并发生成实体提示的上限
	HintWorkers int `json:"hint_workers" yaml:"hint_workers"`
	// CacheTTL 分解结果缓存时长，0 使用缓存默认值
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
}

// DefaultDecomposerConfig 返回默认配置
func DefaultDecomposerConfig() DecomposerConfig {
	return DecomposerConfig{HintWorkers: 4, CacheTTL: time.Hour}
}

// Decomposer splits a question into ordered sub-queries with graph hints.
type Decomposer struct {
	llm    llm.Provider
	cache  DecompositionCache
	cfg    DecomposerConfig
	logger *zap.Logger
}

// NewDecomposer 创建查询分解器；cache 可为 nil。
func NewDecomposer(provider llm.Provider, c DecompositionCache, cfg DecomposerConfig, logger *zap.Logger) *Decomposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HintWorkers <= 0 {
		cfg.HintWorkers = DefaultDecomposerConfig().HintWorkers
	}
	return &Decomposer{
		llm:    provider,
		cache:  c,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "decomposer")),
	}
}

type decomposition struct {
	SubQueries []string `json:"sub_queries"`
}

// Decompose returns at least one sub-query; an empty decomposition is a
// DecompositionError and never falls back to the original query.
func (d *Decomposer) Decompose(ctx context.Context, query string) ([]types.SubQuery, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.NewDecompositionError("query is empty", nil)
	}

	var key string
	if d.cache != nil {
		key = d.cache.Key("decompose", query)
		var cached []types.SubQuery
		err := d.cache.GetJSON(ctx, key, &cached)
		if err == nil && len(cached) > 0 {
			d.logger.Debug("decomposition cache hit", zap.String("query", query))
			return cached, nil
		}
		if err != nil && !cache.IsCacheMiss(err) {
			d.logger.Warn("decomposition cache read failed", zap.Error(err))
		}
	}

	var out decomposition
	req := &llm.ChatRequest{Messages: llm.PromptMessages(decomposeSystemPrompt, query)}
	if err := llm.CompleteJSON(ctx, d.llm, req, subQueriesSchema, &out); err != nil {
		return nil, types.NewDecompositionError("sub-query generation failed", err)
	}
	texts := make([]string, 0, len(out.SubQueries))
	for _, s := range out.SubQueries {
		if s = strings.TrimSpace(s); s != "" {
			texts = append(texts, s)
		}
	}
	if len(texts) == 0 {
		return nil, types.NewDecompositionError(fmt.Sprintf("no sub-queries produced for %q", query), nil)
	}

	subQueries := make([]types.SubQuery, len(texts))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(d.cfg.HintWorkers)
	for i, text := range texts {
		eg.Go(func() error {
			hint, err := llm.CompletePrompt(egCtx, d.llm, "", fmt.Sprintf(hintPrompt, text))
			if err != nil {
				return types.NewDecompositionError(fmt.Sprintf("graph hint failed for %q", text), err)
			}
			subQueries[i] = types.SubQuery{Text: text, StructuredHint: strings.TrimSpace(hint)}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if d.cache != nil {
		if err := d.cache.SetJSON(ctx, key, subQueries, d.cfg.CacheTTL); err != nil {
			d.logger.Warn("decomposition cache write failed", zap.Error(err))
		}
	}
	d.logger.Info("query decomposed", zap.String("query", query), zap.Int("sub_queries", len(subQueries)))
	return subQueries, nil
}
