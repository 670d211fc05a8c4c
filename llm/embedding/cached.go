package embedding

import (
	"context"
	"time"

	"github.com/BaSui01/cortex/internal/cache"
	"go.uber.org/zap"
)

// CachedProvider 在 Redis 中缓存查询向量。文档向量不缓存：
// 它们只在索引时计算一次。
type CachedProvider struct {
	Provider
	cache  *cache.Manager
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProvider 包装 inner；cache 为 nil 时直接返回 inner。
func NewCachedProvider(inner Provider, c *cache.Manager, ttl time.Duration, logger *zap.Logger) Provider {
	if c == nil {
		return inner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{
		Provider: inner,
		cache:    c,
		ttl:      ttl,
		logger:   logger.With(zap.String("component", "embedding_cache")),
	}
}

// EmbedQuery 先查缓存；缓存故障只记录日志，不影响嵌入结果。
func (c *CachedProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	key := c.cache.Key("embedding", c.Provider.Name(), query)

	var vec []float64
	err := c.cache.GetJSON(ctx, key, &vec)
	if err == nil && len(vec) > 0 {
		return vec, nil
	}
	if err != nil && !cache.IsCacheMiss(err) {
		c.logger.Warn("embedding cache read failed", zap.Error(err))
	}

	vec, err = c.Provider.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetJSON(ctx, key, vec, c.ttl); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}
