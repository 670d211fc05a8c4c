package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// MemoryStore 内存向量存储（用于测试和单机部署）
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Record
	logger      *zap.Logger
}

// NewMemoryStore 创建内存向量存储
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		collections: make(map[string]map[string]Record),
		logger:      logger.With(zap.String("component", "memory_vector_store")),
	}
}

// Upsert 写入记录
func (s *MemoryStore) Upsert(ctx context.Context, collection string, records []Record) error {
	if strings.TrimSpace(collection) == "" {
		return ErrEmptyCollection
	}
	for i, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record[%d] has empty id", i)
		}
		if len(r.Values) == 0 {
			return fmt.Errorf("record %s has no embedding", r.ID)
		}
	}
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]Record)
		s.collections[collection] = coll
	}
	for _, r := range records {
		values := make([]float64, len(r.Values))
		copy(values, r.Values)
		coll[r.ID] = Record{ID: r.ID, Values: values, Text: r.Text, Metadata: cloneMetadata(r.Metadata)}
	}

	s.logger.Debug("records upserted",
		zap.String("collection", collection),
		zap.Int("count", len(records)),
	)
	return nil
}

// Query 线性扫描计算余弦相似度
func (s *MemoryStore) Query(ctx context.Context, collection string, vector []float64, topK int, filter Filter) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}

	s.mu.RLock()
	coll := s.collections[collection]
	matches := make([]Match, 0, len(coll))
	for _, r := range coll {
		if !filter.Matches(r.Metadata) {
			continue
		}
		matches = append(matches, Match{
			Record: Record{ID: r.ID, Text: r.Text, Metadata: cloneMetadata(r.Metadata)},
			Score:  ClampScore(Cosine(vector, r.Values)),
		})
	}
	s.mu.RUnlock()

	SortMatches(matches)
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete 删除记录；空分区随之移除
func (s *MemoryStore) Delete(ctx context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(coll, id)
	}
	if len(coll) == 0 {
		delete(s.collections, collection)
	}
	return nil
}

// CollectionExists 报告分区是否存在
func (s *MemoryStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection]) > 0, nil
}

// Count 返回分区内记录数
func (s *MemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}
