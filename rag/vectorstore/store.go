package vectorstore

import (
	"context"
	"errors"
	"math"
	"sort"
)

// ErrEmptyCollection is returned when a collection name is blank.
var ErrEmptyCollection = errors.New("vectorstore: collection is required")

// Record is one stored vector with its text payload and flat metadata.
type Record struct {
	ID       string            `json:"id"`
	Values   []float64         `json:"values"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Match is a query hit. Score is cosine similarity clamped to [0,1].
type Match struct {
	Record
	Score float64 `json:"score"`
}

// Filter selects records whose metadata equals every given key/value.
type Filter map[string]string

// Matches reports whether meta satisfies the filter.
func (f Filter) Matches(meta map[string]string) bool {
	for k, v := range f {
		if meta[k] != v {
			return false
		}
	}
	return true
}

// Store 向量数据库接口，collection 为租户分区（Pinecone namespace / 内存分区）。
type Store interface {
	// Upsert 写入或覆盖记录
	Upsert(ctx context.Context, collection string, records []Record) error

	// Query 返回按分数降序的前 topK 条命中
	Query(ctx context.Context, collection string, vector []float64, topK int, filter Filter) ([]Match, error)

	// Delete 按 ID 删除记录
	Delete(ctx context.Context, collection string, ids []string) error

	// CollectionExists 报告分区是否存在且非空
	CollectionExists(ctx context.Context, collection string) (bool, error)
}

// ClampScore forces a similarity score into [0,1].
func ClampScore(score float64) float64 {
	switch {
	case math.IsNaN(score) || score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

// Cosine returns the cosine similarity of two vectors, 0 on length mismatch or zero norm.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SortMatches orders matches by descending score, breaking ties by id.
func SortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
}

func cloneMetadata(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
