// MockEmbedder 的嵌入提供商测试模拟实现。
//
// 默认按词袋哈希生成确定性向量：共享词越多，余弦相似度越高。
package mocks

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// MockEmbedder 是 embedding.Provider 的模拟实现
type MockEmbedder struct {
	mu sync.RWMutex

	dims    int
	vectors map[string][]float64
	err     error

	queryCalls    int
	documentCalls int
}

// NewMockEmbedder 创建新的 MockEmbedder，默认 64 维
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{dims: 64, vectors: make(map[string][]float64)}
}

// WithVector 为指定文本固定返回 vec
func (m *MockEmbedder) WithVector(text string, vec []float64) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[text] = vec
	return m
}

// WithError 设置返回错误
func (m *MockEmbedder) WithError(err error) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Name 返回提供者名称
func (m *MockEmbedder) Name() string { return "mock-embedding" }

// Dimensions 返回向量维度
func (m *MockEmbedder) Dimensions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dims
}

// EmbedQuery 嵌入单个查询
func (m *MockEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.embed(query), nil
}

// EmbedDocuments 嵌入多个文档
func (m *MockEmbedder) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documentCalls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float64, len(documents))
	for i, d := range documents {
		out[i] = m.embed(d)
	}
	return out, nil
}

// QueryCalls 返回 EmbedQuery 调用次数
func (m *MockEmbedder) QueryCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryCalls
}

// DocumentCalls 返回 EmbedDocuments 调用次数
func (m *MockEmbedder) DocumentCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.documentCalls
}

func (m *MockEmbedder) embed(text string) []float64 {
	if v, ok := m.vectors[text]; ok {
		return append([]float64(nil), v...)
	}
	vec := make([]float64, m.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[int(h.Sum32())%m.dims]++
	}
	var norm float64
	for _, x := range vec {
		norm += x * x
	}
	if norm == 0 {
		// 空文本仍返回非零向量，避免余弦除零
		vec[0] = 1
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
