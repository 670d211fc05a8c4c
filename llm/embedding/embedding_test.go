package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/cortex/internal/cache"
	"github.com/BaSui01/cortex/llm"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChooseModel(t *testing.T) {
	assert.Equal(t, "req-model", ChooseModel("req-model", "default", "fallback"))
	assert.Equal(t, "default", ChooseModel("", "default", "fallback"))
	assert.Equal(t, "fallback", ChooseModel("", "", "fallback"))
}

func geminiServer(t *testing.T, requests *[]geminiBatchEmbedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-embedding-001:batchEmbedContents", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))

		var req geminiBatchEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*requests = append(*requests, req)

		resp := geminiBatchEmbedResponse{}
		for i := range req.Requests {
			resp.Embeddings = append(resp.Embeddings, geminiContentEmbedding{Values: []float64{float64(len(req.Requests[i].Content.Parts[0].Text)), 1}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiProvider_EmbedDocumentsBatches(t *testing.T) {
	var requests []geminiBatchEmbedRequest
	srv := geminiServer(t, &requests)
	p := NewGeminiProvider(GeminiConfig{APIKey: "k", BaseURL: srv.URL, Dimensions: 2})

	docs := make([]string, 150)
	for i := range docs {
		docs[i] = fmt.Sprintf("doc-%03d", i)
	}
	vecs, err := p.EmbedDocuments(context.Background(), docs)
	require.NoError(t, err)

	require.Len(t, vecs, 150)
	require.Len(t, requests, 2)
	assert.Len(t, requests[0].Requests, 100)
	assert.Len(t, requests[1].Requests, 50)
	assert.Equal(t, geminiTaskRetrievalDocument, requests[0].Requests[0].TaskType)
	assert.Equal(t, 2, requests[0].Requests[0].OutputDimensionality)
	assert.Equal(t, "models/gemini-embedding-001", requests[0].Requests[0].Model)
}

func TestGeminiProvider_EmbedQuery(t *testing.T) {
	var requests []geminiBatchEmbedRequest
	srv := geminiServer(t, &requests)
	p := NewGeminiProvider(GeminiConfig{APIKey: "k", BaseURL: srv.URL})

	vec, err := p.EmbedQuery(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1}, vec)
	assert.Equal(t, geminiTaskRetrievalQuery, requests[0].Requests[0].TaskType)
}

func TestGeminiProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"API key not valid","status":"UNAUTHENTICATED"}}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider(GeminiConfig{BaseURL: srv.URL})
	_, err := p.EmbedQuery(context.Background(), "q")
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrUnauthorized, llmErr.Code)
}

type countingProvider struct {
	calls int
}

func (c *countingProvider) EmbedQuery(_ context.Context, q string) ([]float64, error) {
	c.calls++
	return []float64{float64(len(q)), 0.5}, nil
}

func (c *countingProvider) EmbedDocuments(_ context.Context, docs []string) ([][]float64, error) {
	out := make([][]float64, len(docs))
	for i := range docs {
		out[i] = []float64{1}
	}
	return out, nil
}

func (c *countingProvider) Name() string    { return "counting" }
func (c *countingProvider) Dimensions() int { return 2 }

func TestCachedProvider(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := cache.DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.HealthCheckInterval = 0
	mgr, err := cache.NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	defer mgr.Close()

	inner := &countingProvider{}
	p := NewCachedProvider(inner, mgr, time.Hour, zap.NewNop())

	for i := 0; i < 3; i++ {
		vec, err := p.EmbedQuery(context.Background(), "what is KAG")
		require.NoError(t, err)
		assert.Equal(t, []float64{11, 0.5}, vec)
	}
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "counting", p.Name())
}

func TestNewCachedProvider_NilCache(t *testing.T) {
	inner := &countingProvider{}
	assert.Same(t, inner, NewCachedProvider(inner, nil, time.Hour, nil))
}
