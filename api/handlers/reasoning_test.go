package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/cortex/api"
	"github.com/BaSui01/cortex/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type thinkerFunc func(ctx context.Context, ownerID, query string) (*types.ThinkingOutput, error)

func (f thinkerFunc) Think(ctx context.Context, ownerID, query string) (*types.ThinkingOutput, error) {
	return f(ctx, ownerID, query)
}

type sparseFunc func(ctx context.Context, indexName, query string, threshold float64) ([]string, string, error)

func (f sparseFunc) SparseRetrieve(ctx context.Context, indexName, query string, threshold float64) ([]string, string, error) {
	return f(ctx, indexName, query, threshold)
}

func TestReasoningHandler_HandleReason(t *testing.T) {
	thinker := thinkerFunc(func(_ context.Context, ownerID, query string) (*types.ThinkingOutput, error) {
		if query == "explode" {
			return nil, types.NewKnowledgeGraphRetrieverError("graph collection missing", nil)
		}
		return &types.ThinkingOutput{
			Reasoning:   []types.ReasoningStep{{SubQueryText: query}},
			FinalAnswer: "answer for " + ownerID,
			Table:       types.Table{},
		}, nil
	})
	h := NewReasoningHandler(thinker, nil, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleReason(w, httptest.NewRequest(http.MethodPost, "/reason", strings.NewReader(`{"username":"u1","query":"What is X?"}`)))
	require.Equal(t, http.StatusOK, w.Code)
	var out types.ThinkingOutput
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	assert.Equal(t, "answer for u1", out.FinalAnswer)
	require.Len(t, out.Reasoning, 1)

	w = httptest.NewRecorder()
	h.HandleReason(w, httptest.NewRequest(http.MethodPost, "/reason", strings.NewReader(`{"username":"u1","query":"explode"}`)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "graph collection missing")

	w = httptest.NewRecorder()
	h.HandleReason(w, httptest.NewRequest(http.MethodPost, "/reason", strings.NewReader(`{"username":"u1"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReasoningHandler_HandleSparseRetrieve(t *testing.T) {
	sparse := sparseFunc(func(_ context.Context, indexName, query string, threshold float64) ([]string, string, error) {
		assert.Equal(t, "u1", indexName)
		assert.Equal(t, 0.6, threshold)
		return []string{"n1", "n2"}, "one two", nil
	})
	h := NewReasoningHandler(nil, sparse, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleSparseRetrieve(w, httptest.NewRequest(http.MethodPost, "/sparse-retrieve",
		strings.NewReader(`{"query":"x","index_name":"u1","score_threshold":0.6}`)))
	require.Equal(t, http.StatusOK, w.Code)
	var resp api.SparseRetrieveResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, []string{"n1", "n2"}, resp.Results)
	assert.Equal(t, "one two", resp.CombinedText)
}
