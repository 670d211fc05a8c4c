package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/BaSui01/cortex/llm"
	"github.com/BaSui01/cortex/llm/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeminiProvider(providers.GeminiConfig{
		BaseProviderConfig: providers.BaseProviderConfig{
			APIKey:  "test-key",
			BaseURL: srv.URL,
			Model:   "gemini-test",
			Timeout: 5 * time.Second,
		},
	}, zap.NewNop())
}

func TestGeminiProvider_Name(t *testing.T) {
	provider := NewGeminiProvider(providers.GeminiConfig{}, zap.NewNop())
	assert.Equal(t, "gemini", provider.Name())
	assert.Equal(t, defaultBaseURL, provider.cfg.BaseURL)
}

func TestGeminiProvider_CompletionRequestShape(t *testing.T) {
	var got geminiRequest
	var path, key string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"a\":1}"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":2,"totalTokenCount":5}}`))
	})

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "be terse"},
			{Role: llm.RoleUser, Content: "hi"},
			{Role: llm.RoleAssistant, Content: "hello"},
		},
		ResponseFormat: &llm.ResponseFormat{Schema: json.RawMessage(`{"type":"object"}`)},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-test:generateContent", path)
	assert.Equal(t, "test-key", key)
	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "be terse", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 2)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "model", got.Contents[1].Role)
	require.NotNil(t, got.GenerationConfig)
	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMimeType)
	assert.JSONEq(t, `{"type":"object"}`, string(got.GenerationConfig.ResponseJSONSchema))

	msg, ok := resp.FirstMessage()
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, msg.Content)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestGeminiProvider_ToolCalls(t *testing.T) {
	var got geminiRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"responseId":"r1","candidates":[{"content":{"parts":[
			{"functionCall":{"name":"KnowledgeSearch","args":{"query":"what is KAG"}}},
			{"functionCall":{"name":"TableOperator","args":{"input_text":"x","table_modification_instruction":"add"}}}
		]}}]}`))
	})

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "search"}},
		Tools: []llm.ToolSchema{{
			Name:       "KnowledgeSearch",
			Parameters: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}}}`),
		}},
	})
	require.NoError(t, err)

	require.Len(t, got.Tools, 1)
	assert.Equal(t, "KnowledgeSearch", got.Tools[0].FunctionDeclarations[0].Name)
	require.NotNil(t, got.ToolConfig)
	assert.Equal(t, "AUTO", got.ToolConfig.FunctionCallingConfig.Mode)

	msg, _ := resp.FirstMessage()
	require.Len(t, msg.ToolCalls, 2)
	assert.Equal(t, "call_r1_KnowledgeSearch_0", msg.ToolCalls[0].ID)
	assert.JSONEq(t, `{"query":"what is KAG"}`, string(msg.ToolCalls[0].Arguments))
	assert.Equal(t, "TableOperator", msg.ToolCalls[1].Name)
}

func TestGeminiProvider_ErrorMapping(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	})

	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrRateLimited, llmErr.Code)
	assert.True(t, llmErr.Retryable)
	assert.Contains(t, llmErr.Message, "Resource exhausted")
}

func TestGeminiProvider_BlockedPrompt(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	})

	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrContentFiltered, llmErr.Code)
}

func TestGeminiProvider_EmptyMessages(t *testing.T) {
	p := NewGeminiProvider(providers.GeminiConfig{}, zap.NewNop())
	_, err := p.Completion(context.Background(), &llm.ChatRequest{})
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrInvalidRequest, llmErr.Code)
}

func TestGeminiProvider_HealthCheck(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	})

	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}

func TestConvertToGeminiContents_ToolResult(t *testing.T) {
	_, contents := convertToGeminiContents([]llm.Message{
		{Role: llm.RoleTool, Name: "KnowledgeSearch", ToolCallID: "c1", Content: "plain answer"},
	})
	require.Len(t, contents, 1)
	require.NotNil(t, contents[0].Parts[0].FunctionResponse)
	assert.Equal(t, "plain answer", contents[0].Parts[0].FunctionResponse.Response["result"])
}

func TestGeminiProvider_Integration(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set, skipping integration test")
	}

	p := NewGeminiProvider(providers.GeminiConfig{
		BaseProviderConfig: providers.BaseProviderConfig{APIKey: apiKey, Timeout: 30 * time.Second},
	}, zap.NewNop())

	text, err := llm.CompletePrompt(context.Background(), p, "", "Say 'test' only")
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}
