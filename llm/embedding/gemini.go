package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/cortex/internal/tlsutil"
	"github.com/BaSui01/cortex/llm/providers"
)

const (
	geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiDefaultModel   = "gemini-embedding-001"
	geminiMaxBatch       = 100
)

// GeminiProvider 使用 Google Gemini API 执行嵌入.
// 注: Gemini 使用不同的端点格式: /models/{model}:embedContent
type GeminiProvider struct {
	cfg    GeminiConfig
	client *http.Client
}

// GeminiConfig 配置 Gemini 嵌入提供者.
type GeminiConfig struct {
	APIKey     string        `json:"api_key" yaml:"api_key" env:"API_KEY"`
	BaseURL    string        `json:"base_url" yaml:"base_url" env:"BASE_URL"`
	Model      string        `json:"model,omitempty" yaml:"model,omitempty" env:"MODEL"`
	Dimensions int           `json:"dimensions,omitempty" yaml:"dimensions,omitempty" env:"DIMENSIONS"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"TIMEOUT"`
}

// DefaultGeminiConfig 返回默认 Gemini 嵌入配置.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		BaseURL:    geminiDefaultBaseURL,
		Model:      geminiDefaultModel,
		Dimensions: 768,
		Timeout:    30 * time.Second,
	}
}

// NewGeminiProvider 创建新的 Gemini 嵌入提供者.
func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = geminiDefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = geminiDefaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &GeminiProvider{cfg: cfg, client: tlsutil.NewHTTPClient(timeout)}
}

func (p *GeminiProvider) Name() string    { return "gemini-embedding" }
func (p *GeminiProvider) Dimensions() int { return p.cfg.Dimensions }

type geminiTaskType string

const (
	geminiTaskRetrievalQuery    geminiTaskType = "RETRIEVAL_QUERY"
	geminiTaskRetrievalDocument geminiTaskType = "RETRIEVAL_DOCUMENT"
)

type geminiEmbedRequest struct {
	Model                string         `json:"model"`
	Content              geminiContent  `json:"content"`
	TaskType             geminiTaskType `json:"taskType,omitempty"`
	OutputDimensionality int            `json:"outputDimensionality,omitempty"`
}

type geminiBatchEmbedRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiBatchEmbedResponse struct {
	Embeddings []geminiContentEmbedding `json:"embeddings"`
}

type geminiContentEmbedding struct {
	Values []float64 `json:"values"`
}

func mapTaskType(inputType InputType) geminiTaskType {
	if inputType == InputTypeQuery {
		return geminiTaskRetrievalQuery
	}
	return geminiTaskRetrievalDocument
}

// Embed 使用 batchEmbedContents 生成嵌入，超出单批上限时分批请求.
func (p *GeminiProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	model := ChooseModel(req.Model, p.cfg.Model, geminiDefaultModel)
	dims := req.Dimensions
	if dims == 0 {
		dims = p.cfg.Dimensions
	}

	out := &EmbeddingResponse{Provider: p.Name(), Model: model, CreatedAt: time.Now()}
	for start := 0; start < len(req.Input); start += geminiMaxBatch {
		end := start + geminiMaxBatch
		if end > len(req.Input) {
			end = len(req.Input)
		}
		vectors, err := p.batchEmbed(ctx, req.Input[start:end], model, mapTaskType(req.InputType), dims)
		if err != nil {
			return nil, err
		}
		for i, v := range vectors {
			out.Embeddings = append(out.Embeddings, EmbeddingData{Index: start + i, Embedding: v})
		}
	}
	return out, nil
}

func (p *GeminiProvider) batchEmbed(ctx context.Context, texts []string, model string, taskType geminiTaskType, dims int) ([][]float64, error) {
	requests := make([]geminiEmbedRequest, len(texts))
	for i, text := range texts {
		requests[i] = geminiEmbedRequest{
			Model:                "models/" + model,
			Content:              geminiContent{Parts: []geminiPart{{Text: text}}},
			TaskType:             taskType,
			OutputDimensionality: dims,
		}
	}

	endpoint := fmt.Sprintf("%s/models/%s:batchEmbedContents", strings.TrimRight(p.cfg.BaseURL, "/"), model)
	var gResp geminiBatchEmbedResponse
	if err := p.doRequest(ctx, endpoint, geminiBatchEmbedRequest{Requests: requests}, &gResp); err != nil {
		return nil, err
	}
	if len(gResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(gResp.Embeddings), len(texts))
	}

	vectors := make([][]float64, len(gResp.Embeddings))
	for i, emb := range gResp.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// doRequest 使用 Gemini 特定认证执行 HTTP 请求.
func (p *GeminiProvider) doRequest(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	// Gemini 使用 x-goog-api-key 头（不是 Bearer 令牌）
	httpReq.Header.Set("x-goog-api-key", p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return providers.TransportError(err, p.Name())
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode >= 400 {
		return providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), p.Name())
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return providers.DecodeError(err, p.Name())
	}
	return nil
}

// EmbedQuery 嵌入单个查询.
func (p *GeminiProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	resp, err := p.Embed(ctx, &EmbeddingRequest{Input: []string{query}, InputType: InputTypeQuery})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Embeddings[0].Embedding, nil
}

// EmbedDocuments 嵌入多个文档.
func (p *GeminiProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	resp, err := p.Embed(ctx, &EmbeddingRequest{Input: documents, InputType: InputTypeDocument})
	if err != nil {
		return nil, err
	}
	result := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		result[i] = emb.Embedding
	}
	return result, nil
}
