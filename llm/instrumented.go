package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/BaSui01/cortex/llm")

// Observer 接收每次 Completion 的耗时与 token 用量。
type Observer interface {
	ObserveLLMRequest(provider, model string, success bool, d time.Duration, promptTokens, completionTokens int)
}

// InstrumentedProvider 为 Provider 增加 span、指标与调试日志。
type InstrumentedProvider struct {
	provider Provider
	observer Observer
	logger   *zap.Logger
}

// NewInstrumentedProvider 包装 provider；observer 可为 nil。
func NewInstrumentedProvider(provider Provider, observer Observer, logger *zap.Logger) *InstrumentedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedProvider{
		provider: provider,
		observer: observer,
		logger:   logger.With(zap.String("component", "llm"), zap.String("provider", provider.Name())),
	}
}

func (p *InstrumentedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	ctx, span := tracer.Start(ctx, "llm.completion", trace.WithAttributes(
		attribute.String("llm.provider", p.provider.Name()),
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.messages", len(req.Messages)),
		attribute.Int("llm.tools", len(req.Tools)),
	))
	defer span.End()

	start := time.Now()
	resp, err := p.provider.Completion(ctx, req)
	d := time.Since(start)

	model := req.Model
	var usage ChatUsage
	if resp != nil {
		usage = resp.Usage
		if resp.Model != "" {
			model = resp.Model
		}
	}
	if p.observer != nil {
		p.observer.ObserveLLMRequest(p.provider.Name(), model, err == nil, d, usage.PromptTokens, usage.CompletionTokens)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("completion failed", zap.String("model", model), zap.Duration("duration", d), zap.Error(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", usage.PromptTokens),
		attribute.Int("llm.completion_tokens", usage.CompletionTokens),
	)
	p.logger.Debug("completion",
		zap.String("model", model),
		zap.Duration("duration", d),
		zap.Int("total_tokens", usage.TotalTokens))
	return resp, nil
}

func (p *InstrumentedProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return p.provider.HealthCheck(ctx)
}

func (p *InstrumentedProvider) Name() string { return p.provider.Name() }
