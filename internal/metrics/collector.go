// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。它同时实现 rag.Observer、conversation.Observer、
// memory.Observer 与 llm.Observer。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	// 索引与检索指标
	indexTasksTotal   *prometheus.CounterVec
	indexTaskDuration *prometheus.HistogramVec
	retrievalsTotal   *prometheus.CounterVec
	retrievalDuration *prometheus.HistogramVec

	// 对话与记忆指标
	agentTurnsTotal      *prometheus.CounterVec
	agentTurnDuration    *prometheus.HistogramVec
	memoryActionsTotal   *prometheus.CounterVec
	memoryActionDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// LLM 指标
	c.llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	// 索引与检索指标
	c.indexTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_tasks_total",
			Help:      "Total number of backend indexing tasks",
		},
		[]string{"backend", "status"},
	)

	c.indexTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_task_duration_seconds",
			Help:      "Backend indexing task duration in seconds",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"backend"},
	)

	c.retrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Total number of retrieval path executions",
		},
		[]string{"path", "status"},
	)

	c.retrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Retrieval path duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	// 对话与记忆指标
	c.agentTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_turns_total",
			Help:      "Total number of conversation turns by route",
		},
		[]string{"route", "status"},
	)

	c.agentTurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_turn_duration_seconds",
			Help:      "Conversation turn duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"route"},
	)

	c.memoryActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_actions_total",
			Help:      "Total number of memory consolidation decisions",
		},
		[]string{"action", "status"},
	)

	c.memoryActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_action_duration_seconds",
			Help:      "Memory consolidation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"action"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🤖 LLM 指标记录
// =============================================================================

// ObserveLLMRequest 记录一次 LLM 调用
func (c *Collector) ObserveLLMRequest(provider, model string, success bool, duration time.Duration, promptTokens, completionTokens int) {
	c.llmRequestsTotal.WithLabelValues(provider, model, outcome(success)).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// =============================================================================
// 📚 索引与检索指标记录
// =============================================================================

// ObserveIndexTask 记录单个后端的索引任务
func (c *Collector) ObserveIndexTask(source string, success bool, d time.Duration) {
	c.indexTasksTotal.WithLabelValues(source, outcome(success)).Inc()
	c.indexTaskDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveRetrieval 记录单条检索路径
func (c *Collector) ObserveRetrieval(path string, success bool, d time.Duration) {
	c.retrievalsTotal.WithLabelValues(path, outcome(success)).Inc()
	c.retrievalDuration.WithLabelValues(path).Observe(d.Seconds())
}

// =============================================================================
// 🎭 对话与记忆指标记录
// =============================================================================

// ObserveTurn 记录一次对话轮次
func (c *Collector) ObserveTurn(route string, success bool, d time.Duration) {
	c.agentTurnsTotal.WithLabelValues(route, outcome(success)).Inc()
	c.agentTurnDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveMemory 记录一次记忆整合
func (c *Collector) ObserveMemory(action string, success bool, d time.Duration) {
	c.memoryActionsTotal.WithLabelValues(action, outcome(success)).Inc()
	c.memoryActionDuration.WithLabelValues(action).Observe(d.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
