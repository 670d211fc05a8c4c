package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

// promauto 注册到默认 registry，每个测试使用独立 namespace
func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.llmRequestsTotal)
	assert.NotNil(t, collector.indexTasksTotal)
	assert.NotNil(t, collector.retrievalsTotal)
	assert.NotNil(t, collector.agentTurnsTotal)
	assert.NotNil(t, collector.memoryActionsTotal)
}

func TestNewCollector_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() { NewCollector(nextTestNamespace(), nil) })
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("POST", "/respond", 200, 100*time.Millisecond, 1024, 2048)
	collector.RecordHTTPRequest("POST", "/respond", 201, 50*time.Millisecond, 512, 1024)
	collector.RecordHTTPRequest("POST", "/respond", 500, 50*time.Millisecond, 512, 64)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/respond", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/respond", "5xx")))
}

func TestCollector_ObserveLLMRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveLLMRequest("gemini", "gemini-1.5-flash", true, 500*time.Millisecond, 100, 50)
	collector.ObserveLLMRequest("gemini", "gemini-1.5-flash", false, time.Second, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.llmRequestsTotal.WithLabelValues("gemini", "gemini-1.5-flash", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.llmRequestsTotal.WithLabelValues("gemini", "gemini-1.5-flash", "error")))
	assert.Equal(t, 100.0, testutil.ToFloat64(collector.llmTokensUsed.WithLabelValues("gemini", "gemini-1.5-flash", "prompt")))
	assert.Equal(t, 50.0, testutil.ToFloat64(collector.llmTokensUsed.WithLabelValues("gemini", "gemini-1.5-flash", "completion")))
}

func TestCollector_IndexAndRetrieval(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveIndexTask("vector", true, 2*time.Second)
	collector.ObserveIndexTask("sparse", false, time.Second)
	collector.ObserveRetrieval("graph", true, 20*time.Millisecond)
	collector.ObserveRetrieval("graph", true, 30*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.indexTasksTotal.WithLabelValues("vector", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.indexTasksTotal.WithLabelValues("sparse", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.retrievalsTotal.WithLabelValues("graph", "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.retrievalDuration))
}

func TestCollector_TurnsAndMemory(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveTurn("knowledge", true, time.Second)
	collector.ObserveTurn("direct", false, time.Second)
	collector.ObserveMemory("create", true, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.agentTurnsTotal.WithLabelValues("knowledge", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.agentTurnsTotal.WithLabelValues("direct", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.memoryActionsTotal.WithLabelValues("create", "success")))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("GET", "/health", 200, time.Millisecond, 0, 16)
			collector.ObserveRetrieval("vector", true, time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/health", "2xx")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.retrievalsTotal.WithLabelValues("vector", "success")))
}

func TestStatusCode(t *testing.T) {
	cases := map[int]string{200: "2xx", 204: "2xx", 301: "3xx", 404: "4xx", 503: "5xx", 100: "unknown"}
	for code, want := range cases {
		assert.Equal(t, want, statusCode(code), "code %d", code)
	}
}
