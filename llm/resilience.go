package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy 控制 ResilientProvider 的指数退避重试。
type RetryPolicy struct {
	MaxRetries     int           `json:"max_retries" yaml:"max_retries"`
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff" yaml:"max_backoff"`
	Multiplier     float64       `json:"multiplier" yaml:"multiplier"`
}

// DefaultRetryPolicy 返回默认重试策略。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     20 * time.Second,
		Multiplier:     2.0,
	}
}

// BreakerConfig 配置熔断器。
type BreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold" yaml:"failure_threshold"`
	Cooldown         time.Duration `json:"cooldown" yaml:"cooldown"`
}

// DefaultBreakerConfig 返回默认熔断配置。
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Cooldown: 30 * time.Second}
}

// ErrCircuitOpen 在熔断器打开期间返回。
var ErrCircuitOpen = errors.New("llm circuit breaker is open")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// breaker 是一个按连续失败次数打开、冷却后半开探测的熔断器。
type breaker struct {
	cfg      BreakerConfig
	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
	now      func() time.Time
	logger   *zap.Logger
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != breakerOpen {
		return true
	}
	if b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.state = breakerHalfOpen
		return true
	}
	return false
}

func (b *breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		if b.state != breakerClosed {
			b.logger.Info("llm circuit breaker closed")
		}
		b.state = breakerClosed
		b.failures = 0
		return
	}
	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.cfg.FailureThreshold {
		if b.state != breakerOpen {
			b.logger.Warn("llm circuit breaker opened", zap.Int("failures", b.failures))
		}
		b.state = breakerOpen
		b.openedAt = b.now()
	}
}

// ResilientProvider 为任意 Provider 增加重试与熔断。
// 只有 Retryable 的 *Error 会触发重试。
type ResilientProvider struct {
	provider Provider
	policy   RetryPolicy
	breaker  *breaker
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *zap.Logger
}

// NewResilientProvider 包装 provider。
func NewResilientProvider(provider Provider, policy RetryPolicy, cfg BreakerConfig, logger *zap.Logger) *ResilientProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FailureThreshold <= 0 {
		cfg = DefaultBreakerConfig()
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 1
	}
	logger = logger.With(zap.String("component", "llm_resilience"), zap.String("provider", provider.Name()))
	return &ResilientProvider{
		provider: provider,
		policy:   policy,
		breaker:  &breaker{cfg: cfg, now: time.Now, logger: logger},
		sleep:    sleepCtx,
		logger:   logger,
	}
}

// Completion 在熔断器保护下调用底层 Provider，失败时按策略退避重试。
func (rp *ResilientProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if !rp.breaker.allow() {
		return nil, ErrCircuitOpen
	}

	backoff := rp.policy.InitialBackoff
	var lastErr error
	for attempt := 0; attempt <= rp.policy.MaxRetries; attempt++ {
		resp, err := rp.provider.Completion(ctx, req)
		if err == nil {
			rp.breaker.record(nil)
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == rp.policy.MaxRetries {
			break
		}
		rp.logger.Debug("retrying completion",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if err := rp.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
		backoff = time.Duration(float64(backoff) * rp.policy.Multiplier)
		if rp.policy.MaxBackoff > 0 && backoff > rp.policy.MaxBackoff {
			backoff = rp.policy.MaxBackoff
		}
	}
	rp.breaker.record(lastErr)
	return nil, lastErr
}

// HealthCheck 透传。
func (rp *ResilientProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return rp.provider.HealthCheck(ctx)
}

// Name 透传。
func (rp *ResilientProvider) Name() string { return rp.provider.Name() }

// IsRetryable reports whether err is an *Error marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
