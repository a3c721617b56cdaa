package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"Atlas/pkg/logger"
)

// State 熔断器状态
type State int

const (
	StateClosed   State = iota // 关闭状态：正常工作
	StateOpen                  // 开启状态：熔断中
	StateHalfOpen              // 半开状态：尝试恢复
)

// ErrBreakerOpen 熔断中，调用没有执行
var ErrBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreaker 外部依赖熔断器
type CircuitBreaker struct {
	name             string
	maxFailures      int           // 最大失败次数
	resetTimeout     time.Duration // 重置超时时间
	halfOpenMaxCalls int           // 半开状态最大调用次数
	now              func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	lastFailTime  time.Time
	halfOpenCalls int
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		maxFailures:      maxFailures,
		resetTimeout:     resetTimeout,
		halfOpenMaxCalls: 3,
		now:              time.Now,
		state:            StateClosed,
	}
}

// Call 执行带熔断保护的操作
func (cb *CircuitBreaker) Call(ctx context.Context, operation func(context.Context) error) error {
	if !cb.allowRequest() {
		return ErrBreakerOpen
	}

	err := operation(ctx)
	// 调用方主动取消不算上游失败
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) && !errors.Is(err, context.DeadlineExceeded) {
		cb.release()
		return err
	}
	cb.recordResult(err)
	return err
}

// allowRequest 检查是否允许请求
func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailTime) < cb.resetTimeout {
			return false
		}
		cb.transitionToHalfOpen()
		fallthrough
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMaxCalls {
			return false
		}
		cb.halfOpenCalls++
		return true
	default:
		return false
	}
}

// release 半开状态下归还一次试探名额
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.halfOpenCalls > 0 {
		cb.halfOpenCalls--
	}
}

// recordResult 记录操作结果
func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.transitionToClosed()
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.lastFailTime = cb.now()

	logger.Logger.Warn("Protected call failed",
		zap.String("breaker", cb.name),
		zap.Int("failures", cb.failures),
		zap.String("state", cb.stateName()),
	)

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.maxFailures {
			cb.transitionToOpen()
		}
	case StateHalfOpen:
		cb.transitionToOpen()
	}
}

func (cb *CircuitBreaker) transitionToClosed() {
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenCalls = 0

	logger.Logger.Info("Circuit breaker transitioned to closed",
		zap.String("breaker", cb.name),
	)
}

func (cb *CircuitBreaker) transitionToOpen() {
	cb.state = StateOpen
	cb.halfOpenCalls = 0

	logger.Logger.Warn("Circuit breaker transitioned to open",
		zap.String("breaker", cb.name),
		zap.Int("failures", cb.failures),
		zap.Duration("reset_timeout", cb.resetTimeout),
	)
}

func (cb *CircuitBreaker) transitionToHalfOpen() {
	cb.state = StateHalfOpen
	cb.halfOpenCalls = 0

	logger.Logger.Info("Circuit breaker transitioned to half-open",
		zap.String("breaker", cb.name),
	)
}

func (cb *CircuitBreaker) stateName() string {
	switch cb.state {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// GetState 获取当前状态
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// 全局熔断器实例
var (
	// 地理编码：连续失败 5 次后熔断，30 秒后尝试恢复
	GeocoderBreaker = NewCircuitBreaker("geocoder", 5, 30*time.Second)
)
