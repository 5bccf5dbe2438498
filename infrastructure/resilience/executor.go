// Package resilience provides resilient execution patterns using fortify.
package resilience

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

// Func is an operation run under the executor's patterns.
type Func[T any] func(ctx context.Context) (T, error)

// Executor composes bulkhead, timeout, circuit breaker and retry around
// agent calls and project tools.
type Executor[T any] struct {
	bulkhead bulkhead.Bulkhead[T]
	breaker  circuitbreaker.CircuitBreaker[T]
	retry    retry.Retry[T]
	timeout  time.Duration
}

// ExecutorConfig configures the resilient executor.
type ExecutorConfig struct {
	// MaxConcurrent limits concurrent executions.
	MaxConcurrent int

	// CircuitBreakerThreshold is the number of consecutive failures before opening.
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout time.Duration

	// RetryMaxAttempts is the maximum number of attempts.
	RetryMaxAttempts int

	// RetryInitialDelay is the initial delay between retries.
	RetryInitialDelay time.Duration

	// RetryBackoffMultiplier is the exponential backoff multiplier.
	RetryBackoffMultiplier float64

	// RetryMaxDelay caps the delay between retries. Zero leaves it uncapped.
	RetryMaxDelay time.Duration

	// DefaultTimeout bounds each execution. Zero disables it.
	DefaultTimeout time.Duration

	// NonRetryable lists errors that end the retry loop immediately.
	NonRetryable []error
}

// DefaultExecutorConfig returns a configuration with sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrent:           4,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		RetryMaxAttempts:        3,
		RetryInitialDelay:       500 * time.Millisecond,
		RetryBackoffMultiplier:  2.0,
		DefaultTimeout:          120 * time.Second,
	}
}

// NewExecutor creates a new resilient executor.
func NewExecutor[T any](config ExecutorConfig) *Executor[T] {
	// Ensure non-negative values for uint32 conversion (G115 fix)
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	threshold := config.CircuitBreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	attempts := config.RetryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	multiplier := config.RetryBackoffMultiplier
	if multiplier < 1 {
		multiplier = 2.0
	}

	return &Executor[T]{
		bulkhead: bulkhead.New[T](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
		}),
		breaker: circuitbreaker.New[T](circuitbreaker.Config{
			MaxRequests: uint32(maxConcurrent), // #nosec G115 -- bounds checked above
			Interval:    config.CircuitBreakerTimeout,
			Timeout:     config.CircuitBreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- bounds checked above
			},
		}),
		retry: retry.New[T](retry.Config{
			MaxAttempts:        attempts,
			InitialDelay:       config.RetryInitialDelay,
			MaxDelay:           config.RetryMaxDelay,
			BackoffPolicy:      retry.BackoffExponential,
			Multiplier:         multiplier,
			NonRetryableErrors: config.NonRetryable,
		}),
		timeout: config.DefaultTimeout,
	}
}

// Execute runs fn with every pattern applied.
// Composition order: Bulkhead → Timeout → Circuit Breaker → Retry
func (e *Executor[T]) Execute(ctx context.Context, fn Func[T]) (T, error) {
	return e.bulkhead.Execute(ctx, func(ctx context.Context) (T, error) {
		ctx, cancel := e.withTimeout(ctx)
		defer cancel()

		return e.breaker.Execute(ctx, func(ctx context.Context) (T, error) {
			return e.retry.Do(ctx, func(ctx context.Context) (T, error) {
				return fn(ctx)
			})
		})
	})
}

// ExecuteOnce runs fn behind the timeout and circuit breaker without retry.
// Use this for operations that are not idempotent.
func (e *Executor[T]) ExecuteOnce(ctx context.Context, fn Func[T]) (T, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	return e.breaker.Execute(ctx, func(ctx context.Context) (T, error) {
		return fn(ctx)
	})
}

// Retry runs fn under the retry policy only.
func (e *Executor[T]) Retry(ctx context.Context, fn Func[T]) (T, error) {
	return e.retry.Do(ctx, func(ctx context.Context) (T, error) {
		return fn(ctx)
	})
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (e *Executor[T]) CircuitBreakerState() circuitbreaker.State {
	return e.breaker.State()
}

func (e *Executor[T]) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}
