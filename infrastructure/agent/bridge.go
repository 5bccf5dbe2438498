package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
	"github.com/felixgeelhaar/echo-go/infrastructure/observability"
	"github.com/felixgeelhaar/echo-go/infrastructure/resilience"
	"github.com/felixgeelhaar/echo-go/infrastructure/telemetry"
)

// Config configures the bridge.
type Config struct {
	// StartupTimeout bounds each backend start.
	StartupTimeout time.Duration

	// Send configures retry, breaker and timeout around a single send.
	Send resilience.ExecutorConfig

	// ReinitAttempts bounds reinitialization.
	ReinitAttempts int

	// ReinitDelay is the first delay between reinitialization attempts.
	ReinitDelay time.Duration

	// ReinitMaxDelay caps the reinitialization backoff.
	ReinitMaxDelay time.Duration

	// ReinitMultiplier is the reinitialization backoff multiplier.
	ReinitMultiplier float64
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	send := resilience.DefaultExecutorConfig()
	send.MaxConcurrent = 1
	return Config{
		StartupTimeout:   60 * time.Second,
		Send:             send,
		ReinitAttempts:   5,
		ReinitDelay:      500 * time.Millisecond,
		ReinitMaxDelay:   10 * time.Second,
		ReinitMultiplier: 2,
	}
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithMetrics records agent calls and reinitializations.
func WithMetrics(m telemetry.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithCrashHandler registers fn to run when a healthy bridge detects a crash.
// fn runs synchronously on the calling goroutine and must not call back into the bridge.
func WithCrashHandler(fn func(error)) Option {
	return func(b *Bridge) { b.onCrash = fn }
}

type callResult struct {
	text string
	err  error
}

type call struct {
	ctx    context.Context
	req    Request
	result chan callResult
}

// Bridge gives callers a blocking Send over a single persistent worker that
// owns the backend. A fired token releases the caller at once even
// if the backend is still tearing the request down.
type Bridge struct {
	backend Backend
	config  Config
	sends   *resilience.Executor[string]
	reinit  *resilience.Executor[struct{}]
	metrics telemetry.Metrics
	onCrash func(error)

	requests  chan *call
	quit      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool

	crashed  atomic.Bool
	reinitMu sync.Mutex
}

// NewBridge creates a bridge over backend. Call Start before Send.
func NewBridge(backend Backend, config Config, opts ...Option) *Bridge {
	send := config.Send
	send.NonRetryable = append(send.NonRetryable,
		assistant.ErrCancelled,
		assistant.ErrAgentCrashed,
		assistant.ErrEmptyReply,
		context.Canceled,
	)
	if send.MaxConcurrent <= 0 {
		send.MaxConcurrent = 1
	}

	attempts := config.ReinitAttempts
	if attempts <= 0 {
		attempts = 1
	}
	b := &Bridge{
		backend: backend,
		config:  config,
		sends:   resilience.NewExecutor[string](send),
		reinit: resilience.NewExecutorWithOptions[struct{}](
			resilience.WithMaxConcurrent(1),
			resilience.WithRetryAttempts(attempts),
			resilience.WithRetryDelay(config.ReinitDelay),
			resilience.WithBackoffMultiplier(config.ReinitMultiplier),
			resilience.WithMaxDelay(config.ReinitMaxDelay),
			resilience.WithNonRetryable(context.Canceled, context.DeadlineExceeded),
		),
		metrics:  telemetry.NoopMetricsProvider{},
		requests: make(chan *call),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend name.
func (b *Bridge) Name() string {
	return b.backend.Name()
}

// Start launches the worker and starts the backend. On failure the bridge is
// left crashed so sends fail fast until Reinitialize succeeds.
func (b *Bridge) Start(ctx context.Context) error {
	b.startOnce.Do(func() {
		b.started.Store(true)
		go b.run()
	})

	if err := b.startBackend(ctx); err != nil {
		b.crashed.Store(true)
		logging.Error().
			Add(logging.Component("agent")).
			Add(logging.Str("backend", b.backend.Name())).
			Add(logging.ErrorField(err)).
			Msg("agent failed to start")
		return err
	}
	b.crashed.Store(false)
	logging.Info().
		Add(logging.Component("agent")).
		Add(logging.Str("backend", b.backend.Name())).
		Msg("agent ready")
	return nil
}

// Healthy reports whether sends are currently accepted.
func (b *Bridge) Healthy() bool {
	return !b.crashed.Load()
}

// Send delivers req to the worker and blocks until the reply, a crash, or
// cancellation. A fired tok returns assistant.ErrCancelled and aborts the
// backend request.
func (b *Bridge) Send(ctx context.Context, req Request, tok assistant.Token) (Reply, error) {
	start := time.Now()
	reply, err := b.send(ctx, req, tok)
	reply.Duration = time.Since(start)

	result := "ok"
	switch {
	case errors.Is(err, assistant.ErrCancelled), errors.Is(err, context.Canceled):
		result = "cancelled"
	case err != nil:
		result = "error"
	}
	b.metrics.RecordAgentCall(ctx, b.backend.Name(), result, reply.Duration)
	return reply, err
}

func (b *Bridge) send(ctx context.Context, req Request, tok assistant.Token) (Reply, error) {
	if b.crashed.Load() || !b.started.Load() {
		return Reply{}, fmt.Errorf("send: %w", assistant.ErrAgentUnavailable)
	}
	if tok != nil && tok.Cancelled() {
		return Reply{}, assistant.ErrCancelled
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &call{ctx: callCtx, req: req, result: make(chan callResult, 1)}
	select {
	case b.requests <- c:
	case <-doneOf(tok):
		return Reply{}, assistant.ErrCancelled
	case <-callCtx.Done():
		return Reply{}, ctx.Err()
	case <-b.quit:
		return Reply{}, fmt.Errorf("send: %w", assistant.ErrAgentUnavailable)
	}

	select {
	case r := <-c.result:
		if r.err != nil {
			if assistant.IsFatal(r.err) {
				b.markCrashed(r.err)
			}
			return Reply{}, fmt.Errorf("send: %w", r.err)
		}
		return Reply{Text: r.text}, nil
	case <-doneOf(tok):
		return Reply{}, assistant.ErrCancelled
	case <-callCtx.Done():
		return Reply{}, ctx.Err()
	}
}

// Reinitialize restarts the backend with capped exponential backoff.
// It returns an error wrapping assistant.ErrAgentCrashed once attempts are exhausted.
func (b *Bridge) Reinitialize(ctx context.Context) error {
	b.reinitMu.Lock()
	defer b.reinitMu.Unlock()

	attempt := 0
	_, err := b.reinit.Retry(ctx, func(ctx context.Context) (struct{}, error) {
		attempt++
		logging.Info().
			Add(logging.Component("agent")).
			Add(logging.Attempt(attempt)).
			Msg("reinitializing agent")
		if stopErr := b.backend.Stop(); stopErr != nil {
			logging.Debug().
				Add(logging.Component("agent")).
				Add(logging.ErrorField(stopErr)).
				Msg("backend stop failed")
		}
		return struct{}{}, b.startBackend(ctx)
	})
	b.metrics.RecordReinitialize(ctx, err == nil)
	if err != nil {
		b.crashed.Store(true)
		return fmt.Errorf("%w: reinitialize failed after %d attempts: %v", assistant.ErrAgentCrashed, attempt, err)
	}

	b.crashed.Store(false)
	logging.Info().
		Add(logging.Component("agent")).
		Add(logging.Attempt(attempt)).
		Msg("agent reinitialized")
	return nil
}

// Close stops the worker and the backend.
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.quit)
		if b.started.Load() {
			select {
			case <-b.done:
			case <-time.After(5 * time.Second):
				logging.Warn().Add(logging.Component("agent")).Msg("agent worker did not stop in time")
			}
		}
		err = b.backend.Stop()
	})
	return err
}

func (b *Bridge) run() {
	defer close(b.done)
	for {
		select {
		case <-b.quit:
			return
		case c := <-b.requests:
			b.execute(c)
		}
	}
}

func (b *Bridge) execute(c *call) {
	defer func() {
		if r := recover(); r != nil {
			c.result <- callResult{err: fmt.Errorf("%w: worker panic: %v", assistant.ErrAgentCrashed, r)}
		}
	}()

	if err := c.ctx.Err(); err != nil {
		c.result <- callResult{err: err}
		return
	}

	ctx, span := observability.StartSpan(c.ctx, "agent.send",
		attribute.String("agent.backend", b.backend.Name()),
		attribute.String("request.id", c.req.ID),
	)
	var backendErr error
	text, err := b.sends.Execute(ctx, func(ctx context.Context) (string, error) {
		text, err := b.backend.Send(ctx, c.req)
		backendErr = err
		return text, err
	})
	if err != nil && backendErr != nil {
		err = backendErr
	}
	observability.EndSpan(span, err)
	c.result <- callResult{text: text, err: err}
}

func (b *Bridge) startBackend(ctx context.Context) error {
	if b.config.StartupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.config.StartupTimeout)
		defer cancel()
	}
	if err := b.backend.Start(ctx); err != nil {
		if assistant.IsFatal(err) {
			return err
		}
		return fmt.Errorf("%w: %v", assistant.ErrAgentUnavailable, err)
	}
	return nil
}

func (b *Bridge) markCrashed(err error) {
	if !b.crashed.CompareAndSwap(false, true) {
		return
	}
	logging.Error().
		Add(logging.Component("agent")).
		Add(logging.ErrorField(err)).
		Msg("agent crashed")
	if b.onCrash != nil {
		b.onCrash(err)
	}
}

func doneOf(tok assistant.Token) <-chan struct{} {
	if tok == nil {
		return nil
	}
	return tok.Done()
}
