package playback

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
	"github.com/felixgeelhaar/echo-go/infrastructure/telemetry"
)

// Result is the outcome of a Speak call.
type Result int

// Playback results.
const (
	Completed Result = iota
	Interrupted
)

// String returns the string representation of the result.
func (r Result) String() string {
	if r == Interrupted {
		return "interrupted"
	}
	return "completed"
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics records playback durations.
func WithMetrics(m telemetry.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithCooldown waits d after playback so the microphone does not hear the tail of the speech.
func WithCooldown(d time.Duration) Option {
	return func(c *Coordinator) { c.cooldown = d }
}

// Coordinator plays text one sentence at a time and checks the token before each sentence.
type Coordinator struct {
	synth    Synthesizer
	metrics  telemetry.Metrics
	cooldown time.Duration
}

// NewCoordinator creates a playback coordinator.
func NewCoordinator(synth Synthesizer, opts ...Option) *Coordinator {
	c := &Coordinator{
		synth:   synth,
		metrics: telemetry.NoopMetricsProvider{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Speak plays text under tok. A fired token stops playback at the next
// sentence boundary, or sooner when the synthesizer honors cancellation.
func (c *Coordinator) Speak(ctx context.Context, text string, tok assistant.Token) (Result, error) {
	start := time.Now()
	result, err := c.speak(ctx, text, tok)
	c.metrics.RecordPlayback(ctx, result == Interrupted, time.Since(start))
	if result == Completed && err == nil && c.cooldown > 0 {
		timer := time.NewTimer(c.cooldown)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}
	return result, err
}

func (c *Coordinator) speak(ctx context.Context, text string, tok assistant.Token) (Result, error) {
	sentences := SplitSentences(text)
	for i, sentence := range sentences {
		if cancelled(tok) {
			logging.Debug().
				Add(logging.Component("playback")).
				Add(logging.Generation(tok.Generation())).
				Add(logging.Int("remaining", len(sentences)-i)).
				Msg("playback interrupted")
			return Interrupted, nil
		}
		if err := ctx.Err(); err != nil {
			return Interrupted, err
		}

		sentenceCtx, stop := withToken(ctx, tok)
		err := c.synth.Speak(sentenceCtx, sentence)
		stop()
		if err != nil {
			if cancelled(tok) {
				return Interrupted, nil
			}
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return Interrupted, ctx.Err()
			}
			return Interrupted, err
		}
	}
	return Completed, nil
}

func cancelled(tok assistant.Token) bool {
	return tok != nil && tok.Cancelled()
}

// withToken derives a context that also ends when tok fires.
func withToken(ctx context.Context, tok assistant.Token) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	if tok == nil {
		return ctx, cancel
	}
	go func() {
		select {
		case <-tok.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
