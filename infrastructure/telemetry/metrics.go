// Package telemetry provides OpenTelemetry metric instruments for the
// orchestration core.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsProvider provides access to metrics instruments.
type MetricsProvider struct {
	meter metric.Meter

	// Counters
	stateTransitions metric.Int64Counter
	agentCalls       metric.Int64Counter
	interrupts       metric.Int64Counter
	routineRuns      metric.Int64Counter
	callTransitions  metric.Int64Counter
	rateLimitHits    metric.Int64Counter
	reinitAttempts   metric.Int64Counter
	errors           metric.Int64Counter

	// Histograms
	agentDuration    metric.Float64Histogram
	routineDuration  metric.Float64Histogram
	routineSteps     metric.Int64Histogram
	playbackDuration metric.Float64Histogram

	initOnce sync.Once
	initErr  error
}

// MetricsConfig configures the metrics provider.
type MetricsConfig struct {
	// MeterName is the name of the meter (default: "github.com/felixgeelhaar/echo-go").
	MeterName string
	// MeterVersion is the version of the meter.
	MeterVersion string
	// MeterProvider overrides the global provider when set.
	MeterProvider metric.MeterProvider
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    "github.com/felixgeelhaar/echo-go",
		MeterVersion: "1.0.0",
	}
}

// NewMetricsProvider creates a new metrics provider.
func NewMetricsProvider(config MetricsConfig) *MetricsProvider {
	if config.MeterName == "" {
		config.MeterName = DefaultMetricsConfig().MeterName
	}
	provider := config.MeterProvider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(
		config.MeterName,
		metric.WithInstrumentationVersion(config.MeterVersion),
	)

	mp := &MetricsProvider{
		meter: meter,
	}

	mp.initOnce.Do(func() {
		mp.initErr = mp.initInstruments()
	})

	return mp
}

func (mp *MetricsProvider) initInstruments() error {
	counters := []struct {
		dst         *metric.Int64Counter
		name        string
		description string
		unit        string
	}{
		{&mp.stateTransitions, "echo.state.transitions", "Number of orchestrator state transitions", "{transition}"},
		{&mp.agentCalls, "echo.agent.calls", "Number of agent bridge calls", "{call}"},
		{&mp.interrupts, "echo.interrupts", "Number of fired cancellation tokens", "{interrupt}"},
		{&mp.routineRuns, "echo.routine.runs", "Number of finished routine runs", "{run}"},
		{&mp.callTransitions, "echo.call.transitions", "Number of debounced call transitions", "{transition}"},
		{&mp.rateLimitHits, "echo.ratelimit.hits", "Number of rejected UI actions", "{hit}"},
		{&mp.reinitAttempts, "echo.agent.reinitializations", "Number of agent reinitializations", "{attempt}"},
		{&mp.errors, "echo.errors", "Number of errors", "{error}"},
	}
	for _, c := range counters {
		inst, err := mp.meter.Int64Counter(c.name, metric.WithDescription(c.description), metric.WithUnit(c.unit))
		if err != nil {
			return err
		}
		*c.dst = inst
	}

	var err error
	mp.agentDuration, err = mp.meter.Float64Histogram(
		"echo.agent.duration",
		metric.WithDescription("Duration of agent bridge calls"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.routineDuration, err = mp.meter.Float64Histogram(
		"echo.routine.duration",
		metric.WithDescription("Duration of routine runs"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	mp.routineSteps, err = mp.meter.Int64Histogram(
		"echo.routine.steps",
		metric.WithDescription("Steps completed per routine run"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return err
	}

	mp.playbackDuration, err = mp.meter.Float64Histogram(
		"echo.playback.duration",
		metric.WithDescription("Duration of spoken replies"),
		metric.WithUnit("ms"),
	)
	return err
}

// Error returns any initialization error.
func (mp *MetricsProvider) Error() error {
	return mp.initErr
}

// RecordStateTransition records an orchestrator transition.
func (mp *MetricsProvider) RecordStateTransition(ctx context.Context, fromState, toState, trigger string) {
	mp.stateTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state.from", fromState),
		attribute.String("state.to", toState),
		attribute.String("trigger", trigger),
	))
}

// RecordAgentCall records one agent bridge call. result is "ok", "cancelled" or "error".
func (mp *MetricsProvider) RecordAgentCall(ctx context.Context, backend, result string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("agent.backend", backend),
		attribute.String("result", result),
	)
	mp.agentCalls.Add(ctx, 1, attrs)
	mp.agentDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordInterrupt records a fired cancellation token.
func (mp *MetricsProvider) RecordInterrupt(ctx context.Context, reason string) {
	mp.interrupts.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordRoutine records a finished routine run.
func (mp *MetricsProvider) RecordRoutine(ctx context.Context, name, outcome string, steps int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("routine.name", name),
		attribute.String("routine.outcome", outcome),
	)
	mp.routineRuns.Add(ctx, 1, attrs)
	mp.routineSteps.Record(ctx, int64(steps), attrs)
	mp.routineDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordCallTransition records a debounced call start or end.
func (mp *MetricsProvider) RecordCallTransition(ctx context.Context, active bool) {
	mp.callTransitions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("call.active", active)))
}

// RecordRateLimitHit records a rejected UI action.
func (mp *MetricsProvider) RecordRateLimitHit(ctx context.Context, action string) {
	mp.rateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// RecordReinitialize records an agent reinitialization and whether it succeeded.
func (mp *MetricsProvider) RecordReinitialize(ctx context.Context, success bool) {
	mp.reinitAttempts.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordPlayback records a spoken reply.
func (mp *MetricsProvider) RecordPlayback(ctx context.Context, interrupted bool, duration time.Duration) {
	mp.playbackDuration.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.Bool("interrupted", interrupted)))
}

// RecordError records an error.
func (mp *MetricsProvider) RecordError(ctx context.Context, errorType string, details map[string]string) {
	attrs := []attribute.KeyValue{
		attribute.String("error.type", errorType),
	}
	for k, v := range details {
		attrs = append(attrs, attribute.String(k, v))
	}

	mp.errors.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// NoopMetricsProvider is a no-op metrics provider for testing or when metrics are disabled.
type NoopMetricsProvider struct{}

// RecordStateTransition is a no-op.
func (NoopMetricsProvider) RecordStateTransition(context.Context, string, string, string) {}

// RecordAgentCall is a no-op.
func (NoopMetricsProvider) RecordAgentCall(context.Context, string, string, time.Duration) {}

// RecordInterrupt is a no-op.
func (NoopMetricsProvider) RecordInterrupt(context.Context, string) {}

// RecordRoutine is a no-op.
func (NoopMetricsProvider) RecordRoutine(context.Context, string, string, int, time.Duration) {}

// RecordCallTransition is a no-op.
func (NoopMetricsProvider) RecordCallTransition(context.Context, bool) {}

// RecordRateLimitHit is a no-op.
func (NoopMetricsProvider) RecordRateLimitHit(context.Context, string) {}

// RecordReinitialize is a no-op.
func (NoopMetricsProvider) RecordReinitialize(context.Context, bool) {}

// RecordPlayback is a no-op.
func (NoopMetricsProvider) RecordPlayback(context.Context, bool, time.Duration) {}

// RecordError is a no-op.
func (NoopMetricsProvider) RecordError(context.Context, string, map[string]string) {}

// Metrics defines the interface for metrics recording.
type Metrics interface {
	RecordStateTransition(ctx context.Context, fromState, toState, trigger string)
	RecordAgentCall(ctx context.Context, backend, result string, duration time.Duration)
	RecordInterrupt(ctx context.Context, reason string)
	RecordRoutine(ctx context.Context, name, outcome string, steps int, duration time.Duration)
	RecordCallTransition(ctx context.Context, active bool)
	RecordRateLimitHit(ctx context.Context, action string)
	RecordReinitialize(ctx context.Context, success bool)
	RecordPlayback(ctx context.Context, interrupted bool, duration time.Duration)
	RecordError(ctx context.Context, errorType string, details map[string]string)
}

// Ensure implementations satisfy the interface.
var (
	_ Metrics = (*MetricsProvider)(nil)
	_ Metrics = NoopMetricsProvider{}
)
