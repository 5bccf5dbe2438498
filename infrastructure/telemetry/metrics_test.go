package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMetrics sets up a private meter provider and returns it along with a reader.
func setupTestMetrics(t *testing.T) (*metric.ManualReader, *MetricsProvider) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))

	cfg := DefaultMetricsConfig()
	cfg.MeterProvider = provider
	mp := NewMetricsProvider(cfg)
	if mp.Error() != nil {
		t.Fatalf("failed to create metrics provider: %v", mp.Error())
	}
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return reader, mp
}

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumInt64(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsProvider_Counters(t *testing.T) {
	t.Parallel()

	reader, mp := setupTestMetrics(t)
	ctx := context.Background()

	mp.RecordStateTransition(ctx, "idle", "listening", "wake_detected")
	mp.RecordStateTransition(ctx, "listening", "processing", "utterance_transcribed")
	mp.RecordAgentCall(ctx, "scripted", "ok", 20*time.Millisecond)
	mp.RecordInterrupt(ctx, "hotkey")
	mp.RecordCallTransition(ctx, true)
	mp.RecordCallTransition(ctx, false)
	mp.RecordRateLimitHit(ctx, "pause")
	mp.RecordReinitialize(ctx, false)
	mp.RecordError(ctx, "playback", map[string]string{"synth": "console"})

	metrics := collect(t, reader)
	want := map[string]int64{
		"echo.state.transitions":       2,
		"echo.agent.calls":             1,
		"echo.interrupts":              1,
		"echo.call.transitions":        2,
		"echo.ratelimit.hits":          1,
		"echo.agent.reinitializations": 1,
		"echo.errors":                  1,
	}
	for name, n := range want {
		m, ok := metrics[name]
		if !ok {
			t.Errorf("%s metric not found", name)
			continue
		}
		if got := sumInt64(t, m); got != n {
			t.Errorf("%s = %d, want %d", name, got, n)
		}
	}
}

func TestMetricsProvider_RecordRoutine(t *testing.T) {
	t.Parallel()

	reader, mp := setupTestMetrics(t)
	mp.RecordRoutine(context.Background(), "morning", "budget_exceeded", 3, time.Second)

	metrics := collect(t, reader)
	if got := sumInt64(t, metrics["echo.routine.runs"]); got != 1 {
		t.Errorf("echo.routine.runs = %d, want 1", got)
	}
	steps, ok := metrics["echo.routine.steps"].Data.(metricdata.Histogram[int64])
	if !ok {
		t.Fatalf("echo.routine.steps: expected Histogram[int64], got %T", metrics["echo.routine.steps"].Data)
	}
	if len(steps.DataPoints) != 1 || steps.DataPoints[0].Sum != 3 {
		t.Errorf("echo.routine.steps data points = %+v, want one with sum 3", steps.DataPoints)
	}
	if _, ok := metrics["echo.routine.duration"]; !ok {
		t.Error("echo.routine.duration metric not found")
	}
}

func TestMetricsProvider_Histograms(t *testing.T) {
	t.Parallel()

	reader, mp := setupTestMetrics(t)
	mp.RecordPlayback(context.Background(), true, 1500*time.Millisecond)
	mp.RecordAgentCall(context.Background(), "openai", "cancelled", 10*time.Millisecond)

	metrics := collect(t, reader)
	for _, name := range []string{"echo.playback.duration", "echo.agent.duration"} {
		h, ok := metrics[name].Data.(metricdata.Histogram[float64])
		if !ok {
			t.Errorf("%s: expected Histogram[float64], got %T", name, metrics[name].Data)
			continue
		}
		if len(h.DataPoints) != 1 || h.DataPoints[0].Count != 1 {
			t.Errorf("%s data points = %+v, want one with count 1", name, h.DataPoints)
		}
	}
}

func TestNoopMetricsProvider(t *testing.T) {
	t.Parallel()

	var m Metrics = NoopMetricsProvider{}
	ctx := context.Background()
	m.RecordStateTransition(ctx, "a", "b", "c")
	m.RecordAgentCall(ctx, "x", "ok", time.Second)
	m.RecordInterrupt(ctx, "hotkey")
	m.RecordRoutine(ctx, "r", "completed", 1, time.Second)
	m.RecordCallTransition(ctx, true)
	m.RecordRateLimitHit(ctx, "quit")
	m.RecordReinitialize(ctx, true)
	m.RecordPlayback(ctx, false, time.Second)
	m.RecordError(ctx, "x", nil)
}
