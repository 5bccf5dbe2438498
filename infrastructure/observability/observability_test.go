package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.ServiceName != "echo" {
		t.Errorf("ServiceName = %q, want echo", cfg.ServiceName)
	}
	if cfg.Tracing.Enabled {
		t.Error("Tracing.Enabled = true, want false")
	}
	if cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("Tracing.SampleRate = %v, want 1.0", cfg.Tracing.SampleRate)
	}
}

func TestConfigOptions(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	for _, opt := range []Option{
		WithServiceName("svc"),
		WithServiceVersion("2.0.0"),
		WithEnvironment("test"),
		WithOTLP("localhost:4317"),
		WithTracingInsecure(),
		WithSampleRate(0.5),
		WithMetrics(),
	} {
		opt(&cfg)
	}

	if cfg.ServiceName != "svc" || cfg.ServiceVersion != "2.0.0" || cfg.Environment != "test" {
		t.Errorf("service fields = %q %q %q", cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Exporter != ExporterOTLP || cfg.Tracing.Endpoint != "localhost:4317" {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if !cfg.Tracing.Insecure || cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestNew_UnknownExporter(t *testing.T) {
	t.Parallel()

	_, err := New(WithTracing("carrier-pigeon", ""))
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("New() error = %v, want %v", err, ErrUnknownExporter)
	}
}

func TestNoopProvider(t *testing.T) {
	t.Parallel()

	p := NewNoopProvider()
	_, span := p.Tracer("test").Start(context.Background(), "noop")
	span.End()

	totals, err := p.Totals(context.Background())
	if err != nil || totals != nil {
		t.Errorf("Totals() = (%v, %v), want (nil, nil)", totals, err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestProvider_StdoutTracing(t *testing.T) {
	var buf bytes.Buffer
	p := &Provider{config: DefaultConfig(), stdout: &buf}
	p.config.Tracing.Enabled = true
	p.config.Tracing.Exporter = ExporterStdout
	if err := p.setupTracing(); err != nil {
		t.Fatalf("setupTracing() error = %v", err)
	}

	ctx, span := StartSpan(context.Background(), "agent.send", attribute.String("agent.backend", "scripted"))
	if !span.SpanContext().IsValid() {
		t.Error("span context is not valid")
	}
	_ = ctx
	EndSpan(span, errors.New("boom"))

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("agent.send")) {
		t.Errorf("stdout export missing span name: %s", buf.String())
	}
}

func TestProvider_Totals(t *testing.T) {
	p := &Provider{config: DefaultConfig()}
	p.setupMetrics()

	counter, err := p.MeterProvider().Meter("test").Int64Counter("echo.test.count")
	if err != nil {
		t.Fatalf("Int64Counter() error = %v", err)
	}
	counter.Add(context.Background(), 2)
	counter.Add(context.Background(), 3)

	totals, err := p.Totals(context.Background())
	if err != nil {
		t.Fatalf("Totals() error = %v", err)
	}
	if got := totals["echo.test.count"]; got != 5 {
		t.Errorf("Totals()[echo.test.count] = %d, want 5", got)
	}
	_ = p.Shutdown(context.Background())
}
