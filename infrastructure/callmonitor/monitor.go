package callmonitor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/domain/call"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
	"github.com/felixgeelhaar/echo-go/infrastructure/telemetry"
)

// Config configures the call monitor.
type Config struct {
	Apps         []string
	PollInterval time.Duration
	Debounce     time.Duration
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithMetrics records call transitions.
func WithMetrics(m telemetry.Metrics) Option {
	return func(mon *Monitor) { mon.metrics = m }
}

// WithClock overrides the sample clock.
func WithClock(now func() time.Time) Option {
	return func(mon *Monitor) { mon.now = now }
}

// Monitor polls a SessionSource and emits CallStarted and CallEnded once per
// stable transition of the aggregate state. Each app is also debounced on
// its own for Snapshot.
type Monitor struct {
	source    SessionSource
	config    Config
	mu        sync.Mutex
	debouncer *call.Debouncer
	apps      []*appState
	metrics   telemetry.Metrics
	now       func() time.Time
}

type appState struct {
	debouncer *call.Debouncer
	state     call.State
}

// New creates a call monitor.
func New(source SessionSource, config Config, opts ...Option) *Monitor {
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	m := &Monitor{
		source:    source,
		config:    config,
		debouncer: call.NewDebouncer(config.Debounce),
		metrics:   telemetry.NoopMetricsProvider{},
		now:       time.Now,
	}
	for _, app := range config.Apps {
		m.apps = append(m.apps, &appState{
			debouncer: call.NewDebouncer(config.Debounce),
			state:     call.State{App: app},
		})
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns the debounced state of every monitored app in config order.
func (m *Monitor) Snapshot() []call.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]call.State, len(m.apps))
	for i, a := range m.apps {
		out[i] = a.state
	}
	return out
}

// Run polls until ctx ends, passing transitions to emit.
func (m *Monitor) Run(ctx context.Context, emit func(assistant.Event)) error {
	logging.Info().
		Add(logging.Component("callmonitor")).
		Add(logging.Str("apps", strings.Join(m.config.Apps, ","))).
		Add(logging.Duration(m.config.PollInterval)).
		Msg("call monitor started")

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		m.Poll(ctx, emit)
		select {
		case <-ctx.Done():
			logging.Info().Add(logging.Component("callmonitor")).Msg("call monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll takes one sample. A failing source counts as no call.
func (m *Monitor) Poll(ctx context.Context, emit func(assistant.Event)) {
	sessions, err := m.source.Sessions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.Debug().
			Add(logging.Component("callmonitor")).
			Add(logging.ErrorField(err)).
			Msg("audio session check failed")
		sessions = nil
	}

	now := m.now()
	m.mu.Lock()
	for _, a := range m.apps {
		if tr, ok := a.debouncer.Observe(now, call.AppActive(sessions, a.state.App)); ok {
			a.state.Active = tr.Active
			a.state.Since = tr.At
		}
	}
	tr, changed := m.debouncer.Observe(now, call.AnyActive(sessions, m.config.Apps))
	m.mu.Unlock()
	if !changed {
		return
	}
	m.metrics.RecordCallTransition(ctx, tr.Active)
	if tr.Active {
		logging.Info().Add(logging.Component("callmonitor")).Msg("call detected")
		emit(assistant.CallStarted{})
		return
	}
	logging.Info().Add(logging.Component("callmonitor")).Msg("call ended")
	emit(assistant.CallEnded{})
}
