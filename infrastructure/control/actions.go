// Package control exposes the assistant to UI surfaces: an MCP tool server
// and a WebSocket status bridge.
package control

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/domain/call"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
	"github.com/felixgeelhaar/echo-go/infrastructure/telemetry"
)

// Control errors.
var (
	// ErrUnknownAction is returned for an action name that is not recognized.
	ErrUnknownAction = errors.New("unknown action")

	// ErrRateLimited is returned when UI actions arrive faster than allowed.
	ErrRateLimited = errors.New("action rate limit exceeded")
)

// Action is a user request from a UI surface.
type Action string

// Actions accepted from UI surfaces.
const (
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
	ActionStop   Action = "stop"
	ActionQuit   Action = "quit"
)

// ParseAction parses an action name, ignoring case and surrounding space.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionPause, ActionResume, ActionStop, ActionQuit:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Event returns the orchestrator event for the action.
func (a Action) Event() assistant.Event {
	switch a {
	case ActionPause:
		return assistant.PauseRequested{}
	case ActionResume:
		return assistant.ResumeRequested{}
	case ActionStop:
		return assistant.InterruptRequested{Reason: assistant.ReasonUIStop}
	case ActionQuit:
		return assistant.QuitRequested{}
	}
	return nil
}

// Target is the orchestrator as seen by UI surfaces.
type Target interface {
	HandleEvent(ev assistant.Event) assistant.State
	Snapshot() assistant.Snapshot
}

// StatusSource supplies the current status text.
type StatusSource interface {
	LastStatus() string
}

// CallSource supplies the per-app call state.
type CallSource interface {
	Snapshot() []call.State
}

// Report is the status returned to UI clients.
type Report struct {
	State      string `json:"state"`
	Label      string `json:"label"`
	Text       string `json:"text,omitempty"`
	CallActive bool   `json:"call_active"`
	PauseCause string `json:"pause_cause,omitempty"`

	Calls []call.State `json:"calls,omitempty"`
}

// Dispatcher applies rate-limited UI actions to the orchestrator.
type Dispatcher struct {
	target  Target
	status  StatusSource
	calls   CallSource
	limiter ratelimit.RateLimiter
	metrics telemetry.Metrics
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Target  Target
	Status  StatusSource
	Calls   CallSource
	Rate    int
	Burst   int
	Metrics telemetry.Metrics
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(config DispatcherConfig) (*Dispatcher, error) {
	if config.Target == nil {
		return nil, errors.New("control target is required")
	}
	rate := config.Rate
	if rate <= 0 {
		rate = 5
	}
	burst := config.Burst
	if burst <= 0 {
		burst = rate
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = telemetry.NoopMetricsProvider{}
	}
	return &Dispatcher{
		target:  config.Target,
		status:  config.Status,
		calls:   config.Calls,
		limiter: ratelimit.New(&ratelimit.Config{Rate: rate, Burst: burst}),
		metrics: metrics,
	}, nil
}

// Do applies an action and returns the resulting state. The client key
// scopes the rate limit.
func (d *Dispatcher) Do(ctx context.Context, client string, action Action) (assistant.State, error) {
	ev := action.Event()
	if ev == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, string(action))
	}
	if !d.limiter.Allow(ctx, client) {
		logging.Warn().
			Add(logging.Component("control")).
			Add(logging.Str("action", string(action))).
			Add(logging.Str("client", client)).
			Msg("rate limit exceeded")
		d.metrics.RecordRateLimitHit(ctx, string(action))
		return "", ErrRateLimited
	}

	logging.Info().
		Add(logging.Component("control")).
		Add(logging.Str("action", string(action))).
		Add(logging.Str("client", client)).
		Msg("ui action")
	return d.target.HandleEvent(ev), nil
}

// Report returns the current status.
func (d *Dispatcher) Report() Report {
	snap := d.target.Snapshot()
	r := Report{
		State:      snap.State.String(),
		Label:      snap.State.Label(),
		CallActive: snap.CallActive,
		PauseCause: string(snap.PauseCause),
	}
	if d.status != nil {
		r.Text = d.status.LastStatus()
	}
	if d.calls != nil {
		r.Calls = d.calls.Snapshot()
	}
	return r
}
