// Package orchestrator provides the top-level state machine service of the
// voice assistant. Events are applied one at a time under a single
// ownership lock; blocking work runs on worker goroutines and reports back
// as ordinary events.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	routines "github.com/felixgeelhaar/echo-go/application/routine"
	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/domain/history"
	"github.com/felixgeelhaar/echo-go/domain/project"
	"github.com/felixgeelhaar/echo-go/domain/routine"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
	"github.com/felixgeelhaar/echo-go/infrastructure/signal"
	"github.com/felixgeelhaar/echo-go/infrastructure/statemachine"
	"github.com/felixgeelhaar/echo-go/infrastructure/telemetry"
)

// Agent is the Agent Bridge as seen by the orchestrator.
type Agent interface {
	routines.Agent
	Reinitialize(ctx context.Context) error
}

// Runner runs autonomous routines.
type Runner interface {
	Run(ctx context.Context, req routines.Request) routine.Result
}

// Notifier receives status text and user notifications. Both calls must not block.
type Notifier interface {
	Status(text string)
	Notify(message string)
}

// Config contains configuration for the orchestrator.
type Config struct {
	// Name prefixes the status text.
	Name string

	Agent    Agent
	Speaker  routines.Speaker
	Routines Runner

	// Projects backs the project voice commands. Optional.
	Projects project.Store

	// History records transitions and routine runs. Optional.
	History history.Store

	// Notifier receives status changes. Optional.
	Notifier Notifier

	Metrics telemetry.Metrics

	// Bus and Gate default to fresh instances.
	Bus  *signal.Bus
	Gate *signal.CallGate

	// CoreOptions configure the pure state machine.
	CoreOptions []assistant.CoreOption

	// HistoryTurns bounds the conversation sent with each turn.
	HistoryTurns int

	// OnQuit is called once when a QuitRequested event is applied.
	OnQuit func()
}

// Status is a point-in-time view for UI surfaces.
type Status struct {
	State      assistant.State `json:"state"`
	Label      string          `json:"label"`
	Text       string          `json:"text"`
	Step       int             `json:"step,omitempty"`
	MaxSteps   int             `json:"max_steps,omitempty"`
	CallActive bool            `json:"call_active"`
}

// Orchestrator owns the assistant state and arbitrates the
// microphone, agent and speaker.
type Orchestrator struct {
	name     string
	agent    Agent
	speaker  routines.Speaker
	routines Runner
	projects project.Store
	notifier Notifier
	metrics  telemetry.Metrics
	bus      *signal.Bus
	gate     *signal.CallGate
	onQuit   func()

	// mu is the ownership lock. It guards everything below it.
	mu      sync.Mutex
	core    *assistant.Core
	machine *statemachine.Interpreter
	work    assistant.Token
	timer   *timer
	closed  bool

	// statusMu guards the published view.
	statusMu sync.RWMutex
	status   Status

	conversation *assistant.Conversation
	recorder     *recorder
	unsubscribe  func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	quit   sync.Once
}

// New creates a new orchestrator with the given configuration.
func New(config Config) (*Orchestrator, error) {
	if config.Agent == nil {
		return nil, errors.New("agent is required")
	}
	if config.Speaker == nil {
		return nil, errors.New("speaker is required")
	}
	if config.Routines == nil {
		return nil, errors.New("routine runner is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		name:         config.Name,
		agent:        config.Agent,
		speaker:      config.Speaker,
		routines:     config.Routines,
		projects:     config.Projects,
		notifier:     config.Notifier,
		metrics:      config.Metrics,
		bus:          config.Bus,
		gate:         config.Gate,
		onQuit:       config.OnQuit,
		core:         assistant.NewCore(config.CoreOptions...),
		conversation: assistant.NewConversation(config.HistoryTurns),
		ctx:          ctx,
		cancel:       cancel,
	}

	// Set defaults
	if o.name == "" {
		o.name = "Echo"
	}
	if o.metrics == nil {
		o.metrics = telemetry.NoopMetricsProvider{}
	}
	if o.bus == nil {
		o.bus = signal.NewBus()
	}
	if o.gate == nil {
		o.gate = signal.NewCallGate()
	}
	if o.notifier == nil {
		o.notifier = nopNotifier{}
	}

	machine, err := statemachine.New(o.recordTransition)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	o.machine = machine
	o.recorder = newRecorder(config.History)
	o.timer = newTimer(o.HandleEvent)

	o.status = o.buildStatus(o.core.State(), 0, 0, false)
	o.unsubscribe = o.bus.Subscribe(o.onFiring)

	return o, nil
}

// Bus returns the signal bus shared with interrupt producers.
func (o *Orchestrator) Bus() *signal.Bus {
	return o.bus
}

// HandleEvent applies one event and dispatches its effects. It never blocks
// on I/O and returns the resulting state.
func (o *Orchestrator) HandleEvent(ev assistant.Event) assistant.State {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return o.core.State()
	}

	d := o.core.Apply(ev)
	if d.Changed() {
		if err := o.machine.Sync(d.From, d.To, d.Trigger); err != nil {
			logging.Warn().
				Add(logging.Component("orchestrator")).
				Add(logging.FromState(d.From)).
				Add(logging.ToState(d.To)).
				Add(logging.ErrorField(err)).
				Msg("statechart out of sync")
			o.recordTransition(d.From, d.To, d.Trigger)
		}
	} else if !d.Accepted {
		logging.Debug().
			Add(logging.Component("orchestrator")).
			Add(logging.State(d.From)).
			Add(logging.Trigger(d.Trigger)).
			Msg("event ignored")
	}

	for _, eff := range d.Effects {
		o.dispatch(eff)
	}

	o.publish(d.To, d.Changed())
	return d.To
}

// State returns the current state.
func (o *Orchestrator) State() assistant.State {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()
	return o.status.State
}

// Status returns the published status.
func (o *Orchestrator) Status() Status {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()
	return o.status
}

// Snapshot returns the pure core's bookkeeping.
func (o *Orchestrator) Snapshot() assistant.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.core.Snapshot()
}

// Run blocks until ctx ends, then closes the orchestrator.
func (o *Orchestrator) Run(ctx context.Context) error {
	logging.Info().
		Add(logging.Component("orchestrator")).
		Add(logging.State(o.State())).
		Msg("orchestrator started")

	select {
	case <-ctx.Done():
	case <-o.ctx.Done():
	}
	o.Close()
	return nil
}

// Close cancels in-flight work, waits for workers and flushes history.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.timer.stop()
	if o.work != nil {
		o.bus.FireGeneration(o.work.Generation(), assistant.ReasonUIStop)
	}
	o.gate.Release()
	o.mu.Unlock()

	o.unsubscribe()
	o.cancel()
	o.wg.Wait()
	o.recorder.close()
	o.machine.Stop()

	logging.Info().Add(logging.Component("orchestrator")).Msg("orchestrator stopped")
}

// onFiring turns user-facing firings into interrupt events. It runs on the
// firing goroutine, which may hold the ownership lock, so the event is
// applied asynchronously.
func (o *Orchestrator) onFiring(f signal.Firing) {
	if !f.Reason.IsUser() {
		return
	}
	go o.HandleEvent(assistant.InterruptRequested{Reason: f.Reason, Generation: f.Generation})
}

// recordTransition is the statechart recorder. It runs under the ownership lock.
func (o *Orchestrator) recordTransition(from, to assistant.State, trigger string) {
	logging.Info().
		Add(logging.Component("orchestrator")).
		Add(logging.FromState(from)).
		Add(logging.ToState(to)).
		Add(logging.Trigger(trigger)).
		Msg("state transition")

	o.metrics.RecordStateTransition(o.ctx, string(from), string(to), trigger)
	o.recorder.transition(from, to, trigger)
}

func (o *Orchestrator) publish(state assistant.State, changed bool) {
	o.statusMu.Lock()
	step, maxSteps := o.status.Step, o.status.MaxSteps
	if state != assistant.StateAutonomous && state != assistant.StatePausedCall {
		step, maxSteps = 0, 0
	}
	next := o.buildStatus(state, step, maxSteps, o.core.Snapshot().CallActive)
	updated := next != o.status
	o.status = next
	o.statusMu.Unlock()

	if changed || updated {
		o.notifier.Status(next.Text)
	}
}

// progress records routine progress for the status text.
func (o *Orchestrator) progress(step, maxSteps int) {
	o.statusMu.Lock()
	cur := o.status
	if cur.State != assistant.StateAutonomous {
		o.statusMu.Unlock()
		return
	}
	next := o.buildStatus(cur.State, step, maxSteps, cur.CallActive)
	o.status = next
	o.statusMu.Unlock()

	o.notifier.Status(next.Text)
}

func (o *Orchestrator) buildStatus(state assistant.State, step, maxSteps int, callActive bool) Status {
	label := state.Label()
	if state == assistant.StateAutonomous && maxSteps > 0 {
		label = fmt.Sprintf("%s (%d/%d)", label, step, maxSteps)
	}
	return Status{
		State:      state,
		Label:      label,
		Text:       o.name + " - " + label,
		Step:       step,
		MaxSteps:   maxSteps,
		CallActive: callActive,
	}
}

type nopNotifier struct{}

func (nopNotifier) Status(string) {}
func (nopNotifier) Notify(string) {}
