package statemachine

import (
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
)

// Interpreter wraps the statekit interpreter for the orchestrator.
type Interpreter struct {
	mu     sync.Mutex
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewInterpreter creates a new interpreter for the orchestrator statechart.
func NewInterpreter(machine *statekit.MachineConfig[*Context], ctx *Context) *Interpreter {
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	return &Interpreter{
		interp: interp,
		ctx:    ctx,
	}
}

// New builds the machine and a started interpreter.
func New(recorder Recorder) (*Interpreter, error) {
	machine, err := NewOrchestratorMachine()
	if err != nil {
		return nil, fmt.Errorf("build statechart: %w", err)
	}
	i := NewInterpreter(machine, NewContext(recorder))
	i.Start()
	return i, nil
}

// Start enters the initial state.
func (i *Interpreter) Start() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.interp.Start()
	i.ctx.Current = assistant.State(i.interp.State().Value)
}

// Stop stops the interpreter.
func (i *Interpreter) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.interp.Stop()
}

// State returns the current state.
func (i *Interpreter) State() assistant.State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return assistant.State(i.interp.State().Value)
}

// Matches checks if the current state matches the given state.
func (i *Interpreter) Matches(s assistant.State) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.interp.Matches(statekit.StateID(s))
}

// Transition moves the statechart to the target state.
func (i *Interpreter) Transition(to assistant.State, trigger string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	from := i.ctx.Current
	if !assistant.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", assistant.ErrInvalidTransition, from, to)
	}

	i.interp.Send(statekit.Event{
		Type:    EventForTransition(to),
		Payload: TransitionPayload{ToState: to, Trigger: trigger},
	})

	got := assistant.State(i.interp.State().Value)
	i.ctx.Current = got
	if got != to {
		return fmt.Errorf("%w: %s -> %s rejected by statechart", assistant.ErrInvalidTransition, from, to)
	}
	return nil
}

// Sync mirrors a decision of the pure core. A rejected transition
// re-aligns the statechart to the core's state and returns the error.
func (i *Interpreter) Sync(from, to assistant.State, trigger string) error {
	if from == to {
		return nil
	}
	if err := i.Transition(to, trigger); err != nil {
		if rerr := i.ResumeFrom(to); rerr != nil {
			return fmt.Errorf("%w (realign: %v)", err, rerr)
		}
		return err
	}
	return nil
}

// ResumeFrom restores the interpreter to a specific state without running
// transition actions.
func (i *Interpreter) ResumeFrom(state assistant.State) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	snapshot := statekit.Snapshot[*Context]{
		MachineID:    MachineID,
		CurrentState: statekit.StateID(state),
		Context:      i.ctx,
		CreatedAt:    time.Now(),
	}
	if err := i.interp.Restore(snapshot); err != nil {
		return fmt.Errorf("failed to restore state: %w", err)
	}
	i.ctx.Current = state
	return nil
}
