package assistant

import (
	"time"

	"github.com/felixgeelhaar/echo-go/domain/command"
)

// Effect is an instruction produced by Core.Apply and carried out by the orchestrator.
type Effect interface {
	// Kind names the effect in logs.
	Kind() string
}

// Fire cancels the work running under Generation.
type Fire struct {
	Generation uint64
	Reason     Reason
}

// StartTurn sends one conversation turn to the agent under a new token.
type StartTurn struct {
	Text string
}

// StartRoutine runs the routine engine under a new token.
// MaxSteps zero means the configured default.
type StartRoutine struct {
	Name     string
	Prompt   string
	MaxSteps int
	Announce string
}

// Speak plays text. Reuse keeps the current work's token so an interrupt
// during the reply cancels the reply too; otherwise a new token is issued.
type Speak struct {
	Text  string
	Reuse bool
}

// RunCommand executes a project command and speaks its result under a new token.
type RunCommand struct {
	Command command.Command
}

// ArmWindow schedules SilenceTimeout{Window: ID} after the given delay.
type ArmWindow struct {
	ID    uint64
	After time.Duration
}

// HoldRoutine closes the call gate so the routine blocks at its next checkpoint.
type HoldRoutine struct{}

// ReleaseRoutine opens the call gate.
type ReleaseRoutine struct{}

// Reinitialize starts a bounded agent reinitialization that ends in ReinitFinished.
type Reinitialize struct{}

// Notify surfaces a message to the user. It is produced once per entry into the error state.
type Notify struct {
	Message string
}

// Quit stops the process.
type Quit struct{}

func (Fire) Kind() string           { return "fire" }
func (StartTurn) Kind() string      { return "start_turn" }
func (StartRoutine) Kind() string   { return "start_routine" }
func (Speak) Kind() string          { return "speak" }
func (RunCommand) Kind() string     { return "run_command" }
func (ArmWindow) Kind() string      { return "arm_window" }
func (HoldRoutine) Kind() string    { return "hold_routine" }
func (ReleaseRoutine) Kind() string { return "release_routine" }
func (Reinitialize) Kind() string   { return "reinitialize" }
func (Notify) Kind() string         { return "notify" }
func (Quit) Kind() string           { return "quit" }

// StartsWork reports whether the orchestrator must issue a token and call
// Core.Begin when carrying out e.
func StartsWork(e Effect) bool {
	switch v := e.(type) {
	case StartTurn, StartRoutine, RunCommand:
		return true
	case Speak:
		return !v.Reuse
	default:
		return false
	}
}
