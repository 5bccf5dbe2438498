// Package assistant provides the domain model for the voice assistant orchestration core.
package assistant

// State represents the orchestrator's current state.
type State string

// Orchestrator states.
const (
	// StateIdle waits for the wake phrase.
	StateIdle State = "idle"

	// StateListening holds an open conversation window.
	StateListening State = "listening"

	// StateProcessing has a conversation turn in flight with the agent.
	StateProcessing State = "processing"

	// StateAutonomous runs a multi-step routine.
	StateAutonomous State = "autonomous"

	// StatePausedManual was paused by the user or a lost input device.
	StatePausedManual State = "paused_manual"

	// StatePausedCall was paused because a call is active.
	StatePausedCall State = "paused_call"

	// StateError means the agent crashed and could not be recovered yet.
	StateError State = "error"
)

// AllStates returns all valid states.
func AllStates() []State {
	return []State{
		StateIdle,
		StateListening,
		StateProcessing,
		StateAutonomous,
		StatePausedManual,
		StatePausedCall,
		StateError,
	}
}

// IsValid returns true if the state is recognized.
func (s State) IsValid() bool {
	switch s {
	case StateIdle, StateListening, StateProcessing, StateAutonomous,
		StatePausedManual, StatePausedCall, StateError:
		return true
	default:
		return false
	}
}

// IsPaused returns true for both pause states.
func (s State) IsPaused() bool {
	return s == StatePausedManual || s == StatePausedCall
}

// OwnsResource returns true if the state holds the microphone/agent/speaker triple.
func (s State) OwnsResource() bool {
	return s == StateListening || s == StateProcessing || s == StateAutonomous
}

// Label returns the human readable status text used by UI surfaces.
func (s State) Label() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateListening:
		return "Listening"
	case StateProcessing:
		return "Processing"
	case StateAutonomous:
		return "Autonomous"
	case StatePausedManual:
		return "Paused"
	case StatePausedCall:
		return "Paused (Call)"
	case StateError:
		return "Error"
	default:
		return string(s)
	}
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// allowedTransitions lists the legal targets for each state.
var allowedTransitions = map[State][]State{
	StateIdle:         {StateListening, StatePausedManual, StatePausedCall, StateError},
	StateListening:    {StateIdle, StateProcessing, StateAutonomous, StatePausedManual, StatePausedCall, StateError},
	StateProcessing:   {StateListening, StatePausedManual, StatePausedCall, StateError},
	StateAutonomous:   {StateListening, StatePausedManual, StatePausedCall, StateError},
	StatePausedManual: {StateIdle, StatePausedCall, StateError},
	StatePausedCall:   {StateIdle, StateListening, StateAutonomous, StatePausedManual, StateError},
	StateError:        {StateIdle, StatePausedCall},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTargets returns the legal targets for a state.
func AllowedTargets(from State) []State {
	targets := allowedTransitions[from]
	out := make([]State, len(targets))
	copy(out, targets)
	return out
}
