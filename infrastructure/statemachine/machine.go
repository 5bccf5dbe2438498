// Package statemachine provides the statekit statechart mirroring the orchestrator.
package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
)

// MachineID identifies the orchestrator statechart.
const MachineID = "orchestrator"

// Recorder observes completed transitions.
type Recorder func(from, to assistant.State, trigger string)

// Context carries the orchestrator state through the statechart.
type Context struct {
	Current  assistant.State
	Recorder Recorder
}

// NewContext creates a machine context starting idle.
func NewContext(recorder Recorder) *Context {
	return &Context{Current: assistant.StateIdle, Recorder: recorder}
}

// State IDs as StateID type for statekit.
const (
	stateIdle         statekit.StateID = statekit.StateID(assistant.StateIdle)
	stateListening    statekit.StateID = statekit.StateID(assistant.StateListening)
	stateProcessing   statekit.StateID = statekit.StateID(assistant.StateProcessing)
	stateAutonomous   statekit.StateID = statekit.StateID(assistant.StateAutonomous)
	statePausedManual statekit.StateID = statekit.StateID(assistant.StatePausedManual)
	statePausedCall   statekit.StateID = statekit.StateID(assistant.StatePausedCall)
	stateError        statekit.StateID = statekit.StateID(assistant.StateError)
)

// Event types, one per target state.
const (
	eventIdle       statekit.EventType = "IDLE"
	eventListen     statekit.EventType = "LISTEN"
	eventProcess    statekit.EventType = "PROCESS"
	eventAutonomous statekit.EventType = "AUTONOMOUS"
	eventPause      statekit.EventType = "PAUSE"
	eventCall       statekit.EventType = "CALL"
	eventFail       statekit.EventType = "FAIL"
)

// NewOrchestratorMachine creates the orchestrator statechart.
func NewOrchestratorMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context](MachineID).
		WithInitial(stateIdle).
		WithContext(&Context{}).
		WithAction("logEntry", logStateEntry).
		WithAction("recordTransition", recordTransition).
		WithGuard("canTransition", guardCanTransition).
		State(stateIdle).
			OnEntry("logEntry").
			On(eventListen).Target(stateListening).Guard("canTransition").Do("recordTransition").
			On(eventPause).Target(statePausedManual).Guard("canTransition").Do("recordTransition").
			On(eventCall).Target(statePausedCall).Guard("canTransition").Do("recordTransition").
			On(eventFail).Target(stateError).Do("recordTransition").
			Done().
		State(stateListening).
			OnEntry("logEntry").
			On(eventIdle).Target(stateIdle).Guard("canTransition").Do("recordTransition").
			On(eventProcess).Target(stateProcessing).Guard("canTransition").Do("recordTransition").
			On(eventAutonomous).Target(stateAutonomous).Guard("canTransition").Do("recordTransition").
			On(eventPause).Target(statePausedManual).Guard("canTransition").Do("recordTransition").
			On(eventCall).Target(statePausedCall).Guard("canTransition").Do("recordTransition").
			On(eventFail).Target(stateError).Do("recordTransition").
			Done().
		State(stateProcessing).
			OnEntry("logEntry").
			On(eventListen).Target(stateListening).Guard("canTransition").Do("recordTransition").
			On(eventPause).Target(statePausedManual).Guard("canTransition").Do("recordTransition").
			On(eventCall).Target(statePausedCall).Guard("canTransition").Do("recordTransition").
			On(eventFail).Target(stateError).Do("recordTransition").
			Done().
		State(stateAutonomous).
			OnEntry("logEntry").
			On(eventListen).Target(stateListening).Guard("canTransition").Do("recordTransition").
			On(eventPause).Target(statePausedManual).Guard("canTransition").Do("recordTransition").
			On(eventCall).Target(statePausedCall).Guard("canTransition").Do("recordTransition").
			On(eventFail).Target(stateError).Do("recordTransition").
			Done().
		State(statePausedManual).
			OnEntry("logEntry").
			On(eventIdle).Target(stateIdle).Guard("canTransition").Do("recordTransition").
			On(eventCall).Target(statePausedCall).Guard("canTransition").Do("recordTransition").
			On(eventFail).Target(stateError).Do("recordTransition").
			Done().
		State(statePausedCall).
			OnEntry("logEntry").
			On(eventIdle).Target(stateIdle).Guard("canTransition").Do("recordTransition").
			On(eventListen).Target(stateListening).Guard("canTransition").Do("recordTransition").
			On(eventAutonomous).Target(stateAutonomous).Guard("canTransition").Do("recordTransition").
			On(eventPause).Target(statePausedManual).Guard("canTransition").Do("recordTransition").
			On(eventFail).Target(stateError).Do("recordTransition").
			Done().
		State(stateError).
			OnEntry("logEntry").
			On(eventIdle).Target(stateIdle).Guard("canTransition").Do("recordTransition").
			On(eventCall).Target(statePausedCall).Guard("canTransition").Do("recordTransition").
			Done().
		Build()
}

// EventForTransition returns the event type that moves the machine to a state.
func EventForTransition(to assistant.State) statekit.EventType {
	switch to {
	case assistant.StateIdle:
		return eventIdle
	case assistant.StateListening:
		return eventListen
	case assistant.StateProcessing:
		return eventProcess
	case assistant.StateAutonomous:
		return eventAutonomous
	case assistant.StatePausedManual:
		return eventPause
	case assistant.StatePausedCall:
		return eventCall
	case assistant.StateError:
		return eventFail
	default:
		return statekit.EventType(to)
	}
}

// stateFromEventType derives the target state from an event type.
func stateFromEventType(eventType statekit.EventType) assistant.State {
	switch eventType {
	case eventIdle:
		return assistant.StateIdle
	case eventListen:
		return assistant.StateListening
	case eventProcess:
		return assistant.StateProcessing
	case eventAutonomous:
		return assistant.StateAutonomous
	case eventPause:
		return assistant.StatePausedManual
	case eventCall:
		return assistant.StatePausedCall
	case eventFail:
		return assistant.StateError
	default:
		return assistant.State(eventType)
	}
}
