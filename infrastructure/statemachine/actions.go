package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
)

// TransitionPayload carries the trigger with a transition event.
type TransitionPayload struct {
	ToState assistant.State
	Trigger string
}

func targetOf(event statekit.Event) (assistant.State, string) {
	if payload, ok := event.Payload.(TransitionPayload); ok {
		return payload.ToState, payload.Trigger
	}
	return stateFromEventType(event.Type), ""
}

// logStateEntry syncs the context when a state is entered.
// Actions receive **Context because the context type is *Context.
func logStateEntry(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	if to, _ := targetOf(event); to != "" {
		(*ctx).Current = to
	}
}

// recordTransition reports the transition to the recorder.
func recordTransition(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	c := *ctx
	to, trigger := targetOf(event)
	if c.Recorder != nil {
		c.Recorder(c.Current, to, trigger)
	}
}
