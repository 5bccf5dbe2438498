package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
)

// guardCanTransition checks the transition against the orchestrator's table.
// Guards receive the context by value, which is *Context here.
func guardCanTransition(ctx *Context, event statekit.Event) bool {
	if ctx == nil {
		return false
	}
	to, _ := targetOf(event)
	return assistant.CanTransition(ctx.Current, to)
}
