package assistant

import "errors"

// Domain errors for the orchestration core.
var (
	// ErrAgentUnavailable indicates the agent transport or process is not ready.
	// Retryable.
	ErrAgentUnavailable = errors.New("agent unavailable")

	// ErrAgentCrashed indicates the agent session is unusable until reinitialized.
	ErrAgentCrashed = errors.New("agent crashed")

	// ErrTransientTool indicates a tool-provider call failed while the session is healthy.
	ErrTransientTool = errors.New("transient tool failure")

	// ErrDeviceDisconnected indicates the input device vanished.
	ErrDeviceDisconnected = errors.New("input device disconnected")

	// ErrCancelled indicates a cancellation token was observed at a checkpoint.
	ErrCancelled = errors.New("operation cancelled")

	// ErrEmptyReply indicates the agent returned no text.
	ErrEmptyReply = errors.New("empty agent reply")

	// ErrInvalidTransition indicates the statechart rejected a transition.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// IsFatal reports whether err should move the orchestrator to the error state.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAgentUnavailable) || errors.Is(err, ErrAgentCrashed)
}
