package assistant

import "context"

// Reason records why a cancellation token fired.
type Reason string

// Cancellation reasons. The first three come from user-facing producers,
// the rest are fired by the orchestrator itself.
const (
	ReasonVoicePhrase Reason = "voice_phrase"
	ReasonHotkey      Reason = "hotkey"
	ReasonUIStop      Reason = "ui_stop"
	ReasonPause       Reason = "pause"
	ReasonCall        Reason = "call"
	ReasonDevice      Reason = "device"
	ReasonCrash       Reason = "crash"
	ReasonSuperseded  Reason = "superseded"
)

// IsUser reports whether the reason comes from a user-facing producer.
func (r Reason) IsUser() bool {
	switch r {
	case ReasonVoicePhrase, ReasonHotkey, ReasonUIStop:
		return true
	default:
		return false
	}
}

// Token is a cooperative cancellation handle for one generation of work.
type Token interface {
	// Generation returns the monotonically increasing generation number.
	Generation() uint64

	// Cancelled reports whether the token fired.
	Cancelled() bool

	// Done is closed when the token fires.
	Done() <-chan struct{}

	// Reason returns the reason the token fired, or "" if it has not.
	Reason() Reason
}

// Gate is a checkpoint that blocks while work is held, for example during a call.
type Gate interface {
	// Wait blocks until the gate is open, the token fires or ctx ends.
	Wait(ctx context.Context, tok Token) error
}

// OpenGate is a Gate that never blocks.
type OpenGate struct{}

// Wait returns immediately unless the token already fired.
func (OpenGate) Wait(ctx context.Context, tok Token) error {
	if tok != nil && tok.Cancelled() {
		return ErrCancelled
	}
	return ctx.Err()
}
