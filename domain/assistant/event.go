package assistant

import (
	"github.com/felixgeelhaar/echo-go/domain/command"
	"github.com/felixgeelhaar/echo-go/domain/routine"
)

// Event is an input to the orchestrator.
type Event interface {
	// Trigger names the event in logs and transition records.
	Trigger() string
}

// WakeDetected is raised when the wake phrase is heard.
type WakeDetected struct{}

// UtteranceTranscribed carries a final transcription.
type UtteranceTranscribed struct {
	Text string
}

// CommandRecognized carries an utterance already classified by the grammar.
type CommandRecognized struct {
	Command command.Command
}

// AgentReplyReady is the result of a conversation turn.
type AgentReplyReady struct {
	Generation uint64
	Text       string
	Err        error
}

// AutonomousFinished is the result of a routine run.
type AutonomousFinished struct {
	Generation uint64
	Result     routine.Result
}

// CallStarted is raised by the call monitor after debouncing.
type CallStarted struct{}

// CallEnded is raised by the call monitor after debouncing.
type CallEnded struct{}

// PauseRequested is a user pause from a UI surface or voice command.
type PauseRequested struct{}

// ResumeRequested is a user resume from a UI surface or voice command.
type ResumeRequested struct{}

// InterruptRequested reports a fired cancellation token.
// Generation zero targets whatever work is current.
type InterruptRequested struct {
	Reason     Reason
	Generation uint64
}

// CrashDetected reports that the agent worker died.
type CrashDetected struct {
	Err error
}

// SilenceTimeout fires when a conversation window elapses.
type SilenceTimeout struct {
	Window uint64
}

// PlaybackFinished reports the end of a Speak effect.
type PlaybackFinished struct {
	Generation  uint64
	Interrupted bool
}

// ReinitFinished reports the outcome of a bounded agent reinitialization.
type ReinitFinished struct {
	Err error
}

// DeviceDisconnected reports that the input device vanished.
type DeviceDisconnected struct{}

// DeviceReconnected reports that the input device is back.
type DeviceReconnected struct{}

// QuitRequested asks the process to stop.
type QuitRequested struct{}

func (WakeDetected) Trigger() string         { return "wake_detected" }
func (UtteranceTranscribed) Trigger() string { return "utterance_transcribed" }
func (CommandRecognized) Trigger() string    { return "command_recognized" }
func (AgentReplyReady) Trigger() string      { return "agent_reply_ready" }
func (AutonomousFinished) Trigger() string   { return "autonomous_finished" }
func (CallStarted) Trigger() string          { return "call_started" }
func (CallEnded) Trigger() string            { return "call_ended" }
func (PauseRequested) Trigger() string       { return "pause_requested" }
func (ResumeRequested) Trigger() string      { return "resume_requested" }
func (InterruptRequested) Trigger() string   { return "interrupt_requested" }
func (CrashDetected) Trigger() string        { return "crash_detected" }
func (SilenceTimeout) Trigger() string       { return "silence_timeout" }
func (PlaybackFinished) Trigger() string     { return "playback_finished" }
func (ReinitFinished) Trigger() string       { return "reinit_finished" }
func (DeviceDisconnected) Trigger() string   { return "device_disconnected" }
func (DeviceReconnected) Trigger() string    { return "device_reconnected" }
func (QuitRequested) Trigger() string        { return "quit_requested" }
