package assistant

import (
	"errors"
	"time"

	"github.com/felixgeelhaar/echo-go/domain/command"
	"github.com/felixgeelhaar/echo-go/domain/routine"
)

// Spoken responses.
const (
	SayPausing        = "Pausing listening."
	SayResuming       = "Resuming listening."
	SayHold           = "Sure, take your time."
	SayGoAhead        = "Go ahead."
	SayNoResponse     = "I didn't get a response."
	SayStopAutonomous = "Stopping autonomous mode. We can keep chatting."
	SayRoutineDone    = "All done with that routine."
	SayStepBudget     = "I've completed the maximum number of steps."
	SayTimeBudget     = "I've hit the time limit. Here's where I got to."
	SayRoutineFailed  = "I didn't get a response. Stopping."
	SayAgentDown      = "I couldn't connect to the agent. I'm trying to reconnect. If that fails, say resume listening to try again."
)

// Default window durations.
const (
	DefaultConversationWindow = 8 * time.Second
	DefaultHoldExtension      = 30 * time.Second
)

// PauseCause records what put the orchestrator in the manual pause state.
type PauseCause string

// Pause causes.
const (
	PauseNone   PauseCause = ""
	PauseUser   PauseCause = "user"
	PauseDevice PauseCause = "device"
)

// Decision is the outcome of applying one event.
type Decision struct {
	From     State
	To       State
	Trigger  string
	Effects  []Effect
	Accepted bool
}

// Changed reports whether the state changed.
func (d Decision) Changed() bool {
	return d.From != d.To
}

// Snapshot is a read-only view of the core.
type Snapshot struct {
	State          State
	Remembered     State
	CallActive     bool
	DeviceLost     bool
	PauseCause     PauseCause
	Active         uint64
	Window         uint64
	Pending        int
	Reinitializing bool
}

// CoreOption configures a Core.
type CoreOption func(*Core)

// WithGrammar sets the command grammar used for utterances.
func WithGrammar(g *command.Grammar) CoreOption {
	return func(c *Core) { c.grammar = g }
}

// WithConversationWindow sets the silence window.
func WithConversationWindow(d time.Duration) CoreOption {
	return func(c *Core) {
		if d > 0 {
			c.silence = d
		}
	}
}

// WithHoldExtension sets the extra time granted by a hold phrase.
func WithHoldExtension(d time.Duration) CoreOption {
	return func(c *Core) {
		if d >= 0 {
			c.hold = d
		}
	}
}

// Core is the pure orchestrator state machine. It performs no I/O; every side
// effect is returned as an Effect. Core is not safe for concurrent use; the
// orchestrator serializes access under its ownership lock.
type Core struct {
	state      State
	remembered State
	callActive bool
	deviceLost bool
	pauseCause PauseCause

	// active is the generation of the work currently owning the resource triple.
	active uint64

	window      uint64
	holdPending bool

	pending        []Event
	reinitializing bool

	grammar *command.Grammar
	silence time.Duration
	hold    time.Duration
}

// NewCore creates a core in the idle state.
func NewCore(opts ...CoreOption) *Core {
	c := &Core{
		state:   StateIdle,
		silence: DefaultConversationWindow,
		hold:    DefaultHoldExtension,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.grammar == nil {
		c.grammar = command.NewGrammar()
	}
	return c
}

// State returns the current state.
func (c *Core) State() State {
	return c.state
}

// Active returns the generation of the current owner work, or zero.
func (c *Core) Active() uint64 {
	return c.active
}

// Snapshot returns a copy of the core's bookkeeping.
func (c *Core) Snapshot() Snapshot {
	return Snapshot{
		State:          c.state,
		Remembered:     c.remembered,
		CallActive:     c.callActive,
		DeviceLost:     c.deviceLost,
		PauseCause:     c.pauseCause,
		Active:         c.active,
		Window:         c.window,
		Pending:        len(c.pending),
		Reinitializing: c.reinitializing,
	}
}

// Begin records gen as the owner work. The orchestrator calls it after
// issuing a token for an effect where StartsWork is true.
func (c *Core) Begin(gen uint64) {
	c.active = gen
}

// Apply processes one event and returns the resulting decision.
func (c *Core) Apply(ev Event) Decision {
	d := &Decision{From: c.state, Trigger: ev.Trigger()}
	c.apply(ev, d)
	d.To = c.state
	return *d
}

func (c *Core) apply(ev Event, d *Decision) {
	switch e := ev.(type) {
	case WakeDetected:
		c.onWake(d)
	case UtteranceTranscribed:
		c.onCommand(c.grammar.Parse(e.Text), d)
	case CommandRecognized:
		c.onCommand(e.Command, d)
	case AgentReplyReady:
		c.onReply(e, d)
	case AutonomousFinished:
		c.onRoutineFinished(e, d)
	case CallStarted:
		c.onCallStarted(d)
	case CallEnded:
		c.onCallEnded(d)
	case PauseRequested:
		c.onPause(PauseUser, ReasonPause, d)
	case ResumeRequested:
		c.onResume(d)
	case InterruptRequested:
		c.onInterrupt(e, d)
	case CrashDetected:
		c.onCrash(d)
	case SilenceTimeout:
		if c.state == StateListening && e.Window == c.window && c.active == 0 {
			c.disarm()
			c.moveTo(StateIdle, d)
		}
	case PlaybackFinished:
		c.onPlaybackFinished(e, d)
	case ReinitFinished:
		c.onReinitFinished(e, d)
	case DeviceDisconnected:
		c.onDeviceDisconnected(d)
	case DeviceReconnected:
		c.onDeviceReconnected(d)
	case QuitRequested:
		c.fire(ReasonUIStop, d)
		c.emit(d, Quit{})
	}
}

func (c *Core) onWake(d *Decision) {
	switch c.state {
	case StateIdle:
		c.moveTo(StateListening, d)
		c.arm(d)
	case StateListening:
		if c.active == 0 {
			c.arm(d)
		}
	case StatePausedManual:
		if c.pauseCause == PauseUser {
			c.onResume(d)
		}
	}
}

func (c *Core) onCommand(cmd command.Command, d *Decision) {
	switch c.state {
	case StateListening:
		c.onListeningCommand(cmd, d)
	case StateProcessing, StateAutonomous:
		switch cmd.Kind {
		case command.KindInterrupt:
			c.onInterrupt(InterruptRequested{Reason: ReasonVoicePhrase, Generation: c.active}, d)
		case command.KindStopListening:
			c.onPause(PauseUser, ReasonPause, d)
		}
	case StatePausedManual:
		if cmd.Kind == command.KindResumeListening {
			c.onResume(d)
		}
	}
}

func (c *Core) onListeningCommand(cmd command.Command, d *Decision) {
	switch cmd.Kind {
	case command.KindStopListening:
		c.onPause(PauseUser, ReasonSuperseded, d)
		c.emit(d, Speak{Text: SayPausing})
	case command.KindResumeListening:
		c.arm(d)
	case command.KindHold:
		c.supersede(d)
		c.holdPending = true
		c.emit(d, Speak{Text: SayHold})
	case command.KindInterrupt:
		if c.active != 0 {
			c.fire(ReasonVoicePhrase, d)
			c.arm(d)
		}
	case command.KindRoutine:
		if cmd.Routine == nil {
			return
		}
		c.supersede(d)
		c.disarm()
		c.moveTo(StateAutonomous, d)
		c.emit(d, StartRoutine{
			Name:     cmd.Routine.Name,
			Prompt:   cmd.Routine.Prompt,
			MaxSteps: cmd.Routine.MaxSteps,
			Announce: "Starting routine: " + cmd.Routine.Name + ".",
		})
	case command.KindAdHocTask:
		c.supersede(d)
		c.disarm()
		c.moveTo(StateAutonomous, d)
		c.emit(d, StartRoutine{
			Name:     cmd.Argument,
			Prompt:   cmd.Argument,
			Announce: "Got it, working on: " + cmd.Argument + ".",
		})
	case command.KindListProjects, command.KindStartProject, command.KindFinishProject:
		c.supersede(d)
		c.emit(d, RunCommand{Command: cmd})
	default:
		if cmd.Text == "" {
			return
		}
		c.supersede(d)
		c.disarm()
		c.moveTo(StateProcessing, d)
		c.emit(d, StartTurn{Text: cmd.Text})
	}
}

func (c *Core) onReply(e AgentReplyReady, d *Decision) {
	if c.state != StateProcessing || e.Generation != c.active {
		return
	}
	switch {
	case IsFatal(e.Err):
		c.active = 0
		c.enterError(d)
	case errors.Is(e.Err, ErrCancelled):
		c.active = 0
		c.moveTo(StateListening, d)
		c.emit(d, Speak{Text: SayGoAhead})
	case e.Err != nil || e.Text == "":
		c.active = 0
		c.moveTo(StateListening, d)
		c.emit(d, Speak{Text: SayNoResponse})
	default:
		c.moveTo(StateListening, d)
		c.emit(d, Speak{Text: e.Text, Reuse: true})
	}
}

func (c *Core) onRoutineFinished(e AutonomousFinished, d *Decision) {
	if e.Generation == 0 || e.Generation != c.active {
		return
	}
	switch c.state {
	case StatePausedCall:
		c.pending = append(c.pending, e)
		d.Accepted = true
		return
	case StateAutonomous:
	default:
		return
	}

	c.active = 0
	res := e.Result
	if res.Outcome == routine.OutcomeFailed && IsFatal(res.Err) {
		c.enterError(d)
		return
	}

	c.moveTo(StateListening, d)
	switch res.Outcome {
	case routine.OutcomeCompleted:
		c.emit(d, Speak{Text: SayRoutineDone})
	case routine.OutcomeBudgetExceeded:
		if res.Budget == routine.BudgetTime {
			c.emit(d, Speak{Text: SayTimeBudget})
		} else {
			c.emit(d, Speak{Text: SayStepBudget})
		}
	case routine.OutcomeInterrupted:
		c.emit(d, Speak{Text: SayStopAutonomous})
	default:
		c.emit(d, Speak{Text: SayRoutineFailed})
	}
}

func (c *Core) onCallStarted(d *Decision) {
	c.callActive = true
	d.Accepted = true

	switch c.state {
	case StateIdle, StateListening:
		c.fire(ReasonCall, d)
		c.disarm()
		c.remembered = c.state
		c.moveTo(StatePausedCall, d)
	case StateProcessing:
		c.fire(ReasonCall, d)
		c.remembered = StateListening
		c.moveTo(StatePausedCall, d)
	case StateAutonomous:
		c.emit(d, HoldRoutine{})
		c.remembered = StateAutonomous
		c.moveTo(StatePausedCall, d)
	}
}

func (c *Core) onCallEnded(d *Decision) {
	c.callActive = false
	d.Accepted = true
	if c.state != StatePausedCall {
		return
	}

	to := c.remembered
	if to == "" {
		to = StateIdle
	}
	c.remembered = ""
	c.moveTo(to, d)

	switch to {
	case StateAutonomous:
		c.emit(d, ReleaseRoutine{})
	case StateListening:
		c.arm(d)
	}

	pending := c.pending
	c.pending = nil
	for _, ev := range pending {
		c.apply(ev, d)
	}
}

func (c *Core) onPause(cause PauseCause, reason Reason, d *Decision) {
	if c.state == StatePausedManual || c.state == StateError {
		return
	}

	held := c.state == StatePausedCall && c.remembered == StateAutonomous
	c.fire(reason, d)
	if held {
		c.emit(d, ReleaseRoutine{})
	}
	c.disarm()
	c.pending = nil
	c.remembered = ""
	c.pauseCause = cause
	c.holdPending = false
	c.moveTo(StatePausedManual, d)
}

func (c *Core) onResume(d *Decision) {
	switch c.state {
	case StatePausedManual:
		if c.deviceLost {
			return
		}
		c.pauseCause = PauseNone
		c.leavePause(d)
		if !c.callActive {
			c.emit(d, Speak{Text: SayResuming})
		}
	case StateError:
		if !c.reinitializing {
			c.reinitializing = true
			c.emit(d, Reinitialize{})
			d.Accepted = true
		}
	}
}

func (c *Core) onInterrupt(e InterruptRequested, d *Decision) {
	if c.active == 0 {
		return
	}
	if e.Generation != 0 && e.Generation != c.active {
		return
	}
	reason := e.Reason
	if reason == "" {
		reason = ReasonUIStop
	}

	switch c.state {
	case StateProcessing:
		c.fire(reason, d)
		c.moveTo(StateListening, d)
		c.emit(d, Speak{Text: SayGoAhead})
	case StateAutonomous:
		c.fire(reason, d)
		c.moveTo(StateListening, d)
		c.emit(d, Speak{Text: SayStopAutonomous})
	case StateListening:
		c.fire(reason, d)
		c.arm(d)
	case StatePausedCall:
		c.fire(reason, d)
		if c.remembered == StateAutonomous {
			c.emit(d, ReleaseRoutine{})
			c.remembered = StateListening
		}
	case StateIdle, StatePausedManual:
		c.fire(reason, d)
	}
}

func (c *Core) onCrash(d *Decision) {
	if c.state == StateError {
		return
	}
	held := c.state == StatePausedCall && c.remembered == StateAutonomous
	c.fire(ReasonCrash, d)
	if held {
		c.emit(d, ReleaseRoutine{})
	}
	c.pending = nil
	c.remembered = ""
	c.enterError(d)
}

func (c *Core) onPlaybackFinished(e PlaybackFinished, d *Decision) {
	if e.Generation == 0 || e.Generation != c.active {
		return
	}
	// Turns and routines own their generation until their own result arrives.
	if c.state == StateProcessing || c.state == StateAutonomous {
		return
	}
	c.active = 0
	d.Accepted = true
	if c.state == StateListening {
		c.arm(d)
	}
}

func (c *Core) onReinitFinished(e ReinitFinished, d *Decision) {
	c.reinitializing = false
	d.Accepted = true
	if c.state != StateError || e.Err != nil {
		return
	}
	c.leavePause(d)
}

func (c *Core) onDeviceDisconnected(d *Decision) {
	c.deviceLost = true
	d.Accepted = true
	if c.state == StatePausedManual || c.state == StateError {
		return
	}
	c.onPause(PauseDevice, ReasonDevice, d)
}

func (c *Core) onDeviceReconnected(d *Decision) {
	c.deviceLost = false
	d.Accepted = true
	if c.state == StatePausedManual && c.pauseCause == PauseDevice {
		c.pauseCause = PauseNone
		c.leavePause(d)
	}
}

// leavePause moves to Idle, or to PausedCall when a call is still active.
func (c *Core) leavePause(d *Decision) {
	if c.callActive {
		c.remembered = StateIdle
		c.moveTo(StatePausedCall, d)
		return
	}
	c.moveTo(StateIdle, d)
}

func (c *Core) enterError(d *Decision) {
	c.disarm()
	c.moveTo(StateError, d)
	c.emit(d, Notify{Message: SayAgentDown})
	if !c.reinitializing {
		c.reinitializing = true
		c.emit(d, Reinitialize{})
	}
}

// supersede cancels in-flight speech before new work starts.
func (c *Core) supersede(d *Decision) {
	c.fire(ReasonSuperseded, d)
}

func (c *Core) fire(reason Reason, d *Decision) {
	if c.active == 0 {
		return
	}
	c.emit(d, Fire{Generation: c.active, Reason: reason})
	c.active = 0
}

func (c *Core) arm(d *Decision) {
	c.window++
	after := c.silence
	if c.holdPending {
		after += c.hold
		c.holdPending = false
	}
	c.emit(d, ArmWindow{ID: c.window, After: after})
}

// disarm invalidates any outstanding window timer.
func (c *Core) disarm() {
	c.window++
}

func (c *Core) moveTo(to State, d *Decision) {
	d.Accepted = true
	c.state = to
}

func (c *Core) emit(d *Decision, e Effect) {
	d.Accepted = true
	d.Effects = append(d.Effects, e)
}
