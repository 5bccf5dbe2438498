package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	routines "github.com/felixgeelhaar/echo-go/application/routine"
	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/infrastructure/agent"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
	"github.com/felixgeelhaar/echo-go/infrastructure/playback"
)

// dispatch carries out one effect. It runs under the ownership lock and
// must not block; blocking work is handed to a worker goroutine.
func (o *Orchestrator) dispatch(eff assistant.Effect) {
	logging.Debug().
		Add(logging.Component("orchestrator")).
		Add(logging.Str("effect", eff.Kind())).
		Msg("dispatch")

	var tok assistant.Token
	if assistant.StartsWork(eff) {
		tok = o.begin()
	}

	switch e := eff.(type) {
	case assistant.Fire:
		o.bus.FireGeneration(e.Generation, e.Reason)
		o.metrics.RecordInterrupt(o.ctx, string(e.Reason))
		if o.work != nil && o.work.Generation() == e.Generation {
			o.work = nil
		}
	case assistant.StartTurn:
		o.spawn(func(ctx context.Context) { o.runTurn(ctx, e.Text, tok) })
	case assistant.StartRoutine:
		o.spawn(func(ctx context.Context) { o.runRoutine(ctx, e, tok) })
	case assistant.RunCommand:
		o.spawn(func(ctx context.Context) {
			text := o.runCommand(ctx, e.Command, tok)
			o.speakAndReport(ctx, text, tok)
		})
	case assistant.Speak:
		if tok == nil {
			// Reuse: the reply belongs to the work that produced it.
			tok = o.work
			if tok == nil || tok.Generation() != o.core.Active() {
				tok = o.begin()
			}
		}
		o.spawn(func(ctx context.Context) { o.speakAndReport(ctx, e.Text, tok) })
	case assistant.ArmWindow:
		o.timer.arm(e.ID, e.After)
	case assistant.HoldRoutine:
		o.gate.Hold()
	case assistant.ReleaseRoutine:
		o.gate.Release()
	case assistant.Reinitialize:
		o.spawn(o.reinitialize)
	case assistant.Notify:
		o.notify(e.Message)
	case assistant.Quit:
		o.quit.Do(func() {
			if o.onQuit != nil {
				go o.onQuit()
			}
		})
	}
}

// begin issues a token for new owner work and records it in the core.
func (o *Orchestrator) begin() assistant.Token {
	tok := o.bus.NewToken()
	o.core.Begin(tok.Generation())
	o.work = tok
	return tok
}

func (o *Orchestrator) spawn(fn func(ctx context.Context)) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn(o.ctx)
	}()
}

func (o *Orchestrator) runTurn(ctx context.Context, text string, tok assistant.Token) {
	req := agent.Request{ID: uuid.NewString(), Prompt: text, History: o.conversation.Turns()}
	reply, err := o.agent.Send(ctx, req, tok)
	if err == nil && !tok.Cancelled() {
		o.conversation.Append(assistant.Turn{Role: assistant.RoleUser, Content: text})
		o.conversation.Append(assistant.Turn{Role: assistant.RoleAssistant, Content: reply.Text})
	}
	if err != nil && !errors.Is(err, assistant.ErrCancelled) {
		logging.Warn().
			Add(logging.Component("orchestrator")).
			Add(logging.Generation(tok.Generation())).
			Add(logging.ErrorField(err)).
			Msg("turn failed")
	}
	o.HandleEvent(assistant.AgentReplyReady{Generation: tok.Generation(), Text: reply.Text, Err: err})
}

func (o *Orchestrator) runRoutine(ctx context.Context, e assistant.StartRoutine, tok assistant.Token) {
	started := time.Now()
	res := o.routines.Run(ctx, routines.Request{
		Name:     e.Name,
		Prompt:   e.Prompt,
		MaxSteps: e.MaxSteps,
		Announce: e.Announce,
		Token:    tok,
		Gate:     o.gate,
		Progress: o.progress,
	})
	if res.RunID != "" {
		o.recorder.routine(res, started)
	}
	o.HandleEvent(assistant.AutonomousFinished{Generation: tok.Generation(), Result: res})
}

func (o *Orchestrator) speakAndReport(ctx context.Context, text string, tok assistant.Token) {
	interrupted := o.speak(ctx, text, tok)
	o.HandleEvent(assistant.PlaybackFinished{Generation: tok.Generation(), Interrupted: interrupted})
}

func (o *Orchestrator) speak(ctx context.Context, text string, tok assistant.Token) bool {
	if text == "" {
		return tok.Cancelled()
	}
	result, err := o.speaker.Speak(ctx, text, tok)
	if err != nil && !tok.Cancelled() {
		logging.Warn().
			Add(logging.Component("orchestrator")).
			Add(logging.ErrorField(err)).
			Msg("speech failed")
	}
	return result == playback.Interrupted || tok.Cancelled()
}

func (o *Orchestrator) reinitialize(ctx context.Context) {
	logging.Info().Add(logging.Component("orchestrator")).Msg("reinitializing agent")
	err := o.agent.Reinitialize(ctx)
	if err != nil {
		logging.Error().
			Add(logging.Component("orchestrator")).
			Add(logging.ErrorField(err)).
			Msg("agent reinitialization failed")
	} else {
		o.conversation.Reset()
	}
	o.HandleEvent(assistant.ReinitFinished{Err: err})
}

// notify surfaces a message and speaks it outside the owner work.
func (o *Orchestrator) notify(message string) {
	logging.Warn().
		Add(logging.Component("orchestrator")).
		Add(logging.Str("message", message)).
		Msg("notification")
	o.notifier.Notify(message)

	tok := o.bus.NewToken()
	o.spawn(func(ctx context.Context) { o.speak(ctx, message, tok) })
}

// timer delivers SilenceTimeout for the most recently armed window.
type timer struct {
	mu      sync.Mutex
	t       *time.Timer
	deliver func(assistant.Event) assistant.State
}

func newTimer(deliver func(assistant.Event) assistant.State) *timer {
	return &timer{deliver: deliver}
}

func (t *timer) arm(id uint64, after time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
	}
	t.t = time.AfterFunc(after, func() {
		t.deliver(assistant.SilenceTimeout{Window: id})
	})
}

func (t *timer) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
}
