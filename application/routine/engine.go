// Package routine provides the Autonomous Routine Engine.
package routine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/domain/routine"
	"github.com/felixgeelhaar/echo-go/infrastructure/agent"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
	"github.com/felixgeelhaar/echo-go/infrastructure/observability"
	"github.com/felixgeelhaar/echo-go/infrastructure/playback"
	"github.com/felixgeelhaar/echo-go/infrastructure/telemetry"
)

// ContinuePrompt is sent for every step after the first.
const ContinuePrompt = "Continue with the next step. Report your progress."

// Agent sends one prompt and blocks until the reply or cancellation.
type Agent interface {
	Send(ctx context.Context, req agent.Request, tok assistant.Token) (agent.Reply, error)
}

// Speaker plays text under a token.
type Speaker interface {
	Speak(ctx context.Context, text string, tok assistant.Token) (playback.Result, error)
}

// EngineConfig contains configuration for the engine.
type EngineConfig struct {
	Agent   Agent
	Speaker Speaker

	// MaxSteps and MaxMinutes are the defaults for requests that leave them zero.
	MaxSteps   int
	MaxMinutes int

	Metrics telemetry.Metrics
	Clock   func() time.Time
}

// Request describes one routine run.
type Request struct {
	Name   string
	Prompt string

	// MaxSteps and MaxMinutes override the engine defaults when positive.
	MaxSteps   int
	MaxMinutes int

	// Announce is spoken before the first agent call.
	Announce string

	// Token cancels the run. Required.
	Token assistant.Token

	// Gate is waited on at every checkpoint. Defaults to assistant.OpenGate.
	Gate assistant.Gate

	// Progress is called before each agent call with the 1-based step.
	Progress func(step, maxSteps int)
}

// Engine runs budgeted multi-step routines against the agent.
type Engine struct {
	agent      Agent
	speaker    Speaker
	maxSteps   int
	maxMinutes int
	metrics    telemetry.Metrics
	now        func() time.Time
}

// NewEngine creates a new engine with the given configuration.
func NewEngine(config EngineConfig) (*Engine, error) {
	if config.Agent == nil {
		return nil, errors.New("agent is required")
	}
	if config.Speaker == nil {
		return nil, errors.New("speaker is required")
	}

	e := &Engine{
		agent:      config.Agent,
		speaker:    config.Speaker,
		maxSteps:   config.MaxSteps,
		maxMinutes: config.MaxMinutes,
		metrics:    config.Metrics,
		now:        config.Clock,
	}

	// Set defaults
	if e.maxSteps <= 0 {
		e.maxSteps = 10
	}
	if e.maxMinutes <= 0 {
		e.maxMinutes = 30
	}
	if e.metrics == nil {
		e.metrics = telemetry.NoopMetricsProvider{}
	}
	if e.now == nil {
		e.now = time.Now
	}

	return e, nil
}

// InitialPrompt wraps a routine body in the autonomous mode rules.
func InitialPrompt(body string) string {
	return "You are now in autonomous work mode. Execute the following routine step by step.\n\n" +
		"ROUTINE: " + body + "\n\n" +
		"RULES:\n" +
		"1. Work through the routine one step at a time.\n" +
		"2. After each step give a concise spoken summary of what you did and what you found.\n" +
		"3. End your reply with the word NEXT if there are more steps, or DONE if the routine is complete.\n" +
		"4. Do NOT include NEXT or DONE in the spoken summary. Put it on its own final line.\n"
}

// Run executes the routine until DONE, a budget, cancellation or an agent failure.
// The step budget is checked after each NEXT, the time budget before each agent call.
// No wrap-up prompt is sent when a budget is exhausted.
func (e *Engine) Run(ctx context.Context, req Request) routine.Result {
	if req.Token == nil {
		return routine.Result{Name: req.Name, Outcome: routine.OutcomeFailed, Err: errors.New("routine token is required")}
	}

	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = e.maxSteps
	}
	maxMinutes := req.MaxMinutes
	if maxMinutes <= 0 {
		maxMinutes = e.maxMinutes
	}
	gate := req.Gate
	if gate == nil {
		gate = assistant.OpenGate{}
	}
	name := req.Name
	if name == "" {
		name = summarize(req.Prompt)
	}

	run := routine.NewRun(uuid.NewString(), name, maxSteps, maxMinutes, e.now())

	ctx, span := observability.StartSpan(ctx, "routine.run")

	logging.Info().
		Add(logging.Component("routine")).
		Add(logging.Routine(name)).
		Add(logging.Generation(req.Token.Generation())).
		Add(logging.Int("max_steps", maxSteps)).
		Add(logging.Int("max_minutes", maxMinutes)).
		Msg("routine started")

	res := e.loop(ctx, run, req, gate)
	res.RunID = run.ID
	res.Name = name
	res.Steps = run.StepCount()
	res.Calls = run.Calls()
	res.Duration = e.now().Sub(run.StartTime)

	observability.EndSpan(span, res.Err)
	e.metrics.RecordRoutine(ctx, name, string(res.Outcome), res.Steps, res.Duration)

	event := logging.Info()
	if res.Outcome == routine.OutcomeFailed {
		event = logging.Warn().Add(logging.ErrorField(res.Err))
	}
	event.
		Add(logging.Component("routine")).
		Add(logging.Routine(name)).
		Add(logging.Str("outcome", res.Outcome.String())).
		Add(logging.Step(res.Steps)).
		Add(logging.Int("calls", res.Calls)).
		Add(logging.Duration(res.Duration)).
		Msg("routine finished")

	return res
}

func (e *Engine) loop(ctx context.Context, run *routine.Run, req Request, gate assistant.Gate) routine.Result {
	tok := req.Token

	if req.Announce != "" {
		if interrupted := e.speak(ctx, []string{req.Announce}, tok, gate); interrupted {
			return interruptedResult()
		}
	}

	prompt := InitialPrompt(req.Prompt)
	for step := 1; ; step++ {
		// Checkpoint
		if tok.Cancelled() {
			return interruptedResult()
		}
		if err := gate.Wait(ctx, tok); err != nil {
			if tok.Cancelled() || errors.Is(err, assistant.ErrCancelled) {
				return interruptedResult()
			}
			return routine.Result{Outcome: routine.OutcomeInterrupted, Err: err}
		}
		if run.TimeExceeded(e.now()) {
			logging.Info().
				Add(logging.Component("routine")).
				Add(logging.Routine(run.Name)).
				Msg("time limit reached")
			return routine.Result{Outcome: routine.OutcomeBudgetExceeded, Budget: routine.BudgetTime}
		}

		if req.Progress != nil {
			req.Progress(step, run.MaxSteps)
		}
		logging.Debug().
			Add(logging.Component("routine")).
			Add(logging.Routine(run.Name)).
			Add(logging.Step(step)).
			Msg("routine step")

		run.RecordCall()
		reply, err := e.agent.Send(ctx, agent.Request{ID: run.ID, Prompt: prompt}, tok)
		if tok.Cancelled() || errors.Is(err, assistant.ErrCancelled) {
			// A reply that arrives after the token fired is discarded.
			return interruptedResult()
		}
		if err != nil {
			if ctx.Err() != nil {
				return routine.Result{Outcome: routine.OutcomeInterrupted, Err: ctx.Err()}
			}
			return routine.Result{Outcome: routine.OutcomeFailed, Err: err}
		}
		if strings.TrimSpace(reply.Text) == "" {
			return routine.Result{Outcome: routine.OutcomeFailed, Err: assistant.ErrEmptyReply}
		}

		text, marker := routine.ParseMarker(reply.Text)
		if text != "" {
			if interrupted := e.speak(ctx, playback.SplitSentences(text), tok, gate); interrupted {
				return interruptedResult()
			}
		}

		run.Record(routine.Entry{Prompt: prompt, Reply: reply.Text, Marker: marker})
		if marker == routine.MarkerDone {
			return routine.Result{Outcome: routine.OutcomeCompleted}
		}
		if run.StepsExceeded() {
			logging.Info().
				Add(logging.Component("routine")).
				Add(logging.Routine(run.Name)).
				Msg("max steps reached")
			return routine.Result{Outcome: routine.OutcomeBudgetExceeded, Budget: routine.BudgetSteps}
		}
		prompt = ContinuePrompt
	}
}

// speak plays units in order and reports whether the token fired. Each
// unit waits on gate first, so nothing is said while a call is active.
// Synthesis errors are logged and the routine continues.
func (e *Engine) speak(ctx context.Context, units []string, tok assistant.Token, gate assistant.Gate) bool {
	for _, unit := range units {
		if err := gate.Wait(ctx, tok); err != nil {
			return true
		}
		result, err := e.speaker.Speak(ctx, unit, tok)
		if err != nil && !tok.Cancelled() {
			logging.Warn().
				Add(logging.Component("routine")).
				Add(logging.ErrorField(err)).
				Msg("speech failed")
		}
		if result == playback.Interrupted || tok.Cancelled() {
			return true
		}
	}
	return false
}

func interruptedResult() routine.Result {
	return routine.Result{Outcome: routine.OutcomeInterrupted}
}

func summarize(prompt string) string {
	const limit = 40
	r := []rune(strings.TrimSpace(prompt))
	if len(r) <= limit {
		return string(r)
	}
	return fmt.Sprintf("%s...", strings.TrimSpace(string(r[:limit])))
}
