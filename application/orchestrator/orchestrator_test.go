package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	routines "github.com/felixgeelhaar/echo-go/application/routine"
	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/domain/command"
	"github.com/felixgeelhaar/echo-go/domain/history"
	"github.com/felixgeelhaar/echo-go/domain/routine"
	"github.com/felixgeelhaar/echo-go/infrastructure/agent"
	"github.com/felixgeelhaar/echo-go/infrastructure/playback"
	"github.com/felixgeelhaar/echo-go/infrastructure/storage/filesystem"
	"github.com/felixgeelhaar/echo-go/infrastructure/storage/memory"
)

type fakeSpeaker struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeSpeaker) Speak(_ context.Context, text string, tok assistant.Token) (playback.Result, error) {
	if tok.Cancelled() {
		return playback.Interrupted, nil
	}
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return playback.Completed, nil
}

func (f *fakeSpeaker) Said(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.texts, text)
}

type fakeNotifier struct {
	mu       sync.Mutex
	statuses []string
	notes    []string
}

func (f *fakeNotifier) Status(text string) {
	f.mu.Lock()
	f.statuses = append(f.statuses, text)
	f.mu.Unlock()
}

func (f *fakeNotifier) Notify(message string) {
	f.mu.Lock()
	f.notes = append(f.notes, message)
	f.mu.Unlock()
}

func (f *fakeNotifier) Notes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.notes...)
}

type harness struct {
	o        *Orchestrator
	backend  *agent.ScriptedBackend
	bridge   *agent.Bridge
	speaker  *fakeSpeaker
	notifier *fakeNotifier
	history  *memory.HistoryStore
	projects *filesystem.ProjectStore
}

type harnessConfig struct {
	steps    []agent.Step
	grammar  *command.Grammar
	window   time.Duration
	projects bool
}

func newHarness(t *testing.T, hc harnessConfig) *harness {
	t.Helper()

	cfg := agent.DefaultConfig()
	cfg.StartupTimeout = time.Second
	cfg.Send.RetryMaxAttempts = 3
	cfg.Send.RetryInitialDelay = time.Millisecond
	cfg.Send.DefaultTimeout = 20 * time.Second
	cfg.ReinitAttempts = 2
	cfg.ReinitDelay = time.Millisecond
	cfg.ReinitMaxDelay = 2 * time.Millisecond

	backend := agent.NewScriptedBackend(hc.steps...)
	bridge := agent.NewBridge(backend, cfg)
	if err := bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	speaker := &fakeSpeaker{}
	engine, err := routines.NewEngine(routines.EngineConfig{Agent: bridge, Speaker: speaker, MaxSteps: 5, MaxMinutes: 10})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	window := hc.window
	if window == 0 {
		window = time.Minute
	}
	coreOpts := []assistant.CoreOption{assistant.WithConversationWindow(window)}
	if hc.grammar != nil {
		coreOpts = append(coreOpts, assistant.WithGrammar(hc.grammar))
	}

	h := &harness{
		backend:  backend,
		bridge:   bridge,
		speaker:  speaker,
		notifier: &fakeNotifier{},
		history:  memory.NewHistoryStore(),
	}
	config := Config{
		Agent:       bridge,
		Speaker:     speaker,
		Routines:    engine,
		History:     h.history,
		Notifier:    h.notifier,
		CoreOptions: coreOpts,
	}
	if hc.projects {
		store, err := filesystem.NewProjectStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewProjectStore() error = %v", err)
		}
		config.Projects = store
		h.projects = store
	}

	h.o, err = New(config)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		h.o.Close()
		_ = bridge.Close()
	})
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) waitState(t *testing.T, want assistant.State) {
	t.Helper()
	waitFor(t, "state "+string(want), func() bool { return h.o.State() == want })
}

func (h *harness) waitIdleWork(t *testing.T) {
	t.Helper()
	waitFor(t, "owner work to finish", func() bool { return h.o.Snapshot().Active == 0 })
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Error("New() error = nil, want error")
	}
}

func TestOrchestrator_ConversationTurn(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{steps: []agent.Step{{Reply: "It is sunny."}}})

	if got := h.o.HandleEvent(assistant.WakeDetected{}); got != assistant.StateListening {
		t.Fatalf("state after wake = %v, want listening", got)
	}
	if got := h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "what's the weather"}); got != assistant.StateProcessing {
		t.Fatalf("state after utterance = %v, want processing", got)
	}

	h.waitState(t, assistant.StateListening)
	h.waitIdleWork(t)
	if !h.speaker.Said("It is sunny.") {
		t.Error("reply was not spoken")
	}
	if got := h.o.conversation.Len(); got != 2 {
		t.Errorf("conversation turns = %d, want 2", got)
	}
	if got := h.o.Status().Text; got != "Echo - Listening" {
		t.Errorf("Status().Text = %q, want %q", got, "Echo - Listening")
	}
	if got := h.o.Bus().Current(); got != 1 {
		t.Errorf("generation after reply = %d, want 1 (reply reuses the turn token)", got)
	}

	h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "hold on a sec"})
	waitFor(t, "hold speech", func() bool { return h.speaker.Said(assistant.SayHold) })
	if got := h.o.Bus().Current(); got != 2 {
		t.Errorf("generation after hold = %d, want 2", got)
	}
}

func TestOrchestrator_InterruptDuringProcessing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{steps: []agent.Step{{Reply: "A very late answer.", Delay: 10 * time.Second}}})

	h.o.HandleEvent(assistant.WakeDetected{})
	h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "explain the build"})
	waitFor(t, "agent call", func() bool { return h.backend.Calls() == 1 })

	start := time.Now()
	h.o.Bus().Fire(assistant.ReasonHotkey)
	h.waitState(t, assistant.StateListening)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("interrupt took %v", elapsed)
	}

	waitFor(t, "go ahead", func() bool { return h.speaker.Said(assistant.SayGoAhead) })
	if h.speaker.Said("A very late answer.") {
		t.Error("cancelled reply was spoken")
	}
}

func TestOrchestrator_CallDuringListening(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{steps: []agent.Step{{Reply: "ok"}}})

	h.o.HandleEvent(assistant.WakeDetected{})
	if got := h.o.HandleEvent(assistant.CallStarted{}); got != assistant.StatePausedCall {
		t.Fatalf("state after call = %v, want paused_call", got)
	}
	if got := h.o.Status().Text; got != "Echo - Paused (Call)" {
		t.Errorf("Status().Text = %q, want %q", got, "Echo - Paused (Call)")
	}
	if got := h.o.HandleEvent(assistant.ResumeRequested{}); got != assistant.StatePausedCall {
		t.Errorf("state after resume during call = %v, want paused_call", got)
	}
	if got := h.o.HandleEvent(assistant.CallEnded{}); got != assistant.StateListening {
		t.Errorf("state after call ended = %v, want listening", got)
	}
}

func TestOrchestrator_CallBeatsManualResume(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{steps: []agent.Step{{Reply: "ok"}}})

	steps := []struct {
		event assistant.Event
		want  assistant.State
	}{
		{assistant.WakeDetected{}, assistant.StateListening},
		{assistant.PauseRequested{}, assistant.StatePausedManual},
		{assistant.CallStarted{}, assistant.StatePausedManual},
		{assistant.ResumeRequested{}, assistant.StatePausedCall},
		{assistant.CallEnded{}, assistant.StateIdle},
	}
	for i, s := range steps {
		if got := h.o.HandleEvent(s.event); got != s.want {
			t.Fatalf("step %d (%s): state = %v, want %v", i, s.event.Trigger(), got, s.want)
		}
	}
}

func TestOrchestrator_AgentUnavailableReachesError(t *testing.T) {
	t.Parallel()

	down := fmt.Errorf("%w: pipe closed", assistant.ErrAgentUnavailable)
	h := newHarness(t, harnessConfig{steps: []agent.Step{{Err: down}}})
	h.backend.FailStarts(-1)

	h.o.HandleEvent(assistant.WakeDetected{})
	h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "open the pull request"})

	h.waitState(t, assistant.StateError)
	waitFor(t, "reinitialization to finish", func() bool { return !h.o.Snapshot().Reinitializing })

	if got := h.backend.Calls(); got < 1 || got > 3 {
		t.Errorf("agent calls = %d, want between 1 and 3", got)
	}
	if got := h.o.State(); got != assistant.StateError {
		t.Errorf("state after failed reinit = %v, want error", got)
	}

	h.o.HandleEvent(assistant.CrashDetected{Err: down})
	h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "hello?"})
	if got := h.notifier.Notes(); len(got) != 1 || got[0] != assistant.SayAgentDown {
		t.Errorf("notifications = %q, want exactly one %q", got, assistant.SayAgentDown)
	}
	if got := h.o.Status().Text; got != "Echo - Error" {
		t.Errorf("Status().Text = %q, want %q", got, "Echo - Error")
	}

	// A resume in the error state retries reinitialization.
	h.backend.FailStarts(0)
	h.o.HandleEvent(assistant.ResumeRequested{})
	h.waitState(t, assistant.StateIdle)
	if !h.bridge.Healthy() {
		t.Error("bridge not healthy after reinitialize")
	}
}

func routineGrammar(maxSteps int) *command.Grammar {
	return command.NewGrammar(command.WithRoutines(routine.Definition{
		Name:           "morning",
		TriggerPhrases: []string{"morning check"},
		Prompt:         "Check mail and calendar.",
		MaxSteps:       maxSteps,
	}))
}

func TestOrchestrator_Routine(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{
		steps:   []agent.Step{{Reply: "Looked at mail.\nNEXT"}, {Reply: "Calendar is clear.\nDONE"}},
		grammar: routineGrammar(5),
	})

	h.o.HandleEvent(assistant.WakeDetected{})
	if got := h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "run my morning check"}); got != assistant.StateAutonomous {
		t.Fatalf("state = %v, want autonomous", got)
	}

	h.waitState(t, assistant.StateListening)
	waitFor(t, "routine done speech", func() bool { return h.speaker.Said(assistant.SayRoutineDone) })
	for _, want := range []string{"Starting routine: morning.", "Looked at mail.", "Calendar is clear."} {
		if !h.speaker.Said(want) {
			t.Errorf("%q was not spoken", want)
		}
	}

	h.o.Close()
	records, err := h.history.Routines(context.Background(), history.ListFilter{})
	if err != nil {
		t.Fatalf("Routines() error = %v", err)
	}
	if len(records) != 1 || records[0].Outcome != routine.OutcomeCompleted || records[0].Calls != 2 {
		t.Errorf("routine records = %+v, want one completed run with 2 calls", records)
	}
	transitions, err := h.history.Transitions(context.Background(), history.ListFilter{})
	if err != nil {
		t.Fatalf("Transitions() error = %v", err)
	}
	if len(transitions) < 3 || transitions[0].To != assistant.StateListening {
		t.Errorf("transitions = %+v, want idle->listening first", transitions)
	}
}

func TestOrchestrator_InterruptRoutine(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{
		steps:   []agent.Step{{Reply: "Working.\nNEXT", Delay: 10 * time.Second}},
		grammar: routineGrammar(5),
	})

	h.o.HandleEvent(assistant.WakeDetected{})
	h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "morning check"})
	waitFor(t, "agent call", func() bool { return h.backend.Calls() == 1 })

	if got := h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "stop"}); got != assistant.StateListening {
		t.Fatalf("state after stop = %v, want listening", got)
	}
	waitFor(t, "stop speech", func() bool { return h.speaker.Said(assistant.SayStopAutonomous) })

	time.Sleep(20 * time.Millisecond)
	if got := h.backend.Calls(); got != 1 {
		t.Errorf("agent calls = %d, want 1", got)
	}
}

func TestOrchestrator_CallHoldsRoutine(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{
		steps:   []agent.Step{{Reply: "Step one.\nNEXT", Delay: 200 * time.Millisecond}, {Reply: "Step two.\nDONE"}},
		grammar: routineGrammar(5),
	})

	h.o.HandleEvent(assistant.WakeDetected{})
	h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "morning check"})
	waitFor(t, "first agent call", func() bool { return h.backend.Calls() == 1 })

	if got := h.o.HandleEvent(assistant.CallStarted{}); got != assistant.StatePausedCall {
		t.Fatalf("state after call = %v, want paused_call", got)
	}
	time.Sleep(400 * time.Millisecond)
	if h.speaker.Said("Step one.") {
		t.Error("reply was spoken during the call")
	}
	if got := h.backend.Calls(); got != 1 {
		t.Fatalf("agent calls during call = %d, want 1", got)
	}

	if got := h.o.HandleEvent(assistant.CallEnded{}); got != assistant.StateAutonomous {
		t.Fatalf("state after call ended = %v, want autonomous", got)
	}
	waitFor(t, "step one speech", func() bool { return h.speaker.Said("Step one.") })
	h.waitState(t, assistant.StateListening)
	if got := h.backend.Calls(); got != 2 {
		t.Errorf("agent calls = %d, want 2", got)
	}
}

func TestOrchestrator_InterruptDuringCallReleasesRoutine(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{
		steps: []agent.Step{
			{Reply: "Step one.\nNEXT", Delay: 100 * time.Millisecond},
			{Reply: "Fresh start.\nDONE"},
		},
		grammar: routineGrammar(5),
	})

	h.o.HandleEvent(assistant.WakeDetected{})
	h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "morning check"})
	waitFor(t, "first agent call", func() bool { return h.backend.Calls() == 1 })
	h.o.HandleEvent(assistant.CallStarted{})

	if _, ok := h.o.Bus().Fire(assistant.ReasonHotkey); !ok {
		t.Fatal("Fire() found no active token")
	}
	waitFor(t, "gate release", func() bool { return !h.o.gate.Held() })
	waitFor(t, "routine to stop", func() bool { return h.o.Snapshot().Active == 0 })

	if got := h.o.HandleEvent(assistant.CallEnded{}); got != assistant.StateListening {
		t.Fatalf("state after call ended = %v, want listening", got)
	}
	if h.o.gate.Held() {
		t.Fatal("gate still held after the call")
	}

	if got := h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "morning check"}); got != assistant.StateAutonomous {
		t.Fatalf("state after second trigger = %v, want autonomous", got)
	}
	waitFor(t, "second routine", func() bool { return h.speaker.Said("Fresh start.") })
	if got := h.backend.Calls(); got != 2 {
		t.Errorf("agent calls = %d, want 2", got)
	}
	if h.speaker.Said("Step one.") {
		t.Error("interrupted routine spoke its reply")
	}
}

func TestOrchestrator_BudgetDuringCallIsReplayed(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{
		steps:   []agent.Step{{Reply: "Only step.\nNEXT", Delay: 100 * time.Millisecond}},
		grammar: routineGrammar(1),
	})

	h.o.HandleEvent(assistant.WakeDetected{})
	h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "morning check"})
	waitFor(t, "agent call", func() bool { return h.backend.Calls() == 1 })
	h.o.HandleEvent(assistant.CallStarted{})

	waitFor(t, "queued outcome", func() bool { return h.o.Snapshot().Pending == 1 })
	if got := h.o.State(); got != assistant.StatePausedCall {
		t.Fatalf("state = %v, want paused_call", got)
	}

	if got := h.o.HandleEvent(assistant.CallEnded{}); got != assistant.StateListening {
		t.Errorf("state after call ended = %v, want listening", got)
	}
	waitFor(t, "budget speech", func() bool { return h.speaker.Said(assistant.SayStepBudget) })
}

func TestOrchestrator_SilenceTimeout(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{steps: []agent.Step{{Reply: "ok"}}, window: 20 * time.Millisecond})

	h.o.HandleEvent(assistant.WakeDetected{})
	h.waitState(t, assistant.StateIdle)
}

func TestOrchestrator_ProjectCommands(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{steps: []agent.Step{{Reply: "Apollo"}}, projects: true})

	h.o.HandleEvent(assistant.WakeDetected{})
	h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "start a project called Apollo"})
	waitFor(t, "create speech", func() bool { return h.speaker.Said("Project Apollo created. I'll start tracking it.") })
	h.waitIdleWork(t)

	h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "start a project called Apollo"})
	waitFor(t, "duplicate speech", func() bool { return h.speaker.Said("A project called Apollo already exists.") })
	h.waitIdleWork(t)

	h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "list my projects"})
	waitFor(t, "list speech", func() bool { return h.speaker.Said("Active projects: Apollo.") })
	h.waitIdleWork(t)

	h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "archive project Apollo"})
	waitFor(t, "archive speech", func() bool { return h.speaker.Said("Project Apollo has been archived.") })

	if got := h.o.State(); got != assistant.StateListening {
		t.Errorf("state = %v, want listening", got)
	}
}

func TestOrchestrator_PauseDuringNameExtraction(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{steps: []agent.Step{{Reply: "Apollo", Delay: 300 * time.Millisecond}}, projects: true})

	h.o.HandleEvent(assistant.WakeDetected{})
	h.o.HandleEvent(assistant.UtteranceTranscribed{Text: "start a project called Apollo"})
	waitFor(t, "name extraction", func() bool { return h.backend.Calls() == 1 })

	if got := h.o.HandleEvent(assistant.PauseRequested{}); got != assistant.StatePausedManual {
		t.Fatalf("state after pause = %v, want paused_manual", got)
	}
	h.waitIdleWork(t)
	time.Sleep(400 * time.Millisecond)

	active, archived, err := h.projects.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(active) != 0 || len(archived) != 0 {
		t.Errorf("projects = %v/%v, want none", active, archived)
	}
	if h.speaker.Said("Project Apollo created. I'll start tracking it.") {
		t.Error("create confirmation was spoken after pause")
	}
}

func TestOrchestrator_Quit(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{steps: []agent.Step{{Reply: "ok"}}})
	quit := make(chan struct{})
	h.o.onQuit = func() { close(quit) }

	h.o.HandleEvent(assistant.QuitRequested{})
	h.o.HandleEvent(assistant.QuitRequested{})
	select {
	case <-quit:
	case <-time.After(2 * time.Second):
		t.Fatal("OnQuit not called")
	}
}

func TestOrchestrator_RunStopsOnContext(t *testing.T) {
	t.Parallel()

	h := newHarness(t, harnessConfig{steps: []agent.Step{{Reply: "ok"}}})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.o.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if got := h.o.HandleEvent(assistant.WakeDetected{}); got != assistant.StateIdle {
		t.Errorf("state after close = %v, want idle", got)
	}
}
