// Package application wires the assistant components together and runs them.
package application

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/echo-go/application/orchestrator"
	"github.com/felixgeelhaar/echo-go/application/routine"
	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/domain/command"
	"github.com/felixgeelhaar/echo-go/domain/config"
	"github.com/felixgeelhaar/echo-go/domain/history"
	"github.com/felixgeelhaar/echo-go/domain/project"
	"github.com/felixgeelhaar/echo-go/infrastructure/agent"
	"github.com/felixgeelhaar/echo-go/infrastructure/callmonitor"
	"github.com/felixgeelhaar/echo-go/infrastructure/control"
	"github.com/felixgeelhaar/echo-go/infrastructure/device"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
	"github.com/felixgeelhaar/echo-go/infrastructure/notify"
	"github.com/felixgeelhaar/echo-go/infrastructure/observability"
	"github.com/felixgeelhaar/echo-go/infrastructure/playback"
	"github.com/felixgeelhaar/echo-go/infrastructure/signal"
	"github.com/felixgeelhaar/echo-go/infrastructure/storage/filesystem"
	"github.com/felixgeelhaar/echo-go/infrastructure/telemetry"
	"github.com/felixgeelhaar/echo-go/infrastructure/transcript"
)

// App is a fully wired assistant.
type App struct {
	config *config.AssistantConfig
	opts   options

	obs          *observability.Provider
	metrics      telemetry.Metrics
	history      history.Store
	projects     project.Store
	bridge       *agent.Bridge
	monitor      *callmonitor.Monitor
	orchestrator *orchestrator.Orchestrator
	hub          *notify.Hub
	dispatcher   *control.Dispatcher

	quit     chan struct{}
	quitOnce sync.Once
}

// New builds every component from cfg. Nothing is started until Run.
func New(ctx context.Context, cfg *config.AssistantConfig, opts ...Option) (*App, error) {
	if errs := config.NewValidator().Validate(cfg); errs.HasErrors() {
		return nil, errs
	}

	o := options{version: "dev", input: os.Stdin, output: os.Stdout, status: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{config: cfg, opts: o, quit: make(chan struct{})}
	if err := a.build(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.config

	if err := a.buildTelemetry(); err != nil {
		return err
	}

	store, err := OpenHistory(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	a.history = store

	if cfg.Agent.ProjectsDir != "" {
		projects, err := filesystem.NewProjectStore(cfg.Agent.ProjectsDir)
		if err != nil {
			return fmt.Errorf("open projects: %w", err)
		}
		a.projects = projects
	}

	backend := a.opts.backend
	if backend == nil {
		backend, err = NewBackend(ctx, cfg, a.projects)
		if err != nil {
			return err
		}
	}

	synth := a.opts.synth
	if synth == nil {
		synth, err = NewSynthesizer(cfg.Playback, a.opts.output)
		if err != nil {
			return err
		}
	}
	speaker := playback.NewCoordinator(synth,
		playback.WithMetrics(a.metrics),
		playback.WithCooldown(cfg.Playback.Cooldown.Duration()),
	)

	a.bridge = agent.NewBridge(backend, BridgeConfig(cfg.Agent),
		agent.WithMetrics(a.metrics),
		agent.WithCrashHandler(a.onCrash),
	)

	engine, err := routine.NewEngine(routine.EngineConfig{
		Agent:      a.bridge,
		Speaker:    speaker,
		MaxSteps:   cfg.Autonomous.MaxSteps,
		MaxMinutes: cfg.Autonomous.MaxMinutes,
		Metrics:    a.metrics,
	})
	if err != nil {
		return err
	}

	a.hub = notify.NewHub()

	orch, err := orchestrator.New(orchestrator.Config{
		Name:         cfg.Name,
		Agent:        a.bridge,
		Speaker:      speaker,
		Routines:     engine,
		Projects:     a.projects,
		History:      a.history,
		Notifier:     a.hub,
		Metrics:      a.metrics,
		CoreOptions:  a.coreOptions(),
		HistoryTurns: cfg.Agent.HistoryTurns,
		OnQuit:       a.requestQuit,
	})
	if err != nil {
		return err
	}
	a.orchestrator = orch

	sessions := a.opts.sessions
	if sessions == nil {
		sessions = NewSessionSource(cfg.Call)
	}
	dispatcherCfg := control.DispatcherConfig{
		Target:  orch,
		Status:  a.hub,
		Rate:    cfg.Control.Rate,
		Burst:   cfg.Control.Burst,
		Metrics: a.metrics,
	}
	if sessions != nil {
		a.monitor = callmonitor.New(sessions, callmonitor.Config{
			Apps:         cfg.Call.Apps,
			PollInterval: cfg.Call.PollInterval.Duration(),
			Debounce:     cfg.Call.Debounce.Duration(),
		}, callmonitor.WithMetrics(a.metrics))
		dispatcherCfg.Calls = a.monitor
	}

	a.dispatcher, err = control.NewDispatcher(dispatcherCfg)
	return err
}

func (a *App) buildTelemetry() error {
	t := a.config.Telemetry
	a.metrics = telemetry.NoopMetricsProvider{}
	if !t.Tracing && !t.Metrics {
		return nil
	}

	opts := []observability.Option{
		observability.WithServiceName("echo"),
		observability.WithServiceVersion(a.opts.version),
	}
	if t.Tracing {
		opts = append(opts, observability.WithTracing(observability.ExporterType(t.Exporter), t.Endpoint))
	}
	if t.Metrics {
		opts = append(opts, observability.WithMetrics())
	}
	obs, err := observability.New(opts...)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	a.obs = obs

	if t.Metrics {
		mp := telemetry.NewMetricsProvider(telemetry.MetricsConfig{
			MeterVersion:  a.opts.version,
			MeterProvider: obs.MeterProvider(),
		})
		if err := mp.Error(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		a.metrics = mp
	}
	return nil
}

func (a *App) coreOptions() []assistant.CoreOption {
	v := a.config.Voice
	grammarOpts := []command.Option{command.WithRoutines(a.config.Autonomous.Routines...)}
	if len(v.StopPhrases) > 0 {
		grammarOpts = append(grammarOpts, command.WithStopPhrases(v.StopPhrases...))
	}
	if len(v.ResumePhrases) > 0 {
		grammarOpts = append(grammarOpts, command.WithResumePhrases(v.ResumePhrases...))
	}
	if len(v.HoldPhrases) > 0 {
		grammarOpts = append(grammarOpts, command.WithHoldPhrases(v.HoldPhrases...))
	}
	if len(v.InterruptPhrases) > 0 {
		grammarOpts = append(grammarOpts, command.WithInterruptPhrases(v.InterruptPhrases...))
	}
	return []assistant.CoreOption{
		assistant.WithGrammar(command.NewGrammar(grammarOpts...)),
		assistant.WithConversationWindow(v.ConversationWindow.Duration()),
		assistant.WithHoldExtension(v.HoldExtension.Duration()),
	}
}

func (a *App) onCrash(err error) {
	if a.orchestrator != nil {
		a.orchestrator.HandleEvent(assistant.CrashDetected{Err: err})
	}
}

func (a *App) requestQuit() {
	a.quitOnce.Do(func() { close(a.quit) })
}

// Orchestrator returns the wired orchestrator.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orchestrator
}

// Hub returns the status and notification hub.
func (a *App) Hub() *notify.Hub {
	return a.hub
}

// History returns the history store.
func (a *App) History() history.Store {
	return a.history
}

// Run starts every component and blocks until ctx is done, a quit is
// requested or a component fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.attachSinks(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	emit := func(ev assistant.Event) { a.orchestrator.HandleEvent(ev) }

	g.Go(func() error {
		select {
		case <-a.quit:
			logging.Info().Add(logging.Component("app")).Msg("quit requested")
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		return a.orchestrator.Run(ctx)
	})

	// Sources start after the agent so early utterances do not fail fast.
	if err := a.bridge.Start(ctx); err != nil && ctx.Err() == nil {
		emit(assistant.CrashDetected{Err: err})
	}

	if err := a.startSources(ctx, g, emit); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}
	a.startControl(ctx, g)

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func (a *App) attachSinks(ctx context.Context) error {
	n := a.config.Notify
	if n.Console && a.opts.status != nil {
		if err := a.hub.PrintTo(a.opts.status); err != nil {
			return err
		}
	}
	if n.WebhookURL != "" {
		wh, err := notify.NewWebhook(notify.WebhookConfig{URL: n.WebhookURL, Secret: n.WebhookSecret})
		if err != nil {
			return err
		}
		if err := wh.Attach(ctx, a.hub); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) startSources(ctx context.Context, g *errgroup.Group, emit func(assistant.Event)) error {
	cfg := a.config

	if a.monitor != nil {
		g.Go(func() error { return a.monitor.Run(ctx, emit) })
	}

	if cfg.Device.Path != "" {
		watcher, err := device.NewWatcher(cfg.Device.Path, cfg.Device.Name)
		if err != nil {
			return err
		}
		g.Go(func() error { return watcher.Run(ctx, emit) })
	}

	// stdin belongs to the MCP transport when it is on stdio.
	if a.opts.input != nil && !(cfg.Control.MCP == "stdio" && a.opts.input == os.Stdin) {
		bus := a.orchestrator.Bus()
		var taps *signal.TapDetector
		if cfg.Hotkey.Enabled {
			taps = signal.NewTapDetector(bus, cfg.Hotkey.Taps, cfg.Hotkey.Window.Duration())
		}
		grammar := command.NewGrammar(command.WithInterruptPhrases(a.interruptPhrases()...))
		console := transcript.NewConsole(a.opts.input, transcript.ConsoleConfig{
			WakePhrase: cfg.Voice.WakePhrase,
			Taps:       taps,
			Phrases:    signal.NewPhraseWatcher(grammar, bus),
		})
		g.Go(func() error { return console.Run(ctx, emit) })
	}
	return nil
}

func (a *App) interruptPhrases() []string {
	if p := a.config.Voice.InterruptPhrases; len(p) > 0 {
		return p
	}
	return command.DefaultInterruptPhrases
}

func (a *App) startControl(ctx context.Context, g *errgroup.Group) {
	c := a.config.Control

	switch c.MCP {
	case "stdio", "http":
		srv := control.NewMCPServer(control.MCPConfig{Name: "echo", Version: a.opts.version}, a.dispatcher)
		g.Go(func() error {
			if c.MCP == "http" {
				return srv.ServeHTTP(ctx, c.MCPAddr)
			}
			return srv.ServeStdio(ctx)
		})
	}

	if c.WebSocketAddr != "" {
		bridge := control.NewBridge(a.dispatcher)
		if err := a.hub.OnStatus(bridge.Broadcast); err != nil {
			logging.Warn().Add(logging.Component("app")).Add(logging.ErrorField(err)).Msg("status push disabled")
		}
		g.Go(func() error { return bridge.ListenAndServe(ctx, c.WebSocketAddr) })
	}
}

// Close releases the agent, stores and telemetry. Run must have returned.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.orchestrator != nil {
		a.orchestrator.Close()
	}
	if a.bridge != nil {
		errs = append(errs, a.bridge.Close())
	}
	if a.hub != nil {
		a.hub.Wait()
	}
	if a.history != nil {
		errs = append(errs, a.history.Close())
	}
	if a.obs != nil {
		errs = append(errs, a.obs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
