package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/felixgeelhaar/echo-go/domain/config"
	"github.com/felixgeelhaar/echo-go/domain/history"
	"github.com/felixgeelhaar/echo-go/domain/project"
	"github.com/felixgeelhaar/echo-go/infrastructure/agent"
	"github.com/felixgeelhaar/echo-go/infrastructure/callmonitor"
	"github.com/felixgeelhaar/echo-go/infrastructure/playback"
	"github.com/felixgeelhaar/echo-go/infrastructure/resilience"
	"github.com/felixgeelhaar/echo-go/infrastructure/storage/badger"
	"github.com/felixgeelhaar/echo-go/infrastructure/storage/memory"
	"github.com/felixgeelhaar/echo-go/infrastructure/storage/redis"
	"github.com/felixgeelhaar/echo-go/infrastructure/storage/sqlite"
)

// ErrUnknownBackend is returned for an agent backend name that is not supported.
var ErrUnknownBackend = errors.New("unknown agent backend")

// OpenHistory opens the configured history store.
func OpenHistory(cfg config.StorageConfig) (history.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return memory.NewHistoryStore(), nil
	case "sqlite":
		return sqlite.NewHistoryStore(sqlite.DefaultConfig(), sqliteOptions(cfg.SQLite)...)
	case "badger":
		return badger.NewHistoryStore(badger.DefaultConfig(), badgerOptions(cfg.Badger)...)
	case "redis":
		return redis.NewHistoryStore(redis.DefaultConfig(), redisOptions(cfg.Redis)...)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func sqliteOptions(cfg config.SQLiteConfig) []sqlite.Option {
	opts := []sqlite.Option{
		sqlite.WithDSN(fmt.Sprintf("file:%s?cache=shared&mode=rwc", cfg.Path)),
		sqlite.WithAutoMigrate(!cfg.SkipMigrate),
	}
	if cfg.JournalMode != "" {
		opts = append(opts, sqlite.WithJournalMode(strings.ToUpper(cfg.JournalMode)))
	}
	if cfg.BusyTimeout > 0 {
		opts = append(opts, sqlite.WithBusyTimeout(int(cfg.BusyTimeout.Duration().Milliseconds())))
	}
	if cfg.MaxOpenConns > 0 {
		opts = append(opts, sqlite.WithMaxOpenConns(cfg.MaxOpenConns))
	}
	if cfg.MaxIdleConns > 0 {
		opts = append(opts, sqlite.WithMaxIdleConns(cfg.MaxIdleConns))
	}
	if cfg.ConnMaxLifetime > 0 {
		opts = append(opts, sqlite.WithConnMaxLifetime(cfg.ConnMaxLifetime.Duration()))
	}
	return opts
}

func badgerOptions(cfg config.BadgerConfig) []badger.Option {
	opts := []badger.Option{badger.WithDir(cfg.Dir)}
	if cfg.InMemory {
		opts = append(opts, badger.WithInMemory())
	}
	if cfg.SyncWrites {
		opts = append(opts, badger.WithSyncWrites())
	}
	if cfg.GCInterval > 0 {
		opts = append(opts, badger.WithGCInterval(cfg.GCInterval.Duration()))
	}
	if cfg.GCDiscardRatio > 0 {
		opts = append(opts, badger.WithGCDiscardRatio(cfg.GCDiscardRatio))
	}
	return opts
}

func redisOptions(cfg config.RedisConfig) []redis.ConfigOption {
	opts := []redis.ConfigOption{
		redis.WithAddress(cfg.Addr),
		redis.WithPassword(cfg.Password),
		redis.WithDB(cfg.DB),
		redis.WithMaxEntries(int64(cfg.MaxEntries)),
	}
	if cfg.KeyPrefix != "" {
		opts = append(opts, redis.WithKeyPrefix(cfg.KeyPrefix))
	}
	if cfg.PoolSize > 0 {
		opts = append(opts, redis.WithPoolSize(cfg.PoolSize))
	}
	if cfg.DialTimeout > 0 || cfg.ReadTimeout > 0 || cfg.WriteTimeout > 0 {
		defaults := redis.DefaultConfig()
		opts = append(opts, redis.WithTimeouts(
			orDefault(cfg.DialTimeout.Duration(), defaults.DialTimeout),
			orDefault(cfg.ReadTimeout.Duration(), defaults.ReadTimeout),
			orDefault(cfg.WriteTimeout.Duration(), defaults.WriteTimeout),
		))
	}
	return opts
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// BridgeConfig maps agent settings onto the bridge configuration.
func BridgeConfig(cfg config.AgentConfig) agent.Config {
	send := resilience.Configure(
		resilience.WithMaxConcurrent(1),
		resilience.WithRetryAttempts(cfg.Retry.MaxAttempts),
		resilience.WithRetryDelay(cfg.Retry.InitialDelay.Duration()),
		resilience.WithMaxDelay(cfg.Retry.MaxDelay.Duration()),
		resilience.WithBackoffMultiplier(cfg.Retry.Multiplier),
		resilience.WithCircuitBreakerThreshold(cfg.CircuitBreaker.Threshold),
		resilience.WithCircuitBreakerTimeout(cfg.CircuitBreaker.Timeout.Duration()),
		resilience.WithTimeout(cfg.SendTimeout.Duration()),
	)

	return agent.Config{
		StartupTimeout:   cfg.StartupTimeout.Duration(),
		Send:             send,
		ReinitAttempts:   cfg.Retry.ReinitAttempts,
		ReinitDelay:      cfg.Retry.InitialDelay.Duration(),
		ReinitMaxDelay:   cfg.Retry.MaxDelay.Duration(),
		ReinitMultiplier: cfg.Retry.Multiplier,
	}
}

// NewBackend builds the configured agent backend. The system prompt is
// assembled once, at startup.
func NewBackend(ctx context.Context, cfg *config.AssistantConfig, projects project.Store) (agent.Backend, error) {
	a := cfg.Agent

	promptOpts := []agent.PromptOption{
		agent.WithAssistantName(cfg.Name),
		agent.WithKnowledgeFile(a.KnowledgeFile),
		agent.WithRepository(a.RepoPath),
	}
	if a.SystemPrompt != "" {
		promptOpts = append(promptOpts, agent.WithBasePrompt(a.SystemPrompt))
	}
	var tools *agent.ProjectTools
	if projects != nil {
		promptOpts = append(promptOpts, agent.WithProjects(projects, a.ProjectMaxChars))
		tools = agent.NewProjectTools(projects, a.ProjectMaxChars)
	}

	switch a.Backend {
	case "scripted":
		return agent.NewScriptedReplies(a.Script...), nil
	case "openai":
		oc := agent.OpenAIConfig{
			APIKey:       a.OpenAI.APIKey,
			BaseURL:      a.OpenAI.BaseURL,
			Model:        a.Model,
			SystemPrompt: agent.NewPromptBuilder(promptOpts...).Build(ctx),
		}
		if tools != nil {
			oc.Tools = tools.Definitions()
		}
		return agent.NewOpenAIBackend(oc), nil
	case "copilot":
		cc := agent.CopilotConfig{
			Model:        a.Model,
			SystemPrompt: agent.NewPromptBuilder(promptOpts...).Build(ctx),
			CLIPath:      a.Copilot.CLIPath,
			CLIURL:       a.Copilot.CLIURL,
			Cwd:          a.RepoPath,
			LogLevel:     a.Copilot.LogLevel,
		}
		if tools != nil {
			cc.Tools = tools.CopilotTools()
		}
		return agent.NewCopilotBackend(cc), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, a.Backend)
}

// NewSynthesizer builds speech output: the configured command, or printed
// lines on out.
func NewSynthesizer(cfg config.PlaybackConfig, out io.Writer) (playback.Synthesizer, error) {
	if cfg.Command == "" {
		return playback.NewConsoleSynthesizer(out, "> "), nil
	}
	line := strings.TrimSpace(cfg.Command + " " + strings.Join(cfg.Args, " "))
	return playback.NewCommandSynthesizer(line)
}

// NewSessionSource builds the call monitor's session source, or nil when
// call detection is off.
func NewSessionSource(cfg config.CallConfig) callmonitor.SessionSource {
	if !cfg.Enabled {
		return nil
	}
	switch cfg.Source {
	case "pulseaudio":
		return callmonitor.NewPulseSource()
	case "process":
		return callmonitor.ProcessSource{}
	}
	return nil
}
