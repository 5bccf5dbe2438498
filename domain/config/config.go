// Package config provides domain models for assistant configuration.
package config

import (
	"time"

	"github.com/felixgeelhaar/echo-go/domain/routine"
)

// AssistantConfig represents the complete assistant configuration.
// A loaded snapshot is treated as immutable.
type AssistantConfig struct {
	// Name is the application name shown in status text.
	Name string `json:"name" yaml:"name"`

	Voice      VoiceConfig      `json:"voice" yaml:"voice"`
	Call       CallConfig       `json:"call" yaml:"call"`
	Autonomous AutonomousConfig `json:"autonomous" yaml:"autonomous"`
	Agent      AgentConfig      `json:"agent" yaml:"agent"`
	Hotkey     HotkeyConfig     `json:"hotkey" yaml:"hotkey"`
	Device     DeviceConfig     `json:"device" yaml:"device"`
	Playback   PlaybackConfig   `json:"playback" yaml:"playback"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Control    ControlConfig    `json:"control" yaml:"control"`
	Notify     NotifyConfig     `json:"notify" yaml:"notify"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Telemetry  TelemetryConfig  `json:"telemetry" yaml:"telemetry"`
}

// VoiceConfig contains conversation settings.
type VoiceConfig struct {
	// WakePhrase starts a conversation from idle.
	WakePhrase string `json:"wake_phrase" yaml:"wake_phrase"`
	// ConversationWindow is how long listening stays open after the last exchange.
	ConversationWindow Duration `json:"conversation_window" yaml:"conversation_window"`
	// HoldExtension is added to the next window after a hold phrase.
	HoldExtension Duration `json:"hold_extension" yaml:"hold_extension"`
	// InterruptPhrases cancel in-flight work.
	InterruptPhrases []string `json:"interrupt_phrases,omitempty" yaml:"interrupt_phrases,omitempty"`
	// HoldPhrases extend the conversation window.
	HoldPhrases []string `json:"hold_phrases,omitempty" yaml:"hold_phrases,omitempty"`
	// StopPhrases pause listening.
	StopPhrases []string `json:"stop_phrases,omitempty" yaml:"stop_phrases,omitempty"`
	// ResumePhrases resume from a manual pause.
	ResumePhrases []string `json:"resume_phrases,omitempty" yaml:"resume_phrases,omitempty"`
}

// CallConfig contains call detection settings.
type CallConfig struct {
	// Enabled turns on the call monitor.
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Apps are the process names of conferencing applications.
	Apps []string `json:"apps" yaml:"apps"`
	// PollInterval is the time between audio session samples.
	PollInterval Duration `json:"poll_interval" yaml:"poll_interval"`
	// Debounce is how long a change must hold before it is reported.
	Debounce Duration `json:"debounce" yaml:"debounce"`
	// Source is the audio session source (pulseaudio, process, none).
	Source string `json:"source" yaml:"source"`
}

// AutonomousConfig contains routine engine settings.
type AutonomousConfig struct {
	// MaxSteps is the default step budget.
	MaxSteps int `json:"max_steps" yaml:"max_steps"`
	// MaxMinutes is the wall-clock budget.
	MaxMinutes int `json:"max_minutes" yaml:"max_minutes"`
	// Routines are the pre-configured routines.
	Routines []routine.Definition `json:"routines,omitempty" yaml:"routines,omitempty"`
}

// AgentConfig contains agent bridge settings.
type AgentConfig struct {
	// Backend selects the transport (copilot, openai, scripted).
	Backend string `json:"backend" yaml:"backend"`
	// Model is the model name passed to the backend.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// SystemPrompt replaces the built-in base instructions.
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	// StartupTimeout bounds session creation.
	StartupTimeout Duration `json:"startup_timeout" yaml:"startup_timeout"`
	// SendTimeout bounds a single request.
	SendTimeout Duration `json:"send_timeout" yaml:"send_timeout"`
	// Retry configures transient retries and reinitialization.
	Retry RetryConfig `json:"retry" yaml:"retry"`
	// CircuitBreaker guards reinitialization.
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
	// KnowledgeFile is an optional markdown file appended to the system prompt.
	KnowledgeFile string `json:"knowledge_file,omitempty" yaml:"knowledge_file,omitempty"`
	// ProjectsDir holds the active/ and archive/ project directories.
	ProjectsDir string `json:"projects_dir" yaml:"projects_dir"`
	// ProjectMaxChars caps each project injected into the system prompt.
	ProjectMaxChars int `json:"project_max_chars" yaml:"project_max_chars"`
	// RepoPath is a git repository described in the system prompt.
	RepoPath string `json:"repo_path,omitempty" yaml:"repo_path,omitempty"`
	// HistoryTurns bounds the conversation kept for stateless backends.
	HistoryTurns int `json:"history_turns" yaml:"history_turns"`
	// OpenAI configures the openai backend.
	OpenAI OpenAIConfig `json:"openai,omitempty" yaml:"openai,omitempty"`
	// Copilot configures the copilot backend.
	Copilot CopilotConfig `json:"copilot,omitempty" yaml:"copilot,omitempty"`
	// Script lists canned replies for the scripted backend.
	Script []string `json:"script,omitempty" yaml:"script,omitempty"`
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts bounds transient retries of a single send.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
	// InitialDelay is the first retry delay.
	InitialDelay Duration `json:"initial_delay" yaml:"initial_delay"`
	// MaxDelay caps the backoff.
	MaxDelay Duration `json:"max_delay" yaml:"max_delay"`
	// Multiplier is the backoff multiplier.
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
	// ReinitAttempts bounds reinitialization after a crash.
	ReinitAttempts int `json:"reinit_attempts" yaml:"reinit_attempts"`
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// Threshold is consecutive failures before opening.
	Threshold int `json:"threshold" yaml:"threshold"`
	// Timeout is how long the circuit stays open.
	Timeout Duration `json:"timeout" yaml:"timeout"`
}

// OpenAIConfig configures the chat-completions backend.
type OpenAIConfig struct {
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// CopilotConfig configures the Copilot SDK backend.
type CopilotConfig struct {
	CLIPath  string `json:"cli_path,omitempty" yaml:"cli_path,omitempty"`
	CLIURL   string `json:"cli_url,omitempty" yaml:"cli_url,omitempty"`
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// HotkeyConfig configures the triple-tap interrupt.
type HotkeyConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Taps    int      `json:"taps" yaml:"taps"`
	Window  Duration `json:"window" yaml:"window"`
}

// DeviceConfig configures input device presence detection.
type DeviceConfig struct {
	// Path is the directory watched for the device entry.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Name is the entry whose presence means the device is available.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// PlaybackConfig configures speech output.
type PlaybackConfig struct {
	// Command is an external TTS command; the sentence is passed as the last argument.
	Command string `json:"command,omitempty" yaml:"command,omitempty"`
	// Args are extra arguments placed before the sentence.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`
	// Cooldown keeps the speaker busy after speech so the microphone misses its tail.
	Cooldown Duration `json:"cooldown,omitempty" yaml:"cooldown,omitempty"`
}

// StorageConfig configures history persistence.
type StorageConfig struct {
	// Backend selects the store (memory, sqlite, badger, redis).
	Backend string       `json:"backend" yaml:"backend"`
	SQLite  SQLiteConfig `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	Badger  BadgerConfig `json:"badger,omitempty" yaml:"badger,omitempty"`
	Redis   RedisConfig  `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// SQLiteConfig configures the sqlite history store.
type SQLiteConfig struct {
	Path string `json:"path" yaml:"path"`
	// JournalMode is the sqlite journal mode. Empty keeps the store default (WAL).
	JournalMode string `json:"journal_mode,omitempty" yaml:"journal_mode,omitempty"`
	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout Duration `json:"busy_timeout,omitempty" yaml:"busy_timeout,omitempty"`
	// MaxOpenConns bounds the connection pool. Zero keeps the store default.
	MaxOpenConns int `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`
	// MaxIdleConns bounds idle connections. Zero keeps the store default.
	MaxIdleConns int `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`
	// ConnMaxLifetime recycles connections. Zero keeps the store default.
	ConnMaxLifetime Duration `json:"conn_max_lifetime,omitempty" yaml:"conn_max_lifetime,omitempty"`
	// SkipMigrate leaves the schema alone on open.
	SkipMigrate bool `json:"skip_migrate,omitempty" yaml:"skip_migrate,omitempty"`
}

// BadgerConfig configures the badger history store.
type BadgerConfig struct {
	Dir      string `json:"dir" yaml:"dir"`
	InMemory bool   `json:"in_memory,omitempty" yaml:"in_memory,omitempty"`
	// SyncWrites flushes every write to disk.
	SyncWrites bool `json:"sync_writes,omitempty" yaml:"sync_writes,omitempty"`
	// GCInterval is the value log GC period. Zero keeps the store default.
	GCInterval Duration `json:"gc_interval,omitempty" yaml:"gc_interval,omitempty"`
	// GCDiscardRatio is the value log GC threshold. Zero keeps the store default.
	GCDiscardRatio float64 `json:"gc_discard_ratio,omitempty" yaml:"gc_discard_ratio,omitempty"`
}

// RedisConfig configures the redis history store.
type RedisConfig struct {
	Addr       string `json:"addr" yaml:"addr"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	DB         int    `json:"db,omitempty" yaml:"db,omitempty"`
	KeyPrefix  string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
	MaxEntries int    `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
	// PoolSize bounds the connection pool. Zero keeps the store default.
	PoolSize int `json:"pool_size,omitempty" yaml:"pool_size,omitempty"`
	// DialTimeout, ReadTimeout and WriteTimeout override the client defaults when set.
	DialTimeout  Duration `json:"dial_timeout,omitempty" yaml:"dial_timeout,omitempty"`
	ReadTimeout  Duration `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty"`
	WriteTimeout Duration `json:"write_timeout,omitempty" yaml:"write_timeout,omitempty"`
}

// ControlConfig configures the UI surfaces.
type ControlConfig struct {
	// MCP selects the MCP control transport (stdio, http, off).
	MCP string `json:"mcp" yaml:"mcp"`
	// MCPAddr is the listen address for the http transport.
	MCPAddr string `json:"mcp_addr,omitempty" yaml:"mcp_addr,omitempty"`
	// WebSocketAddr enables the WebSocket status bridge when set.
	WebSocketAddr string `json:"websocket_addr,omitempty" yaml:"websocket_addr,omitempty"`
	// Rate is UI actions allowed per second.
	Rate int `json:"rate" yaml:"rate"`
	// Burst is the UI action burst size.
	Burst int `json:"burst" yaml:"burst"`
}

// NotifyConfig configures notification delivery.
type NotifyConfig struct {
	// Console prints status and notifications to stderr.
	Console bool `json:"console" yaml:"console"`
	// WebhookURL receives notifications as signed JSON posts when set.
	WebhookURL string `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
	// WebhookSecret signs webhook payloads.
	WebhookSecret string `json:"webhook_secret,omitempty" yaml:"webhook_secret,omitempty"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// TelemetryConfig configures tracing and metrics.
type TelemetryConfig struct {
	Tracing  bool   `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	Metrics  bool   `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Exporter string `json:"exporter,omitempty" yaml:"exporter,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// Default returns the configuration used when a field is not set.
// Loaders decode on top of it.
func Default() AssistantConfig {
	return AssistantConfig{
		Name: "Echo",
		Voice: VoiceConfig{
			WakePhrase:         "hey copilot",
			ConversationWindow: Duration(8 * time.Second),
			HoldExtension:      Duration(30 * time.Second),
		},
		Call: CallConfig{
			Enabled:      true,
			Apps:         []string{"teams", "zoom"},
			PollInterval: Duration(2 * time.Second),
			Debounce:     Duration(4 * time.Second),
			Source:       "pulseaudio",
		},
		Autonomous: AutonomousConfig{
			MaxSteps:   10,
			MaxMinutes: 30,
		},
		Agent: AgentConfig{
			Backend:        "copilot",
			StartupTimeout: Duration(60 * time.Second),
			SendTimeout:    Duration(120 * time.Second),
			Retry: RetryConfig{
				MaxAttempts:    3,
				InitialDelay:   Duration(500 * time.Millisecond),
				MaxDelay:       Duration(10 * time.Second),
				Multiplier:     2,
				ReinitAttempts: 5,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Threshold: 5,
				Timeout:   Duration(30 * time.Second),
			},
			ProjectsDir:     "projects",
			ProjectMaxChars: 4000,
			HistoryTurns:    20,
		},
		Hotkey: HotkeyConfig{
			Enabled: true,
			Taps:    3,
			Window:  Duration(600 * time.Millisecond),
		},
		Storage: StorageConfig{
			Backend: "memory",
			SQLite:  SQLiteConfig{Path: "echo-history.db"},
			Badger:  BadgerConfig{Dir: "echo-history"},
			Redis:   RedisConfig{Addr: "localhost:6379", KeyPrefix: "echo:", MaxEntries: 1000},
		},
		Control: ControlConfig{
			MCP:   "off",
			Rate:  5,
			Burst: 10,
		},
		Notify: NotifyConfig{
			Console: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Exporter: "noop",
		},
	}
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
