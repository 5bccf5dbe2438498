package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the JSON path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates assistant configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *AssistantConfig) ValidationErrors {
	v.errors = nil

	v.validateVoice(config)
	v.validatePlayback(config)
	v.validateCall(config)
	v.validateAutonomous(config)
	v.validateAgent(config)
	v.validateHotkey(config)
	v.validateDevice(config)
	v.validateStorage(config)
	v.validateControl(config)
	v.validateNotify(config)
	v.validateLogging(config)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) oneOf(path, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.addError(path, fmt.Sprintf("invalid value %q (want one of %s)", value, strings.Join(allowed, ", ")))
}

func (v *Validator) validateVoice(config *AssistantConfig) {
	if config.Voice.ConversationWindow <= 0 {
		v.addError("voice.conversation_window", "conversation_window must be positive")
	}
	if config.Voice.HoldExtension < 0 {
		v.addError("voice.hold_extension", "hold_extension must be non-negative")
	}
	if strings.TrimSpace(config.Voice.WakePhrase) == "" {
		v.addError("voice.wake_phrase", "wake_phrase is required")
	}
}

func (v *Validator) validatePlayback(config *AssistantConfig) {
	if config.Playback.Cooldown < 0 {
		v.addError("playback.cooldown", "cooldown must be non-negative")
	}
}

func (v *Validator) validateCall(config *AssistantConfig) {
	if !config.Call.Enabled {
		return
	}
	if len(config.Call.Apps) == 0 {
		v.addError("call.apps", "at least one app is required when enabled")
	}
	if config.Call.PollInterval <= 0 {
		v.addError("call.poll_interval", "poll_interval must be positive when enabled")
	}
	if config.Call.Debounce < 0 {
		v.addError("call.debounce", "debounce must be non-negative")
	}
	v.oneOf("call.source", config.Call.Source, "pulseaudio", "process", "none")
}

func (v *Validator) validateAutonomous(config *AssistantConfig) {
	if config.Autonomous.MaxSteps <= 0 {
		v.addError("autonomous.max_steps", "max_steps must be positive")
	}
	if config.Autonomous.MaxMinutes <= 0 {
		v.addError("autonomous.max_minutes", "max_minutes must be positive")
	}

	seen := make(map[string]bool)
	for i, r := range config.Autonomous.Routines {
		path := fmt.Sprintf("autonomous.routines[%d]", i)
		if r.Name == "" {
			v.addError(path+".name", "routine name is required")
		} else if seen[r.Name] {
			v.addError(path+".name", fmt.Sprintf("duplicate routine: %s", r.Name))
		}
		seen[r.Name] = true
		if strings.TrimSpace(r.Prompt) == "" {
			v.addError(path+".prompt", "routine prompt is required")
		}
		if len(r.TriggerPhrases) == 0 {
			v.addError(path+".trigger_phrases", "at least one trigger phrase is required")
		}
		if r.MaxSteps < 0 {
			v.addError(path+".max_steps", "max_steps must be non-negative")
		}
	}
}

func (v *Validator) validateAgent(config *AssistantConfig) {
	agent := config.Agent
	v.oneOf("agent.backend", agent.Backend, "copilot", "openai", "scripted")

	switch agent.Backend {
	case "openai":
		if agent.OpenAI.APIKey == "" && agent.OpenAI.BaseURL == "" {
			v.addError("agent.openai.api_key", "api_key or base_url is required for openai backend")
		}
	case "scripted":
		if len(agent.Script) == 0 {
			v.addError("agent.script", "script is required for scripted backend")
		}
	}

	if agent.StartupTimeout <= 0 {
		v.addError("agent.startup_timeout", "startup_timeout must be positive")
	}
	if agent.SendTimeout <= 0 {
		v.addError("agent.send_timeout", "send_timeout must be positive")
	}
	if agent.Retry.MaxAttempts <= 0 {
		v.addError("agent.retry.max_attempts", "max_attempts must be positive")
	}
	if agent.Retry.ReinitAttempts <= 0 {
		v.addError("agent.retry.reinit_attempts", "reinit_attempts must be positive")
	}
	if agent.Retry.Multiplier < 1 {
		v.addError("agent.retry.multiplier", "multiplier must be >= 1")
	}
	if agent.Retry.InitialDelay < 0 {
		v.addError("agent.retry.initial_delay", "initial_delay must be non-negative")
	}
	if agent.CircuitBreaker.Threshold <= 0 {
		v.addError("agent.circuit_breaker.threshold", "threshold must be positive")
	}
	if agent.ProjectMaxChars < 0 {
		v.addError("agent.project_max_chars", "project_max_chars must be non-negative")
	}
	if agent.HistoryTurns < 0 {
		v.addError("agent.history_turns", "history_turns must be non-negative")
	}
}

func (v *Validator) validateHotkey(config *AssistantConfig) {
	if !config.Hotkey.Enabled {
		return
	}
	if config.Hotkey.Taps < 1 {
		v.addError("hotkey.taps", "taps must be positive when enabled")
	}
	if config.Hotkey.Window <= 0 {
		v.addError("hotkey.window", "window must be positive when enabled")
	}
}

func (v *Validator) validateDevice(config *AssistantConfig) {
	if (config.Device.Path == "") != (config.Device.Name == "") {
		v.addError("device", "path and name must be set together")
	}
}

func (v *Validator) validateStorage(config *AssistantConfig) {
	s := config.Storage
	v.oneOf("storage.backend", s.Backend, "memory", "sqlite", "badger", "redis")

	switch s.Backend {
	case "sqlite":
		if s.SQLite.Path == "" {
			v.addError("storage.sqlite.path", "path is required for sqlite backend")
		}
		if mode := strings.ToUpper(s.SQLite.JournalMode); mode != "" {
			v.oneOf("storage.sqlite.journal_mode", mode, "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF")
		}
		if s.SQLite.MaxOpenConns < 0 || s.SQLite.MaxIdleConns < 0 {
			v.addError("storage.sqlite", "connection limits must be non-negative")
		}
	case "badger":
		if s.Badger.Dir == "" && !s.Badger.InMemory {
			v.addError("storage.badger.dir", "dir is required unless in_memory is set")
		}
		if r := s.Badger.GCDiscardRatio; r < 0 || r >= 1 {
			v.addError("storage.badger.gc_discard_ratio", "gc_discard_ratio must be in [0, 1)")
		}
	case "redis":
		if s.Redis.Addr == "" {
			v.addError("storage.redis.addr", "addr is required for redis backend")
		}
		if s.Redis.MaxEntries < 0 {
			v.addError("storage.redis.max_entries", "max_entries must be non-negative")
		}
		if s.Redis.PoolSize < 0 {
			v.addError("storage.redis.pool_size", "pool_size must be non-negative")
		}
	}
}

func (v *Validator) validateControl(config *AssistantConfig) {
	c := config.Control
	v.oneOf("control.mcp", c.MCP, "stdio", "http", "off")
	if c.MCP == "http" && c.MCPAddr == "" {
		v.addError("control.mcp_addr", "mcp_addr is required for http transport")
	}
	if c.Rate <= 0 {
		v.addError("control.rate", "rate must be positive")
	}
	if c.Burst <= 0 {
		v.addError("control.burst", "burst must be positive")
	}
}

func (v *Validator) validateNotify(config *AssistantConfig) {
	n := config.Notify
	if n.WebhookURL == "" {
		return
	}
	u, err := url.Parse(n.WebhookURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.addError("notify.webhook_url", "webhook_url must be an http(s) URL")
	}
}

func (v *Validator) validateLogging(config *AssistantConfig) {
	v.oneOf("logging.level", strings.ToLower(config.Logging.Level), "trace", "debug", "info", "warn", "error")
	v.oneOf("logging.format", config.Logging.Format, "console", "json")
	v.oneOf("telemetry.exporter", config.Telemetry.Exporter, "noop", "stdout", "otlp")
	if config.Telemetry.Exporter == "otlp" && config.Telemetry.Endpoint == "" {
		v.addError("telemetry.endpoint", "endpoint is required for otlp exporter")
	}
}
