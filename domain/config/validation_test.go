package config

import (
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/echo-go/domain/routine"
)

func TestValidator_DefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Agent.Backend = "scripted"
	cfg.Agent.Script = []string{"hello"}

	if errs := NewValidator().Validate(&cfg); errs.HasErrors() {
		t.Errorf("Validate(Default()) = %v, want no errors", errs)
	}

	copilot := Default()
	if errs := NewValidator().Validate(&copilot); errs.HasErrors() {
		t.Errorf("Validate(copilot default) = %v, want no errors", errs)
	}
}

func TestValidator_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*AssistantConfig)
		wantPath string
	}{
		{"zero window", func(c *AssistantConfig) { c.Voice.ConversationWindow = 0 }, "voice.conversation_window"},
		{"no wake phrase", func(c *AssistantConfig) { c.Voice.WakePhrase = " " }, "voice.wake_phrase"},
		{"negative cooldown", func(c *AssistantConfig) { c.Playback.Cooldown = -1 }, "playback.cooldown"},
		{"no call apps", func(c *AssistantConfig) { c.Call.Apps = nil }, "call.apps"},
		{"zero poll", func(c *AssistantConfig) { c.Call.PollInterval = 0 }, "call.poll_interval"},
		{"bad source", func(c *AssistantConfig) { c.Call.Source = "wasapi" }, "call.source"},
		{"zero steps", func(c *AssistantConfig) { c.Autonomous.MaxSteps = 0 }, "autonomous.max_steps"},
		{"routine without prompt", func(c *AssistantConfig) {
			c.Autonomous.Routines = []routine.Definition{{Name: "x", TriggerPhrases: []string{"go"}}}
		}, "autonomous.routines[0].prompt"},
		{"duplicate routine", func(c *AssistantConfig) {
			r := routine.Definition{Name: "x", TriggerPhrases: []string{"go"}, Prompt: "p"}
			c.Autonomous.Routines = []routine.Definition{r, r}
		}, "autonomous.routines[1].name"},
		{"bad backend", func(c *AssistantConfig) { c.Agent.Backend = "bard" }, "agent.backend"},
		{"openai without key", func(c *AssistantConfig) { c.Agent.Backend = "openai" }, "agent.openai.api_key"},
		{"scripted without script", func(c *AssistantConfig) { c.Agent.Backend = "scripted" }, "agent.script"},
		{"multiplier below one", func(c *AssistantConfig) { c.Agent.Retry.Multiplier = 0.5 }, "agent.retry.multiplier"},
		{"zero reinit", func(c *AssistantConfig) { c.Agent.Retry.ReinitAttempts = 0 }, "agent.retry.reinit_attempts"},
		{"zero taps", func(c *AssistantConfig) { c.Hotkey.Taps = 0 }, "hotkey.taps"},
		{"device half set", func(c *AssistantConfig) { c.Device.Path = "/dev/input/by-id" }, "device"},
		{"bad storage", func(c *AssistantConfig) { c.Storage.Backend = "mongo" }, "storage.backend"},
		{"redis without addr", func(c *AssistantConfig) {
			c.Storage.Backend = "redis"
			c.Storage.Redis.Addr = ""
		}, "storage.redis.addr"},
		{"bad journal mode", func(c *AssistantConfig) {
			c.Storage.Backend = "sqlite"
			c.Storage.SQLite.JournalMode = "fast"
		}, "storage.sqlite.journal_mode"},
		{"badger discard ratio", func(c *AssistantConfig) {
			c.Storage.Backend = "badger"
			c.Storage.Badger.GCDiscardRatio = 1.5
		}, "storage.badger.gc_discard_ratio"},
		{"negative redis pool", func(c *AssistantConfig) {
			c.Storage.Backend = "redis"
			c.Storage.Redis.PoolSize = -1
		}, "storage.redis.pool_size"},
		{"http mcp without addr", func(c *AssistantConfig) { c.Control.MCP = "http" }, "control.mcp_addr"},
		{"bad webhook url", func(c *AssistantConfig) { c.Notify.WebhookURL = "ftp://hooks" }, "notify.webhook_url"},
		{"bad log level", func(c *AssistantConfig) { c.Logging.Level = "loud" }, "logging.level"},
		{"otlp without endpoint", func(c *AssistantConfig) { c.Telemetry.Exporter = "otlp" }, "telemetry.endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(&cfg)
			errs := NewValidator().Validate(&cfg)

			found := false
			for _, e := range errs {
				if e.Path == tt.wantPath {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate() = %v, want error at %s", errs, tt.wantPath)
			}
		})
	}
}

func TestValidator_DisabledSectionsSkipped(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Call.Enabled = false
	cfg.Call.Apps = nil
	cfg.Hotkey.Enabled = false
	cfg.Hotkey.Taps = 0

	if errs := NewValidator().Validate(&cfg); errs.HasErrors() {
		t.Errorf("Validate() = %v, want no errors", errs)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	errs := ValidationErrors{
		{Path: "a", Message: "bad"},
		{Path: "b", Message: "worse"},
	}
	if got := errs.Error(); !strings.HasPrefix(got, "2 validation errors") {
		t.Errorf("Error() = %q, want count prefix", got)
	}
	if got := (ValidationError{Message: "plain"}).Error(); got != "plain" {
		t.Errorf("Error() = %q, want %q", got, "plain")
	}
}

func TestDuration_JSON(t *testing.T) {
	t.Parallel()

	var d Duration
	if err := d.UnmarshalJSON([]byte(`"1m30s"`)); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if d.Duration() != 90*time.Second {
		t.Errorf("Duration() = %v, want %v", d.Duration(), 90*time.Second)
	}
	b, _ := d.MarshalJSON()
	if string(b) != `"1m30s"` {
		t.Errorf("MarshalJSON() = %s, want %q", b, "1m30s")
	}
	if err := d.UnmarshalJSON([]byte(`"soon"`)); err == nil {
		t.Errorf("UnmarshalJSON(soon) error = nil, want error")
	}
}
