package logging

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
)

func testLogger() (*bolt.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(Config{Level: "trace", Format: "json", Output: buf}), buf
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	if config.Level != "info" {
		t.Errorf("Level = %s, want info", config.Level)
	}
	if config.Format != "console" {
		t.Errorf("Format = %s, want console", config.Format)
	}
	if config.Output != os.Stderr {
		t.Errorf("Output = %v, want os.Stderr", config.Output)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bolt.Level
	}{
		{"trace", bolt.TRACE},
		{"debug", bolt.DEBUG},
		{"INFO", bolt.INFO},
		{"warn", bolt.WARN},
		{"error", bolt.ERROR},
		{"unknown", bolt.INFO},
		{"", bolt.INFO},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field Field
		want  string
	}{
		{"component", Component("orchestrator"), `"component":"orchestrator"`},
		{"state", State(assistant.StateListening), `"state":"listening"`},
		{"from", FromState(assistant.StateIdle), `"from_state":"idle"`},
		{"to", ToState(assistant.StatePausedCall), `"to_state":"paused_call"`},
		{"trigger", Trigger("call_started"), `"trigger":"call_started"`},
		{"generation", Generation(7), `"generation":7`},
		{"reason", Reason(assistant.ReasonHotkey), `"reason":"hotkey"`},
		{"routine", Routine("standup"), `"routine":"standup"`},
		{"step", Step(3), `"step":3`},
		{"attempt", Attempt(2), `"attempt":2`},
		{"duration", Duration(150 * time.Millisecond), `"duration_ms":150`},
		{"bool", Bool("call_active", true), `"call_active":true`},
		{"int", Int("sentences", 4), `"sentences":4`},
		{"str", Str("app", "teams"), `"app":"teams"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, buf := testLogger()
			tt.field(logger.Info()).Msg("test")
			if !bytes.Contains(buf.Bytes(), []byte(tt.want)) {
				t.Errorf("output %s missing %s", buf.String(), tt.want)
			}
		})
	}
}

func TestErrorField(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	ErrorField(errors.New("agent unavailable"))(logger.Error()).Msg("failed")
	if !bytes.Contains(buf.Bytes(), []byte("agent unavailable")) {
		t.Errorf("output %s missing error text", buf.String())
	}

	logger, buf = testLogger()
	ErrorField(nil)(logger.Info()).Msg("ok")
	if bytes.Contains(buf.Bytes(), []byte(`"error"`)) {
		t.Errorf("nil error produced error field: %s", buf.String())
	}
}

func TestLogEvent(t *testing.T) {
	t.Parallel()

	logger, buf := testLogger()
	NewEvent(logger.Info()).
		Add(Component("bus")).
		Add(Generation(3)).
		Msg("token fired")

	for _, want := range []string{`"component":"bus"`, `"generation":3`, "token fired"} {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Errorf("output %s missing %s", buf.String(), want)
		}
	}
}

func TestGet(t *testing.T) {
	if Get() == nil {
		t.Fatal("Get() returned nil")
	}
	SetLevel("debug")
	Debug().Add(Component("test")).Msg("debug message")
}
