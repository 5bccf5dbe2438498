package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/domain/call"
)

type fakeTarget struct {
	mu     sync.Mutex
	events []assistant.Event
	state  assistant.State
}

func (f *fakeTarget) HandleEvent(ev assistant.Event) assistant.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	switch ev.(type) {
	case assistant.PauseRequested:
		f.state = assistant.StatePausedManual
	case assistant.ResumeRequested:
		f.state = assistant.StateIdle
	}
	return f.state
}

func (f *fakeTarget) Snapshot() assistant.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return assistant.Snapshot{State: f.state}
}

func (f *fakeTarget) triggers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Trigger()
	}
	return out
}

type fixedStatus string

func (s fixedStatus) LastStatus() string { return string(s) }

func newDispatcher(t *testing.T, target *fakeTarget, rate, burst int) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(DispatcherConfig{Target: target, Status: fixedStatus("Echo - Idle"), Rate: rate, Burst: burst})
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	return d
}

func TestParseAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{"pause", ActionPause, false},
		{" Resume ", ActionResume, false},
		{"STOP", ActionStop, false},
		{"quit", ActionQuit, false},
		{"reboot", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseAction(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownAction) {
					t.Errorf("ParseAction(%q) error = %v, want ErrUnknownAction", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseAction(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestAction_Event(t *testing.T) {
	t.Parallel()

	tests := []struct {
		action Action
		want   string
	}{
		{ActionPause, "pause_requested"},
		{ActionResume, "resume_requested"},
		{ActionStop, "interrupt_requested"},
		{ActionQuit, "quit_requested"},
	}

	for _, tt := range tests {
		if got := tt.action.Event().Trigger(); got != tt.want {
			t.Errorf("%s.Event() = %s, want %s", tt.action, got, tt.want)
		}
	}

	stop, ok := ActionStop.Event().(assistant.InterruptRequested)
	if !ok || stop.Reason != assistant.ReasonUIStop || stop.Generation != 0 {
		t.Errorf("stop event = %+v, want ui_stop targeting current work", stop)
	}
	if Action("nope").Event() != nil {
		t.Error("unknown action Event() != nil")
	}
}

func TestNewDispatcher_RequiresTarget(t *testing.T) {
	t.Parallel()

	if _, err := NewDispatcher(DispatcherConfig{}); err == nil {
		t.Error("NewDispatcher() error = nil, want error")
	}
}

func TestDispatcher_Do(t *testing.T) {
	t.Parallel()

	target := &fakeTarget{state: assistant.StateIdle}
	d := newDispatcher(t, target, 100, 100)

	state, err := d.Do(context.Background(), "test", ActionPause)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if state != assistant.StatePausedManual {
		t.Errorf("Do() state = %v, want %v", state, assistant.StatePausedManual)
	}
	if _, err := d.Do(context.Background(), "test", Action("dance")); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("Do() error = %v, want ErrUnknownAction", err)
	}
	if got := target.triggers(); len(got) != 1 || got[0] != "pause_requested" {
		t.Errorf("events = %v, want [pause_requested]", got)
	}
}

func TestDispatcher_RateLimit(t *testing.T) {
	t.Parallel()

	target := &fakeTarget{state: assistant.StateIdle}
	d := newDispatcher(t, target, 1, 1)

	if _, err := d.Do(context.Background(), "ui", ActionPause); err != nil {
		t.Fatalf("first Do() error = %v", err)
	}
	if _, err := d.Do(context.Background(), "ui", ActionResume); !errors.Is(err, ErrRateLimited) {
		t.Errorf("second Do() error = %v, want ErrRateLimited", err)
	}
	if got := len(target.triggers()); got != 1 {
		t.Errorf("events = %d, want 1", got)
	}
}

func TestDispatcher_Report(t *testing.T) {
	t.Parallel()

	target := &fakeTarget{state: assistant.StatePausedCall}
	d := newDispatcher(t, target, 10, 10)

	r := d.Report()
	if r.State != string(assistant.StatePausedCall) || r.Label != "Paused (Call)" || r.Text != "Echo - Idle" {
		t.Errorf("Report() = %+v", r)
	}
	if r.Calls != nil {
		t.Errorf("Report().Calls = %+v, want nil without a call source", r.Calls)
	}

	since := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	withCalls, err := NewDispatcher(DispatcherConfig{
		Target: target,
		Calls:  fixedCalls{{App: "zoom", Active: true, Since: since}, {App: "teams"}},
	})
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	r = withCalls.Report()
	if len(r.Calls) != 2 || r.Calls[0].App != "zoom" || !r.Calls[0].Active || !r.Calls[0].Since.Equal(since) {
		t.Errorf("Report().Calls = %+v, want zoom active since %v", r.Calls, since)
	}
}

type fixedCalls []call.State

func (f fixedCalls) Snapshot() []call.State { return f }

func TestMCPServer(t *testing.T) {
	t.Parallel()

	target := &fakeTarget{state: assistant.StateIdle}
	s := NewMCPServer(MCPConfig{Version: "test"}, newDispatcher(t, target, 100, 100))
	if s.Server() == nil {
		t.Fatal("Server() = nil")
	}

	out, err := s.apply(context.Background(), ActionPause)
	if err != nil {
		t.Fatalf("apply() error = %v", err)
	}
	var r Report
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if r.State != string(assistant.StatePausedManual) {
		t.Errorf("status state = %s, want %s", r.State, assistant.StatePausedManual)
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestBridge(t *testing.T) {
	t.Parallel()

	target := &fakeTarget{state: assistant.StateIdle}
	bridge := NewBridge(newDispatcher(t, target, 100, 100))
	srv := httptest.NewServer(bridge)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	if msg := read(t, conn); msg.Type != TypeStatus || msg.Status == nil || msg.Status.State != "idle" {
		t.Fatalf("initial message = %+v, want idle status", msg)
	}

	tests := []struct {
		name     string
		send     Message
		wantType string
	}{
		{"pause", Message{Type: TypeAction, Action: "pause"}, TypeAck},
		{"unknown action", Message{Type: TypeAction, Action: "jump"}, TypeError},
		{"wrong type", Message{Type: TypeStatus}, TypeError},
	}

	for _, tt := range tests {
		if err := conn.WriteJSON(tt.send); err != nil {
			t.Fatalf("%s: WriteJSON() error = %v", tt.name, err)
		}
		if msg := read(t, conn); msg.Type != tt.wantType {
			t.Errorf("%s: reply type = %s, want %s", tt.name, msg.Type, tt.wantType)
		}
	}

	bridge.Broadcast("Echo - Paused")
	msg := read(t, conn)
	if msg.Type != TypeStatus || msg.Status == nil || msg.Status.State != string(assistant.StatePausedManual) {
		t.Errorf("broadcast = %+v, want paused status", msg)
	}
	if got := bridge.Clients(); got != 1 {
		t.Errorf("Clients() = %d, want 1", got)
	}
}
