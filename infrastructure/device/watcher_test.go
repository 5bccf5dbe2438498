package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
)

type recorder struct {
	mu       sync.Mutex
	triggers []string
}

func (r *recorder) emit(ev assistant.Event) {
	r.mu.Lock()
	r.triggers = append(r.triggers, ev.Trigger())
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.triggers...)
}

func TestNewWatcher_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewWatcher("", "kbd"); !errors.Is(err, ErrNoDevice) {
		t.Errorf("NewWatcher() error = %v, want ErrNoDevice", err)
	}
	if _, err := NewWatcher("/dev/input", ""); !errors.Is(err, ErrNoDevice) {
		t.Errorf("NewWatcher() error = %v, want ErrNoDevice", err)
	}
}

func TestWatcher_Check(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	node := filepath.Join(dir, "kbd")

	w, err := NewWatcher(dir, "kbd")
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	rec := &recorder{}

	w.Check(rec.emit)
	if err := os.WriteFile(node, nil, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	w.Check(rec.emit)
	w.Check(rec.emit)
	if err := os.Remove(node); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	w.Check(rec.emit)

	got := rec.list()
	want := []string{"device_disconnected", "device_reconnected", "device_disconnected"}
	if len(got) != len(want) {
		t.Fatalf("triggers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("triggers[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if w.Present() {
		t.Error("Present() = true, want false")
	}
}

func TestWatcher_Run(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	node := filepath.Join(dir, "kbd")
	if err := os.WriteFile(node, nil, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	w, err := NewWatcher(dir, "kbd", WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	rec := &recorder{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, rec.emit) }()

	waitFor := func(n int) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for len(rec.list()) < n {
			if time.Now().After(deadline) {
				t.Fatalf("triggers = %v, want %d events", rec.list(), n)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	if err := os.Remove(node); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	waitFor(1)
	if err := os.WriteFile(node, nil, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	waitFor(2)

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}

	got := rec.list()
	if got[0] != "device_disconnected" || got[1] != "device_reconnected" {
		t.Errorf("triggers = %v, want disconnect then reconnect", got)
	}
}
