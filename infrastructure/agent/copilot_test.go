package agent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	copilot "github.com/github/copilot-sdk/go"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
)

func TestCopilotBackend_StartReleasesLateSession(t *testing.T) {
	t.Parallel()

	proceed := make(chan struct{})
	released := make(chan [2]bool, 1)
	b := NewCopilotBackend(CopilotConfig{})
	b.connect = func(*copilot.ClientOptions, *copilot.SessionConfig) (*copilot.Client, *copilot.Session, error) {
		<-proceed
		return &copilot.Client{}, &copilot.Session{}, nil
	}
	b.release = func(client *copilot.Client, session *copilot.Session) {
		released <- [2]bool{client != nil, session != nil}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := b.Start(ctx); !errors.Is(err, assistant.ErrAgentUnavailable) {
		t.Fatalf("Start() error = %v, want ErrAgentUnavailable", err)
	}
	close(proceed)

	select {
	case got := <-released:
		if !got[0] || !got[1] {
			t.Errorf("released client, session = %v, want both", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("late session was never released")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil || b.session != nil {
		t.Error("late session was adopted after Start gave up")
	}
}

func TestCopilotBackend_Start(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"connected", nil, false},
		{"connect fails", errors.New("cli not found"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var releases atomic.Int32
			var gotModel string
			b := NewCopilotBackend(CopilotConfig{})
			b.connect = func(_ *copilot.ClientOptions, cfg *copilot.SessionConfig) (*copilot.Client, *copilot.Session, error) {
				gotModel = cfg.Model
				if tt.err != nil {
					return nil, nil, tt.err
				}
				return &copilot.Client{}, &copilot.Session{}, nil
			}
			b.release = func(*copilot.Client, *copilot.Session) { releases.Add(1) }

			err := b.Start(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Start() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, assistant.ErrAgentUnavailable) {
				t.Errorf("Start() error = %v, want ErrAgentUnavailable", err)
			}
			if gotModel != "gpt-4.1" {
				t.Errorf("session model = %q, want gpt-4.1", gotModel)
			}
			b.mu.Lock()
			adopted := b.session != nil
			b.mu.Unlock()
			if adopted == tt.wantErr {
				t.Errorf("session adopted = %v, want %v", adopted, !tt.wantErr)
			}
			if got := releases.Load(); got != 0 {
				t.Errorf("releases = %d, want 0", got)
			}
		})
	}
}
