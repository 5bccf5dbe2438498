package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
)

// Step is one scripted reply.
type Step struct {
	Reply string
	Err   error
	Delay time.Duration
}

// ScriptedBackend replays fixed steps. The last step repeats once the
// script runs out. It backs offline runs and tests.
type ScriptedBackend struct {
	mu         sync.Mutex
	steps      []Step
	calls      int
	prompts    []string
	failStarts int
	starts     int
	running    bool
}

// NewScriptedBackend creates a backend that replies with steps in order.
func NewScriptedBackend(steps ...Step) *ScriptedBackend {
	return &ScriptedBackend{steps: steps}
}

// NewScriptedReplies creates a backend from plain reply texts.
func NewScriptedReplies(replies ...string) *ScriptedBackend {
	steps := make([]Step, len(replies))
	for i, r := range replies {
		steps[i] = Step{Reply: r}
	}
	return NewScriptedBackend(steps...)
}

// FailStarts makes the next n starts fail with ErrAgentUnavailable.
// A negative n fails every start.
func (s *ScriptedBackend) FailStarts(n int) {
	s.mu.Lock()
	s.failStarts = n
	s.mu.Unlock()
}

// Name returns the backend name.
func (s *ScriptedBackend) Name() string {
	return "scripted"
}

// Start marks the backend running unless a start failure is pending.
func (s *ScriptedBackend) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	if s.failStarts != 0 {
		if s.failStarts > 0 {
			s.failStarts--
		}
		return fmt.Errorf("%w: scripted start failure", assistant.ErrAgentUnavailable)
	}
	s.running = true
	return nil
}

// Send returns the next scripted step.
func (s *ScriptedBackend) Send(ctx context.Context, req Request) (string, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: scripted backend not running", assistant.ErrAgentUnavailable)
	}
	var step Step
	if n := len(s.steps); n > 0 {
		idx := s.calls
		if idx >= n {
			idx = n - 1
		}
		step = s.steps[idx]
	}
	s.calls++
	s.prompts = append(s.prompts, req.Prompt)
	s.mu.Unlock()

	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if step.Err != nil {
		return "", step.Err
	}
	if step.Reply == "" {
		return "", assistant.ErrEmptyReply
	}
	return step.Reply, nil
}

// Stop marks the backend stopped.
func (s *ScriptedBackend) Stop() error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

// Calls returns the number of Send calls.
func (s *ScriptedBackend) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Starts returns the number of Start calls.
func (s *ScriptedBackend) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

// Prompts returns the prompts received so far.
func (s *ScriptedBackend) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}
