package signal

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
)

// CallGate blocks routine checkpoints while a call is active.
type CallGate struct {
	mu     sync.Mutex
	held   bool
	opened chan struct{}
}

// NewCallGate creates an open gate.
func NewCallGate() *CallGate {
	return &CallGate{}
}

// Hold closes the gate.
func (g *CallGate) Hold() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.held {
		g.held = true
		g.opened = make(chan struct{})
	}
}

// Release opens the gate and wakes every waiter.
func (g *CallGate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		g.held = false
		close(g.opened)
	}
}

// Held reports whether the gate is closed.
func (g *CallGate) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}

// Wait blocks until the gate is open. It returns assistant.ErrCancelled if
// tok fires first and ctx.Err() if ctx ends first.
func (g *CallGate) Wait(ctx context.Context, tok assistant.Token) error {
	var done <-chan struct{}
	if tok != nil {
		done = tok.Done()
	}
	for {
		if tok != nil && tok.Cancelled() {
			return assistant.ErrCancelled
		}
		g.mu.Lock()
		held, opened := g.held, g.opened
		g.mu.Unlock()
		if !held {
			return ctx.Err()
		}
		select {
		case <-opened:
		case <-done:
			return assistant.ErrCancelled
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var _ assistant.Gate = (*CallGate)(nil)
