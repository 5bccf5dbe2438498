// Package agent provides the Agent Bridge and its transports.
package agent

import (
	"context"
	"time"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
)

// Request is one prompt sent to the agent.
type Request struct {
	// ID correlates the request in logs and traces.
	ID string

	// Prompt is the user text or routine prompt.
	Prompt string

	// History holds prior turns for backends without server-side sessions.
	History []assistant.Turn
}

// Reply is the agent's answer to a Request.
type Reply struct {
	Text     string
	Duration time.Duration
}

// Backend is a transport to a conversational agent.
// Send must return promptly once ctx is cancelled. Errors wrapping
// assistant.ErrAgentUnavailable mean the transport itself is down.
type Backend interface {
	Name() string
	Start(ctx context.Context) error
	Send(ctx context.Context, req Request) (string, error)
	Stop() error
}
