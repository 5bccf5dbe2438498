package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	copilot "github.com/github/copilot-sdk/go"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
)

// CopilotConfig configures the Copilot backend.
type CopilotConfig struct {
	Model        string
	SystemPrompt string
	CLIPath      string
	CLIURL       string
	Cwd          string
	LogLevel     string
	Streaming    bool
	Tools        []copilot.Tool
}

// CopilotBackend holds one persistent Copilot session for the whole conversation.
type CopilotBackend struct {
	config  CopilotConfig
	connect func(*copilot.ClientOptions, *copilot.SessionConfig) (*copilot.Client, *copilot.Session, error)
	release func(*copilot.Client, *copilot.Session)

	mu      sync.Mutex
	client  *copilot.Client
	session *copilot.Session
	primed  bool
}

// NewCopilotBackend creates a Copilot backend.
func NewCopilotBackend(config CopilotConfig) *CopilotBackend {
	if config.Model == "" {
		config.Model = "gpt-4.1"
	}
	if config.LogLevel == "" {
		config.LogLevel = "error"
	}
	return &CopilotBackend{config: config, connect: connectCopilot, release: releaseCopilot}
}

// Name returns the backend name.
func (c *CopilotBackend) Name() string {
	return "copilot"
}

// Start launches the CLI server and opens a session.
func (c *CopilotBackend) Start(ctx context.Context) error {
	opts := &copilot.ClientOptions{LogLevel: c.config.LogLevel}
	if c.config.CLIPath != "" {
		opts.CLIPath = c.config.CLIPath
	}
	if c.config.CLIURL != "" {
		opts.CLIUrl = c.config.CLIURL
	}
	if c.config.Cwd != "" {
		opts.Cwd = c.config.Cwd
	}

	sessionCfg := &copilot.SessionConfig{
		Model:     c.config.Model,
		Streaming: c.config.Streaming,
		Tools:     c.config.Tools,
	}

	type started struct {
		client  *copilot.Client
		session *copilot.Session
		err     error
	}
	result := make(chan started, 1)
	go func() {
		client, session, err := c.connect(opts, sessionCfg)
		result <- started{client: client, session: session, err: err}
	}()

	select {
	case r := <-result:
		if r.err != nil {
			return fmt.Errorf("%w: %v", assistant.ErrAgentUnavailable, r.err)
		}
		c.mu.Lock()
		c.client = r.client
		c.session = r.session
		c.primed = false
		c.mu.Unlock()
		return nil
	case <-ctx.Done():
		// The connect still finishes; nobody owns what it opens.
		go func() {
			if r := <-result; r.err == nil {
				c.release(r.client, r.session)
			}
		}()
		return fmt.Errorf("%w: copilot start: %v", assistant.ErrAgentUnavailable, ctx.Err())
	}
}

func connectCopilot(opts *copilot.ClientOptions, cfg *copilot.SessionConfig) (*copilot.Client, *copilot.Session, error) {
	client := copilot.NewClient(opts)
	if err := client.Start(); err != nil {
		return nil, nil, fmt.Errorf("start copilot client: %w", err)
	}
	session, err := client.CreateSession(cfg)
	if err != nil {
		_ = client.Stop()
		return nil, nil, fmt.Errorf("create copilot session: %w", err)
	}
	return client, session, nil
}

func releaseCopilot(client *copilot.Client, session *copilot.Session) {
	if session != nil {
		_ = session.Destroy()
	}
	if client != nil {
		_ = client.Stop()
	}
}

// Send sends one prompt on the persistent session and collects the reply.
// History is ignored because the session keeps its own.
func (c *CopilotBackend) Send(ctx context.Context, req Request) (string, error) {
	c.mu.Lock()
	session := c.session
	prompt := req.Prompt
	if !c.primed && c.config.SystemPrompt != "" {
		prompt = "System: " + c.config.SystemPrompt + "\n\n" + prompt
	}
	c.primed = true
	c.mu.Unlock()

	if session == nil {
		return "", fmt.Errorf("%w: copilot session not started", assistant.ErrAgentUnavailable)
	}

	var (
		content   strings.Builder
		final     string
		streamErr error
		once      sync.Once
		mu        sync.Mutex
	)
	done := make(chan struct{})
	finish := func() { once.Do(func() { close(done) }) }

	unsubscribe := session.On(func(event copilot.SessionEvent) {
		mu.Lock()
		defer mu.Unlock()
		switch event.Type {
		case copilot.AssistantMessage:
			if event.Data.Content != nil {
				final = *event.Data.Content
			}
		case copilot.AssistantMessageDelta:
			if event.Data.DeltaContent != nil {
				content.WriteString(*event.Data.DeltaContent)
			}
		case copilot.SessionIdle:
			finish()
		case copilot.SessionError:
			if event.Data.Message != nil {
				streamErr = errors.New(*event.Data.Message)
			} else {
				streamErr = errors.New("unknown session error")
			}
			finish()
		}
	})
	defer unsubscribe()

	if _, err := session.Send(copilot.MessageOptions{Prompt: prompt}); err != nil {
		return "", fmt.Errorf("%w: copilot send: %v", assistant.ErrAgentUnavailable, err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		_ = session.Abort()
		return "", ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	if streamErr != nil {
		return "", fmt.Errorf("copilot session: %w", streamErr)
	}
	text := final
	if text == "" {
		text = content.String()
	}
	if strings.TrimSpace(text) == "" {
		return "", assistant.ErrEmptyReply
	}
	return text, nil
}

// Stop destroys the session and shuts down the CLI server.
func (c *CopilotBackend) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.session != nil {
		if err := c.session.Destroy(); err != nil {
			errs = append(errs, err)
		}
		c.session = nil
	}
	if c.client != nil {
		errs = append(errs, c.client.Stop()...)
		c.client = nil
	}
	return errors.Join(errs...)
}
