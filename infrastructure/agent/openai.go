package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
)

const maxToolRounds = 5

// OpenAIConfig configures the OpenAI-compatible backend.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	MaxTokens    int

	// Tools are offered to the model as functions.
	Tools []ToolDefinition
}

// OpenAIBackend talks to any OpenAI-compatible chat completion endpoint.
// The endpoint is stateless so every request carries the history.
type OpenAIBackend struct {
	config OpenAIConfig

	mu     sync.Mutex
	client *openai.Client
}

// NewOpenAIBackend creates an OpenAI backend.
func NewOpenAIBackend(config OpenAIConfig) *OpenAIBackend {
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	return &OpenAIBackend{config: config}
}

// Name returns the backend name.
func (o *OpenAIBackend) Name() string {
	return "openai"
}

// Start creates the client.
func (o *OpenAIBackend) Start(_ context.Context) error {
	if o.config.APIKey == "" {
		return fmt.Errorf("%w: missing OpenAI API key", assistant.ErrAgentUnavailable)
	}
	clientConfig := openai.DefaultConfig(o.config.APIKey)
	if o.config.BaseURL != "" {
		clientConfig.BaseURL = o.config.BaseURL
	}

	o.mu.Lock()
	o.client = openai.NewClientWithConfig(clientConfig)
	o.mu.Unlock()
	return nil
}

// Send runs one chat completion, resolving tool calls up to a fixed number of rounds.
func (o *OpenAIBackend) Send(ctx context.Context, req Request) (string, error) {
	o.mu.Lock()
	client := o.client
	o.mu.Unlock()
	if client == nil {
		return "", fmt.Errorf("%w: openai client not started", assistant.ErrAgentUnavailable)
	}

	messages := o.messages(req)
	for round := 0; ; round++ {
		request := openai.ChatCompletionRequest{
			Model:     o.config.Model,
			Messages:  messages,
			MaxTokens: o.config.MaxTokens,
		}
		if round < maxToolRounds {
			request.Tools = o.tools()
		}

		resp, err := client.CreateChatCompletion(ctx, request)
		if err != nil {
			return "", classifyOpenAIError(ctx, err)
		}
		if len(resp.Choices) == 0 {
			return "", assistant.ErrEmptyReply
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 || round >= maxToolRounds {
			if strings.TrimSpace(msg.Content) == "" {
				return "", assistant.ErrEmptyReply
			}
			return msg.Content, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    o.callTool(ctx, call),
				ToolCallID: call.ID,
			})
		}
	}
}

// Stop releases the client.
func (o *OpenAIBackend) Stop() error {
	o.mu.Lock()
	o.client = nil
	o.mu.Unlock()
	return nil
}

func (o *OpenAIBackend) messages(req Request) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if o.config.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: o.config.SystemPrompt,
		})
	}
	for _, turn := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})
}

func (o *OpenAIBackend) tools() []openai.Tool {
	if len(o.config.Tools) == 0 {
		return nil
	}
	tools := make([]openai.Tool, len(o.config.Tools))
	for i, def := range o.config.Tools {
		tools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		}
	}
	return tools
}

func (o *OpenAIBackend) callTool(ctx context.Context, call openai.ToolCall) string {
	for _, def := range o.config.Tools {
		if def.Name != call.Function.Name {
			continue
		}
		text, err := def.Handler(ctx, json.RawMessage(call.Function.Arguments))
		if err != nil {
			logging.Warn().
				Add(logging.Component("tools")).
				Add(logging.Str("tool", def.Name)).
				Add(logging.ErrorField(err)).
				Msg("tool call failed")
			return "Error: " + err.Error()
		}
		return text
	}
	return fmt.Sprintf("Error: %v: %s", ErrUnknownTool, call.Function.Name)
}

// classifyOpenAIError keeps API errors as ordinary failures and treats
// transport failures as an unavailable agent.
func classifyOpenAIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openai: %w", err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("openai: %w", err)
	}
	return fmt.Errorf("%w: openai: %v", assistant.ErrAgentUnavailable, err)
}
