package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role       string `json:"role"`
		Content    string `json:"content"`
		ToolCallID string `json:"tool_call_id"`
	} `json:"messages"`
	Tools []json.RawMessage `json:"tools"`
}

type chatServer struct {
	mu        sync.Mutex
	requests  []chatRequest
	responses []string
}

func (s *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/chat/completions" {
		http.NotFound(w, r)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	body := s.responses[len(s.responses)-1]
	if idx < len(s.responses) {
		body = s.responses[idx]
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (s *chatServer) Requests() []chatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chatRequest(nil), s.requests...)
}

func completion(content string) string {
	data, _ := json.Marshal(map[string]interface{}{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]interface{}{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": content},
		}},
	})
	return string(data)
}

const toolCallCompletion = `{"id":"chatcmpl-2","object":"chat.completion","model":"gpt-4o-mini",
"choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"",
"tool_calls":[{"id":"call_1","type":"function","function":{"name":"list_all_projects","arguments":"{}"}}]}}]}`

func startOpenAI(t *testing.T, server *chatServer, config OpenAIConfig) *OpenAIBackend {
	t.Helper()
	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)

	config.APIKey = "test-key"
	config.BaseURL = ts.URL
	backend := NewOpenAIBackend(config)
	if err := backend.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return backend
}

func TestOpenAIBackend_Send(t *testing.T) {
	t.Parallel()

	server := &chatServer{responses: []string{completion("Sure, done.")}}
	backend := startOpenAI(t, server, OpenAIConfig{SystemPrompt: "be brief"})

	got, err := backend.Send(context.Background(), Request{
		Prompt: "and now?",
		History: []assistant.Turn{
			{Role: assistant.RoleUser, Content: "hello"},
			{Role: assistant.RoleAssistant, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got != "Sure, done." {
		t.Errorf("Send() = %q, want %q", got, "Sure, done.")
	}

	req := server.Requests()[0]
	if req.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want gpt-4o-mini", req.Model)
	}
	roles := make([]string, len(req.Messages))
	for i, m := range req.Messages {
		roles[i] = m.Role
	}
	if got, want := strings.Join(roles, ","), "system,user,assistant,user"; got != want {
		t.Errorf("roles = %s, want %s", got, want)
	}
	if last := req.Messages[len(req.Messages)-1].Content; last != "and now?" {
		t.Errorf("last message = %q, want %q", last, "and now?")
	}
}

func TestOpenAIBackend_ToolCalls(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	_, _ = store.Create(context.Background(), "alpha")
	tools := NewProjectTools(store, 0)

	server := &chatServer{responses: []string{toolCallCompletion, completion("You have one project, alpha.")}}
	backend := startOpenAI(t, server, OpenAIConfig{Tools: tools.Definitions()})

	got, err := backend.Send(context.Background(), Request{Prompt: "what projects do I have?"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got != "You have one project, alpha." {
		t.Errorf("Send() = %q", got)
	}
	requests := server.Requests()
	if len(requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(requests))
	}
	if len(requests[0].Tools) != 5 {
		t.Errorf("tools offered = %d, want 5", len(requests[0].Tools))
	}
	msgs := requests[1].Messages
	toolMsg := msgs[len(msgs)-1]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "call_1" {
		t.Errorf("tool message = %+v, want role tool for call_1", toolMsg)
	}
	if !strings.Contains(toolMsg.Content, "Active projects: alpha") {
		t.Errorf("tool result = %q", toolMsg.Content)
	}
}

func TestOpenAIBackend_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()
		err := NewOpenAIBackend(OpenAIConfig{}).Start(context.Background())
		if !errors.Is(err, assistant.ErrAgentUnavailable) {
			t.Errorf("Start() error = %v, want ErrAgentUnavailable", err)
		}
	})

	t.Run("not started", func(t *testing.T) {
		t.Parallel()
		_, err := NewOpenAIBackend(OpenAIConfig{APIKey: "k"}).Send(context.Background(), Request{Prompt: "hi"})
		if !errors.Is(err, assistant.ErrAgentUnavailable) {
			t.Errorf("Send() error = %v, want ErrAgentUnavailable", err)
		}
	})

	t.Run("api error is not fatal", func(t *testing.T) {
		t.Parallel()
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
		}))
		defer ts.Close()

		backend := NewOpenAIBackend(OpenAIConfig{APIKey: "k", BaseURL: ts.URL})
		_ = backend.Start(context.Background())
		_, err := backend.Send(context.Background(), Request{Prompt: "hi"})
		if err == nil {
			t.Fatal("Send() succeeded, want error")
		}
		if assistant.IsFatal(err) {
			t.Errorf("Send() error = %v, want a non-fatal error", err)
		}
	})

	t.Run("unreachable endpoint is fatal", func(t *testing.T) {
		t.Parallel()
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		backend := NewOpenAIBackend(OpenAIConfig{APIKey: "k", BaseURL: url})
		_ = backend.Start(context.Background())
		_, err := backend.Send(context.Background(), Request{Prompt: "hi"})
		if !errors.Is(err, assistant.ErrAgentUnavailable) {
			t.Errorf("Send() error = %v, want ErrAgentUnavailable", err)
		}
	})

	t.Run("empty reply", func(t *testing.T) {
		t.Parallel()
		server := &chatServer{responses: []string{completion("   ")}}
		backend := startOpenAI(t, server, OpenAIConfig{})
		_, err := backend.Send(context.Background(), Request{Prompt: "hi"})
		if !errors.Is(err, assistant.ErrEmptyReply) {
			t.Errorf("Send() error = %v, want ErrEmptyReply", err)
		}
	})
}
