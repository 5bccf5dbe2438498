package control

import (
	"context"
	"encoding/json"
	"fmt"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	mcpserver "github.com/felixgeelhaar/mcp-go/server"
)

// MCPServer exposes status and the UI actions as MCP tools.
type MCPServer struct {
	srv        *mcpgo.Server
	dispatcher *Dispatcher
}

// MCPConfig configures the MCP control server.
type MCPConfig struct {
	Name    string
	Version string
}

const mcpInstructions = "Use status to read the assistant state. pause, resume, stop and quit control it."

// NewMCPServer creates the control server and registers its tools.
func NewMCPServer(config MCPConfig, dispatcher *Dispatcher) *MCPServer {
	name := config.Name
	if name == "" {
		name = "echo"
	}
	info := mcpgo.ServerInfo{
		Name:        name,
		Version:     config.Version,
		Description: "Voice assistant control surface",
		Capabilities: mcpgo.Capabilities{
			Tools: true,
		},
	}

	s := &MCPServer{
		srv:        mcpgo.NewServer(info, mcpgo.WithInstructions(mcpInstructions)),
		dispatcher: dispatcher,
	}
	s.srv.Use(mcpgo.Recover(), mcpgo.RequestID())
	s.register()
	return s
}

func (s *MCPServer) register() {
	s.srv.Tool("status").
		Description("Report the assistant state and status text").
		Handler(func(_ context.Context, _ json.RawMessage) (string, error) {
			return s.status()
		})

	for _, a := range []struct {
		action Action
		desc   string
	}{
		{ActionPause, "Pause listening"},
		{ActionResume, "Resume listening"},
		{ActionStop, "Stop the current reply or routine"},
		{ActionQuit, "Quit the assistant"},
	} {
		action := a.action
		s.srv.Tool(string(action)).
			Description(a.desc).
			Handler(func(ctx context.Context, _ json.RawMessage) (string, error) {
				return s.apply(ctx, action)
			})
	}
}

func (s *MCPServer) status() (string, error) {
	data, err := json.Marshal(s.dispatcher.Report())
	if err != nil {
		return "", fmt.Errorf("marshal status: %w", err)
	}
	return string(data), nil
}

func (s *MCPServer) apply(ctx context.Context, action Action) (string, error) {
	if _, err := s.dispatcher.Do(ctx, "mcp", action); err != nil {
		return "", err
	}
	return s.status()
}

// Server returns the underlying mcp-go server.
func (s *MCPServer) Server() *mcpgo.Server {
	return s.srv
}

// Use adds middleware to the server.
func (s *MCPServer) Use(middlewares ...mcpserver.Middleware) {
	s.srv.Use(middlewares...)
}

// ServeStdio runs the server over stdin/stdout.
func (s *MCPServer) ServeStdio(ctx context.Context, opts ...mcpgo.ServeOption) error {
	return mcpgo.ServeStdio(ctx, s.srv, opts...)
}

// ServeHTTP runs the server over HTTP.
func (s *MCPServer) ServeHTTP(ctx context.Context, addr string, opts ...mcpgo.HTTPOption) error {
	return mcpgo.ServeHTTP(ctx, s.srv, addr, opts...)
}
