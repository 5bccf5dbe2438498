package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	copilot "github.com/github/copilot-sdk/go"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/domain/project"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
	"github.com/felixgeelhaar/echo-go/infrastructure/resilience"
)

// Project tool names exposed to the agent.
const (
	ToolListProjects     = "list_all_projects"
	ToolGetActive        = "get_active_project"
	ToolGetArchived      = "get_archived_project"
	ToolAppendEntry      = "append_project_entry"
	ToolReplaceSection   = "replace_project_section"
	sizeWarningThreshold = 0.85
)

// ToolHandler executes a tool with raw JSON arguments and returns text for the agent.
type ToolHandler func(ctx context.Context, args json.RawMessage) (string, error)

// ToolDefinition describes a tool the agent may call.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Handler     ToolHandler
}

// ErrUnknownTool is returned by Call for an unregistered tool name.
var ErrUnknownTool = errors.New("unknown tool")

// ProjectTools exposes a project store as agent tools.
type ProjectTools struct {
	store    project.Store
	maxChars int
	executor *resilience.Executor[string]
}

// NewProjectTools creates project tools over store. maxChars enables the size warning.
func NewProjectTools(store project.Store, maxChars int) *ProjectTools {
	return &ProjectTools{
		store:    store,
		maxChars: maxChars,
		executor: resilience.NewExecutor[string](resilience.ExecutorConfig{
			MaxConcurrent:           4,
			CircuitBreakerThreshold: 5,
			CircuitBreakerTimeout:   30 * time.Second,
			RetryMaxAttempts:        2,
			RetryInitialDelay:       100 * time.Millisecond,
			RetryBackoffMultiplier:  2,
			NonRetryable:            []error{project.ErrProjectNotFound, project.ErrInvalidSection, context.Canceled},
		}),
	}
}

// Definitions returns the tool definitions in a stable order.
func (p *ProjectTools) Definitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        ToolListProjects,
			Description: "List all active and archived project names.",
			Parameters:  objectSchema(nil),
			Handler:     p.listProjects,
		},
		{
			Name:        ToolGetActive,
			Description: "Read the full content of an active project file.",
			Parameters:  objectSchema(map[string]string{"name": "Project name"}),
			Handler:     p.getProject(project.StatusActive),
		},
		{
			Name:        ToolGetArchived,
			Description: "Read the full content of an archived project file.",
			Parameters:  objectSchema(map[string]string{"name": "Project name"}),
			Handler:     p.getProject(project.StatusArchived),
		},
		{
			Name: ToolAppendEntry,
			Description: "Append a bullet entry to a section of an active project. Sections: " +
				sectionList() + ".",
			Parameters: objectSchema(map[string]string{
				"name":    "Project name",
				"section": "Section heading",
				"entry":   "Entry text",
			}),
			Handler: p.appendEntry,
		},
		{
			Name:        ToolReplaceSection,
			Description: "Replace the whole content of a section of an active project, e.g. to condense it.",
			Parameters: objectSchema(map[string]string{
				"name":    "Project name",
				"section": "Section heading",
				"content": "New section content",
			}),
			Handler: p.replaceSection,
		},
	}
}

// Call runs the named tool.
func (p *ProjectTools) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	for _, def := range p.Definitions() {
		if def.Name == name {
			return def.Handler(ctx, args)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

// CopilotTools converts the definitions for a Copilot session.
func (p *ProjectTools) CopilotTools() []copilot.Tool {
	defs := p.Definitions()
	result := make([]copilot.Tool, len(defs))
	for i, def := range defs {
		result[i] = copilot.Tool{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
			Handler:     copilotHandler(def),
		}
	}
	return result
}

func copilotHandler(def ToolDefinition) copilot.ToolHandler {
	return func(invocation copilot.ToolInvocation) (copilot.ToolResult, error) {
		input, err := json.Marshal(invocation.Arguments)
		if err != nil {
			return copilot.ToolResult{
				ResultType: "error",
				Error:      "failed to marshal arguments: " + err.Error(),
			}, nil
		}

		text, err := def.Handler(context.Background(), input)
		if err != nil {
			logging.Warn().
				Add(logging.Component("tools")).
				Add(logging.Str("tool", def.Name)).
				Add(logging.ErrorField(err)).
				Msg("tool call failed")
			return copilot.ToolResult{
				ResultType: "error",
				Error:      err.Error(),
			}, nil
		}
		return copilot.ToolResult{
			TextResultForLLM: text,
			ResultType:       "success",
		}, nil
	}
}

type toolArgs struct {
	Name    string `json:"name"`
	Section string `json:"section"`
	Entry   string `json:"entry"`
	Content string `json:"content"`
}

func parseArgs(raw json.RawMessage) (toolArgs, error) {
	var args toolArgs
	if len(raw) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}

func (p *ProjectTools) listProjects(ctx context.Context, _ json.RawMessage) (string, error) {
	return p.run(ctx, func(ctx context.Context) (string, error) {
		active, archived, err := p.store.List(ctx)
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		sb.WriteString("Active projects: ")
		sb.WriteString(joinOrNone(active))
		sb.WriteString("\nArchived projects: ")
		sb.WriteString(joinOrNone(archived))
		return sb.String(), nil
	})
}

func (p *ProjectTools) getProject(status project.Status) ToolHandler {
	return func(ctx context.Context, raw json.RawMessage) (string, error) {
		args, err := parseArgs(raw)
		if err != nil {
			return "", err
		}
		return p.run(ctx, func(ctx context.Context) (string, error) {
			text, err := p.store.Read(ctx, args.Name, status)
			if errors.Is(err, project.ErrProjectNotFound) {
				return fmt.Sprintf("No %s project named '%s' found.", status, args.Name), nil
			}
			return text, err
		})
	}
}

func (p *ProjectTools) appendEntry(ctx context.Context, raw json.RawMessage) (string, error) {
	args, err := parseArgs(raw)
	if err != nil {
		return "", err
	}
	section, err := project.ParseSection(args.Section)
	if err != nil {
		return invalidSection(args.Section), nil
	}
	return p.write(ctx, func(ctx context.Context) (string, error) {
		msg, err := p.store.AppendEntry(ctx, args.Name, section, args.Entry)
		if errors.Is(err, project.ErrProjectNotFound) {
			return fmt.Sprintf("No active project named '%s' found.", args.Name), nil
		}
		if err != nil {
			return "", err
		}
		return msg + p.sizeWarning(ctx, args.Name), nil
	})
}

func (p *ProjectTools) replaceSection(ctx context.Context, raw json.RawMessage) (string, error) {
	args, err := parseArgs(raw)
	if err != nil {
		return "", err
	}
	section, err := project.ParseSection(args.Section)
	if err != nil {
		return invalidSection(args.Section), nil
	}
	return p.write(ctx, func(ctx context.Context) (string, error) {
		msg, err := p.store.ReplaceSection(ctx, args.Name, section, args.Content)
		if errors.Is(err, project.ErrProjectNotFound) {
			return fmt.Sprintf("No active project named '%s' found.", args.Name), nil
		}
		return msg, err
	})
}

func (p *ProjectTools) sizeWarning(ctx context.Context, name string) string {
	if p.maxChars <= 0 {
		return ""
	}
	text, err := p.store.Read(ctx, name, project.StatusActive)
	if err != nil {
		return ""
	}
	if float64(len(text)) <= float64(p.maxChars)*sizeWarningThreshold {
		return ""
	}
	return fmt.Sprintf(" WARNING: project file is %d of %d chars. Condense older sections with %s.",
		len(text), p.maxChars, ToolReplaceSection)
}

// run executes a store operation. Store failures other than not-found are transient tool errors.
func (p *ProjectTools) run(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	text, err := p.executor.Execute(ctx, resilience.Func[string](fn))
	if err != nil {
		return "", fmt.Errorf("%w: %v", assistant.ErrTransientTool, err)
	}
	return text, nil
}

// write executes a store mutation without retry.
func (p *ProjectTools) write(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	text, err := p.executor.ExecuteOnce(ctx, resilience.Func[string](fn))
	if err != nil {
		return "", fmt.Errorf("%w: %v", assistant.ErrTransientTool, err)
	}
	return text, nil
}

func invalidSection(s string) string {
	return fmt.Sprintf("Invalid section '%s'. Valid sections: %s.", s, sectionList())
}

func sectionList() string {
	names := make([]string, 0, len(project.Sections()))
	for _, s := range project.Sections() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

func objectSchema(props map[string]string) map[string]interface{} {
	properties := make(map[string]interface{}, len(props))
	required := make([]string, 0, len(props))
	for name, desc := range props {
		properties[name] = map[string]interface{}{"type": "string", "description": desc}
		required = append(required, name)
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sort.Strings(required)
		schema["required"] = required
	}
	return schema
}
