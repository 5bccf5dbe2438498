package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/domain/command"
	"github.com/felixgeelhaar/echo-go/domain/project"
	"github.com/felixgeelhaar/echo-go/infrastructure/agent"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
)

const extractNamePrompt = "The user said the following when creating or referencing a project. " +
	"Extract ONLY the short project name. Remove any conversational filler like " +
	"'for me about the', 'about', 'the one for'. Return ONLY the project name, " +
	"nothing else. No quotes, no explanation.\n\nUser said: %q"

// runCommand executes a project command and returns the text to speak.
func (o *Orchestrator) runCommand(ctx context.Context, cmd command.Command, tok assistant.Token) string {
	if o.projects == nil {
		return "Projects are not configured."
	}

	switch cmd.Kind {
	case command.KindListProjects:
		return o.listProjects(ctx)
	case command.KindStartProject:
		name, ok := o.extractName(ctx, cmd.Argument, tok)
		if !ok {
			return ""
		}
		if _, err := o.projects.Create(ctx, name); err != nil {
			if errors.Is(err, project.ErrProjectExists) {
				return fmt.Sprintf("A project called %s already exists.", name)
			}
			o.commandFailed(cmd, err)
			return "Sorry, I couldn't create that project."
		}
		logging.Info().Add(logging.Component("orchestrator")).Add(logging.Str("project", name)).Msg("project created")
		return fmt.Sprintf("Project %s created. I'll start tracking it.", name)
	case command.KindFinishProject:
		name, ok := o.extractName(ctx, cmd.Argument, tok)
		if !ok {
			return ""
		}
		if _, err := o.projects.Archive(ctx, name); err != nil {
			if errors.Is(err, project.ErrProjectNotFound) {
				return fmt.Sprintf("I couldn't find an active project called %s.", name)
			}
			o.commandFailed(cmd, err)
			return "Sorry, I couldn't archive that project."
		}
		logging.Info().Add(logging.Component("orchestrator")).Add(logging.Str("project", name)).Msg("project archived")
		return fmt.Sprintf("Project %s has been archived.", name)
	default:
		return ""
	}
}

func (o *Orchestrator) listProjects(ctx context.Context) string {
	active, archived, err := o.projects.List(ctx)
	if err != nil {
		o.commandFailed(command.Command{Kind: command.KindListProjects}, err)
		return "Sorry, I couldn't list your projects."
	}
	if len(active) == 0 && len(archived) == 0 {
		return "You don't have any projects yet."
	}
	var parts []string
	if len(active) > 0 {
		parts = append(parts, "Active projects: "+strings.Join(active, ", ")+".")
	}
	if len(archived) > 0 {
		parts = append(parts, "Archived projects: "+strings.Join(archived, ", ")+".")
	}
	return strings.Join(parts, " ")
}

// extractName asks the agent to strip filler from a spoken project name.
// It falls back to the raw name when the agent fails or rambles, and
// reports false when tok fired, in which case nothing may be changed.
func (o *Orchestrator) extractName(ctx context.Context, raw string, tok assistant.Token) (string, bool) {
	raw = strings.TrimSpace(raw)
	reply, err := o.agent.Send(ctx, agent.Request{ID: uuid.NewString(), Prompt: fmt.Sprintf(extractNamePrompt, raw)}, tok)
	if tok.Cancelled() || errors.Is(err, assistant.ErrCancelled) || ctx.Err() != nil {
		return "", false
	}
	if err != nil {
		logging.Debug().
			Add(logging.Component("orchestrator")).
			Add(logging.ErrorField(err)).
			Msg("project name extraction failed")
		return raw, true
	}
	cleaned := strings.TrimSpace(strings.Trim(strings.TrimSpace(reply.Text), `"'`))
	if cleaned == "" || len(cleaned) >= 2*len(raw) {
		return raw, true
	}
	return cleaned, true
}

func (o *Orchestrator) commandFailed(cmd command.Command, err error) {
	logging.Error().
		Add(logging.Component("orchestrator")).
		Add(logging.Str("command", string(cmd.Kind))).
		Add(logging.ErrorField(err)).
		Msg("project command failed")
}
