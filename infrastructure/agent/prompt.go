package agent

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/felixgeelhaar/echo-go/domain/project"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
)

const basePrompt = "You are %s, a voice-controlled assistant for software development. " +
	"You help the user inspect and modify code in their repository, track project work, " +
	"and answer development questions. Keep responses concise and conversational. " +
	"They will be read aloud via text-to-speech. Avoid markdown formatting, code blocks, " +
	"or bullet lists in your replies since the user is listening, not reading."

const projectsPreamble = "The following are ACTIVE PROJECT knowledge bases. " +
	"Use them to understand ongoing work.\n\n" +
	"You have project knowledge tools available:\n" +
	"- append_project_entry(name, section, entry): log work items, PRs, decisions, blockers, " +
	"or lessons learned. Include a date prefix like '[2026-02-11]'. Do NOT ask before logging.\n" +
	"- get_active_project(name): read an active project in full.\n" +
	"- replace_project_section(name, section, content): replace a section with a shorter " +
	"summary when warned about size.\n" +
	"- list_all_projects(): discover active and archived projects.\n" +
	"- get_archived_project(name): load an archived project's content.\n\n"

// PromptOption configures a PromptBuilder.
type PromptOption func(*PromptBuilder)

// WithAssistantName sets the name the agent introduces itself with.
func WithAssistantName(name string) PromptOption {
	return func(p *PromptBuilder) { p.name = name }
}

// WithBasePrompt replaces the base voice instructions.
func WithBasePrompt(base string) PromptOption {
	return func(p *PromptBuilder) { p.base = base }
}

// WithKnowledgeFile adds a persistent knowledge file.
func WithKnowledgeFile(path string) PromptOption {
	return func(p *PromptBuilder) { p.knowledgeFile = path }
}

// WithProjects adds active project knowledge and archived project names.
func WithProjects(store project.Store, maxChars int) PromptOption {
	return func(p *PromptBuilder) {
		p.projects = store
		p.maxChars = maxChars
	}
}

// WithRepository adds branch and working tree state of a git repository.
func WithRepository(path string) PromptOption {
	return func(p *PromptBuilder) { p.repoPath = path }
}

// PromptBuilder assembles the agent's system prompt.
type PromptBuilder struct {
	name          string
	base          string
	knowledgeFile string
	projects      project.Store
	maxChars      int
	repoPath      string
}

// NewPromptBuilder creates a prompt builder.
func NewPromptBuilder(opts ...PromptOption) *PromptBuilder {
	p := &PromptBuilder{name: "Echo"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Build assembles the prompt. Missing optional sources are skipped with a warning.
func (p *PromptBuilder) Build(ctx context.Context) string {
	base := p.base
	if base == "" {
		base = fmt.Sprintf(basePrompt, p.name)
	}
	parts := []string{base}

	if knowledge := p.knowledge(); knowledge != "" {
		parts = append(parts, "Below is persistent context the user has provided. "+
			"Always keep these facts in mind:\n\n"+knowledge)
	}

	if p.projects != nil {
		active, err := p.projects.LoadActive(ctx, p.maxChars)
		if err != nil {
			logging.Warn().Add(logging.Component("prompt")).Add(logging.ErrorField(err)).Msg("failed to load active projects")
		} else if active != "" {
			parts = append(parts, projectsPreamble+active)
		}

		_, archived, err := p.projects.List(ctx)
		if err != nil {
			logging.Warn().Add(logging.Component("prompt")).Add(logging.ErrorField(err)).Msg("failed to list projects")
		} else if len(archived) > 0 {
			parts = append(parts, "Archived projects available for on-demand loading: "+
				strings.Join(archived, ", ")+
				". When the user asks about a past project, or when historical context would help, "+
				"use get_archived_project to retrieve the full content without asking.")
		}
	}

	if repo := p.repository(); repo != "" {
		parts = append(parts, repo)
	}

	return strings.Join(parts, "\n\n")
}

func (p *PromptBuilder) knowledge() string {
	if p.knowledgeFile == "" {
		return ""
	}
	data, err := os.ReadFile(p.knowledgeFile)
	if err != nil {
		logging.Warn().
			Add(logging.Component("prompt")).
			Add(logging.Str("path", p.knowledgeFile)).
			Add(logging.ErrorField(err)).
			Msg("knowledge file not loaded")
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (p *PromptBuilder) repository() string {
	if p.repoPath == "" {
		return ""
	}
	repo, err := git.PlainOpenWithOptions(p.repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		logging.Warn().
			Add(logging.Component("prompt")).
			Add(logging.Str("path", p.repoPath)).
			Add(logging.ErrorField(err)).
			Msg("repository not opened")
		return ""
	}

	lines := []string{"Repository: " + p.repoPath}
	head, err := repo.Head()
	if err == nil {
		lines = append(lines, "Branch: "+head.Name().Short(), "HEAD: "+head.Hash().String()[:7])
	}
	if wt, err := repo.Worktree(); err == nil {
		if status, err := wt.Status(); err == nil {
			state := "clean"
			if !status.IsClean() {
				state = "has uncommitted changes"
			}
			lines = append(lines, "Working tree: "+state)
		}
	}
	return strings.Join(lines, "\n")
}
