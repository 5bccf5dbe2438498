// Package project provides the domain model for per-project knowledge bases.
package project

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Domain errors for project stores.
var (
	// ErrProjectExists is returned when creating a project whose slug is taken.
	ErrProjectExists = errors.New("project already exists")

	// ErrProjectNotFound is returned when a project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrInvalidSection is returned for a section outside the template.
	ErrInvalidSection = errors.New("invalid project section")
)

// Status is where a project lives.
type Status string

// Project statuses.
const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Section is a heading in the project template the agent may edit.
type Section string

// Editable sections.
const (
	SectionRepos     Section = "Repos & Work Items"
	SectionDecisions Section = "Key Decisions"
	SectionProgress  Section = "Progress Log"
	SectionBlockers  Section = "Blockers & Issues"
	SectionLessons   Section = "Lessons Learned"
)

// Sections returns the editable sections in template order.
func Sections() []Section {
	return []Section{SectionRepos, SectionDecisions, SectionProgress, SectionBlockers, SectionLessons}
}

// ParseSection validates a section name.
func ParseSection(s string) (Section, error) {
	for _, sec := range Sections() {
		if string(sec) == s {
			return sec, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSection, s)
}

// Store defines the interface for project knowledge persistence.
type Store interface {
	// Create writes a new active project from the template.
	Create(ctx context.Context, name string) (string, error)

	// Archive moves an active project to the archive.
	Archive(ctx context.Context, name string) (string, error)

	// List returns display names of active and archived projects.
	List(ctx context.Context) (active, archived []string, err error)

	// Read returns a project's content.
	Read(ctx context.Context, name string, status Status) (string, error)

	// AppendEntry adds a bullet to a section of an active project.
	AppendEntry(ctx context.Context, name string, section Section, entry string) (string, error)

	// ReplaceSection rewrites a section of an active project.
	ReplaceSection(ctx context.Context, name string, section Section, content string) (string, error)

	// LoadActive concatenates active projects, truncating each to maxChars when positive.
	LoadActive(ctx context.Context, maxChars int) (string, error)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a project name into a file-safe slug.
func Slugify(name string) string {
	slug := nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "unnamed"
	}
	return slug
}

// DisplayName turns a slug back into a spoken name.
func DisplayName(slug string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(slug, "-", " "))
}

const template = `# Project: %s

**Created:** %s
**Status:** Active
**Goal:** (to be filled in by user or agent)

## Repos & Work Items
- Primary repo: (inherited from knowledge file or specified)
- Work items: (agent appends as they're discussed)

## Key Decisions
<!-- Agent appends decisions as they're made during conversations -->

## Progress Log
<!-- Agent appends one-liner summaries of completed work items, PRs, etc. -->

## Blockers & Issues
<!-- Agent notes blockers encountered and how they were resolved -->

## Lessons Learned
<!-- Insights that might be useful for future projects -->
`

// Render returns the initial content of a new project.
func Render(name string, created time.Time) string {
	return fmt.Sprintf(template, name, created.Format("2006-01-02"))
}

// MarkArchived rewrites the status line of a project being archived.
func MarkArchived(text string, at time.Time) string {
	return strings.Replace(text, "**Status:** Active", "**Status:** Archived ("+at.Format("2006-01-02")+")", 1)
}

// Truncate caps content at maxChars and appends a compaction notice.
func Truncate(content string, maxChars int) string {
	if maxChars <= 0 || len(content) <= maxChars {
		return content
	}
	return content[:maxChars] + fmt.Sprintf(
		"\n\n[TRUNCATED: file exceeds %d char cap. Use replace_project_section to condense older entries.]",
		maxChars)
}

// sectionBounds returns the end of the heading line and the end of the section body.
func sectionBounds(text string, section Section) (int, int, error) {
	heading := "## " + string(section)
	idx := strings.Index(text, heading)
	if idx < 0 {
		return 0, 0, fmt.Errorf("%w: heading %q not found", ErrInvalidSection, section)
	}
	eol := strings.IndexByte(text[idx:], '\n')
	if eol < 0 {
		return len(text), len(text), nil
	}
	eol += idx
	end := len(text)
	if next := strings.Index(text[eol+1:], "\n## "); next >= 0 {
		end = eol + 1 + next
	}
	return eol, end, nil
}

// AppendToSection inserts "- entry" at the end of a section.
func AppendToSection(text string, section Section, entry string) (string, error) {
	_, end, err := sectionBounds(text, section)
	if err != nil {
		return "", err
	}
	before := strings.TrimRight(text[:end], " \t\r\n")
	return before + "\n- " + strings.TrimSpace(entry) + "\n" + text[end:], nil
}

// ReplaceSectionBody replaces everything under a section heading.
func ReplaceSectionBody(text string, section Section, content string) (string, error) {
	eol, end, err := sectionBounds(text, section)
	if err != nil {
		return "", err
	}
	if eol >= len(text) {
		return text + "\n" + strings.TrimSpace(content) + "\n", nil
	}
	return text[:eol+1] + strings.TrimSpace(content) + "\n" + text[end:], nil
}
