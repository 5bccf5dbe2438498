// Package filesystem stores project knowledge as plain files on disk.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/echo-go/domain/project"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
)

const projectExt = ".md"

// ProjectStore implements project.Store with one markdown file per project
// under active/ and archive/ subdirectories.
type ProjectStore struct {
	activeDir  string
	archiveDir string
	now        func() time.Time
	mu         sync.Mutex
}

// ProjectOption configures a ProjectStore.
type ProjectOption func(*ProjectStore)

// WithClock overrides the clock used for created and archived dates.
func WithClock(now func() time.Time) ProjectOption {
	return func(s *ProjectStore) { s.now = now }
}

// NewProjectStore creates a filesystem project store rooted at basePath.
func NewProjectStore(basePath string, opts ...ProjectOption) (*ProjectStore, error) {
	s := &ProjectStore{
		activeDir:  filepath.Join(basePath, "active"),
		archiveDir: filepath.Join(basePath, "archive"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, dir := range []string{s.activeDir, s.archiveDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create project directory: %w", err)
		}
	}
	return s, nil
}

func (s *ProjectStore) path(status project.Status, name string) string {
	dir := s.activeDir
	if status == project.StatusArchived {
		dir = s.archiveDir
	}
	return filepath.Join(dir, project.Slugify(name)+projectExt)
}

// Create writes a new active project from the template.
func (s *ProjectStore) Create(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(project.StatusActive, name)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %s", project.ErrProjectExists, name)
	}
	if err := writeFile(path, project.Render(name, s.now())); err != nil {
		return "", err
	}
	logging.Info().
		Add(logging.Component("projects")).
		Add(logging.Str("project", name)).
		Add(logging.Str("path", path)).
		Msg("project created")
	return path, nil
}

// Archive marks an active project archived and moves it to archive/.
func (s *ProjectStore) Archive(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.path(project.StatusActive, name)
	text, err := readFile(src)
	if err != nil {
		return "", notFound(err, name)
	}
	if err := writeFile(src, project.MarkArchived(text, s.now())+"\n"); err != nil {
		logging.Debug().
			Add(logging.Component("projects")).
			Add(logging.ErrorField(err)).
			Msg("could not update project status line")
	}

	dst := s.path(project.StatusArchived, name)
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("failed to archive project: %w", err)
	}
	logging.Info().
		Add(logging.Component("projects")).
		Add(logging.Str("project", name)).
		Add(logging.Str("path", dst)).
		Msg("project archived")
	return dst, nil
}

// List returns display names of active and archived projects in name order.
func (s *ProjectStore) List(ctx context.Context) ([]string, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	active, err := listNames(s.activeDir)
	if err != nil {
		return nil, nil, err
	}
	archived, err := listNames(s.archiveDir)
	if err != nil {
		return nil, nil, err
	}
	return active, archived, nil
}

// Read returns a project's content.
func (s *ProjectStore) Read(ctx context.Context, name string, status project.Status) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := readFile(s.path(status, name))
	if err != nil {
		return "", notFound(err, name)
	}
	return text, nil
}

// AppendEntry adds a bullet to a section of an active project.
func (s *ProjectStore) AppendEntry(ctx context.Context, name string, section project.Section, entry string) (string, error) {
	n, err := s.edit(ctx, name, func(text string) (string, error) {
		return project.AppendToSection(text, section, entry)
	})
	if err != nil {
		return "", err
	}
	msg := fmt.Sprintf("Entry added to %s in project '%s'.", section, name)
	logging.Info().Add(logging.Component("projects")).Msg(msg)
	return fmt.Sprintf("%s File is now %d chars.", msg, n), nil
}

// ReplaceSection rewrites a section of an active project.
func (s *ProjectStore) ReplaceSection(ctx context.Context, name string, section project.Section, content string) (string, error) {
	n, err := s.edit(ctx, name, func(text string) (string, error) {
		return project.ReplaceSectionBody(text, section, content)
	})
	if err != nil {
		return "", err
	}
	msg := fmt.Sprintf("Section '%s' replaced in project '%s'.", section, name)
	logging.Info().Add(logging.Component("projects")).Msg(msg)
	return fmt.Sprintf("%s File is now %d chars.", msg, n), nil
}

// edit applies fn to an active project and returns the new length.
func (s *ProjectStore) edit(ctx context.Context, name string, fn func(string) (string, error)) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(project.StatusActive, name)
	text, err := readFile(path)
	if err != nil {
		return 0, notFound(err, name)
	}
	updated, err := fn(text)
	if err != nil {
		return 0, err
	}
	if err := writeFile(path, updated); err != nil {
		return 0, err
	}
	return len(updated), nil
}

// LoadActive concatenates active projects, truncating each to maxChars when positive.
func (s *ProjectStore) LoadActive(ctx context.Context, maxChars int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	files, err := projectFiles(s.activeDir)
	if err != nil {
		return "", err
	}

	var parts []string
	for _, fname := range files {
		content, err := readFile(filepath.Join(s.activeDir, fname))
		if err != nil {
			return "", err
		}
		if content == "" {
			continue
		}
		if maxChars > 0 && len(content) > maxChars {
			logging.Warn().
				Add(logging.Component("projects")).
				Add(logging.Str("file", fname)).
				Add(logging.Int("chars", len(content))).
				Add(logging.Int("max_chars", maxChars)).
				Msg("project file exceeds cap, truncated")
		}
		parts = append(parts, project.Truncate(content, maxChars))
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}

func projectFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), projectExt) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func listNames(dir string) ([]string, error) {
	files, err := projectFiles(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, project.DisplayName(strings.TrimSuffix(f, projectExt)))
	}
	return names, nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is built from a slug
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// writeFile replaces path atomically through a temporary file.
func writeFile(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".project-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()           // #nosec G104 -- best-effort cleanup in error path
		os.Remove(tmp.Name()) // #nosec G104 -- best-effort cleanup in error path
		return fmt.Errorf("failed to write project: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) // #nosec G104 -- best-effort cleanup in error path
		return fmt.Errorf("failed to close project: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name()) // #nosec G104 -- best-effort cleanup in error path
		return fmt.Errorf("failed to replace project: %w", err)
	}
	return nil
}

func notFound(err error, name string) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", project.ErrProjectNotFound, name)
	}
	return err
}

var _ project.Store = (*ProjectStore)(nil)
