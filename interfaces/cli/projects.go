package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/echo-go/domain/project"
	"github.com/felixgeelhaar/echo-go/infrastructure/storage/filesystem"
)

// newProjectsCmd creates the projects command and its subcommands.
func (a *App) newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage project knowledge bases",
		Long: `Manage the markdown project files the agent reads and updates.

Examples:
  echo projects list
  echo projects create "Apollo Launch"
  echo projects show apollo-launch
  echo projects archive "Apollo Launch"`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List active and archived projects",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.projectStore()
				if err != nil {
					return err
				}
				active, archived, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "Active: %s\n", joinOrNone(active))
				fmt.Fprintf(a.stdout, "Archived: %s\n", joinOrNone(archived))
				return nil
			},
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a project",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.projectStore()
				if err != nil {
					return err
				}
				name, err := store.Create(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "Created %s\n", name)
				return nil
			},
		},
		&cobra.Command{
			Use:   "archive <name>",
			Short: "Archive a project",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.projectStore()
				if err != nil {
					return err
				}
				name, err := store.Archive(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "Archived %s\n", name)
				return nil
			},
		},
		a.newProjectShowCmd(),
	)

	return cmd
}

func (a *App) newProjectShowCmd() *cobra.Command {
	var archived bool
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a project file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.projectStore()
			if err != nil {
				return err
			}
			status := project.StatusActive
			if archived {
				status = project.StatusArchived
			}
			content, err := store.Read(cmd.Context(), strings.Join(args, " "), status)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, content)
			return nil
		},
	}
	cmd.Flags().BoolVar(&archived, "archived", false, "Read from the archive")
	return cmd
}

func (a *App) projectStore() (project.Store, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := filesystem.NewProjectStore(cfg.Agent.ProjectsDir)
	if err != nil {
		return nil, fmt.Errorf("open projects: %w", err)
	}
	return store, nil
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
