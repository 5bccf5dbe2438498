// Package cli provides the echo command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	echogo "github.com/felixgeelhaar/echo-go"
	"github.com/felixgeelhaar/echo-go/domain/config"
	configloader "github.com/felixgeelhaar/echo-go/infrastructure/config"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
)

// Version information set at build time.
var (
	Version   = echogo.Version
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App represents the CLI application.
type App struct {
	root       *cobra.Command
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	configPath string
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "echo",
		Short: "Voice assistant for hands-free development",
		Long: `echo is a voice assistant that talks to a coding agent.

It listens for a wake phrase, forwards what you say to the agent and reads
the answer back one sentence at a time. It pauses itself during calls and
can run multi-step routines on its own until they finish or run out of budget.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	app.root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "Path to configuration file (default: echo.yaml)")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newValidateCmd(),
		app.newRunCmd(),
		app.newStatusCmd(),
		app.newProjectsCmd(),
		app.newHistoryCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// WithInput sets the transcript input for the run command.
func (a *App) WithInput(stdin io.Reader) *App {
	a.stdin = stdin
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// loadConfig finds and loads the configuration file. Without a file the
// defaults are used as long as they validate.
func (a *App) loadConfig(opts ...configloader.LoaderOption) (*config.AssistantConfig, error) {
	path, err := configloader.Find(a.configPath)
	if err != nil {
		if a.configPath != "" {
			return nil, err
		}
		cfg := config.Default()
		return &cfg, nil
	}
	cfg, err := configloader.NewLoader(opts...).LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func (a *App) initLogging(cfg *config.AssistantConfig, verbose bool) {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logging.Init(logging.Config{Level: level, Format: cfg.Logging.Format, Output: a.stderr})
}

// newVersionCmd creates the version command.
func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "echo version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}
