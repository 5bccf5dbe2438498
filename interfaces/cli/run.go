package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/echo-go/application"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
)

// runOptions holds options for the run command.
type runOptions struct {
	backend string
	verbose bool
	noCalls bool
}

// newRunCmd creates the run command.
func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the assistant",
		Long: `Start the assistant and read transcripts from stdin.

Each input line is one final transcript. A line starting with the wake
phrase wakes the assistant. A line of dots taps the interrupt hotkey once
per dot, a line starting with "~" is a partial transcript checked for
interrupt phrases, and "/quit" stops the assistant.

Examples:
  # Run with the default configuration file
  echo run

  # Run against canned replies without an agent
  echo run -c echo.yaml --backend scripted

  # Run with call detection disabled and debug logging
  echo run --no-calls -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAssistant(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.backend, "backend", "", "Agent backend (overrides config)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().BoolVar(&opts.noCalls, "no-calls", false, "Disable call detection")

	return cmd
}

// runAssistant builds the app and runs it until interrupted or quit.
func (a *App) runAssistant(ctx context.Context, opts *runOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if opts.backend != "" {
		cfg.Agent.Backend = opts.backend
	}
	if opts.noCalls {
		cfg.Call.Enabled = false
	}
	a.initLogging(cfg, opts.verbose)

	app, err := application.New(ctx, cfg,
		application.WithVersion(Version),
		application.WithInput(a.stdin),
		application.WithOutput(a.stdout),
		application.WithStatusOutput(a.stderr),
	)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	logging.Info().
		Add(logging.Component("cli")).
		Add(logging.Str("backend", cfg.Agent.Backend)).
		Add(logging.Str("wake_phrase", cfg.Voice.WakePhrase)).
		Msg("assistant starting")

	runErr := app.Run(ctx)
	if err := app.Close(context.Background()); err != nil {
		logging.Warn().Add(logging.Component("cli")).Add(logging.ErrorField(err)).Msg("shutdown incomplete")
	}
	return runErr
}
