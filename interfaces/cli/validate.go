package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	configloader "github.com/felixgeelhaar/echo-go/infrastructure/config"
)

// validateOptions holds options for the validate command.
type validateOptions struct {
	strict bool
}

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate an assistant configuration file for correctness.

This command checks:
  - File format (YAML or JSON)
  - Field types and constraints
  - Routine definitions and trigger phrases
  - Environment variable references (in strict mode)

Examples:
  # Validate a configuration file
  echo validate -c echo.yaml

  # Strict validation (fail on missing env vars)
  echo validate -c echo.yaml --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.validateConfig(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Enable strict validation (fail on missing env vars)")

	return cmd
}

// validateConfig validates the configuration file.
func (a *App) validateConfig(opts *validateOptions) error {
	if a.configPath == "" {
		return fmt.Errorf("configuration file path is required (-c flag)")
	}

	cfg, err := a.loadConfig(configloader.WithValidation(true), configloader.WithStrictEnv(opts.strict))
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(a.stdout, "✓ Configuration is valid\n")
	fmt.Fprintf(a.stdout, "  Name: %s\n", cfg.Name)
	fmt.Fprintf(a.stdout, "  Agent backend: %s\n", cfg.Agent.Backend)
	fmt.Fprintf(a.stdout, "  Wake phrase: %s\n", cfg.Voice.WakePhrase)

	fmt.Fprintf(a.stdout, "\nConfiguration summary:\n")
	fmt.Fprintf(a.stdout, "  Conversation window: %s\n", cfg.Voice.ConversationWindow.Duration())
	fmt.Fprintf(a.stdout, "  Routine budget: %d steps, %d minutes\n", cfg.Autonomous.MaxSteps, cfg.Autonomous.MaxMinutes)

	if len(cfg.Autonomous.Routines) > 0 {
		fmt.Fprintf(a.stdout, "  Routines: %d\n", len(cfg.Autonomous.Routines))
		for _, r := range cfg.Autonomous.Routines {
			fmt.Fprintf(a.stdout, "    - %s (%s)\n", r.Name, strings.Join(r.TriggerPhrases, ", "))
		}
	}

	if cfg.Call.Enabled {
		fmt.Fprintf(a.stdout, "  Call detection: %s (%s)\n", cfg.Call.Source, strings.Join(cfg.Call.Apps, ", "))
	}

	fmt.Fprintf(a.stdout, "  History: %s\n", cfg.Storage.Backend)

	if cfg.Control.MCP != "off" {
		fmt.Fprintf(a.stdout, "  MCP control: %s\n", cfg.Control.MCP)
	}
	if cfg.Control.WebSocketAddr != "" {
		fmt.Fprintf(a.stdout, "  WebSocket bridge: %s\n", cfg.Control.WebSocketAddr)
	}
	if cfg.Notify.WebhookURL != "" {
		fmt.Fprintf(a.stdout, "  Webhook notifications: enabled\n")
	}

	return nil
}
