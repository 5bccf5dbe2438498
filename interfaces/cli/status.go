package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/echo-go/infrastructure/control"
)

// statusOptions holds options for the status command.
type statusOptions struct {
	addr       string
	jsonOutput bool
	timeout    time.Duration
}

// newStatusCmd creates the status command.
func (a *App) newStatusCmd() *cobra.Command {
	opts := &statusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running assistant",
		Long: `Connect to a running assistant's WebSocket bridge and print its status.

The address defaults to control.websocket_addr from the configuration.

Examples:
  echo status
  echo status --addr localhost:7070 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.showStatus(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "WebSocket bridge address (host:port)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output status as JSON")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "Connection timeout")

	return cmd
}

func (a *App) showStatus(ctx context.Context, opts *statusOptions) error {
	addr := opts.addr
	if addr == "" {
		cfg, err := a.loadConfig()
		if err != nil {
			return err
		}
		addr = cfg.Control.WebSocketAddr
	}
	if addr == "" {
		return fmt.Errorf("no bridge address: set control.websocket_addr or pass --addr")
	}

	report, err := fetchStatus(ctx, "ws://"+addr+"/ws", opts.timeout)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(a.stdout, "State: %s\n", report.Label)
	if report.Text != "" {
		fmt.Fprintf(a.stdout, "Status: %s\n", report.Text)
	}
	fmt.Fprintf(a.stdout, "Call active: %t\n", report.CallActive)
	for _, c := range report.Calls {
		if c.Active {
			fmt.Fprintf(a.stdout, "  %s since %s\n", c.App, c.Since.Local().Format(time.Kitchen))
		}
	}
	if report.PauseCause != "" {
		fmt.Fprintf(a.stdout, "Paused by: %s\n", report.PauseCause)
	}
	return nil
}

// fetchStatus reads the status frame the bridge sends on connect.
func fetchStatus(ctx context.Context, url string, timeout time.Duration) (control.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return control.Report{}, fmt.Errorf("connect to %s: %w", url, err)
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	var msg control.Message
	if err := conn.ReadJSON(&msg); err != nil {
		return control.Report{}, fmt.Errorf("read status: %w", err)
	}
	if msg.Type != control.TypeStatus || msg.Status == nil {
		return control.Report{}, fmt.Errorf("unexpected message %q", msg.Type)
	}
	return *msg.Status, nil
}
