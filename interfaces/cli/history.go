package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/echo-go/application"
	"github.com/felixgeelhaar/echo-go/domain/history"
)

// historyOptions holds options for the history command.
type historyOptions struct {
	limit      int
	since      time.Duration
	routines   bool
	jsonOutput bool
}

// newHistoryCmd creates the history command.
func (a *App) newHistoryCmd() *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded state transitions or routine runs",
		Long: `Show the assistant's recorded history from the configured store.

Examples:
  # Last 20 state transitions
  echo history --limit 20

  # Routine runs from the past day as JSON
  echo history --routines --since 24h --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.showHistory(cmd.Context(), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Show only the most recent records (0 = all)")
	cmd.Flags().DurationVar(&opts.since, "since", 0, "Show records newer than this duration")
	cmd.Flags().BoolVar(&opts.routines, "routines", false, "Show routine runs instead of transitions")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func (a *App) showHistory(ctx context.Context, opts *historyOptions) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	store, err := application.OpenHistory(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer func() { _ = store.Close() }()

	filter := history.ListFilter{Limit: opts.limit}
	if opts.since > 0 {
		filter.Since = time.Now().Add(-opts.since)
	}

	var records any
	if opts.routines {
		runs, err := store.Routines(ctx, filter)
		if err != nil {
			return err
		}
		records = runs
		if !opts.jsonOutput {
			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tROUTINE\tOUTCOME\tSTEPS\tDURATION")
			for _, r := range runs {
				outcome := string(r.Outcome)
				if r.Budget != "" {
					outcome += " (" + string(r.Budget) + ")"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					r.StartedAt.Local().Format(time.DateTime), r.Name, outcome, r.Steps, r.Duration.Round(time.Second))
			}
			return w.Flush()
		}
	} else {
		trs, err := store.Transitions(ctx, filter)
		if err != nil {
			return err
		}
		records = trs
		if !opts.jsonOutput {
			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "AT\tFROM\tTO\tTRIGGER")
			for _, t := range trs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.At.Local().Format(time.DateTime), t.From, t.To, t.Trigger)
			}
			return w.Flush()
		}
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
