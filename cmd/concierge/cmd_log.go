package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"concierge/pkg/journal"
)

// logConfig holds configuration for the log command.
type logConfig struct {
	kind  string
	limit int
}

// newLogCmd creates the "concierge log" subcommand.
func newLogCmd(g *globalFlags) *cobra.Command {
	var cfg logConfig

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent journal events",
		Long:  "Prints connection, message and task events from the event journal,\noldest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(g)
			if err != nil {
				return err
			}
			kind := journal.Kind(cfg.kind)
			switch kind {
			case "", journal.KindConnection, journal.KindMessage, journal.KindTask:
			default:
				return fmt.Errorf("unknown kind %q (want connection, message or task)", cfg.kind)
			}

			r, err := journal.NewReader(s.cfg.Journal)
			if err != nil {
				return err
			}
			defer r.Close()

			events, err := r.Recent(cmd.Context(), journal.QueryOpts{Kind: kind, Limit: cfg.limit})
			if err != nil {
				return err
			}
			printEvents(cmd.OutOrStdout(), events)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.kind, "kind", "", "only events of this kind: connection, message, task")
	cmd.Flags().IntVar(&cfg.limit, "limit", journal.DefaultLimit, "number of recent events to show")

	return cmd
}

// printEvents writes events in chronological order.
func printEvents(w io.Writer, events []journal.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "no events found")
		return
	}
	events = slices.Clone(events)
	slices.Reverse(events)
	for _, e := range events {
		subject := e.Subject
		if subject == "" {
			subject = "-"
		}
		fmt.Fprintf(w, "%s  %-10s  %-12s  %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Kind, subject, e.Detail)
	}
}
