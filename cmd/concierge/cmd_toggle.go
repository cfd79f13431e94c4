package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"concierge/pkg/journal"
	"concierge/pkg/protocol"
	"concierge/pkg/taskapi"
	"concierge/pkg/tasks"
)

// newToggleCmd creates the "concierge toggle" subcommand.
func newToggleCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle ID",
		Short: "Flip a task between DONE and TODO",
		Long:  "Marks a DONE task TODO and any other task DONE.\nNEXT, WAITING and CANCELLED tasks become DONE.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := loadSettings(g)
			if err != nil {
				return err
			}
			log := newLogger(cmd.ErrOrStderr(), s.level)

			api, err := taskapi.New(s.cfg.Origin)
			if err != nil {
				return err
			}
			syncer := tasks.NewSynchronizer(api, tasks.WithLogger(log))

			j := openJournal(ctx, g, s, log)
			defer func() { _ = j.Close() }()

			var result tasks.MutationEvent
			syncer.OnMutation(func(ev tasks.MutationEvent) {
				result = ev
				if j == nil {
					return
				}
				detail := fmt.Sprintf("%s -> %s %s", ev.From, ev.To, ev.Outcome)
				if err := j.Record(ctx, journal.KindTask, ev.TaskID, detail); err != nil {
					log.Warn("journal write failed", "error", err)
				}
			})

			if err := syncer.Refresh(ctx); err != nil {
				return err
			}
			if err := syncer.Toggle(ctx, args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", args[0], tasks.DisplayState(protocol.Task{State: result.From}), result.To)
			return nil
		},
	}
}
