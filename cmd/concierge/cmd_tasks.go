package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"concierge/pkg/taskapi"
	"concierge/pkg/tasks"
)

// tasksConfig holds configuration for the tasks command.
type tasksConfig struct {
	state    string
	priority string
	asJSON   bool
}

// newTasksCmd creates the "concierge tasks" subcommand.
func newTasksCmd(g *globalFlags) *cobra.Command {
	var cfg tasksConfig

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks once",
		Long:  "Fetches the task list from the service and prints it.\n--state and --priority override the configured default filter.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(g)
			if err != nil {
				return err
			}
			filter, err := resolveFilter(s.cfg.Filter, cfg.state, cfg.priority)
			if err != nil {
				return err
			}

			api, err := taskapi.New(s.cfg.Origin)
			if err != nil {
				return err
			}
			all, err := api.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}
			visible := filter.Apply(all)

			if cfg.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(visible)
			}
			printTaskList(newConsole(cmd.OutOrStdout(), false), visible, len(all))
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.state, "state", "", "only tasks in this state (TODO, NEXT, WAITING, DONE, CANCELLED)")
	cmd.Flags().StringVar(&cfg.priority, "priority", "", "only tasks with this priority (A-D)")
	cmd.Flags().BoolVar(&cfg.asJSON, "json", false, "print tasks as JSON")

	return cmd
}

// resolveFilter starts from the configured filter query and applies flag
// overrides on top.
func resolveFilter(query, state, priority string) (tasks.Filter, error) {
	f, err := tasks.ParseFilter(query)
	if err != nil {
		return tasks.Filter{}, fmt.Errorf("configured filter: %w", err)
	}
	if state != "" {
		override, err := tasks.ParseFilter("s:" + state)
		if err != nil {
			return tasks.Filter{}, fmt.Errorf("--state: %w", err)
		}
		f.State = override.State
	}
	if priority != "" {
		override, err := tasks.ParseFilter("p:" + priority)
		if err != nil {
			return tasks.Filter{}, fmt.Errorf("--priority: %w", err)
		}
		f.Priority = override.Priority
	}
	return f, nil
}

