package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"concierge/pkg/client"
	"concierge/pkg/tasks"
)

// chatConfig holds configuration for the chat command.
type chatConfig struct {
	plain  bool
	linger time.Duration
}

// newChatCmd creates the "concierge chat" subcommand.
func newChatCmd(g *globalFlags) *cobra.Command {
	var cfg chatConfig

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive chat and task session",
		Long: "Connects to the concierge service and opens a full-screen chat with the\n" +
			"task list beside it. When stdin or stdout is not a terminal (or with\n" +
			"--plain) it runs in line mode: each input line is sent as a message and\n" +
			"replies are printed as they arrive.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(g)
			if err != nil {
				return err
			}
			filter, err := tasks.ParseFilter(s.cfg.Filter)
			if err != nil {
				return err
			}

			tui := !cfg.plain && isTerminal(cmd.InOrStdin()) && isTerminal(cmd.OutOrStdout())

			// The TUI owns the terminal, so logs go to a file.
			var logW io.Writer = cmd.ErrOrStderr()
			if tui {
				f, err := openLogFile(s.paths.LogPath)
				if err != nil {
					return err
				}
				defer f.Close()
				logW = f
			}
			log := newLogger(logW, s.level)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			j := openJournal(ctx, g, s, log)
			defer func() { _ = j.Close() }()

			c, err := client.New(client.Options{
				Origin:   s.cfg.Origin,
				Journal:  j,
				WatchDir: s.cfg.WatchDir,
				Filter:   filter,
				Logger:   log,
			})
			if err != nil {
				return err
			}

			runErr := make(chan error, 1)
			go func() { runErr <- c.Run(ctx) }()

			if tui {
				err = runTUI(ctx, c, s.cfg.Origin)
			} else {
				out := newConsole(cmd.OutOrStdout(), isTerminal(cmd.OutOrStdout()))
				err = runLineMode(ctx, c, cmd.InOrStdin(), out, s.cfg.Origin, cfg.linger)
			}

			cancel()
			return errors.Join(err, <-runErr)
		},
	}

	cmd.Flags().BoolVar(&cfg.plain, "plain", false, "line mode even on a terminal")
	cmd.Flags().DurationVar(&cfg.linger, "linger", 3*time.Second, "line mode: keep printing replies this long after stdin closes")

	return cmd
}
