package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"concierge/internal/appversion"
	"concierge/internal/config"
	"concierge/pkg/journal"
)

// globalFlags are shared by every subcommand and override the config file.
type globalFlags struct {
	origin    string
	journal   string
	watchDir  string
	logLevel  string
	noJournal bool
}

// newRootCmd creates the root concierge command with all subcommands attached.
func newRootCmd() *cobra.Command {
	var g globalFlags

	cmd := &cobra.Command{
		Use:           "concierge",
		Short:         "Chat and task client for a concierge service",
		Long:          "concierge keeps a chat transcript and a task list in sync with a remote\nconcierge service over a WebSocket connection and its task API.",
		Version:       fmt.Sprintf("concierge %s", appversion.Long()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.origin, "origin", "", "service origin, e.g. http://localhost:8000 (default from config)")
	pf.StringVar(&g.journal, "journal", "", "event journal database path")
	pf.StringVar(&g.watchDir, "watch", "", "refresh tasks when files under this directory change")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&g.noJournal, "no-journal", false, "do not record events")

	cmd.AddCommand(
		newChatCmd(&g),
		newTasksCmd(&g),
		newToggleCmd(&g),
		newLogCmd(&g),
		newVersionCmd(),
	)

	return cmd
}

// settings is the resolved configuration for one command run.
type settings struct {
	paths *config.Paths
	cfg   config.Config
	level slog.Level
}

// loadSettings merges defaults, the config file, env overrides and flags.
func loadSettings(g *globalFlags) (*settings, error) {
	paths, err := config.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	cfg, _, err := config.Load(paths.Home)
	if err != nil {
		return nil, err
	}

	if g.origin != "" {
		cfg.Origin = g.origin
	}
	if g.journal != "" {
		cfg.Journal = g.journal
	}
	if g.watchDir != "" {
		cfg.WatchDir = g.watchDir
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	cfg = cfg.WithDefaults(paths)

	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	return &settings{paths: paths, cfg: cfg, level: level}, nil
}

// newLogger builds the CLI's structured logger.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openLogFile opens path for appending, creating its directory.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path from config
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// openJournal opens the configured journal. A journal that cannot be opened
// is logged and skipped; it never blocks the session.
func openJournal(ctx context.Context, g *globalFlags, s *settings, log *slog.Logger) *journal.Journal {
	if g.noJournal || s.cfg.Journal == "" {
		return nil
	}
	j, err := journal.Open(ctx, s.cfg.Journal)
	if err != nil {
		log.Warn("journal disabled", "path", s.cfg.Journal, "error", err)
		return nil
	}
	return j
}

// isTerminal reports whether v is a file attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the concierge version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "concierge %s\n", appversion.Long())
			return nil
		},
	}
}
