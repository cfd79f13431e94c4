package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 100 * time.Millisecond

// Watcher reports changes under a directory, debounced, so the task list can
// be refreshed as soon as the files behind it change.
type Watcher struct {
	dir      string
	fs       *fsnotify.Watcher
	log      *slog.Logger
	debounce time.Duration
}

// NewWatcher starts watching dir. Callers fall back to polling alone when it
// returns an error.
func NewWatcher(dir string, log *slog.Logger) (*Watcher, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{dir: dir, fs: fw, log: log, debounce: watchDebounce}, nil
}

// Run calls onChange once per burst of filesystem events until ctx is done
// or the watcher fails. The underlying watcher is closed on return.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	defer w.fs.Close()

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			w.log.Debug("watched files changed", "dir", w.dir)
			onChange()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error, falling back to polling", "dir", w.dir, "error", err)
			return nil
		}
	}
}
