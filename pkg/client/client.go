// Package client composes the connection manager, dispatcher, message
// tracker and task synchronizer into one session that renderers drive.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"concierge/pkg/chat"
	"concierge/pkg/conn"
	"concierge/pkg/dispatch"
	"concierge/pkg/journal"
	"concierge/pkg/protocol"
	"concierge/pkg/taskapi"
	"concierge/pkg/tasks"
)

// Options configures a Client. Only Origin is required.
type Options struct {
	// Origin is the service base URL, e.g. "http://localhost:8000".
	Origin string

	// Dialer overrides the WebSocket dialer.
	Dialer conn.Dialer

	// Source overrides the HTTP task API.
	Source tasks.Source

	// Journal receives connection, message and task events when set.
	Journal *journal.Journal

	// WatchDir, when set, triggers a task refresh whenever files under it change.
	WatchDir string

	Filter          tasks.Filter
	Logger          *slog.Logger
	ReconnectDelay  time.Duration
	RefreshInterval time.Duration
}

// Snapshot is a consistent-enough view for one render pass.
type Snapshot struct {
	Entries    []chat.Entry
	Typing     bool
	Connection conn.State
	Tasks      []protocol.Task // visible after filtering
	TaskTotal  int
	TasksReady bool
	Filter     tasks.Filter
	Pending    string // task id with a toggle in flight
}

// Client is one chat and task session.
type Client struct {
	log        *slog.Logger
	transcript *chat.Transcript
	tracker    *chat.Tracker
	dispatcher *dispatch.Dispatcher
	conn       *conn.Manager
	tasks      *tasks.Synchronizer
	poller     *tasks.Poller
	sink       *journal.Sink
	watchDir   string
	updates    chan struct{}
}

// New wires a Client. Nothing touches the network until Run.
func New(opts Options) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	wsURL, err := conn.WebSocketURL(opts.Origin)
	if err != nil {
		return nil, err
	}
	src := opts.Source
	if src == nil {
		api, err := taskapi.New(opts.Origin)
		if err != nil {
			return nil, err
		}
		src = api
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = conn.WebSocketDialer{}
	}

	c := &Client{
		log:        log,
		transcript: chat.NewTranscript(),
		watchDir:   opts.WatchDir,
		updates:    make(chan struct{}, 1),
	}
	if opts.Journal != nil {
		c.sink = journal.NewSink(opts.Journal, 0, log.With("component", "journal"))
	}

	c.tracker = chat.NewTracker(c.transcript, log.With("component", "chat"))
	c.dispatcher = dispatch.New(c.tracker, c.transcript, log.With("component", "dispatch"))

	connOpts := []conn.Option{
		conn.WithLogger(log.With("component", "conn")),
		conn.WithMessageHandler(c.dispatcher.Dispatch),
		conn.WithStateObserver(c.onConnState),
	}
	if opts.ReconnectDelay > 0 {
		connOpts = append(connOpts, conn.WithReconnectDelay(opts.ReconnectDelay))
	}
	c.conn = conn.New(wsURL, dialer, connOpts...)

	c.tasks = tasks.NewSynchronizer(src,
		tasks.WithLogger(log.With("component", "tasks")),
		tasks.WithFilter(opts.Filter),
	)
	c.poller = tasks.NewPoller(c.tasks, opts.RefreshInterval)

	c.transcript.OnChange(c.notify)
	c.tasks.OnChange(c.notify)
	c.tracker.OnStatusChange(c.onStatus)
	c.tasks.OnMutation(c.onMutation)

	return c, nil
}

// Run connects, polls tasks and (optionally) watches WatchDir until ctx is
// done. It returns after every background loop has stopped.
func (c *Client) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.conn.Run(ctx) })
	g.Go(func() error { return c.poller.Run(ctx) })
	if c.sink != nil {
		g.Go(func() error { return c.sink.Run(ctx) })
	}
	if c.watchDir != "" {
		w, err := tasks.NewWatcher(c.watchDir, c.log.With("component", "watch"))
		if err != nil {
			c.log.Warn("file watch disabled, polling only", "error", err)
		} else {
			g.Go(func() error { return w.Run(ctx, c.poller.Trigger) })
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("client: %w", err)
	}
	return nil
}

// Send records text as an outgoing message and transmits it when connected.
// Blank input is ignored and returns an empty id. A message that could not
// be transmitted stays in the transcript with its sent badge.
func (c *Client) Send(text string) (id string, transmitted bool, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false, nil
	}
	id = chat.NewMessageID()
	if err := c.tracker.RecordOutgoing(id, text); err != nil {
		return "", false, err
	}
	return id, c.conn.Send(protocol.NewOutgoing(id, text)), nil
}

// Toggle flips a task between DONE and TODO. See tasks.Synchronizer.Toggle.
func (c *Client) Toggle(ctx context.Context, id string) error {
	return c.tasks.Toggle(ctx, id)
}

// RefreshTasks fetches the task list now.
func (c *Client) RefreshTasks(ctx context.Context) error {
	return c.tasks.Refresh(ctx)
}

// SetFilter replaces the task filter and returns the visible tasks.
func (c *Client) SetFilter(f tasks.Filter) []protocol.Task {
	return c.tasks.ApplyFilter(f)
}

// Reconnect drops the current connection; it comes back after the
// reconnect delay.
func (c *Client) Reconnect() {
	c.conn.Close()
}

// Status returns the tracked delivery status of a sent message.
func (c *Client) Status(id string) (chat.Status, bool) {
	return c.tracker.Status(id)
}

// Updates signals after visible changes. Signals coalesce; receivers should
// take a fresh Snapshot on each one.
func (c *Client) Updates() <-chan struct{} {
	return c.updates
}

// Snapshot returns the current state for rendering.
func (c *Client) Snapshot() Snapshot {
	pending, _ := c.tasks.Pending()
	all := c.tasks.Tasks()
	f := c.tasks.Filter()
	return Snapshot{
		Entries:    c.transcript.Entries(),
		Typing:     c.transcript.Typing(),
		Connection: c.conn.State(),
		Tasks:      f.Apply(all),
		TaskTotal:  len(all),
		TasksReady: c.tasks.Loaded(),
		Filter:     f,
		Pending:    pending,
	}
}

func (c *Client) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// onConnState runs with the connection manager locked.
func (c *Client) onConnState(s conn.State) {
	c.sink.Post(journal.KindConnection, "", s.String())
	c.notify()
}

func (c *Client) onStatus(id string, s chat.Status) {
	c.sink.Post(journal.KindMessage, id, s.String())
}

func (c *Client) onMutation(ev tasks.MutationEvent) {
	detail := fmt.Sprintf("%s -> %s %s", displayState(ev.From), displayState(ev.To), ev.Outcome)
	if ev.Err != nil {
		detail += ": " + ev.Err.Error()
	}
	c.sink.Post(journal.KindTask, ev.TaskID, detail)
}

func displayState(s protocol.TaskState) string {
	if s == "" {
		return "(none)"
	}
	return string(s)
}
