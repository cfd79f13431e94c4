package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"concierge/pkg/chat"
	"concierge/pkg/client"
	"concierge/pkg/conn"
	"concierge/pkg/protocol"
	"concierge/pkg/tasks"
)

// session is the part of client.Client the front ends drive.
type session interface {
	Send(text string) (string, bool, error)
	Toggle(ctx context.Context, id string) error
	RefreshTasks(ctx context.Context) error
	SetFilter(f tasks.Filter) []protocol.Task
	Snapshot() client.Snapshot
	Updates() <-chan struct{}
}

const lineHelp = `commands:
  /tasks            list visible tasks
  /toggle ID        flip a task between DONE and TODO
  /filter s:S p:P   filter tasks (empty clears)
  /refresh          fetch tasks now
  /quit             exit
anything else is sent as a chat message`

// lineRenderer prints the parts of a snapshot that changed since the last
// call. It assumes the transcript only grows.
type lineRenderer struct {
	out       *console
	printed   int
	status    map[string]chat.Status
	indicator string
	typing    bool
}

func newLineRenderer(out *console) *lineRenderer {
	return &lineRenderer{out: out, status: make(map[string]chat.Status)}
}

func (r *lineRenderer) render(s client.Snapshot) {
	if ind := s.Connection.Indicator(); ind != r.indicator {
		if r.indicator != "" || ind == conn.IndicatorConnected {
			r.out.Line("● " + ind)
		}
		r.indicator = ind
	}

	for i, e := range s.Entries {
		if i < r.printed {
			if m := e.Message; m != nil && m.Sender == chat.SenderUser && m.Status != r.status[m.ID] {
				r.out.Linef("%s %s", m.Status.Badge(), m.Text)
				r.status[m.ID] = m.Status
			}
			continue
		}
		r.entry(e)
	}
	r.printed = len(s.Entries)

	if s.Typing != r.typing {
		if s.Typing {
			r.out.Line("concierge is typing…")
		}
		r.typing = s.Typing
	}
}

func (r *lineRenderer) entry(e chat.Entry) {
	switch {
	case e.Message != nil && e.Message.Sender == chat.SenderUser:
		r.out.Linef("you: %s %s", e.Message.Text, e.Message.Status.Badge())
		r.status[e.Message.ID] = e.Message.Status
	case e.Message != nil:
		r.out.Line("concierge: " + e.Message.Text)
	case e.Batch != nil:
		if e.Batch.Header != "" {
			r.out.Line(e.Batch.Header)
		}
		if len(e.Batch.Tasks) == 0 {
			r.out.Line(tasks.EmptyBatchMessage)
		}
		for _, t := range e.Batch.Tasks {
			r.out.Line(plainCard(tasks.NewCard(t)))
		}
	}
}

// printTaskList writes the visible tasks the way the task pane shows them.
func printTaskList(out *console, visible []protocol.Task, total int) {
	out.Line(tasks.CountLabel(len(visible)))
	if len(visible) == 0 {
		out.Line(tasks.EmptyMessage(total))
		return
	}
	for _, t := range visible {
		out.Line(plainCard(tasks.NewCard(t)))
	}
}

// runLineMode reads commands and messages from in until EOF, /quit or ctx
// ends. After EOF it keeps printing updates for linger so replies to piped
// input are shown.
func runLineMode(ctx context.Context, s session, in io.Reader, out *console, origin string, linger time.Duration) error {
	r := newLineRenderer(out)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	stopSpinner := out.StartSpinner("Connecting to " + origin)
	connected := false
	defer func() { stopSpinner(connected) }()

	var lingerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-lingerC:
			return nil
		case <-s.Updates():
			snap := s.Snapshot()
			if snap.Connection == conn.Open && !connected {
				connected = true
				stopSpinner(true)
			}
			r.render(snap)
		case line, ok := <-lines:
			if !ok {
				lines = nil
				lingerC = time.After(linger)
				continue
			}
			if quit := handleLine(ctx, s, out, line); quit {
				return nil
			}
		}
	}
}

// handleLine runs one line of input and reports whether to quit.
func handleLine(ctx context.Context, s session, out *console, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		out.Line(lineHelp)
	case "/tasks":
		snap := s.Snapshot()
		printTaskList(out, snap.Tasks, snap.TaskTotal)
	case "/filter":
		f, err := tasks.ParseFilter(arg)
		if err != nil {
			out.Line("filter: " + err.Error())
			return false
		}
		visible := s.SetFilter(f)
		printTaskList(out, visible, s.Snapshot().TaskTotal)
	case "/toggle":
		if arg == "" {
			out.Line("usage: /toggle ID")
			return false
		}
		go func() {
			if err := s.Toggle(ctx, arg); err != nil {
				if errors.Is(err, tasks.ErrMutationInFlight) {
					out.Line("toggle: another update is still in flight")
					return
				}
				out.Line("toggle: " + err.Error())
				return
			}
			out.Linef("toggle %s: saved", arg)
		}()
	case "/refresh":
		go func() {
			if err := s.RefreshTasks(ctx); err != nil {
				out.Line("refresh: " + err.Error())
			}
		}()
	default:
		if _, _, err := s.Send(line); err != nil {
			out.Line("send: " + err.Error())
		}
	}
	return false
}
