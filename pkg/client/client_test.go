package client_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"concierge/pkg/chat"
	"concierge/pkg/client"
	"concierge/pkg/conn"
	"concierge/pkg/journal"
	"concierge/pkg/protocol"
	"concierge/pkg/tasks"
)

func sampleTasks() []protocol.Task {
	return []protocol.Task{
		{ID: "t1", Heading: "Write report", State: protocol.StateTodo, Priority: protocol.PriorityA},
		{ID: "t2", Heading: "Call plumber", State: protocol.StateNext},
	}
}

// startClient runs a client against svc until the test ends.
func startClient(t *testing.T, svc *fakeService, opts client.Options) *client.Client {
	t.Helper()
	opts.Origin = svc.URL
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = 20 * time.Millisecond
	}
	c, err := client.New(opts)
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Run did not return after cancel")
		}
	})
	return c
}

func TestNew_RejectsBadOrigin(t *testing.T) {
	t.Parallel()

	if _, err := client.New(client.Options{Origin: "ftp://nowhere"}); err == nil {
		t.Fatal("expected error for unsupported origin")
	}
}

func TestSend_MessageGoesFromSentToRead(t *testing.T) {
	t.Parallel()

	svc := newFakeService(t, sampleTasks())
	c := startClient(t, svc, client.Options{})

	waitFor(t, func() bool { return c.Snapshot().Connection == conn.Open }, 2*time.Second)

	id, transmitted, err := c.Send("  hello there  ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !transmitted || len(id) != 12 {
		t.Fatalf("Send = %q, %v", id, transmitted)
	}

	waitFor(t, func() bool {
		s, _ := c.Status(id)
		return s == chat.StatusRead
	}, 2*time.Second)

	// The read receipt follows the response on the wire, so both are applied.
	snap := c.Snapshot()
	if len(snap.Entries) != 2 {
		t.Fatalf("transcript has %d entries, want 2", len(snap.Entries))
	}
	if reply := snap.Entries[1].Message; reply == nil || reply.Text != "echo: hello there" || reply.Sender != chat.SenderSystem {
		t.Errorf("reply = %+v", snap.Entries[1])
	}
	if snap.Typing {
		t.Error("typing indicator still shown after response")
	}
	first := snap.Entries[0].Message
	if first.Text != "hello there" || first.Sender != chat.SenderUser || first.Status.Badge() != "✓✓" {
		t.Errorf("user message = %+v", first)
	}

	got := svc.Received()
	if len(got) != 1 || got[0].Type != protocol.TypeMessage || got[0].ID != id || got[0].Text != "hello there" {
		t.Errorf("service received %+v", got)
	}
}

func TestSend_BlankInputIgnored(t *testing.T) {
	t.Parallel()

	svc := newFakeService(t, nil)
	c, err := client.New(client.Options{Origin: svc.URL})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}

	id, transmitted, err := c.Send(" \t\n")
	if err != nil || id != "" || transmitted {
		t.Errorf("Send(blank) = %q, %v, %v", id, transmitted, err)
	}
	if n := len(c.Snapshot().Entries); n != 0 {
		t.Errorf("transcript has %d entries", n)
	}
}

func TestSend_WhileDisconnectedKeepsSentBadge(t *testing.T) {
	t.Parallel()

	svc := newFakeService(t, nil)
	c, err := client.New(client.Options{Origin: svc.URL})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}

	id, transmitted, err := c.Send("offline note")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if transmitted {
		t.Error("message reported transmitted before connecting")
	}
	if s, ok := c.Status(id); !ok || s != chat.StatusSent {
		t.Errorf("Status = %v, %v", s, ok)
	}
	if len(svc.Received()) != 0 {
		t.Error("service received a message while disconnected")
	}
}

func TestRun_ReconnectsAfterServerHangUp(t *testing.T) {
	t.Parallel()

	svc := newFakeService(t, nil)
	c := startClient(t, svc, client.Options{})

	waitFor(t, func() bool { return c.Snapshot().Connection == conn.Open }, 2*time.Second)
	svc.hangUp()
	waitFor(t, func() bool { return svc.Accepted() == 2 && c.Snapshot().Connection == conn.Open }, 2*time.Second)
}

func TestDispatch_TaskListAndErrorEnvelopes(t *testing.T) {
	t.Parallel()

	svc := newFakeService(t, nil)
	c := startClient(t, svc, client.Options{})
	waitFor(t, func() bool { return c.Snapshot().Connection == conn.Open }, 2*time.Second)

	svc.push(t, `{"type":"task_list","data":{"header":"Today","tasks":[{"id":"x","heading":"Stretch","state":"NEXT"}]}}`)
	svc.push(t, `{"type":"bogus","data":{}}`)
	svc.push(t, `{"type":"error","data":{"message":"backend offline"}}`)

	waitFor(t, func() bool { return len(c.Snapshot().Entries) == 2 }, 2*time.Second)
	entries := c.Snapshot().Entries
	if b := entries[0].Batch; b == nil || b.Header != "Today" || len(b.Tasks) != 1 || b.Tasks[0].State != protocol.StateNext {
		t.Errorf("batch entry = %+v", entries[0])
	}
	if m := entries[1].Message; m == nil || m.Text != "backend offline" || m.Sender != chat.SenderSystem {
		t.Errorf("error entry = %+v", entries[1])
	}
}

func TestTasks_PolledToggledAndJournaled(t *testing.T) {
	t.Parallel()

	j, err := journal.Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	// Registered before startClient so it runs after the client stops.
	t.Cleanup(func() { _ = j.Close() })

	svc := newFakeService(t, sampleTasks())
	c := startClient(t, svc, client.Options{Journal: j, RefreshInterval: time.Hour})

	waitFor(t, func() bool { return c.Snapshot().TasksReady }, 2*time.Second)
	if snap := c.Snapshot(); snap.TaskTotal != 2 || len(snap.Tasks) != 2 {
		t.Fatalf("tasks = %+v", snap.Tasks)
	}

	if err := c.Toggle(context.Background(), "t1"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if got := c.Snapshot().Tasks[0].State; got != protocol.StateDone {
		t.Errorf("t1 = %q after committed toggle", got)
	}

	svc.setPatchCode(http.StatusInternalServerError)
	if err := c.Toggle(context.Background(), "t2"); err == nil {
		t.Fatal("expected toggle failure")
	}
	if got := c.Snapshot().Tasks[1].State; got != protocol.StateNext {
		t.Errorf("t2 = %q after rollback, want NEXT", got)
	}

	visible := c.SetFilter(tasks.Filter{State: protocol.StateDone})
	if len(visible) != 1 || visible[0].ID != "t1" {
		t.Errorf("filtered = %+v", visible)
	}
	if snap := c.Snapshot(); snap.TaskTotal != 2 || len(snap.Tasks) != 1 {
		t.Errorf("snapshot after filter: total=%d visible=%d", snap.TaskTotal, len(snap.Tasks))
	}

	waitFor(t, func() bool {
		events, err := j.Recent(context.Background(), journal.QueryOpts{Kind: journal.KindTask})
		return err == nil && len(events) == 4
	}, 2*time.Second)
	events, _ := j.Recent(context.Background(), journal.QueryOpts{Kind: journal.KindTask, Limit: 1})
	if !strings.HasPrefix(events[0].Detail, "NEXT -> DONE rolled_back") && !strings.HasPrefix(events[0].Detail, "DONE -> NEXT rolled_back") {
		t.Errorf("latest task event = %q", events[0].Detail)
	}

	waitFor(t, func() bool {
		conns, err := j.Recent(context.Background(), journal.QueryOpts{Kind: journal.KindConnection})
		return err == nil && len(conns) >= 2
	}, 2*time.Second)
}

func TestUpdates_SignalsOnChange(t *testing.T) {
	t.Parallel()

	svc := newFakeService(t, nil)
	c, err := client.New(client.Options{Origin: svc.URL})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}

	if _, _, err := c.Send("ping"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case <-c.Updates():
	case <-time.After(time.Second):
		t.Fatal("no update signal after Send")
	}
}

func TestToggle_UnknownTask(t *testing.T) {
	t.Parallel()

	svc := newFakeService(t, sampleTasks())
	c, err := client.New(client.Options{Origin: svc.URL})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	if err := c.RefreshTasks(context.Background()); err != nil {
		t.Fatalf("RefreshTasks: %v", err)
	}
	if err := c.Toggle(context.Background(), "missing"); !errors.Is(err, tasks.ErrTaskNotFound) {
		t.Errorf("Toggle error = %v", err)
	}
}
