package main

import (
	"context"
	"sync"

	"concierge/pkg/chat"
	"concierge/pkg/client"
	"concierge/pkg/conn"
	"concierge/pkg/protocol"
	"concierge/pkg/tasks"
)

// fakeSession is an in-memory session. Send appends a sent user message and
// marks the connection open.
type fakeSession struct {
	updates chan struct{}

	mu        sync.Mutex
	snap      client.Snapshot
	all       []protocol.Task
	sent      []string
	toggled   []string
	refreshes int
	toggleErr error
}

func newFakeSession(all []protocol.Task) *fakeSession {
	s := &fakeSession{updates: make(chan struct{}, 1), all: all}
	s.snap.Tasks = all
	s.snap.TaskTotal = len(all)
	s.snap.TasksReady = true
	return s
}

func (s *fakeSession) Send(text string) (string, bool, error) {
	s.mu.Lock()
	s.sent = append(s.sent, text)
	id := "m" + string(rune('0'+len(s.sent)))
	s.snap.Entries = append(s.snap.Entries, chat.Entry{Message: &chat.Message{
		ID: id, Text: text, Sender: chat.SenderUser, Status: chat.StatusSent,
	}})
	s.snap.Connection = conn.Open
	s.mu.Unlock()
	s.notify()
	return id, true, nil
}

func (s *fakeSession) Toggle(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggled = append(s.toggled, id)
	return s.toggleErr
}

func (s *fakeSession) RefreshTasks(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	return nil
}

func (s *fakeSession) SetFilter(f tasks.Filter) []protocol.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Filter = f
	s.snap.Tasks = f.Apply(s.all)
	return s.snap.Tasks
}

func (s *fakeSession) Snapshot() client.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snap
	snap.Entries = append([]chat.Entry(nil), s.snap.Entries...)
	return snap
}

func (s *fakeSession) Updates() <-chan struct{} { return s.updates }

func (s *fakeSession) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func (s *fakeSession) Toggled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.toggled...)
}

func (s *fakeSession) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
