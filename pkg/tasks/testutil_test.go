package tasks_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"concierge/pkg/protocol"
)

var errUnavailable = errors.New("service unavailable")

// fakeSource is an in-memory tasks.Source. UpdateState can be held open with
// a gate so tests can act while a mutation is in flight.
type fakeSource struct {
	mu        sync.Mutex
	tasks     []protocol.Task
	listErr   error
	updateErr error
	gate      chan struct{}
	entered   chan struct{}
	lists     int
	updates   []update
}

type update struct {
	id    string
	state protocol.TaskState
}

func (f *fakeSource) List(context.Context) ([]protocol.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]protocol.Task, len(f.tasks))
	for i, t := range f.tasks {
		out[i] = t.Clone()
	}
	return out, nil
}

func (f *fakeSource) UpdateState(ctx context.Context, id string, state protocol.TaskState) error {
	f.mu.Lock()
	f.updates = append(f.updates, update{id: id, state: state})
	gate, entered, err := f.gate, f.entered, f.updateErr
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].State = state
		}
	}
	return nil
}

func (f *fakeSource) Lists() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func (f *fakeSource) Updates() []update {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]update(nil), f.updates...)
}

func (f *fakeSource) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *fakeSource) setTasks(tasks []protocol.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = tasks
}

func sampleTasks() []protocol.Task {
	return []protocol.Task{
		{ID: "t1", Heading: "Write report", State: protocol.StateTodo, Priority: protocol.PriorityA},
		{ID: "t2", Heading: "Call plumber", State: protocol.StateNext, Priority: protocol.PriorityB},
		{ID: "t3", Heading: "Renew passport", State: protocol.StateDone},
		{ID: "t4", Heading: "Wait for parcel", State: protocol.StateWaiting, Priority: protocol.PriorityA},
	}
}

// waitFor polls condition every tick until it returns true or timeout expires.
func waitFor(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("waitFor: condition not met within %v", timeout)
}
