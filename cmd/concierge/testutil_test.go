package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"concierge/pkg/protocol"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// taskServer serves the task API from an in-memory list.
type taskServer struct {
	*httptest.Server

	mu        sync.Mutex
	tasks     []protocol.Task
	patchCode int
}

func newTaskServer(t *testing.T, tasks []protocol.Task) *taskServer {
	t.Helper()
	s := &taskServer{tasks: tasks, patchCode: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tasks", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(s.tasks)
	})
	mux.HandleFunc("PATCH /api/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			State protocol.TaskState `json:"state"`
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.patchCode != http.StatusOK {
			http.Error(w, "rejected", s.patchCode)
			return
		}
		for i := range s.tasks {
			if s.tasks[i].ID == r.PathValue("id") {
				s.tasks[i].State = body.State
			}
		}
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func sampleTasks() []protocol.Task {
	return []protocol.Task{
		{ID: "t1", Heading: "Write report", State: protocol.StateTodo, Priority: protocol.PriorityA, Deadline: "2024-05-01"},
		{ID: "t2", Heading: "Call plumber", State: protocol.StateNext},
		{ID: "t3", Heading: "Renew passport", State: protocol.StateDone, Tags: []string{"admin"}},
	}
}

// isolate points every concierge path at a temp dir for one test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("CONCIERGE_HOME", home)
	t.Setenv("CONCIERGE_JOURNAL", "")
	t.Setenv("CONCIERGE_LOG", "")
	t.Setenv("CONCIERGE_ORIGIN", "")
	return home
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out syncBuffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
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
