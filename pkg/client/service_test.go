package client_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"concierge/pkg/protocol"
)

// fakeService plays the concierge server: it acknowledges each chat message
// with delivered, typing, a response and read, and serves the task API.
type fakeService struct {
	*httptest.Server

	mu        sync.Mutex
	tasks     []protocol.Task
	patchCode int
	conns     []*websocket.Conn
	received  []protocol.Outgoing
}

func newFakeService(t *testing.T, tasks []protocol.Task) *fakeService {
	t.Helper()
	s := &fakeService{tasks: tasks, patchCode: http.StatusOK}

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc(protocol.WebSocketPath, func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, c)
		s.mu.Unlock()
		s.serveChat(c)
	})
	mux.HandleFunc("GET /api/tasks", func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
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
		_, _ = io.WriteString(w, `{"ok":true}`)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *fakeService) serveChat(c *websocket.Conn) {
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		var msg protocol.Outgoing
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		s.mu.Lock()
		s.received = append(s.received, msg)
		s.mu.Unlock()

		replies := []string{
			`{"type":"status_update","data":{"message_id":"` + msg.ID + `","status":"delivered"}}`,
			`{"type":"system_status","data":{"status":"typing"}}`,
			`{"type":"response","data":{"text":"echo: ` + msg.Text + `","timestamp":"2024-05-01T10:00:00"}}`,
			`{"type":"status_update","data":{"message_id":"` + msg.ID + `","status":"read"}}`,
		}
		for _, r := range replies {
			if err := c.WriteMessage(websocket.TextMessage, []byte(r)); err != nil {
				return
			}
		}
	}
}

func (s *fakeService) push(t *testing.T, frame string) {
	t.Helper()
	s.mu.Lock()
	c := s.conns[len(s.conns)-1]
	s.mu.Unlock()
	if err := c.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("push: %v", err)
	}
}

func (s *fakeService) hangUp() {
	s.mu.Lock()
	c := s.conns[len(s.conns)-1]
	s.mu.Unlock()
	_ = c.Close()
}

func (s *fakeService) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *fakeService) Received() []protocol.Outgoing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Outgoing(nil), s.received...)
}

func (s *fakeService) setPatchCode(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patchCode = code
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
