package chat

import (
	"errors"
	"sync"

	"concierge/pkg/protocol"
)

// ErrDuplicateID is returned when a message id is already tracked.
var ErrDuplicateID = errors.New("message id already tracked")

// Transcript is the append-only conversation log. Entries are never removed
// or reordered. It is safe for concurrent use.
type Transcript struct {
	mu       sync.Mutex
	entries  []Entry
	byID     map[string]*Message
	typing   bool
	onChange []func()
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{byID: make(map[string]*Message)}
}

// OnChange registers fn to run after every visible change. Callbacks run
// outside the transcript lock.
func (t *Transcript) OnChange(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = append(t.onChange, fn)
}

// AppendSystem appends a system message. System messages carry no status.
func (t *Transcript) AppendSystem(text string) {
	t.mu.Lock()
	t.entries = append(t.entries, Entry{Message: &Message{Text: text, Sender: SenderSystem}})
	t.mu.Unlock()
	t.changed()
}

// AppendTaskBatch appends an inline task list with an optional header.
func (t *Transcript) AppendTaskBatch(header string, tasks []protocol.Task) {
	batch := &TaskBatch{Header: header, Tasks: make([]protocol.Task, len(tasks))}
	for i, task := range tasks {
		batch.Tasks[i] = task.Clone()
	}
	t.mu.Lock()
	t.entries = append(t.entries, Entry{Batch: batch})
	t.mu.Unlock()
	t.changed()
}

// SetTyping shows or hides the typing indicator.
func (t *Transcript) SetTyping(on bool) {
	t.mu.Lock()
	if t.typing == on {
		t.mu.Unlock()
		return
	}
	t.typing = on
	t.mu.Unlock()
	t.changed()
}

// Typing reports whether the typing indicator is shown.
func (t *Transcript) Typing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Entries returns a snapshot of the transcript that later updates do not touch.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		if e.Message != nil {
			m := *e.Message
			out[i].Message = &m
		}
		if e.Batch != nil {
			b := *e.Batch
			out[i].Batch = &b
		}
	}
	return out
}

// appendTracked appends a user message and indexes it by id.
func (t *Transcript) appendTracked(m Message) error {
	t.mu.Lock()
	if _, ok := t.byID[m.ID]; ok {
		t.mu.Unlock()
		return ErrDuplicateID
	}
	msg := &m
	t.byID[m.ID] = msg
	t.entries = append(t.entries, Entry{Message: msg})
	t.mu.Unlock()
	t.changed()
	return nil
}

// advance moves the status of message id forward to s. Unknown ids and
// non-forward moves are no-ops; the result reports whether anything changed.
func (t *Transcript) advance(id string, s Status) bool {
	t.mu.Lock()
	msg, ok := t.byID[id]
	if !ok || msg.Status >= s {
		t.mu.Unlock()
		return false
	}
	msg.Status = s
	t.mu.Unlock()
	t.changed()
	return true
}

func (t *Transcript) status(id string) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg, ok := t.byID[id]
	if !ok {
		return StatusNone, false
	}
	return msg.Status, true
}

func (t *Transcript) changed() {
	t.mu.Lock()
	fns := append([]func(){}, t.onChange...)
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
