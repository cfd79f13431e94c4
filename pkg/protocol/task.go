package protocol

import (
	"encoding/json"
	"fmt"
)

// TaskState is the org-style keyword of a task.
type TaskState string

// Task state constants.
const (
	StateTodo      TaskState = "TODO"
	StateNext      TaskState = "NEXT"
	StateWaiting   TaskState = "WAITING"
	StateDone      TaskState = "DONE"
	StateCancelled TaskState = "CANCELLED"
)

// States lists every task state in display order.
func States() []TaskState {
	return []TaskState{StateTodo, StateNext, StateWaiting, StateDone, StateCancelled}
}

// Valid reports whether s is one of the five known states.
func (s TaskState) Valid() bool {
	switch s {
	case StateTodo, StateNext, StateWaiting, StateDone, StateCancelled:
		return true
	}
	return false
}

// Priority is an org-style priority cookie. Empty means unset.
type Priority string

// Priority constants.
const (
	PriorityA Priority = "A"
	PriorityB Priority = "B"
	PriorityC Priority = "C"
	PriorityD Priority = "D"
)

// Valid reports whether p is one of A through D.
func (p Priority) Valid() bool {
	switch p {
	case PriorityA, PriorityB, PriorityC, PriorityD:
		return true
	}
	return false
}

// Task is a single task record as served by the task API.
type Task struct {
	ID        string    `json:"id"`
	Heading   string    `json:"heading"`
	State     TaskState `json:"todo,omitempty"`
	Priority  Priority  `json:"priority,omitempty"`
	Deadline  string    `json:"deadline,omitempty"`
	Scheduled string    `json:"scheduled,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
}

// UnmarshalJSON accepts the state under either "todo" (task API) or "state"
// (chat task_list payloads). "todo" wins when both are present.
func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	var aux struct {
		plain
		Alt TaskState `json:"state"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("decode task: %w", err)
	}
	*t = Task(aux.plain)
	if t.State == "" {
		t.State = aux.Alt
	}
	return nil
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	if t.Tags != nil {
		t.Tags = append([]string(nil), t.Tags...)
	}
	return t
}
