package tasks

import (
	"fmt"
	"strings"

	"concierge/pkg/protocol"
)

// StateColors is the pill color for each state.
var StateColors = map[protocol.TaskState]string{ //nolint:gochecknoglobals // read-only palette
	protocol.StateTodo:      "#5e81ac",
	protocol.StateNext:      "#a3be8c",
	protocol.StateWaiting:   "#ebcb8b",
	protocol.StateDone:      "#8fbcbb",
	protocol.StateCancelled: "#bf616a",
}

// PriorityColors is the badge color for each priority.
var PriorityColors = map[protocol.Priority]string{ //nolint:gochecknoglobals // read-only palette
	protocol.PriorityA: "#bf616a",
	protocol.PriorityB: "#d08770",
	protocol.PriorityC: "#ebcb8b",
	protocol.PriorityD: "#8888a0",
}

const (
	defaultStateColor = "#5e81ac"
	untitled          = "Untitled"
	metaSeparator     = "  ·  "
)

// Card is the render-ready derivation of a task.
type Card struct {
	ID            string
	State         protocol.TaskState
	StateColor    string
	Heading       string
	Done          bool   // strike through and dim the heading
	Priority      string // empty when no badge is shown
	PriorityColor string
	Meta          string // empty when the task has no metadata
	ToggleHint    string
}

// DisplayState is the state shown for t; tasks without a keyword show TODO.
func DisplayState(t protocol.Task) protocol.TaskState {
	if t.State == "" {
		return protocol.StateTodo
	}
	return t.State
}

// NewCard derives the card for t.
func NewCard(t protocol.Task) Card {
	state := DisplayState(t)
	c := Card{
		ID:         t.ID,
		State:      state,
		StateColor: defaultStateColor,
		Heading:    t.Heading,
		Done:       state == protocol.StateDone,
		Meta:       MetaLine(t),
		ToggleHint: "Mark as DONE",
	}
	if color, ok := StateColors[state]; ok {
		c.StateColor = color
	}
	if c.Heading == "" {
		c.Heading = untitled
	}
	if c.Done {
		c.ToggleHint = "Mark as TODO"
	}
	if color, ok := PriorityColors[t.Priority]; ok {
		c.Priority = string(t.Priority)
		c.PriorityColor = color
	}
	return c
}

// MetaLine joins the deadline, scheduled and tag markers in that order.
// Angle brackets around org timestamps are stripped from the scheduled date.
func MetaLine(t protocol.Task) string {
	var meta []string
	if t.Deadline != "" {
		meta = append(meta, "📅 "+t.Deadline)
	}
	if t.Scheduled != "" {
		meta = append(meta, "🕒 "+strings.NewReplacer("<", "", ">", "").Replace(t.Scheduled))
	}
	if len(t.Tags) > 0 {
		tags := make([]string, len(t.Tags))
		for i, tag := range t.Tags {
			tags[i] = ":" + tag + ":"
		}
		meta = append(meta, strings.Join(tags, " "))
	}
	return strings.Join(meta, metaSeparator)
}

// CountLabel renders the visible-task counter.
func CountLabel(n int) string {
	if n == 1 {
		return "1 task"
	}
	return fmt.Sprintf("%d tasks", n)
}

// EmptyMessage explains an empty visible set.
func EmptyMessage(total int) string {
	if total == 0 {
		return "No tasks yet."
	}
	return "No tasks match filters."
}

// EmptyBatchMessage is shown for a task_list envelope without tasks.
const EmptyBatchMessage = "No tasks found."
