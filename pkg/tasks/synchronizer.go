// Package tasks keeps the local task collection in step with the task
// service: periodic refresh, optimistic state toggles with rollback, and the
// pure filter and card derivations renderers consume.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"concierge/pkg/protocol"
)

// Sentinel errors returned by Toggle.
var (
	ErrMutationInFlight = errors.New("task mutation already in flight")
	ErrTaskNotFound     = errors.New("task not found")
)

// Source is the authoritative task store.
type Source interface {
	List(ctx context.Context) ([]protocol.Task, error)
	UpdateState(ctx context.Context, id string, state protocol.TaskState) error
}

// Outcome describes one step of a toggle mutation.
type Outcome string

// Mutation outcomes, in the order a toggle reports them.
const (
	OutcomeApplied    Outcome = "applied"
	OutcomeCommitted  Outcome = "committed"
	OutcomeRolledBack Outcome = "rolled_back"
)

// MutationEvent is published to mutation observers.
type MutationEvent struct {
	TaskID  string
	From    protocol.TaskState
	To      protocol.TaskState
	Outcome Outcome
	Err     error
}

// NextState is the toggle target: DONE becomes TODO, everything else DONE.
// NEXT, WAITING and CANCELLED are not preserved across two toggles.
func NextState(current protocol.TaskState) protocol.TaskState {
	if current == protocol.StateDone {
		return protocol.StateTodo
	}
	return protocol.StateDone
}

// mutation is the in-flight token. Only the Toggle call that installed it
// may release it.
type mutation struct {
	seq    uint64
	taskID string
	prior  protocol.TaskState
	next   protocol.TaskState
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.log = l }
}

// WithFilter sets the initial filter.
func WithFilter(f Filter) Option {
	return func(s *Synchronizer) { s.filter = f }
}

// Synchronizer owns the local task collection and the single outstanding
// toggle mutation.
type Synchronizer struct {
	src Source
	log *slog.Logger

	mu       sync.Mutex
	tasks    []protocol.Task
	loaded   bool
	filter   Filter
	pending  *mutation
	seq      uint64
	onChange []func()
	onMutate []func(MutationEvent)
}

// NewSynchronizer creates a Synchronizer backed by src. The collection is
// empty until the first successful Refresh.
func NewSynchronizer(src Source, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		src: src,
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers fn to run after every visible change. Callbacks run
// without the synchronizer lock held.
func (s *Synchronizer) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// OnMutation registers fn to receive toggle progress.
func (s *Synchronizer) OnMutation(fn func(MutationEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMutate = append(s.onMutate, fn)
}

// Refresh replaces the collection with the source's current list. On failure
// the collection is left untouched. While a toggle is in flight the refresh
// is skipped so the optimistic value survives until the toggle settles.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	if s.busy() {
		s.log.Debug("refresh skipped, mutation in flight")
		return nil
	}

	list, err := s.src.List(ctx)
	if err != nil {
		s.log.Warn("refresh tasks", "error", err)
		return fmt.Errorf("refresh tasks: %w", err)
	}

	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		s.log.Debug("refresh discarded, mutation started during fetch")
		return nil
	}
	s.tasks = cloneAll(list)
	s.loaded = true
	s.mu.Unlock()

	s.log.Debug("tasks refreshed", "count", len(list))
	s.changed()
	return nil
}

// Toggle flips the task's state optimistically and persists it. A toggle
// issued while another is pending is dropped with ErrMutationInFlight. When
// the update fails the task reverts to its exact prior state.
func (s *Synchronizer) Toggle(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return ErrMutationInFlight
	}
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("toggle %s: %w", id, ErrTaskNotFound)
	}
	s.seq++
	m := &mutation{
		seq:    s.seq,
		taskID: id,
		prior:  s.tasks[i].State,
		next:   NextState(s.tasks[i].State),
	}
	s.pending = m
	s.tasks[i].State = m.next
	s.mu.Unlock()
	defer s.release(m)

	s.changed()
	s.publish(MutationEvent{TaskID: id, From: m.prior, To: m.next, Outcome: OutcomeApplied})

	if err := s.src.UpdateState(ctx, id, m.next); err != nil {
		s.rollback(m)
		s.log.Warn("toggle failed, rolled back", "task", id, "state", m.prior, "error", err)
		s.publish(MutationEvent{TaskID: id, From: m.next, To: m.prior, Outcome: OutcomeRolledBack, Err: err})
		return fmt.Errorf("toggle %s: %w", id, err)
	}

	s.log.Debug("toggle committed", "task", id, "state", m.next, "seq", m.seq)
	s.publish(MutationEvent{TaskID: id, From: m.prior, To: m.next, Outcome: OutcomeCommitted})
	return nil
}

// ApplyFilter installs f and returns the visible subset. The collection is
// not modified.
func (s *Synchronizer) ApplyFilter(f Filter) []protocol.Task {
	s.mu.Lock()
	s.filter = f
	visible := f.Apply(s.tasks)
	s.mu.Unlock()

	s.changed()
	return visible
}

// Filter returns the current filter.
func (s *Synchronizer) Filter() Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Visible returns the tasks passing the current filter.
func (s *Synchronizer) Visible() []protocol.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter.Apply(s.tasks)
}

// Tasks returns a copy of the whole collection.
func (s *Synchronizer) Tasks() []protocol.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.tasks)
}

// Loaded reports whether at least one refresh has succeeded.
func (s *Synchronizer) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Pending returns the id of the task whose toggle is in flight.
func (s *Synchronizer) Pending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return "", false
	}
	return s.pending.taskID, true
}

func (s *Synchronizer) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Synchronizer) indexLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// rollback restores the prior state if the task still carries the
// optimistic value.
func (s *Synchronizer) rollback(m *mutation) {
	s.mu.Lock()
	if i := s.indexLocked(m.taskID); i >= 0 && s.tasks[i].State == m.next {
		s.tasks[i].State = m.prior
	}
	s.mu.Unlock()
	s.changed()
}

func (s *Synchronizer) release(m *mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == m {
		s.pending = nil
	}
}

func (s *Synchronizer) changed() {
	s.mu.Lock()
	fns := append([]func(){}, s.onChange...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *Synchronizer) publish(ev MutationEvent) {
	s.mu.Lock()
	fns := append([]func(MutationEvent){}, s.onMutate...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func cloneAll(in []protocol.Task) []protocol.Task {
	out := make([]protocol.Task, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}
