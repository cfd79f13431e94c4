package chat

import (
	"fmt"
	"io"
	"log/slog"

	"concierge/pkg/protocol"
)

// StatusObserver is notified when a tracked message changes status.
type StatusObserver func(id string, status Status)

// Tracker maps locally generated message ids to their delivery status. It is
// the only writer of Message.Status.
type Tracker struct {
	transcript *Transcript
	log        *slog.Logger
	observers  []StatusObserver
}

// NewTracker creates a Tracker that records into transcript.
func NewTracker(transcript *Transcript, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tracker{transcript: transcript, log: log}
}

// OnStatusChange registers an observer. Register observers before use.
func (tr *Tracker) OnStatusChange(fn StatusObserver) {
	tr.observers = append(tr.observers, fn)
}

// RecordOutgoing appends a user message with status sent and starts tracking
// its id. At most one message may exist per id.
func (tr *Tracker) RecordOutgoing(id, text string) error {
	if err := tr.transcript.appendTracked(Message{
		ID:     id,
		Text:   text,
		Sender: SenderUser,
		Status: StatusSent,
	}); err != nil {
		return fmt.Errorf("record message %s: %w", id, err)
	}
	tr.notify(id, StatusSent)
	return nil
}

// UpdateStatus applies a status_update for id. Only "read" has an effect and
// it is terminal: untracked ids, other values and repeated reads are no-ops.
// The result reports whether the indicator changed.
func (tr *Tracker) UpdateStatus(id, status string) bool {
	if status != protocol.StatusRead {
		tr.log.Debug("status update without visible change", "message_id", id, "status", status)
		return false
	}
	if !tr.transcript.advance(id, StatusRead) {
		return false
	}
	tr.notify(id, StatusRead)
	return true
}

// Status returns the current status of id and whether it is tracked.
func (tr *Tracker) Status(id string) (Status, bool) {
	return tr.transcript.status(id)
}

func (tr *Tracker) notify(id string, s Status) {
	for _, fn := range tr.observers {
		fn(id, s)
	}
}
