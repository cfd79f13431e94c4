// Package dispatch decodes inbound envelopes and routes them by kind.
package dispatch

import (
	"encoding/json"
	"io"
	"log/slog"

	"concierge/pkg/protocol"
)

// StatusUpdater receives delivery status updates.
type StatusUpdater interface {
	UpdateStatus(id, status string) bool
}

// Transcript receives system output.
type Transcript interface {
	AppendSystem(text string)
	AppendTaskBatch(header string, tasks []protocol.Task)
	SetTyping(on bool)
}

// Dispatcher routes envelopes to the tracker and the transcript. It keeps no
// state of its own; ordering is whatever order Dispatch is called in.
type Dispatcher struct {
	tracker    StatusUpdater
	transcript Transcript
	log        *slog.Logger
}

// New creates a Dispatcher.
func New(tracker StatusUpdater, transcript Transcript, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{tracker: tracker, transcript: transcript, log: log}
}

// Dispatch decodes raw and applies it. Malformed frames and unrecognized
// kinds are dropped; the caller never sees an error.
func (d *Dispatcher) Dispatch(raw []byte) {
	if err := d.apply(raw); err != nil {
		d.log.Debug("envelope ignored", "error", err)
	}
}

// apply is Dispatch with the reason for dropping a frame exposed.
func (d *Dispatcher) apply(raw []byte) error {
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &protocol.MalformedEnvelopeError{Reason: err.Error()}
	}

	switch env.Type {
	case protocol.TypeStatusUpdate:
		var p protocol.StatusUpdatePayload
		if err := env.DecodeData(&p); err != nil {
			return err
		}
		d.tracker.UpdateStatus(p.MessageID, p.Status)

	case protocol.TypeSystemStatus:
		var p protocol.SystemStatusPayload
		if err := env.DecodeData(&p); err != nil {
			return err
		}
		d.transcript.SetTyping(p.Status == protocol.SystemTyping)

	case protocol.TypeResponse:
		var p protocol.ResponsePayload
		if err := env.DecodeData(&p); err != nil {
			return err
		}
		d.transcript.AppendSystem(p.Text)
		d.transcript.SetTyping(false)

	case protocol.TypeTaskList:
		var p protocol.TaskListPayload
		if err := env.DecodeData(&p); err != nil {
			return err
		}
		d.transcript.AppendTaskBatch(p.Header, p.Tasks)
		d.transcript.SetTyping(false)

	case protocol.TypeError:
		var p protocol.ErrorPayload
		if err := env.DecodeData(&p); err != nil {
			return err
		}
		d.transcript.AppendSystem(p.Message)
		d.transcript.SetTyping(false)

	default:
		return &protocol.UnknownEnvelopeError{Type: env.Type}
	}
	return nil
}
