// Package protocol defines the wire types exchanged with the concierge
// service: the WebSocket envelopes and the task records served by the task API.
package protocol

import (
	"encoding/json"
	"fmt"
)

// EnvelopeType is the discriminant of an inbound envelope.
type EnvelopeType string

// Inbound envelope kinds. Anything else is ignored by the dispatcher.
const (
	TypeStatusUpdate EnvelopeType = "status_update"
	TypeSystemStatus EnvelopeType = "system_status"
	TypeResponse     EnvelopeType = "response"
	TypeTaskList     EnvelopeType = "task_list"
	TypeError        EnvelopeType = "error"
)

// TypeMessage is the only outbound envelope kind.
const TypeMessage = "message"

// Envelope is a typed message unit received over the persistent connection.
// Data is decoded lazily once the type is known.
type Envelope struct {
	Type EnvelopeType    `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outgoing is the envelope sent when the user submits input.
type Outgoing struct {
	Type string `json:"type"`
	Text string `json:"text"`
	ID   string `json:"id"`
}

// NewOutgoing builds a user message envelope.
func NewOutgoing(id, text string) Outgoing {
	return Outgoing{Type: TypeMessage, Text: text, ID: id}
}

// StatusUpdatePayload reports delivery progress for a user message.
type StatusUpdatePayload struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// SystemStatusPayload reports what the service is doing (idle, typing, processing).
type SystemStatusPayload struct {
	Status string `json:"status"`
}

// ResponsePayload carries a system reply for the transcript.
type ResponsePayload struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`
}

// TaskListPayload carries a batch of tasks rendered inline in the transcript.
type TaskListPayload struct {
	Tasks     []Task `json:"tasks"`
	Header    string `json:"header,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ErrorPayload carries an application-level error reported by the service.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Delivery status values carried by status_update.
const (
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// System status values carried by system_status.
const (
	SystemIdle       = "idle"
	SystemTyping     = "typing"
	SystemProcessing = "processing"
)

// DecodeData unmarshals the envelope payload into v. A missing payload
// decodes as an empty object.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}
