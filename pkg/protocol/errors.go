package protocol

import "fmt"

// UnknownEnvelopeError reports an envelope whose type has no handler.
// The dispatcher only logs it; it is never surfaced to the user.
type UnknownEnvelopeError struct {
	Type EnvelopeType
}

func (e *UnknownEnvelopeError) Error() string {
	return fmt.Sprintf("unknown envelope type %q", e.Type)
}

// MalformedEnvelopeError reports an inbound frame that is not a valid envelope.
type MalformedEnvelopeError struct {
	Reason string
}

func (e *MalformedEnvelopeError) Error() string {
	return fmt.Sprintf("malformed envelope: %s", e.Reason)
}
