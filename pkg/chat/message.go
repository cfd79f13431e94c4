// Package chat holds the client's view of the conversation: the append-only
// transcript, the typing indicator and per-message delivery tracking.
package chat

import (
	"math/big"
	"strings"

	"github.com/google/uuid"

	"concierge/pkg/protocol"
)

// Sender identifies who authored a transcript message.
type Sender string

// Sender constants.
const (
	SenderUser   Sender = "user"
	SenderSystem Sender = "system"
)

// Status is the delivery status of a user message. System messages carry
// StatusNone.
type Status int

// Delivery statuses. The only transition is StatusSent -> StatusRead.
const (
	StatusNone Status = iota
	StatusSent
	StatusRead
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusRead:
		return "read"
	default:
		return ""
	}
}

// Badge is the status indicator rendered next to a user message.
func (s Status) Badge() string {
	switch s {
	case StatusSent:
		return "✓"
	case StatusRead:
		return "✓✓"
	default:
		return ""
	}
}

// Message is a single transcript line.
type Message struct {
	ID     string
	Text   string
	Sender Sender
	Status Status
}

// TaskBatch is a task_list envelope rendered inline in the transcript.
type TaskBatch struct {
	Header string
	Tasks  []protocol.Task
}

// Entry is one transcript item: exactly one of Message and Batch is set.
type Entry struct {
	Message *Message
	Batch   *TaskBatch
}

// idLength matches the 12 base-36 characters the service expects.
const idLength = 12

// NewMessageID returns a 12-character lowercase base-36 token drawn from the
// random bits of a v4 UUID.
func NewMessageID() string {
	u := uuid.New()
	s := new(big.Int).SetBytes(u[:]).Text(36)
	if len(s) < idLength {
		s = strings.Repeat("0", idLength-len(s)) + s
	}
	return s[len(s)-idLength:]
}
