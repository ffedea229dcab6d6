package bus

import (
	"time"

	"github.com/google/uuid"
)

// MessageType identifies the kind of traffic an envelope carries.
// The string values are stable: they show up in logs and must not change.
type MessageType string

const (
	NewAnnouncement  MessageType = "new_announcement"
	TaskAssignment   MessageType = "task_assignment"
	ContentGenerated MessageType = "content_generated"
	PostRequest      MessageType = "post_request"
	PostResult       MessageType = "post_result"
	StatusUpdate     MessageType = "status_update"
)

// Envelope is the routed message unit exchanged between agents.
// It is immutable once constructed; Payload carries the real content.
type Envelope struct {
	Type     MessageType
	Sender   string
	Receiver string
	Payload  any
	Time     time.Time
	ID       string
}

// NewEnvelope builds an envelope with ID and Time filled in.
func NewEnvelope(t MessageType, sender, receiver string, payload any) Envelope {
	return Envelope{
		Type:     t,
		Sender:   sender,
		Receiver: receiver,
		Payload:  payload,
		Time:     time.Now(),
		ID:       uuid.NewString(),
	}
}

func (e Envelope) withDefaults() Envelope {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	return e
}
