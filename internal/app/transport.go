package app

import (
	"time"

	"github.com/google/uuid"

	"github.com/jaakkos/swarmwork/internal/domain"
)

// Transport delivers structured messages between components, point-to-point
// or broadcast ("all"). Delivery is at-least-once at best; anything that must
// survive a missed delivery is mirrored into the shared store by the sender.
// Implementation: internal/transport.
type Transport interface {
	Send(msg domain.Message) error
}

// NewMessage constructs a message with a fresh id, trace id, and timestamp.
// Callers that continue an existing trace overwrite TraceID afterwards.
func NewMessage(msgType domain.MessageType, from, to string, payload map[string]any) domain.Message {
	id := uuid.NewString()
	return domain.Message{
		ID:        id,
		Type:      msgType,
		From:      from,
		To:        to,
		Payload:   payload,
		TraceID:   id,
		Timestamp: time.Now(),
	}
}
