package outbox

import (
	"context"
	"fmt"

	"github.com/matheus3301/wppbot/internal/conversation"
	"github.com/matheus3301/wppbot/internal/store"
)

// Queue persists outbound messages for the Sender. The message ID doubles
// as the outbox client ID, so delivery updates find their way back to the
// conversation core.
type Queue struct {
	db     *store.DB
	sender *Sender
}

// NewQueue creates a queue. sender may be nil; otherwise it is woken after
// every enqueue instead of waiting for its next tick.
func NewQueue(db *store.DB, sender *Sender) *Queue {
	return &Queue{db: db, sender: sender}
}

// Dispatch queues msg for delivery to its contact.
func (q *Queue) Dispatch(_ context.Context, msg conversation.Message) error {
	if msg.Direction != conversation.Outbound {
		return fmt.Errorf("outbox: message %s is not outbound", msg.ID)
	}
	if err := q.db.QueueOutbox(msg.ID, msg.Contact, msg.Body); err != nil {
		return fmt.Errorf("queue outbox: %w", err)
	}
	if q.sender != nil {
		q.sender.Wake()
	}
	return nil
}
