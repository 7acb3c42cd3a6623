package store

import "time"

// Contact is a WhatsApp contact known to the device store.
type Contact struct {
	JID      string
	Name     string
	PushName string
}

// DisplayName returns the best human-readable name for the contact.
func (c Contact) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.PushName
}

// OutboxEntry represents a pending outgoing message.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	ChatJID      string
	Body         string
	Status       string // queued, sending, sent, failed
	ErrorMessage string
	ServerMsgID  string
}

// Digest is one persisted statistics snapshot.
type Digest struct {
	ID                  int64
	TakenAt             time.Time
	TotalMessages       int
	IncomingMessages    int
	OutgoingMessages    int
	ActiveConversations int
	UnreadMessages      int
	ResponseRate        int
	// AverageResponse is nil when no inbound message had been answered.
	AverageResponse *time.Duration
}
