package conversation

import (
	"slices"
	"time"
)

// Direction tells whether a message came from the contact or went to it.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Status is the delivery status of a message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusUnread    Status = "unread"
	StatusFailed    Status = "failed"
)

// forwardTransitions lists the statuses each status may move to.
var forwardTransitions = map[Status][]Status{
	StatusPending:   {StatusSent, StatusDelivered, StatusRead, StatusFailed},
	StatusSent:      {StatusDelivered, StatusRead, StatusFailed},
	StatusDelivered: {StatusRead},
	StatusUnread:    {StatusRead},
	StatusRead:      {},
	StatusFailed:    {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := forwardTransitions[s]
	return ok
}

// CanTransition reports whether a message in status s may move to status to.
func (s Status) CanTransition(to Status) bool {
	return slices.Contains(forwardTransitions[s], to)
}

// Origin records who produced a message.
type Origin string

const (
	OriginContact   Origin = "contact"
	OriginAssistant Origin = "assistant"
	OriginFallback  Origin = "fallback"
	OriginOperator  Origin = "operator"
)

// Fits reports whether o is a known origin for a message travelling in
// direction d. Only contacts write inbound messages.
func (o Origin) Fits(d Direction) bool {
	switch o {
	case OriginContact:
		return d == Inbound
	case OriginAssistant, OriginFallback, OriginOperator:
		return d == Outbound
	}
	return false
}

// Message is an immutable record of one exchanged message. Only Status
// changes after the message is appended to a Store.
type Message struct {
	ID        string
	Seq       uint64
	Contact   string
	Body      string
	Direction Direction
	Status    Status
	Origin    Origin
	Timestamp time.Time
}

// turnRole maps a message to the window role it occupies, if any.
// Fallback replies never enter the window.
func (m Message) turnRole() (Role, bool) {
	switch {
	case m.Direction == Inbound:
		return RoleUser, true
	case m.Origin == OriginFallback:
		return "", false
	default:
		return RoleAssistant, true
	}
}
