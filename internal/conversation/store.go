package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the append-only message log. It is the single source of truth
// every other view is derived from.
type Store struct {
	mu   sync.RWMutex
	msgs []Message
	byID map[string]int
	seq  uint64
	now  func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byID: make(map[string]int),
		now:  time.Now,
	}
}

// Append validates m and appends it. A missing ID is generated, a missing
// status defaults to unread (inbound) or pending (outbound) and a zero
// timestamp is stamped with the current time. Returns the stored copy.
func (s *Store) Append(m Message) (Message, error) {
	if err := validate(&m); err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if _, exists := s.byID[m.ID]; exists {
		return Message{}, &ValidationError{Field: "id", Reason: "duplicate id " + m.ID}
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	s.seq++
	m.Seq = s.seq

	s.byID[m.ID] = len(s.msgs)
	s.msgs = append(s.msgs, m)
	return m, nil
}

// UpdateStatus moves a message forward to a new delivery status. Setting
// the current status again is a no-op.
func (s *Store) UpdateStatus(id string, to Status) (updated Message, prev Status, err error) {
	if !to.Valid() {
		return Message{}, "", &ValidationError{Field: "status", Reason: "unknown status " + string(to)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok {
		return Message{}, "", &NotFoundError{ID: id}
	}
	m := &s.msgs[idx]
	prev = m.Status
	if prev == to {
		return *m, prev, nil
	}
	if !prev.CanTransition(to) {
		return *m, prev, &InvalidTransitionError{ID: id, From: prev, To: to}
	}
	m.Status = to
	return *m, prev, nil
}

// Get returns a message by ID.
func (s *Store) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return Message{}, false
	}
	return s.msgs[idx], true
}

// All returns a copy of every message in arrival order.
func (s *Store) All() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// ForContact returns the messages of one contact in arrival order.
func (s *Store) ForContact(contact string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Message
	for _, m := range s.msgs {
		if m.Contact == contact {
			out = append(out, m)
		}
	}
	return out
}

// LastSeq returns the sequence number of the contact's newest message, or
// zero when the contact has none.
func (s *Store) LastSeq(contact string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if s.msgs[i].Contact == contact {
			return s.msgs[i].Seq
		}
	}
	return 0
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// Load replaces the store contents with previously journaled messages.
// Messages keep their IDs and sequence numbers and must be in arrival order.
func (s *Store) Load(msgs []Message) error {
	loaded := make([]Message, len(msgs))
	byID := make(map[string]int, len(msgs))
	var seq uint64
	for i, m := range msgs {
		if err := validate(&m); err != nil {
			return err
		}
		if _, dup := byID[m.ID]; dup || m.ID == "" {
			return &ValidationError{Field: "id", Reason: "missing or duplicate id " + m.ID}
		}
		if m.Seq <= seq {
			return &ValidationError{Field: "seq", Reason: "journal is not in arrival order"}
		}
		seq = m.Seq
		byID[m.ID] = i
		loaded[i] = m
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = loaded
	s.byID = byID
	s.seq = seq
	return nil
}

func validate(m *Message) error {
	if strings.TrimSpace(m.Contact) == "" {
		return &ValidationError{Field: "contact", Reason: "empty"}
	}
	if strings.TrimSpace(m.Body) == "" {
		return &ValidationError{Field: "body", Reason: "empty"}
	}
	switch m.Direction {
	case Inbound, Outbound:
	default:
		return &ValidationError{Field: "direction", Reason: "unknown direction " + string(m.Direction)}
	}
	if m.Status == "" {
		if m.Direction == Inbound {
			m.Status = StatusUnread
		} else {
			m.Status = StatusPending
		}
	}
	if !m.Status.Valid() {
		return &ValidationError{Field: "status", Reason: "unknown status " + string(m.Status)}
	}
	if m.Origin == "" {
		if m.Direction == Inbound {
			m.Origin = OriginContact
		} else {
			m.Origin = OriginAssistant
		}
	}
	if !m.Origin.Fits(m.Direction) {
		return &ValidationError{Field: "origin", Reason: "origin " + string(m.Origin) + " does not fit direction " + string(m.Direction)}
	}
	return nil
}
