// Package conversation holds the per-contact message state of the assistant:
// the append-only message store, the bounded model context window, the
// conversation index and the statistics derived from them.
package conversation

import (
	"time"

	"go.uber.org/zap"
)

// Journal persists core mutations outside the process. The core never reads
// from it; a journal failure is logged and the in-memory state stays authoritative.
type Journal interface {
	SaveMessage(m Message) error
	SaveStatus(id string, status Status) error
	SaveReadMark(contact string, seq uint64) error
	SaveClearMark(contact string, seq uint64) error
}

// Marks are the per-contact sequence watermarks the derived views keep on
// top of the message log.
type Marks struct {
	// Read is the newest sequence number acknowledged by MarkRead.
	Read map[string]uint64
	// Cleared is the newest sequence number dropped by ClearHistory.
	Cleared map[string]uint64
}

// Options configures a Core.
type Options struct {
	WindowSize int
	Journal    Journal
	Logger     *zap.Logger
}

// Core owns the message store and keeps the derived views in step with it.
// All mutation of one contact's state is serialized; different contacts
// proceed in parallel.
type Core struct {
	store   *Store
	window  *Window
	index   *Index
	journal Journal
	locks   *keyedMutex
	logger  *zap.Logger
}

// Snapshot is an immutable copy of the presentation views at one instant.
type Snapshot struct {
	Conversations []Conversation
	Stats         Stats
	TakenAt       time.Time
}

// New creates a core with an empty store.
func New(opts Options) *Core {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Core{
		store:   NewStore(),
		window:  NewWindow(opts.WindowSize),
		index:   NewIndex(),
		journal: opts.Journal,
		locks:   newKeyedMutex(),
		logger:  logger,
	}
}

// Store returns the underlying message store.
func (c *Core) Store() *Store { return c.store }

// Window returns the model context window.
func (c *Core) Window() *Window { return c.window }

// Index returns the conversation index.
func (c *Core) Index() *Index { return c.index }

// Append validates and stores a message, then updates the contact's
// conversation and context window. An outbound message acknowledges every
// earlier inbound message of the contact: they move to read.
func (c *Core) Append(m Message) (Message, error) {
	unlock := c.locks.Lock(m.Contact)
	defer unlock()

	stored, err := c.store.Append(m)
	if err != nil {
		return Message{}, err
	}
	c.index.OnMessage(stored)
	if role, ok := stored.turnRole(); ok {
		c.window.RecordTurn(stored.Contact, role, stored.Body)
	}

	if c.journal != nil {
		if err := c.journal.SaveMessage(stored); err != nil {
			c.logger.Warn("journal message failed", zap.Error(err), zap.String("msg_id", stored.ID))
		}
	}
	if stored.Direction == Outbound {
		c.acknowledge(stored)
	}
	return stored, nil
}

// acknowledge marks the inbound messages answered by reply as read.
// The caller holds the contact lock.
func (c *Core) acknowledge(reply Message) {
	for _, m := range c.store.ForContact(reply.Contact) {
		if m.Direction != Inbound || m.Seq > reply.Seq || !m.Status.CanTransition(StatusRead) {
			continue
		}
		if _, err := c.setStatus(m.ID, StatusRead); err != nil {
			c.logger.Warn("acknowledge inbound failed", zap.Error(err), zap.String("msg_id", m.ID))
		}
	}
}

// UpdateStatus moves a message forward to a new delivery status.
func (c *Core) UpdateStatus(id string, status Status) (Message, error) {
	m, ok := c.store.Get(id)
	if !ok {
		return Message{}, &NotFoundError{ID: id}
	}

	unlock := c.locks.Lock(m.Contact)
	defer unlock()
	return c.setStatus(id, status)
}

// setStatus applies a status change under the contact lock held by the caller.
func (c *Core) setStatus(id string, status Status) (Message, error) {
	updated, prev, err := c.store.UpdateStatus(id, status)
	if err != nil {
		return updated, err
	}
	if prev == updated.Status {
		return updated, nil
	}
	c.index.OnStatusChange(updated, prev)

	if c.journal != nil {
		if err := c.journal.SaveStatus(id, updated.Status); err != nil {
			c.logger.Warn("journal status failed", zap.Error(err), zap.String("msg_id", id))
		}
	}
	return updated, nil
}

// MarkRead resets a contact's unread count. Returns false for unknown contacts.
func (c *Core) MarkRead(contact string) bool {
	unlock := c.locks.Lock(contact)
	defer unlock()

	mark, ok := c.index.MarkRead(contact)
	if !ok {
		return false
	}
	if c.journal != nil {
		if err := c.journal.SaveReadMark(contact, mark); err != nil {
			c.logger.Warn("journal read mark failed", zap.Error(err), zap.String("contact", contact))
		}
	}
	return true
}

// ClearHistory empties a contact's context window. The message log and the
// conversation are kept; the clear is journaled so rebuilds honour it.
func (c *Core) ClearHistory(contact string) bool {
	unlock := c.locks.Lock(contact)
	defer unlock()

	mark := c.store.LastSeq(contact)
	if !c.window.Clear(contact, mark) {
		return false
	}
	if c.journal != nil {
		if err := c.journal.SaveClearMark(contact, mark); err != nil {
			c.logger.Warn("journal clear mark failed", zap.Error(err), zap.String("contact", contact))
		}
	}
	return true
}

// Conversations lists every conversation, most recent first.
func (c *Core) Conversations() []Conversation {
	return c.index.List()
}

// Conversation returns one contact's conversation and its messages in arrival order.
func (c *Core) Conversation(contact string) (Conversation, []Message, bool) {
	conv, ok := c.index.Get(contact)
	if !ok {
		return Conversation{}, nil, false
	}
	return conv, c.store.ForContact(contact), true
}

// Stats recomputes the global statistics from copies of the current state.
func (c *Core) Stats() Stats {
	return c.Snapshot().Stats
}

// Snapshot copies the message log once and derives both the conversation
// list and the stats from that copy, so the two always agree.
func (c *Core) Snapshot() Snapshot {
	msgs := c.store.All()
	x := NewIndex()
	x.Rebuild(msgs, c.index.ReadMarks())
	convs := x.List()
	return Snapshot{
		Conversations: convs,
		Stats:         Recompute(msgs, convs),
		TakenAt:       time.Now(),
	}
}

// Restore loads journaled messages and watermarks and re-derives every view.
func (c *Core) Restore(msgs []Message, marks Marks) error {
	if err := c.store.Load(msgs); err != nil {
		return err
	}
	c.rebuild(marks)
	return nil
}

// Rebuild re-derives the index and window from the store, keeping the
// read and clear watermarks.
func (c *Core) Rebuild() {
	c.rebuild(Marks{Read: c.index.ReadMarks(), Cleared: c.window.ClearMarks()})
}

func (c *Core) rebuild(marks Marks) {
	msgs := c.store.All()
	c.index.Rebuild(msgs, marks.Read)
	c.window.Rebuild(msgs, marks.Cleared)
}
