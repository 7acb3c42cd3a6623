package conversation

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// summaryLen caps the last-message summary, in runes.
const summaryLen = 100

// Conversation is the derived per-contact view of the message log.
type Conversation struct {
	Contact            string
	MessageIDs         []string
	LastMessageSummary string
	LastActivity       time.Time
	UnreadCount        int
}

// Index groups messages by contact and tracks activity and unread counts.
type Index struct {
	mu      sync.RWMutex
	entries map[string]*indexEntry
}

type indexEntry struct {
	mu      sync.Mutex
	conv    Conversation
	lastSeq uint64
	// readMark is the newest sequence number acknowledged by MarkRead.
	readMark uint64
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]*indexEntry)}
}

func (x *Index) entry(contact string, create bool) *indexEntry {
	x.mu.RLock()
	e := x.entries[contact]
	x.mu.RUnlock()
	if e != nil || !create {
		return e
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if e = x.entries[contact]; e == nil {
		e = &indexEntry{conv: Conversation{Contact: contact}}
		x.entries[contact] = e
	}
	return e
}

// OnMessage folds a newly appended message into its contact's conversation.
func (x *Index) OnMessage(m Message) {
	e := x.entry(m.Contact, true)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.apply(m)
}

func (e *indexEntry) apply(m Message) {
	c := &e.conv
	c.MessageIDs = append(c.MessageIDs, m.ID)
	e.lastSeq = max(e.lastSeq, m.Seq)
	// Equal timestamps resolve to the message that arrived last.
	if !m.Timestamp.Before(c.LastActivity) {
		c.LastActivity = m.Timestamp
		c.LastMessageSummary = summarize(m.Body)
	}
	if countsAsUnread(m, e.readMark) {
		c.UnreadCount++
	}
}

// OnStatusChange adjusts the unread count after a message moved from prev
// to its current status.
func (x *Index) OnStatusChange(m Message, prev Status) {
	e := x.entry(m.Contact, false)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	before := m
	before.Status = prev
	was, is := countsAsUnread(before, e.readMark), countsAsUnread(m, e.readMark)
	switch {
	case was && !is && e.conv.UnreadCount > 0:
		e.conv.UnreadCount--
	case !was && is:
		e.conv.UnreadCount++
	}
}

func countsAsUnread(m Message, readMark uint64) bool {
	return m.Direction == Inbound && m.Status != StatusRead && m.Seq > readMark
}

// MarkRead zeroes the unread count of one contact. Stored message statuses
// are not touched. Returns the new read watermark and false if the contact
// is unknown.
func (x *Index) MarkRead(contact string) (uint64, bool) {
	e := x.entry(contact, false)
	if e == nil {
		return 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.readMark = max(e.readMark, e.lastSeq)
	e.conv.UnreadCount = 0
	return e.readMark, true
}

// Get returns a copy of one contact's conversation.
func (x *Index) Get(contact string) (Conversation, bool) {
	e := x.entry(contact, false)
	if e == nil {
		return Conversation{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot(), true
}

func (e *indexEntry) snapshot() Conversation {
	c := e.conv
	c.MessageIDs = slices.Clone(e.conv.MessageIDs)
	return c
}

// List returns every conversation, most recently active first. Ties are
// ordered by contact.
func (x *Index) List() []Conversation {
	x.mu.RLock()
	entries := make([]*indexEntry, 0, len(x.entries))
	for _, e := range x.entries {
		entries = append(entries, e)
	}
	x.mu.RUnlock()

	out := make([]Conversation, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if len(e.conv.MessageIDs) > 0 {
			out = append(out, e.snapshot())
		}
		e.mu.Unlock()
	}
	SortConversations(out)
	return out
}

// SortConversations orders conversations by last activity descending, then contact.
func SortConversations(convs []Conversation) {
	slices.SortFunc(convs, func(a, b Conversation) int {
		if c := b.LastActivity.Compare(a.LastActivity); c != 0 {
			return c
		}
		return strings.Compare(a.Contact, b.Contact)
	})
}

// ReadMarks returns the MarkRead watermark of every contact that has one.
func (x *Index) ReadMarks() map[string]uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	marks := make(map[string]uint64)
	for contact, e := range x.entries {
		e.mu.Lock()
		if e.readMark > 0 {
			marks[contact] = e.readMark
		}
		e.mu.Unlock()
	}
	return marks
}

// Rebuild recomputes the index from messages in arrival order and the
// given read watermarks.
func (x *Index) Rebuild(msgs []Message, marks map[string]uint64) {
	entries := make(map[string]*indexEntry)
	for contact, mark := range marks {
		entries[contact] = &indexEntry{conv: Conversation{Contact: contact}, readMark: mark}
	}
	for _, m := range msgs {
		e := entries[m.Contact]
		if e == nil {
			e = &indexEntry{conv: Conversation{Contact: m.Contact}}
			entries[m.Contact] = e
		}
		e.apply(m)
	}

	x.mu.Lock()
	x.entries = entries
	x.mu.Unlock()
}

func summarize(body string) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= summaryLen {
		return string(runes)
	}
	return string(runes[:summaryLen])
}
