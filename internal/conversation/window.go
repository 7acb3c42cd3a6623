package conversation

import (
	"maps"
	"sync"
)

// DefaultWindowSize is the number of turns kept per contact when none is configured.
const DefaultWindowSize = 10

// Role tags a turn in a model-facing prompt.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged utterance.
type Turn struct {
	Role Role
	Text string
}

// Window keeps, per contact, the most recent turns used as model context.
// Eviction is strict FIFO.
type Window struct {
	mu      sync.RWMutex
	size    int
	buffers map[string]*turnBuffer
	// cleared holds, per contact, the newest sequence number dropped by Clear.
	cleared map[string]uint64
}

type turnBuffer struct {
	mu    sync.Mutex
	turns []Turn
}

// NewWindow creates a window holding at most size turns per contact.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{
		size:    size,
		buffers: make(map[string]*turnBuffer),
		cleared: make(map[string]uint64),
	}
}

// Size returns the configured number of turns per contact.
func (w *Window) Size() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

func (w *Window) buffer(contact string, create bool) *turnBuffer {
	w.mu.RLock()
	b := w.buffers[contact]
	w.mu.RUnlock()
	if b != nil || !create {
		return b
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if b = w.buffers[contact]; b == nil {
		b = &turnBuffer{}
		w.buffers[contact] = b
	}
	return b
}

// RecordTurn appends a turn to the contact's window and drops the oldest
// turns until the window fits.
func (w *Window) RecordTurn(contact string, role Role, text string) {
	size := w.Size()
	b := w.buffer(contact, true)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = append(b.turns, Turn{Role: role, Text: text})
	b.trim(size)
}

func (b *turnBuffer) trim(size int) {
	if excess := len(b.turns) - size; excess > 0 {
		// Copy down so the backing array does not grow without bound.
		n := copy(b.turns, b.turns[excess:])
		clear(b.turns[n:])
		b.turns = b.turns[:n]
	}
}

// BuildPrompt returns the system turn followed by the contact's window.
// The window itself is left untouched.
func (w *Window) BuildPrompt(contact, systemPrompt string) []Turn {
	turns := w.Turns(contact)
	prompt := make([]Turn, 0, len(turns)+1)
	prompt = append(prompt, Turn{Role: RoleSystem, Text: systemPrompt})
	return append(prompt, turns...)
}

// Turns returns a copy of the contact's window.
func (w *Window) Turns(contact string) []Turn {
	b := w.buffer(contact, false)
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Turn, len(b.turns))
	copy(out, b.turns)
	return out
}

// Len returns the number of turns held for a contact.
func (w *Window) Len(contact string) int {
	b := w.buffer(contact, false)
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.turns)
}

// Clear empties a contact's window and remembers through, the newest
// sequence number it covered, so Rebuild does not bring the turns back.
// Returns false if the contact has no window.
func (w *Window) Clear(contact string, through uint64) bool {
	b := w.buffer(contact, false)
	if b == nil {
		return false
	}
	b.mu.Lock()
	b.turns = nil
	b.mu.Unlock()

	w.mu.Lock()
	w.cleared[contact] = max(w.cleared[contact], through)
	w.mu.Unlock()
	return true
}

// ClearMarks returns the Clear watermark of every contact that has one.
func (w *Window) ClearMarks() map[string]uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return maps.Clone(w.cleared)
}

// Resize changes the per-contact limit, keeping the newest turns of every window.
func (w *Window) Resize(size int) {
	if size <= 0 {
		size = DefaultWindowSize
	}
	w.mu.Lock()
	w.size = size
	buffers := make([]*turnBuffer, 0, len(w.buffers))
	for _, b := range w.buffers {
		buffers = append(buffers, b)
	}
	w.mu.Unlock()

	for _, b := range buffers {
		b.mu.Lock()
		b.trim(size)
		b.mu.Unlock()
	}
}

// Rebuild recomputes every window from messages in arrival order. Messages
// at or below a contact's cleared watermark are skipped.
func (w *Window) Rebuild(msgs []Message, cleared map[string]uint64) {
	size := w.Size()
	buffers := make(map[string]*turnBuffer)
	for _, m := range msgs {
		role, ok := m.turnRole()
		if !ok {
			continue
		}
		if mark, cut := cleared[m.Contact]; cut && m.Seq <= mark {
			continue
		}
		b := buffers[m.Contact]
		if b == nil {
			b = &turnBuffer{}
			buffers[m.Contact] = b
		}
		b.turns = append(b.turns, Turn{Role: role, Text: m.Body})
		b.trim(size)
	}

	w.mu.Lock()
	w.buffers = buffers
	w.cleared = maps.Clone(cleared)
	if w.cleared == nil {
		w.cleared = make(map[string]uint64)
	}
	w.mu.Unlock()
}
