// Package status tracks the WhatsApp session lifecycle of the daemon.
package status

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/wppbot/internal/bus"
)

// State is one step of the session lifecycle.
type State string

const (
	Booting      State = "BOOTING"
	AuthRequired State = "AUTH_REQUIRED"
	Connecting   State = "CONNECTING"
	Syncing      State = "SYNCING"
	Ready        State = "READY"
	Reconnecting State = "RECONNECTING"
	Degraded     State = "DEGRADED"
	Error        State = "ERROR"
)

// All lists every state in lifecycle order.
var All = []State{Booting, AuthRequired, Connecting, Syncing, Ready, Reconnecting, Degraded, Error}

// edges maps each state to the states it may move to. Any state may fail
// into Error, which only leads back to Booting.
var edges = map[State]map[State]bool{
	Booting:      set(AuthRequired, Connecting),
	AuthRequired: set(Connecting),
	Connecting:   set(Syncing, AuthRequired, Reconnecting),
	Syncing:      set(Ready, Reconnecting, Degraded),
	Ready:        set(Reconnecting, Degraded, AuthRequired),
	Reconnecting: set(Connecting, Degraded),
	Degraded:     set(Connecting, Reconnecting, Ready),
	Error:        set(Booting),
}

func set(states ...State) map[State]bool {
	m := make(map[State]bool, len(states))
	for _, s := range states {
		m[s] = true
	}
	return m
}

// ErrInvalidTransition is wrapped by every rejected transition.
var ErrInvalidTransition = errors.New("invalid status transition")

// CanTransition reports whether the lifecycle allows moving from one state
// to another.
func CanTransition(from, to State) bool {
	if to == Error {
		return from != Error
	}
	return edges[from][to]
}

// Online reports whether messages flow in this state, so replies can be
// sent without waiting in the outbox.
func (s State) Online() bool {
	return s == Syncing || s == Ready || s == Degraded
}

// Machine holds the current state and publishes every change on the bus.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	bus     *bus.Bus
	now     func() time.Time
}

// NewMachine starts a machine in Booting. b may be nil.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		since:   time.Now(),
		bus:     b,
		now:     time.Now,
	}
}

func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Since returns the current state and when it was entered.
func (m *Machine) Since() (State, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.since
}

// Transition moves to state to. Moving to the current state is a no-op and
// publishes nothing.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.current
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	m.current = to
	m.since = m.now()
	// Published under the lock so subscribers see changes in order.
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindSessionStatusChanged,
			Timestamp: m.since,
			Payload:   StatusChange{From: from, To: to, At: m.since},
		})
	}
	return nil
}

// StatusChange is the payload of session.status_changed events.
type StatusChange struct {
	From State
	To   State
	At   time.Time
}
