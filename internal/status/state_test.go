package status

import (
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/wppbot/internal/bus"
)

func TestLifecyclePaths(t *testing.T) {
	paths := []struct {
		name  string
		steps []State
	}{
		{"first pairing", []State{AuthRequired, Connecting, Syncing, Ready}},
		{"returning device", []State{Connecting, Syncing, Ready}},
		{"reconnect loop", []State{Connecting, Syncing, Ready, Reconnecting, Connecting, Syncing, Ready}},
		{"unlinked from phone", []State{Connecting, Syncing, Ready, AuthRequired}},
		{"degraded recovery", []State{Connecting, Syncing, Degraded, Ready}},
		{"crash and reboot", []State{Connecting, Error, Booting}},
	}
	for _, p := range paths {
		t.Run(p.name, func(t *testing.T) {
			m := NewMachine(nil)
			for _, s := range p.steps {
				if err := m.Transition(s); err != nil {
					t.Fatalf("%s -> %s: %v", m.Current(), s, err)
				}
			}
			if got, want := m.Current(), p.steps[len(p.steps)-1]; got != want {
				t.Errorf("ended in %s, want %s", got, want)
			}
		})
	}
}

func TestRejectedTransitions(t *testing.T) {
	tests := []struct {
		from, to State
	}{
		{Booting, Ready},
		// A Connected event during pairing must go through CONNECTING.
		{AuthRequired, Syncing},
		{Reconnecting, Ready},
		{Error, Error},
		{Error, Connecting},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if tt.from == tt.to {
				if CanTransition(tt.from, tt.to) {
					t.Errorf("CanTransition(%s, %s) = true", tt.from, tt.to)
				}
				return
			}
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			err := m.Transition(tt.to)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("err = %v, want ErrInvalidTransition", err)
			}
			if m.Current() != tt.from {
				t.Errorf("state moved to %s on a rejected transition", m.Current())
			}
		})
	}
}

func TestAnyStateCanFail(t *testing.T) {
	for _, s := range All {
		if s == Error {
			continue
		}
		if !CanTransition(s, Error) {
			t.Errorf("%s cannot move to ERROR", s)
		}
	}
}

func TestTransitionPublishesChange(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe(bus.KindSessionStatusChanged, 10)
	defer unsub()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewMachine(b)
	m.now = func() time.Time { return at }
	if err := m.Transition(AuthRequired); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Booting || change.To != AuthRequired || !change.At.Equal(at) {
		t.Errorf("change = %+v", change)
	}
}

func TestSameStateIsSilent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe(bus.KindSessionStatusChanged, 10)
	defer unsub()

	m := NewMachine(b)
	walkTo(t, m, Reconnecting)
	for len(ch) > 0 {
		<-ch
	}
	_, before := m.Since()
	if err := m.Transition(Reconnecting); err != nil {
		t.Fatalf("same-state transition: %v", err)
	}
	if len(ch) != 0 {
		t.Error("same-state transition published an event")
	}
	if _, after := m.Since(); !after.Equal(before) {
		t.Error("same-state transition reset the entry time")
	}
}

func TestSinceTracksEntry(t *testing.T) {
	m := NewMachine(nil)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }

	walkTo(t, m, Ready)
	state, since := m.Since()
	if state != Ready || !since.Equal(at) {
		t.Errorf("Since() = %s, %v, want READY, %v", state, since, at)
	}

	m.now = func() time.Time { return at.Add(time.Hour) }
	_ = m.Transition(Booting)
	if _, since := m.Since(); !since.Equal(at) {
		t.Errorf("since moved to %v on a rejected transition", since)
	}
}

func TestOnline(t *testing.T) {
	online := map[State]bool{Syncing: true, Ready: true, Degraded: true}
	for _, s := range All {
		if got := s.Online(); got != online[s] {
			t.Errorf("%s.Online() = %v, want %v", s, got, online[s])
		}
	}
}

func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Booting:      {},
		AuthRequired: {AuthRequired},
		Connecting:   {AuthRequired, Connecting},
		Syncing:      {Connecting, Syncing},
		Ready:        {Connecting, Syncing, Ready},
		Reconnecting: {Connecting, Syncing, Ready, Reconnecting},
		Degraded:     {Connecting, Syncing, Degraded},
		Error:        {Error},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
