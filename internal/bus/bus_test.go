package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(PrefixMessage, 10)
	defer unsub()

	b.Publish(Event{Kind: KindMessageAppended, Timestamp: time.Now(), Payload: "m1"})

	select {
	case evt := <-ch:
		if evt.Kind != KindMessageAppended || evt.Payload != "m1" {
			t.Errorf("got %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(PrefixSync, 10)
	defer unsub()

	b.Publish(Event{Kind: KindSessionStatusChanged})
	b.Publish(Event{Kind: KindSyncConnected})

	select {
	case evt := <-ch:
		if evt.Kind != KindSyncConnected {
			t.Errorf("got kind %q, want %s", evt.Kind, KindSyncConnected)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestExactKindSubscription(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(KindWAContact, 10)
	defer unsub()

	// A full kind is also a prefix, so the batch kind matches too.
	b.Publish(Event{Kind: KindWAContact})
	b.Publish(Event{Kind: KindWAContactBatch})
	b.Publish(Event{Kind: KindWAMessage})

	got := 0
	for {
		select {
		case <-ch:
			got++
			continue
		case <-time.After(50 * time.Millisecond):
		}
		break
	}
	if got != 2 {
		t.Errorf("got %d events, want 2", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(PrefixSession, 10)
	if b.Subscribers() != 1 {
		t.Fatalf("subscribers = %d, want 1", b.Subscribers())
	}
	unsub()
	if b.Subscribers() != 0 {
		t.Errorf("subscribers = %d after unsubscribe", b.Subscribers())
	}

	b.Publish(Event{Kind: KindSessionLoggedOut})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBufferIsCounted(t *testing.T) {
	b := New()
	slow, unsub := b.Subscribe(PrefixMessage, 1)
	defer unsub()
	fast, unsubFast := b.Subscribe(PrefixMessage, 10)
	defer unsubFast()

	b.Publish(Event{Kind: KindMessageAppended, Payload: 1})
	b.Publish(Event{Kind: KindMessageStatus, Payload: 2})
	b.Publish(Event{Kind: KindMessageRead, Payload: 3})

	if evt := <-slow; evt.Payload != 1 {
		t.Errorf("slow subscriber got %v, want first event", evt.Payload)
	}
	if len(fast) != 3 {
		t.Errorf("fast subscriber buffered %d, want 3", len(fast))
	}
	if b.Dropped() != 2 {
		t.Errorf("dropped = %d, want 2", b.Dropped())
	}
}
