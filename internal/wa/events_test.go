package wa

import (
	"context"
	"testing"
	"time"

	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/conversation"
	"github.com/matheus3301/wppbot/internal/status"
	"github.com/matheus3301/wppbot/internal/store"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// fakeResolver maps LID users to phone numbers.
type fakeResolver map[string]string

func (f fakeResolver) ResolveLID(_ context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer {
		return jid
	}
	if pn, ok := f[jid.User]; ok {
		return types.JID{User: pn, Server: types.DefaultUserServer}
	}
	return jid
}

type handlerHarness struct {
	bus     *bus.Bus
	machine *status.Machine
	handler *EventHandler
}

func newHarness(t *testing.T, resolver LIDResolver, path ...status.State) *handlerHarness {
	t.Helper()
	b := bus.New()
	m := status.NewMachine(b)
	for _, s := range path {
		if err := m.Transition(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	return &handlerHarness{bus: b, machine: m, handler: NewEventHandler(b, m, resolver, zap.NewNop())}
}

func waitEvent(t *testing.T, ch <-chan bus.Event, kind string) bus.Event {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case evt := <-ch:
			if evt.Kind == kind {
				return evt
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s event", kind)
		}
	}
}

func expectQuiet(t *testing.T, ch <-chan bus.Event) {
	t.Helper()
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnectionLifecycle(t *testing.T) {
	ready := []status.State{status.Connecting, status.Syncing, status.Ready}
	tests := []struct {
		name     string
		from     []status.State
		event    any
		want     status.State
		wantKind string
	}{
		{"connected after pairing", []status.State{status.AuthRequired}, &events.Connected{}, status.Syncing, bus.KindSyncConnected},
		{"connected on boot", []status.State{status.Connecting}, &events.Connected{}, status.Syncing, bus.KindSyncConnected},
		{"connected after drop", append(ready, status.Reconnecting), &events.Connected{}, status.Syncing, bus.KindSyncConnected},
		{"offline backlog done", []status.State{status.Connecting, status.Syncing}, &events.OfflineSyncCompleted{}, status.Ready, ""},
		{"keepalive lost", ready, &events.KeepAliveTimeout{ErrorCount: 2}, status.Degraded, ""},
		{"keepalive back", append(ready, status.Degraded), &events.KeepAliveRestored{}, status.Ready, ""},
		{"disconnected", ready, &events.Disconnected{}, status.Reconnecting, bus.KindSyncDisconnected},
		{"stream replaced", ready, &events.StreamReplaced{}, status.Reconnecting, bus.KindSyncDisconnected},
		{"unlinked from phone", ready, &events.LoggedOut{}, status.AuthRequired, bus.KindSessionLoggedOut},
		{"disconnect while unpaired", []status.State{status.AuthRequired}, &events.Disconnected{}, status.AuthRequired, bus.KindSyncDisconnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil, tt.from...)
			ch, unsub := h.bus.Subscribe("", 16)
			defer unsub()

			h.handler.Handle(tt.event)

			if got := h.machine.Current(); got != tt.want {
				t.Errorf("state = %s, want %s", got, tt.want)
			}
			if tt.wantKind != "" {
				waitEvent(t, ch, tt.wantKind)
			}
		})
	}
}

func TestFirstMessageCompletesSync(t *testing.T) {
	h := newHarness(t, fakeResolver{"3917077286968": "5585999990001"}, status.Connecting, status.Syncing)
	ch, unsub := h.bus.Subscribe(bus.KindWAMessage, 10)
	defer unsub()

	lid := types.JID{User: "3917077286968", Server: types.HiddenUserServer, Device: 2}
	h.handler.Handle(liveMessage(lid, lid, false, &waE2E.Message{Conversation: proto.String("oi")}))

	if h.machine.Current() != status.Ready {
		t.Errorf("state = %s, want READY", h.machine.Current())
	}
	msg, ok := waitEvent(t, ch, bus.KindWAMessage).Payload.(*ParsedMessage)
	if !ok {
		t.Fatal("payload is not *ParsedMessage")
	}
	if msg.ChatJID != "5585999990001@s.whatsapp.net" || msg.SenderJID != "5585999990001@s.whatsapp.net" {
		t.Errorf("LID not resolved: chat %q sender %q", msg.ChatJID, msg.SenderJID)
	}
}

func TestReceiptEvents(t *testing.T) {
	h := newHarness(t, nil)
	ch, unsub := h.bus.Subscribe("wa.", 10)
	defer unsub()

	h.handler.Handle(&events.Receipt{
		MessageSource: types.MessageSource{Chat: types.JID{User: "5585999990001", Server: types.DefaultUserServer, Device: 2}},
		MessageIDs:    []types.MessageID{"s1", "s2"},
		Timestamp:     time.Now(),
		Type:          types.ReceiptTypeRead,
	})
	r, ok := waitEvent(t, ch, bus.KindWAReceipt).Payload.(*ParsedReceipt)
	if !ok {
		t.Fatal("payload is not *ParsedReceipt")
	}
	if r.ChatJID != "5585999990001@s.whatsapp.net" || r.Status != conversation.StatusRead || len(r.MessageIDs) != 2 {
		t.Errorf("receipt = %+v", r)
	}

	// Retry receipts do not move any message.
	h.handler.Handle(&events.Receipt{MessageIDs: []types.MessageID{"x"}, Type: types.ReceiptTypeRetry})
	expectQuiet(t, ch)
}

func TestContactEvents(t *testing.T) {
	h := newHarness(t, fakeResolver{"3917077286968": "5585999990001"})
	ch, unsub := h.bus.Subscribe("wa.contact", 10)
	defer unsub()

	h.handler.Handle(&events.PushName{
		JID:         types.JID{User: "5585999990002", Server: types.DefaultUserServer, Device: 5},
		NewPushName: "Ana",
	})
	c, ok := waitEvent(t, ch, bus.KindWAContact).Payload.(*store.Contact)
	if !ok || c.JID != "5585999990002@s.whatsapp.net" || c.PushName != "Ana" {
		t.Errorf("push name contact = %+v", c)
	}

	ts := uint64(time.Now().Unix())
	h.handler.Handle(&events.HistorySync{Data: &waHistorySync.HistorySync{
		Conversations: []*waHistorySync.Conversation{
			{
				ID:   proto.String("3917077286968@lid"),
				Name: proto.String("Maria Souza"),
				Messages: []*waHistorySync.HistorySyncMsg{{
					Message: &waWeb.WebMessageInfo{
						Key: &waCommon.MessageKey{
							ID:        proto.String("hm1"),
							FromMe:    proto.Bool(false),
							RemoteJID: proto.String("3917077286968@lid"),
						},
						MessageTimestamp: &ts,
						Message:          &waE2E.Message{Conversation: proto.String("bom dia")},
						PushName:         proto.String("Mari"),
					},
				}},
			},
			// Nothing to name it by.
			{ID: proto.String("120363123456@g.us")},
		},
	}})
	batch, ok := waitEvent(t, ch, bus.KindWAContactBatch).Payload.([]store.Contact)
	if !ok || len(batch) != 1 {
		t.Fatalf("batch = %#v", batch)
	}
	if b := batch[0]; b.JID != "5585999990001@s.whatsapp.net" || b.Name != "Maria Souza" || b.PushName != "Mari" {
		t.Errorf("history contact = %+v", b)
	}

	h.handler.Handle(&events.HistorySync{})
	expectQuiet(t, ch)
}

// WhatsApp addresses one user by phone JID and by LID. Unresolved, the two
// split one contact into two conversations.
func TestResolveJID(t *testing.T) {
	tests := []struct {
		name     string
		resolver LIDResolver
		input    string
		want     string
	}{
		{"plain", nil, "5585999990001@s.whatsapp.net", "5585999990001@s.whatsapp.net"},
		{"device suffix", nil, "5585999990001:0@s.whatsapp.net", "5585999990001@s.whatsapp.net"},
		{"lid without resolver", nil, "3917077286968@lid", "3917077286968@lid"},
		{"lid with resolver", fakeResolver{"3917077286968": "5585999990001"}, "3917077286968@lid", "5585999990001@s.whatsapp.net"},
		{"unknown lid", fakeResolver{}, "1@lid", "1@lid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.resolver)
			if got := h.handler.resolveJID(tt.input); got != tt.want {
				t.Errorf("resolveJID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAdapterResolveLIDWithoutStore(t *testing.T) {
	a := &Adapter{}
	for _, jid := range []types.JID{
		{User: "5585999990001", Server: types.DefaultUserServer},
		{User: "120363123456", Server: types.GroupServer},
		{User: "3917077286968", Server: types.HiddenUserServer},
	} {
		if got := a.ResolveLID(context.Background(), jid); got != jid {
			t.Errorf("ResolveLID(%v) = %v, want unchanged", jid, got)
		}
	}
}
