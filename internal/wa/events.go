package wa

import (
	"context"
	"time"

	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/status"
	"github.com/matheus3301/wppbot/internal/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// LIDResolver maps hidden-user (LID) JIDs to phone number JIDs.
type LIDResolver interface {
	ResolveLID(ctx context.Context, jid types.JID) types.JID
}

// EventHandler processes whatsmeow events, drives the state machine,
// and publishes parsed domain events on the bus. It does NOT touch the
// conversation core directly; the ingest engine subscribes to the bus.
type EventHandler struct {
	bus      *bus.Bus
	machine  *status.Machine
	resolver LIDResolver
	logger   *zap.Logger
}

// NewEventHandler creates a new event handler. resolver may be nil, in which
// case LID JIDs are kept as they are.
func NewEventHandler(b *bus.Bus, machine *status.Machine, resolver LIDResolver, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		bus:      b,
		machine:  machine,
		resolver: resolver,
		logger:   logger,
	}
}

// Handle dispatches one whatsmeow event. It is registered on the client
// and runs on whatsmeow's event goroutine.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.Receipt:
		h.handleReceipt(evt)
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		h.advance(status.Connecting, status.Syncing)
		h.publish(bus.KindSyncConnected, nil)
	case *events.OfflineSyncCompleted:
		h.advanceFrom(status.Syncing, status.Ready)
	case *events.KeepAliveTimeout:
		h.logger.Warn("WhatsApp keepalive timed out", zap.Int("errors", evt.ErrorCount))
		h.advanceFrom(status.Ready, status.Degraded)
	case *events.KeepAliveRestored:
		h.logger.Info("WhatsApp keepalive restored")
		h.advanceFrom(status.Degraded, status.Ready)
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.PushName:
		h.publish(bus.KindWAContact, &store.Contact{JID: h.resolveJID(evt.JID.String()), PushName: evt.NewPushName})
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		h.advance(status.Reconnecting)
		h.publish(bus.KindSyncDisconnected, nil)
	case *events.StreamReplaced:
		h.logger.Warn("another client took over this session")
		h.advance(status.Reconnecting)
		h.publish(bus.KindSyncDisconnected, "stream replaced")
	case *events.LoggedOut:
		reason := evt.Reason.String()
		h.logger.Warn("WhatsApp logged out", zap.String("reason", reason))
		h.advance(status.AuthRequired)
		h.publish(bus.KindSessionLoggedOut, reason)
	}
}

// advance walks the machine through states in order. Steps the machine
// cannot take from where it is are skipped, so a Connected event reaches
// SYNCING from AUTH_REQUIRED, RECONNECTING or CONNECTING alike.
func (h *EventHandler) advance(states ...status.State) {
	for _, s := range states {
		if !status.CanTransition(h.machine.Current(), s) {
			continue
		}
		if err := h.machine.Transition(s); err != nil {
			h.logger.Debug("status transition skipped", zap.String("to", string(s)), zap.Error(err))
		}
	}
}

// advanceFrom moves to to only while the machine is in from.
func (h *EventHandler) advanceFrom(from, to status.State) {
	if h.machine.Current() == from {
		_ = h.machine.Transition(to)
	}
}

func (h *EventHandler) publish(kind string, payload any) {
	h.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// handleMessage publishes a live message. The first one after a connect
// also means the offline backlog has been delivered.
func (h *EventHandler) handleMessage(evt *events.Message) {
	h.advanceFrom(status.Syncing, status.Ready)

	parsed := ParseLiveMessage(evt)
	parsed.ChatJID = h.resolveJID(parsed.ChatJID)
	parsed.SenderJID = h.resolveJID(parsed.SenderJID)
	h.publish(bus.KindWAMessage, parsed)
}

func (h *EventHandler) handleReceipt(evt *events.Receipt) {
	parsed, ok := ParseReceipt(evt)
	if !ok {
		return
	}
	parsed.ChatJID = h.resolveJID(parsed.ChatJID)
	h.publish(bus.KindWAReceipt, parsed)
}

// handleHistorySync harvests contact names from the initial history sync.
// Historical messages are not ingested: the assistant only tracks exchanges
// that happen while it is running.
func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	var contacts []store.Contact
	seen := make(map[string]bool)
	for _, conv := range data.GetConversations() {
		jid := h.resolveJID(conv.GetID())
		if jid == "" || seen[jid] {
			continue
		}
		pushName := ""
		for _, hm := range conv.GetMessages() {
			if wmsg := hm.GetMessage(); wmsg != nil && !wmsg.GetKey().GetFromMe() && wmsg.GetPushName() != "" {
				pushName = wmsg.GetPushName()
				break
			}
		}
		name := conv.GetName()
		if name == "" && pushName == "" {
			continue
		}
		seen[jid] = true
		contacts = append(contacts, store.Contact{JID: jid, Name: name, PushName: pushName})
	}

	if len(contacts) > 0 {
		h.publish(bus.KindWAContactBatch, contacts)
	}
}

// resolveJID normalizes jid and, when a resolver is set, maps LIDs to phone numbers.
func (h *EventHandler) resolveJID(jid string) string {
	normalized := NormalizeJID(jid)
	if h.resolver == nil || normalized == "" {
		return normalized
	}
	parsed, err := types.ParseJID(normalized)
	if err != nil {
		return normalized
	}
	return h.resolver.ResolveLID(context.Background(), parsed).ToNonAD().String()
}
