// Package ingest feeds WhatsApp events from the bus into the conversation core.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/conversation"
	"github.com/matheus3301/wppbot/internal/store"
	"github.com/matheus3301/wppbot/internal/wa"
	"go.uber.org/zap"
)

// Replier queues an assistant reply for a contact.
type Replier interface {
	Submit(contact string) error
}

// ContactSource lists the contacts known to the WhatsApp device store.
type ContactSource interface {
	GetContacts(ctx context.Context) []store.Contact
}

// Options configures an Engine.
type Options struct {
	Core      *conversation.Core
	DB        *store.DB
	Bus       *bus.Bus
	Replier   Replier
	AutoReply bool
	// Contacts, when set, is read into the contacts table on every connect.
	Contacts ContactSource
	Logger   *zap.Logger
}

// Engine subscribes to "wa." events and applies them to the core.
type Engine struct {
	core      *conversation.Core
	db        *store.DB
	bus       *bus.Bus
	replier   Replier
	autoReply bool
	contacts  ContactSource
	logger    *zap.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewEngine creates a new ingest engine.
func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		core:      opts.Core,
		db:        opts.DB,
		bus:       opts.Bus,
		replier:   opts.Replier,
		autoReply: opts.AutoReply,
		contacts:  opts.Contacts,
		logger:    opts.Logger,
	}
}

// Start subscribes to inbound WhatsApp events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.Subscribe(bus.PrefixWhatsApp, 256)
	connected, unsubConnected := e.bus.Subscribe(bus.KindSyncConnected, 4)

	go func() {
		defer close(e.done)
		defer unsub()
		defer unsubConnected()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-connected:
				e.harvestContacts(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the event loop to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindWAMessage:
		msg, ok := evt.Payload.(*wa.ParsedMessage)
		if !ok {
			return
		}
		if err := e.IngestMessage(msg); err != nil {
			e.logger.Error("failed to ingest message", zap.Error(err), zap.String("msg_id", msg.MsgID))
		}
	case bus.KindWAReceipt:
		r, ok := evt.Payload.(*wa.ParsedReceipt)
		if !ok {
			return
		}
		e.ApplyReceipt(r)
	case bus.KindWAContact:
		c, ok := evt.Payload.(*store.Contact)
		if !ok {
			return
		}
		if err := e.db.UpsertContact(c); err != nil {
			e.logger.Error("failed to upsert contact", zap.Error(err), zap.String("jid", c.JID))
		}
	case bus.KindWAContactBatch:
		cs, ok := evt.Payload.([]store.Contact)
		if !ok {
			return
		}
		if err := e.db.BulkUpsertContacts(cs); err != nil {
			e.logger.Error("failed to upsert contacts", zap.Error(err), zap.Int("count", len(cs)))
		} else {
			e.logger.Info("contacts ingested", zap.Int("count", len(cs)))
		}
	}
}

// harvestContacts copies the device store contacts into the contacts table.
func (e *Engine) harvestContacts(ctx context.Context) {
	if e.contacts == nil {
		return
	}
	cs := e.contacts.GetContacts(ctx)
	if len(cs) == 0 {
		return
	}
	if err := e.db.BulkUpsertContacts(cs); err != nil {
		e.logger.Error("failed to store device contacts", zap.Error(err), zap.Int("count", len(cs)))
		return
	}
	e.logger.Info("device contacts stored", zap.Int("count", len(cs)))
}

// IngestMessage appends a live text message to the core. Media without a
// caption, group chats and echoes of our own outbox sends are skipped.
// Duplicate deliveries are dropped quietly.
func (e *Engine) IngestMessage(pm *wa.ParsedMessage) error {
	if pm.Body == "" || pm.IsGroup {
		e.logger.Debug("skipping message", zap.String("msg_id", pm.MsgID), zap.String("type", pm.MessageType), zap.Bool("group", pm.IsGroup))
		return nil
	}
	if pm.FromMe {
		clientID, err := e.db.ClientMsgIDForServer(pm.MsgID)
		if err != nil {
			return err
		}
		if clientID != "" {
			return nil
		}
	}

	stored, err := e.core.Append(pm.ToMessage())
	if err != nil {
		var verr *conversation.ValidationError
		if errors.As(err, &verr) {
			e.logger.Debug("message rejected", zap.String("msg_id", pm.MsgID), zap.String("reason", verr.Error()))
			return nil
		}
		return err
	}

	if !pm.FromMe && pm.SenderName != "" {
		if err := e.db.UpsertContact(&store.Contact{JID: pm.ChatJID, PushName: pm.SenderName}); err != nil {
			e.logger.Warn("failed to upsert sender", zap.Error(err), zap.String("contact", pm.ChatJID))
		}
	}

	e.bus.Publish(bus.Event{Kind: bus.KindMessageAppended, Timestamp: time.Now(), Payload: stored})

	if e.autoReply && e.replier != nil && stored.Direction == conversation.Inbound {
		if err := e.replier.Submit(stored.Contact); err != nil {
			e.logger.Warn("failed to queue reply", zap.Error(err), zap.String("contact", stored.Contact))
		}
	}
	return nil
}

// ApplyReceipt moves the acknowledged messages forward. Receipts for our
// own messages carry server IDs, which are mapped back to the client IDs
// the core knows them by. Unknown IDs are ignored.
func (e *Engine) ApplyReceipt(r *wa.ParsedReceipt) {
	for _, id := range r.MessageIDs {
		target := id
		if clientID, err := e.db.ClientMsgIDForServer(id); err != nil {
			e.logger.Warn("failed to resolve receipt id", zap.Error(err), zap.String("msg_id", id))
		} else if clientID != "" {
			target = clientID
		}

		updated, err := e.core.UpdateStatus(target, r.Status)
		if err != nil {
			var nf *conversation.NotFoundError
			var tr *conversation.InvalidTransitionError
			switch {
			case errors.As(err, &nf):
				e.logger.Debug("receipt for unknown message", zap.String("msg_id", id))
			case errors.As(err, &tr):
				e.logger.Debug("stale receipt", zap.String("msg_id", id), zap.String("from", string(tr.From)), zap.String("to", string(tr.To)))
			default:
				e.logger.Warn("failed to apply receipt", zap.Error(err), zap.String("msg_id", id))
			}
			continue
		}
		e.bus.Publish(bus.Event{Kind: bus.KindMessageStatus, Timestamp: time.Now(), Payload: updated})
	}
}
