// Package outbox delivers queued outbound messages through WhatsApp.
package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/conversation"
	"github.com/matheus3301/wppbot/internal/store"
	"go.uber.org/zap"
)

// TextSender is the interface for sending text messages via WhatsApp.
type TextSender interface {
	SendText(ctx context.Context, jid string, text string) (serverMsgID string, err error)
}

const pollInterval = 500 * time.Millisecond

// Sender drains the outbox and sends messages via the WhatsApp adapter.
// Each outcome is mirrored into the conversation core as a status change.
type Sender struct {
	db     *store.DB
	sender TextSender
	core   *conversation.Core
	bus    *bus.Bus
	logger *zap.Logger
	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSender creates a new outbox sender.
func NewSender(db *store.DB, sender TextSender, core *conversation.Core, b *bus.Bus, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		db:     db,
		sender: sender,
		core:   core,
		bus:    b,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Start requeues entries an interrupted run left in flight and begins
// polling the outbox.
func (s *Sender) Start(ctx context.Context) {
	if n, err := s.db.RequeueSending(); err != nil {
		s.logger.Error("failed to requeue interrupted sends", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("requeued interrupted sends", zap.Int64("count", n))
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the sender loop and waits for it to exit.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// Wake triggers an outbox pass without waiting for the next tick.
func (s *Sender) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-s.wake:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}

		serverMsgID, err := s.sender.SendText(ctx, entry.ChatJID, entry.Body)
		if err != nil {
			s.logger.Error("failed to send message", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			_ = s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error())
			s.updateStatus(entry.ClientMsgID, conversation.StatusFailed)
			s.bus.Publish(bus.Event{
				Kind:      bus.KindMessageSendFailed,
				Timestamp: time.Now(),
				Payload: map[string]string{
					"client_msg_id": entry.ClientMsgID,
					"contact":       entry.ChatJID,
					"error":         err.Error(),
				},
			})
			continue
		}

		if err := s.db.MarkOutboxSent(entry.ClientMsgID, serverMsgID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		}
		s.updateStatus(entry.ClientMsgID, conversation.StatusSent)

		s.logger.Info("message sent", zap.String("client_msg_id", entry.ClientMsgID), zap.String("server_msg_id", serverMsgID))
		s.bus.Publish(bus.Event{
			Kind:      bus.KindMessageSendAck,
			Timestamp: time.Now(),
			Payload: map[string]string{
				"client_msg_id": entry.ClientMsgID,
				"server_msg_id": serverMsgID,
			},
		})
	}
}

// updateStatus mirrors a send outcome into the core. A receipt can beat the
// ack, in which case the transition is stale and dropped.
func (s *Sender) updateStatus(id string, status conversation.Status) {
	if s.core == nil {
		return
	}
	updated, err := s.core.UpdateStatus(id, status)
	if err != nil {
		var nf *conversation.NotFoundError
		var tr *conversation.InvalidTransitionError
		if errors.As(err, &nf) || errors.As(err, &tr) {
			s.logger.Debug("status not applied", zap.Error(err), zap.String("msg_id", id))
			return
		}
		s.logger.Warn("failed to update status", zap.Error(err), zap.String("msg_id", id))
		return
	}
	s.bus.Publish(bus.Event{Kind: bus.KindMessageStatus, Timestamp: time.Now(), Payload: updated})
}
