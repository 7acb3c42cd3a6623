package api

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wppbot/internal/assistant"
	"github.com/matheus3301/wppbot/internal/bus"
	"github.com/matheus3301/wppbot/internal/conversation"
	"github.com/matheus3301/wppbot/internal/rpc"
	"github.com/matheus3301/wppbot/internal/status"
	"github.com/matheus3301/wppbot/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

const defaultConversationLimit = 50

// watchedKinds are streamed when WatchEvents is called without a prefix.
var watchedKinds = []string{bus.PrefixMessage, "stats.", bus.PrefixSession, bus.PrefixSync}

// InboxService implements rpc.InboxServer on top of the conversation core.
type InboxService struct {
	core       *conversation.Core
	db         *store.DB
	bus        *bus.Bus
	dispatcher assistant.Dispatcher
	logger     *zap.Logger
}

// NewInboxService creates the inbox service. dispatcher delivers operator messages.
func NewInboxService(core *conversation.Core, db *store.DB, b *bus.Bus, dispatcher assistant.Dispatcher, logger *zap.Logger) *InboxService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InboxService{core: core, db: db, bus: b, dispatcher: dispatcher, logger: logger}
}

func (s *InboxService) contactNames() map[string]string {
	names, err := s.db.ContactNames()
	if err != nil {
		s.logger.Warn("failed to load contact names", zap.Error(err))
	}
	return names
}

func (s *InboxService) ListConversations(_ context.Context, req *rpc.ListConversationsRequest) (*rpc.ListConversationsResponse, error) {
	convs := s.core.Conversations()
	if req.Limit > 0 && len(convs) > req.Limit {
		convs = convs[:req.Limit]
	}
	names := s.contactNames()
	out := make([]rpc.Conversation, 0, len(convs))
	for _, c := range convs {
		out = append(out, conversationToRPC(c, names))
	}
	return &rpc.ListConversationsResponse{Conversations: out}, nil
}

// GetConversation returns a conversation with its newest messages and,
// unless asked otherwise, marks it read.
func (s *InboxService) GetConversation(_ context.Context, req *rpc.GetConversationRequest) (*rpc.GetConversationResponse, error) {
	if req.Contact == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "contact is required")
	}
	if !req.KeepUnread {
		if s.core.MarkRead(req.Contact) {
			s.publishRead(req.Contact)
		}
	}
	conv, msgs, ok := s.core.Conversation(req.Contact)
	if !ok {
		return nil, grpcstatus.Errorf(codes.NotFound, "conversation %q not found", req.Contact)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultConversationLimit
	}
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]rpc.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageToRPC(m))
	}
	return &rpc.GetConversationResponse{
		Conversation: conversationToRPC(conv, s.contactNames()),
		Messages:     out,
		WindowTurns:  s.core.Window().Len(req.Contact),
	}, nil
}

func (s *InboxService) MarkRead(_ context.Context, req *rpc.MarkReadRequest) (*rpc.MarkReadResponse, error) {
	if !s.core.MarkRead(req.Contact) {
		return nil, grpcstatus.Errorf(codes.NotFound, "conversation %q not found", req.Contact)
	}
	s.publishRead(req.Contact)
	return &rpc.MarkReadResponse{}, nil
}

func (s *InboxService) publishRead(contact string) {
	s.bus.Publish(bus.Event{Kind: bus.KindMessageRead, Timestamp: time.Now(), Payload: contact})
}

// SendText sends an operator message. It joins the contact's context window
// as an assistant turn.
func (s *InboxService) SendText(ctx context.Context, req *rpc.SendTextRequest) (*rpc.SendTextResponse, error) {
	msg, err := s.core.Append(conversation.Message{
		Contact:   req.Contact,
		Body:      strings.TrimSpace(req.Text),
		Direction: conversation.Outbound,
		Origin:    conversation.OriginOperator,
	})
	if err != nil {
		return nil, toStatus("send text", err)
	}
	s.bus.Publish(bus.Event{Kind: bus.KindMessageAppended, Timestamp: time.Now(), Payload: msg})

	if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
		s.logger.Error("dispatch operator message failed", zap.Error(err), zap.String("msg_id", msg.ID))
		if updated, uerr := s.core.UpdateStatus(msg.ID, conversation.StatusFailed); uerr == nil {
			msg = updated
		}
		return nil, grpcstatus.Errorf(codes.Internal, "queue message: %v", err)
	}
	return &rpc.SendTextResponse{Message: messageToRPC(msg)}, nil
}

func (s *InboxService) ClearHistory(_ context.Context, req *rpc.ClearHistoryRequest) (*rpc.ClearHistoryResponse, error) {
	cleared := s.core.ClearHistory(req.Contact)
	if cleared {
		s.logger.Info("context window cleared", zap.String("contact", req.Contact))
	}
	return &rpc.ClearHistoryResponse{Cleared: cleared}, nil
}

func (s *InboxService) GetStats(_ context.Context, _ *rpc.GetStatsRequest) (*rpc.GetStatsResponse, error) {
	snap := s.core.Snapshot()
	return &rpc.GetStatsResponse{Stats: statsToRPC(snap.Stats), TakenAtUnixMs: snap.TakenAt.UnixMilli()}, nil
}

func (s *InboxService) ListDigests(_ context.Context, req *rpc.ListDigestsRequest) (*rpc.ListDigestsResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 24
	}
	digests, err := s.db.RecentDigests(limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list digests: %v", err)
	}
	out := make([]rpc.Digest, 0, len(digests))
	for _, d := range digests {
		out = append(out, digestToRPC(d))
	}
	return &rpc.ListDigestsResponse{Digests: out}, nil
}

func (s *InboxService) WatchEvents(req *rpc.WatchEventsRequest, stream grpc.ServerStreamingServer[rpc.Event]) error {
	ch, unsub := s.bus.Subscribe(req.Prefix, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if req.Prefix == "" && !watched(evt.Kind) {
				continue
			}
			if err := stream.Send(eventToRPC(evt)); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func watched(kind string) bool {
	for _, prefix := range watchedKinds {
		if strings.HasPrefix(kind, prefix) {
			return true
		}
	}
	return false
}

func eventToRPC(evt bus.Event) *rpc.Event {
	out := &rpc.Event{
		EventID:          uuid.New().String(),
		Kind:             evt.Kind,
		OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
	}
	switch p := evt.Payload.(type) {
	case conversation.Message:
		m := messageToRPC(p)
		out.Message = &m
	case conversation.Stats:
		out.Detail = fmt.Sprintf("messages=%d unread=%d response_rate=%d%% avg_response=%s",
			p.TotalMessages, p.UnreadMessages, p.ResponseRate, p.AverageResponseTime)
	case status.StatusChange:
		out.Detail = fmt.Sprintf("%s -> %s", p.From, p.To)
	case map[string]string:
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+p[k])
		}
		out.Detail = strings.Join(parts, " ")
	case fmt.Stringer:
		out.Detail = p.String()
	case string:
		out.Detail = p
	}
	return out
}
