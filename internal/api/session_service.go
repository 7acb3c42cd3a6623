package api

import (
	"context"
	"errors"
	"time"

	"github.com/matheus3301/wppbot/internal/conversation"
	"github.com/matheus3301/wppbot/internal/rpc"
	"github.com/matheus3301/wppbot/internal/status"
	"github.com/matheus3301/wppbot/internal/wa"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// SessionAdapter is the part of the WhatsApp adapter the session service drives.
type SessionAdapter interface {
	PhoneNumber() string
	StartQRAuth(ctx context.Context) (<-chan wa.AuthEvent, error)
	Logout(ctx context.Context) error
	IsConnected() bool
	Connect() error
	Disconnect()
}

// SessionService implements rpc.SessionServer.
type SessionService struct {
	sessionName string
	autoReply   bool
	startedAt   time.Time
	machine     *status.Machine
	adapter     SessionAdapter
	core        *conversation.Core
}

// NewSessionService creates a new session service. adapter may be nil
// while the daemon is booting.
func NewSessionService(sessionName string, autoReply bool, machine *status.Machine, adapter SessionAdapter, core *conversation.Core) *SessionService {
	return &SessionService{
		sessionName: sessionName,
		autoReply:   autoReply,
		startedAt:   time.Now(),
		machine:     machine,
		adapter:     adapter,
		core:        core,
	}
}

func (s *SessionService) GetSessionStatus(_ context.Context, _ *rpc.GetSessionStatusRequest) (*rpc.GetSessionStatusResponse, error) {
	current, since := s.machine.Since()

	resp := &rpc.GetSessionStatusResponse{
		Session:           s.sessionName,
		Status:            string(current),
		StatusSinceUnixMs: since.UnixMilli(),
		UptimeMs:          time.Since(s.startedAt).Milliseconds(),
		AutoReply:         s.autoReply,
	}
	if s.adapter != nil {
		resp.PhoneNumber = s.adapter.PhoneNumber()
	}
	if s.core != nil {
		resp.MessageCount = s.core.Store().Len()
		resp.ConversationCount = len(s.core.Conversations())
	}
	return resp, nil
}

func (s *SessionService) StartAuth(_ *rpc.StartAuthRequest, stream grpc.ServerStreamingServer[rpc.AuthEvent]) error {
	if s.adapter == nil {
		return grpcstatus.Errorf(codes.Unavailable, "adapter not initialized")
	}

	authCh, err := s.adapter.StartQRAuth(stream.Context())
	if err != nil {
		return grpcstatus.Errorf(codes.Internal, "start auth: %v", err)
	}

	for evt := range authCh {
		if err := stream.Send(&rpc.AuthEvent{
			Type:    string(evt.Type),
			QRCode:  evt.QRCode,
			Message: evt.Message,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *SessionService) Logout(ctx context.Context, _ *rpc.LogoutRequest) (*rpc.SessionActionResponse, error) {
	if s.adapter == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "adapter not initialized")
	}
	if err := s.adapter.Logout(ctx); err != nil {
		if errors.Is(err, wa.ErrNotPaired) {
			return nil, grpcstatus.Error(codes.FailedPrecondition, err.Error())
		}
		return nil, grpcstatus.Errorf(codes.Internal, "logout: %v", err)
	}
	return &rpc.SessionActionResponse{Success: true, Message: "logged out"}, nil
}

// Connect reconnects to WhatsApp after a manual Disconnect.
func (s *SessionService) Connect(_ context.Context, _ *rpc.ConnectRequest) (*rpc.SessionActionResponse, error) {
	if s.adapter == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "adapter not initialized")
	}
	if s.adapter.IsConnected() {
		return &rpc.SessionActionResponse{Success: true, Message: "already connected"}, nil
	}
	if s.machine.Current() == status.AuthRequired {
		return nil, grpcstatus.Errorf(codes.FailedPrecondition, "session is not authenticated")
	}
	if err := s.adapter.Connect(); err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "connect: %v", err)
	}
	return &rpc.SessionActionResponse{Success: true, Message: "connecting"}, nil
}

// Disconnect drops the WhatsApp connection. Incoming messages stop and
// queued replies wait in the outbox.
func (s *SessionService) Disconnect(_ context.Context, _ *rpc.DisconnectRequest) (*rpc.SessionActionResponse, error) {
	if s.adapter == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "adapter not initialized")
	}
	s.adapter.Disconnect()
	// A requested disconnect raises no whatsmeow event.
	_ = s.machine.Transition(status.Reconnecting)
	return &rpc.SessionActionResponse{Success: true, Message: "disconnected"}, nil
}
