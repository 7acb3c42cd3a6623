package api

import (
	"context"
	"strings"

	"github.com/matheus3301/wppbot/internal/assistant"
	"github.com/matheus3301/wppbot/internal/conversation"
	"github.com/matheus3301/wppbot/internal/rpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// ProfileManager reads and edits the active assistant profile.
type ProfileManager interface {
	Current() assistant.Profile
	Update(fn func(*assistant.Profile)) (assistant.Profile, error)
}

// Replier produces an assistant reply on demand.
type Replier interface {
	Reply(ctx context.Context, contact string) (conversation.Message, error)
}

// AssistantService implements rpc.AssistantServer.
type AssistantService struct {
	provider string
	profiles ProfileManager
	replier  Replier
}

// NewAssistantService creates the assistant service. provider names the
// configured generator backend and is informational only.
func NewAssistantService(provider string, profiles ProfileManager, replier Replier) *AssistantService {
	return &AssistantService{provider: provider, profiles: profiles, replier: replier}
}

func (s *AssistantService) GetProfile(_ context.Context, _ *rpc.GetProfileRequest) (*rpc.ProfileResponse, error) {
	return &rpc.ProfileResponse{Profile: profileToRPC(s.provider, s.profiles.Current())}, nil
}

func (s *AssistantService) UpdatePrompt(_ context.Context, req *rpc.UpdatePromptRequest) (*rpc.ProfileResponse, error) {
	prompt := strings.TrimSpace(req.SystemPrompt)
	if prompt == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "system_prompt is required")
	}
	p, err := s.profiles.Update(func(p *assistant.Profile) { p.SystemPrompt = prompt })
	if err != nil {
		return nil, toStatus("update prompt", err)
	}
	return &rpc.ProfileResponse{Profile: profileToRPC(s.provider, p)}, nil
}

func (s *AssistantService) UpdateParameters(_ context.Context, req *rpc.UpdateParametersRequest) (*rpc.ProfileResponse, error) {
	p, err := s.profiles.Update(func(p *assistant.Profile) {
		if req.Model != nil {
			p.Model = strings.TrimSpace(*req.Model)
		}
		if req.Temperature != nil {
			p.Temperature = *req.Temperature
		}
		if req.MaxTokens != nil {
			p.MaxTokens = *req.MaxTokens
		}
		if req.WindowSize != nil {
			p.WindowSize = *req.WindowSize
		}
		if req.FallbackMessage != nil {
			p.FallbackMessage = *req.FallbackMessage
		}
	})
	if err != nil {
		return nil, toStatus("update parameters", err)
	}
	return &rpc.ProfileResponse{Profile: profileToRPC(s.provider, p)}, nil
}

// Reply runs one reply cycle for the contact and returns the sent message,
// which is the fallback text when generation failed.
func (s *AssistantService) Reply(ctx context.Context, req *rpc.ReplyRequest) (*rpc.ReplyResponse, error) {
	if req.Contact == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "contact is required")
	}
	msg, err := s.replier.Reply(ctx, req.Contact)
	if err != nil {
		return nil, toStatus("reply", err)
	}
	return &rpc.ReplyResponse{Message: messageToRPC(msg)}, nil
}
