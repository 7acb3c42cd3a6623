package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const assistantService = "wppbot.v1.AssistantService"

// AssistantServer manages the assistant profile and manual replies.
type AssistantServer interface {
	GetProfile(context.Context, *GetProfileRequest) (*ProfileResponse, error)
	UpdatePrompt(context.Context, *UpdatePromptRequest) (*ProfileResponse, error)
	UpdateParameters(context.Context, *UpdateParametersRequest) (*ProfileResponse, error)
	Reply(context.Context, *ReplyRequest) (*ReplyResponse, error)
}

// AssistantServiceDesc describes AssistantService for grpc.Server.RegisterService.
var AssistantServiceDesc = grpc.ServiceDesc{
	ServiceName: assistantService,
	HandlerType: (*AssistantServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetProfile", Handler: unary("/"+assistantService+"/GetProfile", AssistantServer.GetProfile)},
		{MethodName: "UpdatePrompt", Handler: unary("/"+assistantService+"/UpdatePrompt", AssistantServer.UpdatePrompt)},
		{MethodName: "UpdateParameters", Handler: unary("/"+assistantService+"/UpdateParameters", AssistantServer.UpdateParameters)},
		{MethodName: "Reply", Handler: unary("/"+assistantService+"/Reply", AssistantServer.Reply)},
	},
}

// RegisterAssistantServer registers srv on s.
func RegisterAssistantServer(s grpc.ServiceRegistrar, srv AssistantServer) {
	s.RegisterService(&AssistantServiceDesc, srv)
}

// AssistantClient calls AssistantService.
type AssistantClient struct {
	cc grpc.ClientConnInterface
}

// NewAssistantClient creates a client on cc.
func NewAssistantClient(cc grpc.ClientConnInterface) *AssistantClient {
	return &AssistantClient{cc: cc}
}

func (c *AssistantClient) GetProfile(ctx context.Context, in *GetProfileRequest, opts ...grpc.CallOption) (*ProfileResponse, error) {
	return invoke[GetProfileRequest, ProfileResponse](ctx, c.cc, "/"+assistantService+"/GetProfile", in, opts)
}

func (c *AssistantClient) UpdatePrompt(ctx context.Context, in *UpdatePromptRequest, opts ...grpc.CallOption) (*ProfileResponse, error) {
	return invoke[UpdatePromptRequest, ProfileResponse](ctx, c.cc, "/"+assistantService+"/UpdatePrompt", in, opts)
}

func (c *AssistantClient) UpdateParameters(ctx context.Context, in *UpdateParametersRequest, opts ...grpc.CallOption) (*ProfileResponse, error) {
	return invoke[UpdateParametersRequest, ProfileResponse](ctx, c.cc, "/"+assistantService+"/UpdateParameters", in, opts)
}

func (c *AssistantClient) Reply(ctx context.Context, in *ReplyRequest, opts ...grpc.CallOption) (*ReplyResponse, error) {
	return invoke[ReplyRequest, ReplyResponse](ctx, c.cc, "/"+assistantService+"/Reply", in, opts)
}
