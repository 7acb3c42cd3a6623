package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const sessionService = "wppbot.v1.SessionService"

// SessionServer exposes the WhatsApp session lifecycle.
type SessionServer interface {
	GetSessionStatus(context.Context, *GetSessionStatusRequest) (*GetSessionStatusResponse, error)
	StartAuth(*StartAuthRequest, grpc.ServerStreamingServer[AuthEvent]) error
	Logout(context.Context, *LogoutRequest) (*SessionActionResponse, error)
	Connect(context.Context, *ConnectRequest) (*SessionActionResponse, error)
	Disconnect(context.Context, *DisconnectRequest) (*SessionActionResponse, error)
}

var sessionStartAuth = grpc.StreamDesc{StreamName: "StartAuth", ServerStreams: true}

// SessionServiceDesc describes SessionService for grpc.Server.RegisterService.
var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: sessionService,
	HandlerType: (*SessionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSessionStatus", Handler: unary("/"+sessionService+"/GetSessionStatus", SessionServer.GetSessionStatus)},
		{MethodName: "Logout", Handler: unary("/"+sessionService+"/Logout", SessionServer.Logout)},
		{MethodName: "Connect", Handler: unary("/"+sessionService+"/Connect", SessionServer.Connect)},
		{MethodName: "Disconnect", Handler: unary("/"+sessionService+"/Disconnect", SessionServer.Disconnect)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StartAuth", Handler: serverStream(SessionServer.StartAuth), ServerStreams: true},
	},
}

// RegisterSessionServer registers srv on s.
func RegisterSessionServer(s grpc.ServiceRegistrar, srv SessionServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

// SessionClient calls SessionService.
type SessionClient struct {
	cc grpc.ClientConnInterface
}

// NewSessionClient creates a client on cc.
func NewSessionClient(cc grpc.ClientConnInterface) *SessionClient {
	return &SessionClient{cc: cc}
}

func (c *SessionClient) GetSessionStatus(ctx context.Context, in *GetSessionStatusRequest, opts ...grpc.CallOption) (*GetSessionStatusResponse, error) {
	return invoke[GetSessionStatusRequest, GetSessionStatusResponse](ctx, c.cc, "/"+sessionService+"/GetSessionStatus", in, opts)
}

func (c *SessionClient) StartAuth(ctx context.Context, in *StartAuthRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[AuthEvent], error) {
	return openStream[StartAuthRequest, AuthEvent](ctx, c.cc, &sessionStartAuth, "/"+sessionService+"/StartAuth", in, opts)
}

func (c *SessionClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*SessionActionResponse, error) {
	return invoke[LogoutRequest, SessionActionResponse](ctx, c.cc, "/"+sessionService+"/Logout", in, opts)
}

func (c *SessionClient) Connect(ctx context.Context, in *ConnectRequest, opts ...grpc.CallOption) (*SessionActionResponse, error) {
	return invoke[ConnectRequest, SessionActionResponse](ctx, c.cc, "/"+sessionService+"/Connect", in, opts)
}

func (c *SessionClient) Disconnect(ctx context.Context, in *DisconnectRequest, opts ...grpc.CallOption) (*SessionActionResponse, error) {
	return invoke[DisconnectRequest, SessionActionResponse](ctx, c.cc, "/"+sessionService+"/Disconnect", in, opts)
}
