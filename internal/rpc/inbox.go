package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const inboxService = "wppbot.v1.InboxService"

// InboxServer is the operator inbox: conversations, messages and stats.
type InboxServer interface {
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	GetConversation(context.Context, *GetConversationRequest) (*GetConversationResponse, error)
	MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
	SendText(context.Context, *SendTextRequest) (*SendTextResponse, error)
	ClearHistory(context.Context, *ClearHistoryRequest) (*ClearHistoryResponse, error)
	GetStats(context.Context, *GetStatsRequest) (*GetStatsResponse, error)
	ListDigests(context.Context, *ListDigestsRequest) (*ListDigestsResponse, error)
	WatchEvents(*WatchEventsRequest, grpc.ServerStreamingServer[Event]) error
}

var inboxWatchEvents = grpc.StreamDesc{StreamName: "WatchEvents", ServerStreams: true}

// InboxServiceDesc describes InboxService for grpc.Server.RegisterService.
var InboxServiceDesc = grpc.ServiceDesc{
	ServiceName: inboxService,
	HandlerType: (*InboxServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListConversations", Handler: unary("/"+inboxService+"/ListConversations", InboxServer.ListConversations)},
		{MethodName: "GetConversation", Handler: unary("/"+inboxService+"/GetConversation", InboxServer.GetConversation)},
		{MethodName: "MarkRead", Handler: unary("/"+inboxService+"/MarkRead", InboxServer.MarkRead)},
		{MethodName: "SendText", Handler: unary("/"+inboxService+"/SendText", InboxServer.SendText)},
		{MethodName: "ClearHistory", Handler: unary("/"+inboxService+"/ClearHistory", InboxServer.ClearHistory)},
		{MethodName: "GetStats", Handler: unary("/"+inboxService+"/GetStats", InboxServer.GetStats)},
		{MethodName: "ListDigests", Handler: unary("/"+inboxService+"/ListDigests", InboxServer.ListDigests)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchEvents", Handler: serverStream(InboxServer.WatchEvents), ServerStreams: true},
	},
}

// RegisterInboxServer registers srv on s.
func RegisterInboxServer(s grpc.ServiceRegistrar, srv InboxServer) {
	s.RegisterService(&InboxServiceDesc, srv)
}

// InboxClient calls InboxService.
type InboxClient struct {
	cc grpc.ClientConnInterface
}

// NewInboxClient creates a client on cc.
func NewInboxClient(cc grpc.ClientConnInterface) *InboxClient {
	return &InboxClient{cc: cc}
}

func (c *InboxClient) ListConversations(ctx context.Context, in *ListConversationsRequest, opts ...grpc.CallOption) (*ListConversationsResponse, error) {
	return invoke[ListConversationsRequest, ListConversationsResponse](ctx, c.cc, "/"+inboxService+"/ListConversations", in, opts)
}

func (c *InboxClient) GetConversation(ctx context.Context, in *GetConversationRequest, opts ...grpc.CallOption) (*GetConversationResponse, error) {
	return invoke[GetConversationRequest, GetConversationResponse](ctx, c.cc, "/"+inboxService+"/GetConversation", in, opts)
}

func (c *InboxClient) MarkRead(ctx context.Context, in *MarkReadRequest, opts ...grpc.CallOption) (*MarkReadResponse, error) {
	return invoke[MarkReadRequest, MarkReadResponse](ctx, c.cc, "/"+inboxService+"/MarkRead", in, opts)
}

func (c *InboxClient) SendText(ctx context.Context, in *SendTextRequest, opts ...grpc.CallOption) (*SendTextResponse, error) {
	return invoke[SendTextRequest, SendTextResponse](ctx, c.cc, "/"+inboxService+"/SendText", in, opts)
}

func (c *InboxClient) ClearHistory(ctx context.Context, in *ClearHistoryRequest, opts ...grpc.CallOption) (*ClearHistoryResponse, error) {
	return invoke[ClearHistoryRequest, ClearHistoryResponse](ctx, c.cc, "/"+inboxService+"/ClearHistory", in, opts)
}

func (c *InboxClient) GetStats(ctx context.Context, in *GetStatsRequest, opts ...grpc.CallOption) (*GetStatsResponse, error) {
	return invoke[GetStatsRequest, GetStatsResponse](ctx, c.cc, "/"+inboxService+"/GetStats", in, opts)
}

func (c *InboxClient) ListDigests(ctx context.Context, in *ListDigestsRequest, opts ...grpc.CallOption) (*ListDigestsResponse, error) {
	return invoke[ListDigestsRequest, ListDigestsResponse](ctx, c.cc, "/"+inboxService+"/ListDigests", in, opts)
}

func (c *InboxClient) WatchEvents(ctx context.Context, in *WatchEventsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Event], error) {
	return openStream[WatchEventsRequest, Event](ctx, c.cc, &inboxWatchEvents, "/"+inboxService+"/WatchEvents", in, opts)
}
