package rpc

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn      *grpc.ClientConn
	Inbox     *InboxClient
	Assistant *AssistantClient
	Session   *SessionClient
}

// Dial connects to the daemon's Unix domain socket and returns typed service clients.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{
		conn:      conn,
		Inbox:     NewInboxClient(conn),
		Assistant: NewAssistantClient(conn),
		Session:   NewSessionClient(conn),
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
