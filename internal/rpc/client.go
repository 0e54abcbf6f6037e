package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls a remote xetra.Daily service.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient creates a client targeting the given gRPC address. Extra dial
// options are appended to the insecure transport default.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(Codec)),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Run asks the server to process date and returns its summaries.
func (c *Client) Run(ctx context.Context, date string) (*RunResponse, error) {
	resp := new(RunResponse)
	if err := c.conn.Invoke(ctx, runMethodName, &RunRequest{Date: date}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
