// Package seisqc is a Go client for the seisqc metric run service.
package seisqc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a seisqc-server over gRPC.
type Client struct {
	addr   string
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// NewClient creates a client targeting addr ("host:port"). The connection
// is established lazily on the first call.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{addr: addr, conn: conn, health: healthpb.NewHealthClient(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Run asks the server to compute the requested metrics. A run over a range
// with no available data fails with codes.NotFound.
func (c *Client) Run(ctx context.Context, req RunRequest) (*RunResponse, error) {
	in, err := req.Struct()
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, RunMethod, in, out); err != nil {
		return nil, err
	}
	return DecodeRunResponse(out)
}

// List returns records saved by earlier runs. The server answers
// codes.FailedPrecondition when it has no result store.
func (c *Client) List(ctx context.Context, req ListRequest) (*ListResponse, error) {
	in, err := req.Struct()
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, ListMethod, in, out); err != nil {
		return nil, err
	}
	return DecodeListResponse(out)
}

// Healthy reports whether the server's metric run service is serving.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}
