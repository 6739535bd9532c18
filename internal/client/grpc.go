package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

// GRPCClient probes the gRPC health service of an absenku server.
type GRPCClient struct {
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
	service string
	token   string
}

var _ HealthChecker = (*GRPCClient)(nil)

// NewGRPCClient connects to the given gRPC address. service names the health
// service to check; "" checks the server as a whole.
func NewGRPCClient(addr, service, token string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{
		conn:    conn,
		client:  healthpb.NewHealthClient(conn),
		service: service,
		token:   token,
	}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// Health returns the serving status reported by the server, lowercased to
// match the HTTP health endpoint ("ok" when serving).
func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Check(ctx, &healthpb.HealthCheckRequest{Service: c.service})
	if err != nil {
		return "", err
	}
	return servingStatus(resp.GetStatus()), nil
}

func servingStatus(s healthpb.HealthCheckResponse_ServingStatus) string {
	switch s {
	case healthpb.HealthCheckResponse_SERVING:
		return "ok"
	case healthpb.HealthCheckResponse_NOT_SERVING:
		return "unavailable"
	case healthpb.HealthCheckResponse_SERVICE_UNKNOWN:
		return "unknown service"
	}
	return "unknown"
}
