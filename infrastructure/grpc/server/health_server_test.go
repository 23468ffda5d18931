package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"testing"

	"comms-lab/errors"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestHealthServer_ReportsServingStatus(t *testing.T) {
	req := require.New(t)
	listener := bufconn.Listen(1 << 20)
	s, h := NewGRPCServer(logs.GetLoggerFromLevel(slog.LevelDebug))
	go func() { _ = s.Serve(listener) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	req.NoError(err)
	t.Cleanup(func() { _ = conn.Close() })
	client := healthpb.NewHealthClient(conn)
	check := func() healthpb.HealthCheckResponse_ServingStatus {
		res, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		req.NoError(err)
		return res.GetStatus()
	}

	// Given a freshly built server
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, check())

	// When the runtime is up
	h.SetServing(true)
	req.Equal(healthpb.HealthCheckResponse_SERVING, check())

	// When shutting down, later updates are ignored
	h.Shutdown()
	h.SetServing(true)
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, check())
}

func TestErrorInterceptor_MapsDomainErrors(t *testing.T) {
	req := require.New(t)
	info := &grpc.UnaryServerInfo{FullMethod: "/comms.v1.Comms/Leave"}

	// Given a handler refusing to remove the creator
	failing := func(context.Context, any) (any, error) {
		return nil, fmt.Errorf("%w: creator cannot leave", errors.ErrForbidden)
	}

	// When the interceptor wraps it
	_, err := ErrorInterceptor(context.Background(), nil, info, failing)

	// Then the caller sees PermissionDenied
	st, ok := status.FromError(err)
	req.True(ok)
	req.Equal(codes.PermissionDenied, st.Code())

	// And successful calls pass through untouched
	res, err := ErrorInterceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	req.NoError(err)
	req.Equal("ok", res)
}
