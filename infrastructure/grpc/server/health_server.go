// Package server exposes the process health over gRPC.
package server

import (
	"context"
	"log/slog"

	"comms-lab/errors"

	grpc3 "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name probed for the comms runtime.
const ServiceName = "comms.v1.Comms"

type HealthServer struct {
	log    *slog.Logger
	health *health.Server
}

// NewGRPCServer builds a gRPC server with request logging, the standard health
// service and reflection. Every service starts NOT_SERVING.
func NewGRPCServer(log *slog.Logger) (*grpc.Server, *HealthServer) {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(log), ErrorInterceptor))
	h := &HealthServer{log: log, health: health.NewServer()}
	h.SetServing(false)
	healthpb.RegisterHealthServer(s, h.health)
	reflection.Register(s)
	return s, h
}

// ErrorInterceptor turns domain errors returned by a handler into gRPC status errors.
func ErrorInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	res, err := handler(ctx, req)
	return res, errors.MapToGRPCError(err)
}

// SetServing flips both the overall status and the comms service status.
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	h.log.Debug("Health status changed", "status", status.String())
}

// Shutdown marks everything NOT_SERVING for good, later updates are ignored.
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
}
