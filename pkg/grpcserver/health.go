// Package grpcserver exposes the standard gRPC health service so orchestrators
// can probe the API process without going through HTTP.
package grpcserver

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Checker reports whether a dependency is healthy.
type Checker func(ctx context.Context) error

// HealthServer wraps a grpc.Server carrying only the health service.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	service  string
	checks   map[string]Checker
	interval time.Duration
	logger   *zap.Logger
}

// NewHealthServer constructs a health server for the named service.
func NewHealthServer(service string, checks map[string]Checker, interval time.Duration, logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &HealthServer{
		server:   srv,
		health:   hs,
		service:  service,
		checks:   checks,
		interval: interval,
		logger:   logger,
	}
}

// Health returns the underlying health implementation.
func (h *HealthServer) Health() *health.Server {
	return h.health
}

// Refresh runs every check once and publishes the aggregate status.
func (h *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, check := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := check(checkCtx)
		cancel()
		if err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(h.service, status)
	return status
}

// Serve listens on port and blocks until ctx is cancelled.
func (h *HealthServer) Serve(ctx context.Context, port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	h.Refresh(ctx)
	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				h.health.Shutdown()
				h.server.GracefulStop()
				return
			case <-ticker.C:
				h.Refresh(ctx)
			}
		}
	}()

	h.logger.Info("grpc health listening", zap.Int("port", port))
	if err := h.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}
