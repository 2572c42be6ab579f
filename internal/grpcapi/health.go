// Package grpcapi exposes the standard gRPC health service so supervisors
// can tell whether the lane holds a working device link.
package grpcapi

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// LaneService is the health service name reported for the lane.
const LaneService = "parkgate.Lane"

type Server struct {
	addr   string
	logger *slog.Logger
	grpc   *grpc.Server
	health *health.Server
}

// NewServer registers the health service. The lane starts NOT_SERVING
// until SetLinkUp(true); the overall server ("") is SERVING.
func NewServer(addr string, logger *slog.Logger) *Server {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(LaneService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{addr: addr, logger: logger, grpc: gs, health: hs}
}

// SetLinkUp is wired to the lane's link state callback.
func (s *Server) SetLinkUp(up bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if up {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(LaneService, status)
	s.logger.Debug("lane health changed", "status", status.String())
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.logger.Info("grpc listening", "addr", lis.Addr().String())
	return s.Serve(lis)
}

// Serve serves on lis. It returns nil after a graceful shutdown.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Shutdown marks every service NOT_SERVING and stops gracefully, forcing
// the stop if ctx ends first.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
		<-done
	}
}
