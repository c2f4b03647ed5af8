package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/meetme/matchmaker/internal/config"
)

const shutdownTimeout = 10 * time.Second

// Registrar attaches one gRPC service to the server.
type Registrar interface {
	Register(s *grpc.Server)
}

// StartGRPCServer boots a gRPC server, registers all provided services and
// serves until ctx is cancelled, then drains in-flight calls.
func StartGRPCServer(ctx context.Context, cfg *config.Config, log *slog.Logger, registrars ...Registrar) error {
	addr := fmt.Sprintf("%s:%s", cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return Serve(ctx, lis, cfg.App.ENV, log, registrars...)
}

// Serve runs the gRPC server on lis until ctx is done.
func Serve(ctx context.Context, lis net.Listener, env string, log *slog.Logger, registrars ...Registrar) error {
	grpcServer := grpc.NewServer()

	// register all services
	for _, r := range registrars {
		r.Register(grpcServer)
	}

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// enable reflection for easier debugging with grpcurl
	if env != "production" {
		reflection.Register(grpcServer)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("gRPC server listening", "addr", lis.Addr().String())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		log.Info("gRPC server stopped")
	case <-time.After(shutdownTimeout):
		log.Warn("gRPC graceful stop timed out, forcing")
		grpcServer.Stop()
	}
	return nil
}
