// Package api serves metric runs over gRPC, alongside the standard gRPC
// health service.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"seisqc/internal/config"
	"seisqc/pkg/seisqc"
)

// shutdownGrace bounds how long Serve waits for in-flight runs once its
// context is cancelled.
const shutdownGrace = 30 * time.Second

// Server hosts the gRPC endpoints.
type Server struct {
	addr   string
	grpc   *grpc.Server
	health *health.Server
	log    *slog.Logger
}

// NewServer creates a Server listening on cfg.Server.Host:GRPCPort.
func NewServer(cfg *config.Config, svc SimpleMetricsServer, log *slog.Logger) *Server {
	log = log.With("component", "api")
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(logUnary(log)))
	RegisterSimpleMetricsServer(gs, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(seisqc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{
		addr:   net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort)),
		grpc:   gs,
		health: hs,
		log:    log,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.addr }

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(lis) }()
	s.log.Info("grpc server listening", "addr", lis.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	err := s.Shutdown(shutdownCtx)
	<-errCh
	return err
}

// Shutdown marks the services as not serving and waits for in-flight
// requests. Connections are closed forcibly when ctx expires first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("grpc server stopped")
		return nil
	case <-ctx.Done():
		s.grpc.Stop()
		return ctx.Err()
	}
}

func logUnary(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("rpc",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed", time.Since(start).Round(time.Millisecond))
		return resp, err
	}
}
