package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcmw "github.com/wisesdn-io/wisesdn/internal/pkg/middleware/grpc"
	"github.com/wisesdn-io/wisesdn/pkg/log"
	"github.com/wisesdn-io/wisesdn/pkg/options"
)

// ServiceName is the health service name reported for the orchestrator.
const ServiceName = "wisesdn.orchestrator"

const readinessPollInterval = time.Second

// Readiness reports whether the orchestrator can serve requests.
type Readiness interface {
	Ready() bool
}

// Server exposes the standard gRPC health service. The orchestrator is
// NOT_SERVING until the device registry has been loaded.
type Server struct {
	server  *grpc.Server
	health  *health.Server
	ready   Readiness
	options *options.GrpcOptions
	logger  log.Logger
}

func NewServer(opts *options.GrpcOptions, ready Readiness) *Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(grpcmw.UnaryTimeoutInterceptor(grpcmw.DefaultRPCTimeout)))
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s) // Enable grpc_cli support

	return &Server{
		server:  s,
		health:  hs,
		ready:   ready,
		options: opts,
		logger:  log.WithName("grpc-server"),
	}
}

func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.options.Addr, err)
	}

	s.logger.Info("Starting gRPC Server", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go s.watchReadiness(ctx)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.health.Shutdown()
		s.server.GracefulStop()
		return nil
	}
}

// watchReadiness flips the health status to SERVING once the registry is ready.
func (s *Server) watchReadiness(ctx context.Context) {
	ticker := time.NewTicker(readinessPollInterval)
	defer ticker.Stop()

	for {
		if s.updateStatus() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) updateStatus() bool {
	if s.ready != nil && !s.ready.Ready() {
		return false
	}
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("Orchestrator is serving")
	return true
}
