package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/service"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/server/grpc"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/server/http"
	"github.com/wisesdn-io/wisesdn/pkg/log"
)

// Server defines the common interface for all sub-servers and background loops.
type Server interface {
	Start(ctx context.Context) error
}

// Manager manages the lifecycle of all protocol servers.
type Manager struct {
	servers []Server
}

// NewManager creates a new server manager and initializes all sub-servers.
func NewManager(cfg *Config, svc *service.Service) *Manager {
	var servers []Server

	// 1. Task API, health probes and metrics
	servers = append(servers, http.NewServer(cfg.HttpOptions, svc, cfg.Insights))

	// 2. gRPC health service, when enabled
	if cfg.GrpcOptions.Enabled() {
		var ready grpc.Readiness
		if r, ok := svc.Registry().(grpc.Readiness); ok {
			ready = r
		}
		servers = append(servers, grpc.NewServer(cfg.GrpcOptions, ready))
	}

	// 3. Background loops
	servers = append(servers, cfg.Runners...)

	return &Manager{
		servers: servers,
	}
}

// Start launches all servers in parallel and waits for termination. The
// first server to fail cancels the others.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All servers starting...", "count", len(m.servers))
	return g.Wait()
}
