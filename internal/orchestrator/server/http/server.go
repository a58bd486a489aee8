package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/agent"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/service"
	"github.com/wisesdn-io/wisesdn/internal/pkg/metrics"
	"github.com/wisesdn-io/wisesdn/pkg/log"
	"github.com/wisesdn-io/wisesdn/pkg/options"
)

// Server serves the task API, the health probes and the metrics endpoint.
type Server struct {
	server  *http.Server
	options *options.HttpOptions
	logger  log.Logger
}

// NewServer creates the task API server. insights may be the unavailable capability.
func NewServer(opts *options.HttpOptions, svc *service.Service, insights agent.Capability) *Server {
	h := newHandler(svc, insights, opts.MaxBodyBytes)
	h.budget = requestBudget(opts.Timeout)

	return &Server{
		server: &http.Server{
			Addr:              opts.Addr,
			Handler:           h.routes(),
			ReadHeaderTimeout: opts.Timeout,
			ReadTimeout:       opts.Timeout,
			WriteTimeout:      opts.Timeout,
		},
		options: opts,
		logger:  log.WithName("http-server"),
	}
}

// requestBudget is how long a task may run before its response has to be
// written. It keeps part of the write timeout for encoding the response.
func requestBudget(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	return timeout - min(timeout/5, maxResponseMargin)
}

// Start serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen(s.options.Network, s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	s.logger.Info("Starting HTTP Server", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeout := s.options.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.logger.Info("Shutting down HTTP Server")
		return s.server.Shutdown(shutdownCtx)
	}
}

// readiness is implemented by registries that know whether their first load succeeded.
type readiness interface {
	Ready() bool
}

func (h *handler) routes() *mux.Router {
	r := mux.NewRouter()

	// Basic Liveness Probe
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	// Readiness Probe, ready once the device registry has been loaded
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if rd, ok := h.svc.Registry().(readiness); ok && !rd.Ready() {
			http.Error(w, "device registry not loaded", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	tasks := r.PathPrefix("/tasks").Subrouter()
	for _, t := range h.tasks() {
		tasks.HandleFunc("/"+t.name, h.serveTask(t)).Methods(http.MethodPost)
	}
	return r
}
