package grpc

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wisesdn-io/wisesdn/pkg/options"
)

type flag struct{ v atomic.Bool }

func (f *flag) Ready() bool { return f.v.Load() }

func TestHealthFollowsReadiness(t *testing.T) {
	ready := &flag{}
	s := NewServer(options.NewGrpcOptions(), ready)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	assert.False(t, s.updateStatus())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())

	ready.v.Store(true)
	assert.True(t, s.updateStatus())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check())
}

func TestStartStopsOnCancel(t *testing.T) {
	opts := &options.GrpcOptions{Network: "tcp", Addr: "127.0.0.1:0"}
	s := NewServer(opts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	cancel()
	assert.NoError(t, <-done)
}
