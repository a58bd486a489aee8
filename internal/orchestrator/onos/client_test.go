package onos

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
	"github.com/wisesdn-io/wisesdn/pkg/options"
)

func newController(t *testing.T) *httptest.Server {
	t.Helper()

	r := mux.NewRouter()
	api := r.PathPrefix(apiPrefix).Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if u, p, ok := req.BasicAuth(); !ok || u != "onos" || p != "rocks" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	api.HandleFunc("/devices", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"nodeId":1,"type":"border-router","active":true,"battery":100,"lastSeen":1700000000,"flowCount":0},
			{"nodeId":2,"type":"sensor","active":true,"battery":64,"lastSeen":1700000001,"flowCount":1}]`))
	}).Methods(http.MethodGet)
	api.HandleFunc("/flows/{node}", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"nodeId":2,"flows":[{"nodeId":2,"srcAddr":2,"dstAddr":1,"action":1,"nextHop":1,"timestamp":5}]}`))
	}).Methods(http.MethodGet)
	api.HandleFunc("/flows", func(w http.ResponseWriter, req *http.Request) {
		var f model.Flow
		if err := json.NewDecoder(req.Body).Decode(&f); err != nil || f.NodeID == 0 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":"error","message":"missing nodeId"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","flowId":"flow-7","message":"Flow rule installed"}`))
	}).Methods(http.MethodPost)
	api.HandleFunc("/topology", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"nodes":2,"links":[{"src":2,"dst":1}]}`))
	}).Methods(http.MethodGet)
	api.HandleFunc("/stats/{node}", func(w http.ResponseWriter, req *http.Request) {
		if mux.Vars(req)["node"] != "2" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Node not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"nodeId":2,"battery":64,"packetsSent":10,"packetsReceived":4,"lastSeen":1700000001}`))
	}).Methods(http.MethodGet)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(url string) *Client {
	opts := options.NewOnosOptions()
	opts.URL = url
	opts.Timeout = time.Second
	return NewClient(opts)
}

func TestClientQueries(t *testing.T) {
	c := newTestClient(newController(t).URL)
	ctx := context.Background()

	nodes, err := c.Nodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, model.NodeTypeBorderRouter, nodes[0].Type)
	assert.Equal(t, 64.0, nodes[1].Battery)

	flows, err := c.Flows(ctx, 2)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, model.FlowActionForward, flows[0].Action)

	topo, err := c.Topology(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, topo["nodes"])

	stats, err := c.NodeStats(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 10, stats.PacketsSent)

	_, err = c.NodeStats(ctx, 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.Contains(t, err.Error(), "Node not found")
}

func TestInstallFlow(t *testing.T) {
	srv := newController(t)

	tests := []struct {
		name       string
		client     *Client
		flow       model.Flow
		wantStatus string
		wantMsg    string
	}{
		{
			name:       "installed",
			client:     newTestClient(srv.URL),
			flow:       model.Flow{NodeID: 2, SrcAddr: 2, DstAddr: 1, Action: model.FlowActionForward, NextHop: 1},
			wantStatus: model.StatusSuccess,
			wantMsg:    "Flow rule installed",
		},
		{
			name:       "rejected by controller",
			client:     newTestClient(srv.URL),
			flow:       model.Flow{},
			wantStatus: model.StatusError,
			wantMsg:    "missing nodeId",
		},
		{
			name:       "unreachable",
			client:     newTestClient("http://127.0.0.1:1"),
			flow:       model.Flow{NodeID: 3},
			wantStatus: model.StatusError,
			wantMsg:    "controller unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.client.InstallFlow(context.Background(), tt.flow)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.flow.NodeID, res.NodeID)
			assert.Contains(t, res.Message, tt.wantMsg)
		})
	}
}

func TestClientRejectsBadCredentials(t *testing.T) {
	c := newTestClient(newController(t).URL)
	c.password = "wrong"

	_, err := c.Nodes(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
}
