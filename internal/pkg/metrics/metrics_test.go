package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(PlanExecutions.WithLabelValues("completed", "sequential"))
	PlanExecutions.WithLabelValues("completed", "sequential").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(PlanExecutions.WithLabelValues("completed", "sequential")))

	dropped := testutil.ToFloat64(HistoryDropped)
	HistoryDropped.Inc()
	assert.Equal(t, dropped+1, testutil.ToFloat64(HistoryDropped))
}

func TestHandlerExposesRegistry(t *testing.T) {
	FlowInstalls.WithLabelValues("success").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "wisesdn_flow_installs_total")
	assert.Contains(t, body, "go_goroutines")
}
