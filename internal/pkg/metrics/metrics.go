package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector exposed on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// PlanExecutions counts finished plan runs.
	PlanExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wisesdn_plan_executions_total",
			Help: "Total number of plan executions by final status and execution mode.",
		},
		[]string{"status", "mode"}, // status: completed/failed, mode: sequential/parallel
	)

	// StepResults counts executed steps.
	StepResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wisesdn_step_results_total",
			Help: "Total number of executed plan steps by status and protocol.",
		},
		[]string{"status", "protocol"},
	)

	// StepDuration observes how long a step took.
	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wisesdn_step_duration_seconds",
			Help:    "Latency of plan steps against devices.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"protocol"},
	)

	// ValidationResults counts plan validations by overall status.
	ValidationResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wisesdn_validation_results_total",
			Help: "Total number of plan validations by overall status.",
		},
		[]string{"status"},
	)

	// OTAOutcomes counts per-device firmware update outcomes.
	OTAOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wisesdn_ota_outcomes_total",
			Help: "Total number of per-device OTA outcomes.",
		},
		[]string{"mode", "outcome"},
	)

	// FlowInstalls counts flow rules pushed to the SDN controller.
	FlowInstalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wisesdn_flow_installs_total",
			Help: "Total number of flow installs by controller status.",
		},
		[]string{"status"},
	)

	// HistoryDropped counts execution records shed because the history queue was full.
	HistoryDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wisesdn_history_dropped_total",
			Help: "Execution records dropped because the history queue was full.",
		},
	)
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	Registry.MustRegister(PlanExecutions)
	Registry.MustRegister(StepResults)
	Registry.MustRegister(StepDuration)
	Registry.MustRegister(ValidationResults)
	Registry.MustRegister(OTAOutcomes)
	Registry.MustRegister(FlowInstalls)
	Registry.MustRegister(HistoryDropped)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
