package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Graph-engine metrics
	ResourcesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pylon_resources_total",
			Help: "Total number of live resources by kind",
		},
		[]string{"kind"},
	)

	ResourceOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pylon_resource_ops_total",
			Help: "Total number of resource create/destroy operations by kind and outcome",
		},
		[]string{"kind", "op", "outcome"},
	)

	ResourceOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pylon_resource_op_duration_seconds",
			Help:    "Time taken to create or destroy a single resource, by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "op"},
	)

	// Placement/scheduler metrics
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pylon_scheduling_latency_seconds",
			Help:    "Time taken to place a service onto an instance",
			Buckets: prometheus.DefBuckets,
		},
	)

	ServicesPlaced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pylon_services_placed_total",
			Help: "Total number of services successfully placed on an instance",
		},
	)

	ServicesPlacementFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pylon_services_placement_failed_total",
			Help: "Total number of services that could not be placed on any instance",
		},
	)

	InstancesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pylon_instances_total",
			Help: "Total number of instances known to the placement state",
		},
	)

	// Agent metrics
	AgentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pylon_agent_requests_total",
			Help: "Total number of requests issued to per-instance agents, by operation and status",
		},
		[]string{"op", "status"},
	)

	AgentRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pylon_agent_request_duration_seconds",
			Help:    "Agent HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Workflow (orchestrator) metrics
	WorkflowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pylon_workflows_total",
			Help: "Total number of genesis/apply/destroy workflow runs by outcome",
		},
		[]string{"workflow", "outcome"},
	)

	WorkflowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pylon_workflow_duration_seconds",
			Help:    "Workflow duration in seconds by workflow kind",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"workflow"},
	)
)

func init() {
	prometheus.MustRegister(ResourcesTotal)
	prometheus.MustRegister(ResourceOpsTotal)
	prometheus.MustRegister(ResourceOpDuration)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(ServicesPlaced)
	prometheus.MustRegister(ServicesPlacementFailed)
	prometheus.MustRegister(InstancesTotal)
	prometheus.MustRegister(AgentRequestsTotal)
	prometheus.MustRegister(AgentRequestDuration)
	prometheus.MustRegister(WorkflowsTotal)
	prometheus.MustRegister(WorkflowDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
