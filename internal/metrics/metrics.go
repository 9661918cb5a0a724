// Package metrics exposes orchestration counters for the dashboard /metrics
// endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all devserve collectors; the dashboard serves it via
// promhttp.
var Registry = prometheus.NewRegistry()

var (
	// RunsStarted counts dev-server spawns.
	RunsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "devserve_runs_started_total",
		Help: "Number of dev server processes spawned.",
	})

	// RunsFailed counts runs that ended in the failed state.
	RunsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "devserve_runs_failed_total",
		Help: "Number of runs that failed to start or exited unexpectedly.",
	})

	// PortConflicts counts conflict resolutions by outcome.
	PortConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "devserve_port_conflicts_total",
		Help: "Port conflicts resolved, labeled by resolution taken.",
	}, []string{"resolution"})

	// ProcessesKilled counts signals that removed a port occupant.
	ProcessesKilled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "devserve_processes_killed_total",
		Help: "Number of processes terminated to free a port.",
	})

	// ReadinessSeconds observes spawn-to-ready latency.
	ReadinessSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "devserve_readiness_seconds",
		Help:    "Time from process spawn until the readiness signal.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
	})
)

func init() {
	Registry.MustRegister(
		RunsStarted,
		RunsFailed,
		PortConflicts,
		ProcessesKilled,
		ReadinessSeconds,
	)
}
