package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OperationsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kanban_operations_applied_total",
			Help: "Board operations that changed the board",
		},
		[]string{"operation"},
	)
	OperationsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kanban_operations_rejected_total",
			Help: "Board operations that returned an error",
		},
		[]string{"operation"},
	)
	RemoteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kanban_remote_failures_total",
			Help: "Fire-and-forget remote calls that failed",
		},
		[]string{"call"},
	)
	SnapshotFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kanban_snapshot_failures_total",
			Help: "Snapshot writes that failed",
		},
	)
)

func init() {
	prometheus.MustRegister(OperationsApplied)
	prometheus.MustRegister(OperationsRejected)
	prometheus.MustRegister(RemoteFailures)
	prometheus.MustRegister(SnapshotFailures)
}
