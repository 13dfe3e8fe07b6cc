package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Labels to use for store operations.
	operationLabels = []string{"operation", "status", "cause"}

	// Labels to use for store latencies.
	operationLatencyLabels = []string{"operation"}
)

// DatabaseMetrics counts and times the operations issued to a
// persistent store
type DatabaseMetrics struct {
	// Counts of store operations.
	DatabaseOperations *prometheus.CounterVec

	// Latencies of store operations.
	DatabaseLatencies *prometheus.SummaryVec
}

// NewDefaultDatabaseMetrics creates the instrumentation for the store
// identified by name
func NewDefaultDatabaseMetrics(name string) *DatabaseMetrics {
	operations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_operations", name),
			Help: "How many store operations are made, partitioned by operation, status and cause.",
		},
		operationLabels,
	)
	latencies := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: fmt.Sprintf("%s_latencies", name),
			Help: "How long store operations take, partitioned by operation.",
		},
		operationLatencyLabels,
	)

	return &DatabaseMetrics{
		DatabaseOperations: register(operations).(*prometheus.CounterVec),
		DatabaseLatencies:  register(latencies).(*prometheus.SummaryVec),
	}
}

// DatabaseCounter returns the counter for the store operation.
// Provided labels should be operation, status, and cause.
func (m *DatabaseMetrics) DatabaseCounter(labels ...string) prometheus.Counter {
	return m.DatabaseOperations.WithLabelValues(padLabels(labels, operationLabels)...)
}

// DatabaseTimer creates a new latency timer for the provided store operation.
func (m *DatabaseMetrics) DatabaseTimer(labels ...string) *prometheus.Timer {
	return prometheus.NewTimer(m.DatabaseLatencies.WithLabelValues(padLabels(labels, operationLatencyLabels)...))
}
