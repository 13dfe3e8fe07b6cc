package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Labels to use for partitioning requests.
	requestLabels = []string{"endpoint", "status", "cause"}

	// Labels to use for partitioning request latencies.
	requestLatencyLabels = []string{"endpoint"}
)

// ServiceMetrics counts and times the requests a component makes to
// an external service, such as a chain node or a callback endpoint
type ServiceMetrics struct {
	// Requests counts the requests made to each endpoint.
	Requests *prometheus.CounterVec

	// RequestLatencies of the requests made to each endpoint.
	RequestLatencies *prometheus.SummaryVec
}

// register registers the collector with the default registerer. If an
// equivalent collector is already registered that one is returned, so
// that components constructed multiple times within a process share
// their metrics
func register(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}

	return c
}

// NewDefaultServiceMetrics creates Prometheus metric instrumentation for
// the requests issued by a service:
//
// 1. Counts of requests per endpoint, status and cause.
// 2. Latencies for requests.
func NewDefaultServiceMetrics(serviceName string) *ServiceMetrics {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_requests", serviceName),
			Help: "How many service requests were made, partitioned by request endpoint, status, and cause of failure.",
		},
		requestLabels,
	)
	latencies := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: fmt.Sprintf("%s_request_durations", serviceName),
			Help: "How long requests take to process, partitioned by the request endpoint.",
		},
		requestLatencyLabels,
	)

	return &ServiceMetrics{
		Requests:         register(requests).(*prometheus.CounterVec),
		RequestLatencies: register(latencies).(*prometheus.SummaryVec),
	}
}

func padLabels(labels []string, names []string) []string {
	if len(labels) > len(names) {
		labels = labels[:len(names)]
	}
	return append(labels, make([]string, len(names)-len(labels))...)
}

// RequestCounter returns the counter for the calling request.
// Provided labels should be endpoint, status, cause.
func (m *ServiceMetrics) RequestCounter(labels ...string) prometheus.Counter {
	return m.Requests.WithLabelValues(padLabels(labels, requestLabels)...)
}

// RequestTimer creates a new latency timer for the provided request operation.
func (m *ServiceMetrics) RequestTimer(labels ...string) *prometheus.Timer {
	return prometheus.NewTimer(m.RequestLatencies.WithLabelValues(padLabels(labels, requestLatencyLabels)...))
}
