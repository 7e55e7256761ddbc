package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for API requests.
const (
	OutcomeOK          = "ok"
	OutcomeFault       = "fault"
	OutcomeUnreachable = "unreachable"
	OutcomeUnexpected  = "unexpected"
)

var (
	registerOnce sync.Once

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "silverpop",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total XML API requests.",
		},
		[]string{"operation", "outcome"},
	)
	apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "silverpop",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "XML API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)
	apiFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "silverpop",
			Subsystem: "api",
			Name:      "faults_total",
			Help:      "Faults reported inside XML API responses.",
		},
		[]string{"operation"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(apiRequests, apiDuration, apiFaults)
	})
}

// RecordRequest counts one request; operation is "login", "logout" or "call".
func RecordRequest(operation, outcome string, duration time.Duration) {
	RegisterMetrics()
	apiRequests.WithLabelValues(operation, outcome).Inc()
	apiDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

func RecordFaults(operation string, n int) {
	RegisterMetrics()
	if n <= 0 {
		return
	}
	apiFaults.WithLabelValues(operation).Add(float64(n))
}
