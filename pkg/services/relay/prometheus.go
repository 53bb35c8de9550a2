package relay

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const resultSuccess = "success"

// Metrics used in monitoring service.
var (
	relayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of relay requests by result",
			Name:      "relay_requests_total",
			Namespace: "ecogo",
		},
		[]string{"result"},
	)
	relayTimes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Help:      "Relay request handling time",
			Name:      "relay_request_duration_seconds",
			Namespace: "ecogo",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"result"},
	)
)

func addRequestMetric(result string, t time.Duration) {
	relayRequests.WithLabelValues(result).Inc()
	relayTimes.WithLabelValues(result).Observe(t.Seconds())
}

func init() {
	prometheus.MustRegister(
		relayRequests,
		relayTimes,
	)
}
