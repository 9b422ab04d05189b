package upstream

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess   = "success"
	outcomeError     = "error"
	outcomeAuth      = "unauthorized"
	outcomeTransport = "transport"
)

// Metrics records upstream request counts and latency.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg. A nil reg keeps them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "admin",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Store API requests by method, route and outcome.",
		}, []string{"method", "route", "outcome"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "admin",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Store API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) observe(method, route, outcome string, d time.Duration) {
	m.requests.WithLabelValues(method, route, outcome).Inc()
	if d > 0 {
		m.latency.WithLabelValues(method, route).Observe(d.Seconds())
	}
}
