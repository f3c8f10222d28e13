package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide HTTP metrics.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	WebhooksDropped *prometheus.CounterVec
}

// New registers the metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics on reg. Tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civicid_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route pattern and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route", "status"}),
		WebhooksDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civicid_webhooks_rejected_total",
			Help: "Webhook deliveries rejected before processing, by reason",
		}, []string{"reason"}),
	}
}

// ObserveHTTPRequest satisfies request.LatencyObserver.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// IncrementWebhookRejected records a webhook refused at the edge.
func (m *Metrics) IncrementWebhookRejected(reason string) {
	if m == nil {
		return
	}
	m.WebhooksDropped.WithLabelValues(reason).Inc()
}
