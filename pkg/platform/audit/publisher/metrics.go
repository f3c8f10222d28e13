package publisher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for event publishing.
type Metrics struct {
	Published      *prometheus.HistogramVec
	Dropped        *prometheus.CounterVec
	Failures       prometheus.Counter
	CircuitBreaker prometheus.Gauge
}

func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civicid_events_publish_duration_seconds",
			Help:    "Time to hand a domain event to the event store, by type",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"type"}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civicid_events_dropped_total",
			Help: "Domain events dropped before reaching the store, by reason",
		}, []string{"reason"}),
		Failures: f.NewCounter(prometheus.CounterOpts{
			Name: "civicid_events_publish_failures_total",
			Help: "Domain events the store rejected",
		}),
		CircuitBreaker: f.NewGauge(prometheus.GaugeOpts{
			Name: "civicid_events_circuit_open",
			Help: "1 while events are being shed because the store is failing",
		}),
	}
}

func (m *Metrics) ObservePublish(eventType string, d time.Duration) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(eventType).Observe(d.Seconds())
}

func (m *Metrics) IncDropped(reason string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncFailures() {
	if m == nil {
		return
	}
	m.Failures.Inc()
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreaker.Set(1)
	} else {
		m.CircuitBreaker.Set(0)
	}
}
