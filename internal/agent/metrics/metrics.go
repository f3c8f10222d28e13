package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics observes outbound Identity Agent calls.
type Metrics struct {
	CallDuration *prometheus.HistogramVec
	FallbackDIDs prometheus.Counter
	HealthChecks *prometheus.CounterVec
	AgentHealthy prometheus.Gauge
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civicid_agent_call_duration_seconds",
			Help:    "Identity Agent call latency by operation and outcome",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op", "outcome"}),
		FallbackDIDs: f.NewCounter(prometheus.CounterOpts{
			Name: "civicid_agent_fallback_dids_total",
			Help: "DIDs generated locally because the Identity Agent was unavailable",
		}),
		HealthChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civicid_agent_health_checks_total",
			Help: "Identity Agent health probes by result",
		}, []string{"result"}),
		AgentHealthy: f.NewGauge(prometheus.GaugeOpts{
			Name: "civicid_agent_healthy",
			Help: "Last observed Identity Agent health (advisory)",
		}),
	}
}

// ObserveCall records one call. outcome is ok, agent_error or transport_error.
func (m *Metrics) ObserveCall(op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.CallDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementFallbackDID() {
	if m == nil {
		return
	}
	m.FallbackDIDs.Inc()
}

func (m *Metrics) RecordHealth(healthy bool) {
	if m == nil {
		return
	}
	if healthy {
		m.HealthChecks.WithLabelValues("healthy").Inc()
		m.AgentHealthy.Set(1)
		return
	}
	m.HealthChecks.WithLabelValues("unhealthy").Inc()
	m.AgentHealthy.Set(0)
}
