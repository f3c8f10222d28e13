package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts credential operations by outcome.
type Metrics struct {
	Issued        *prometheus.CounterVec
	Verifications *prometheus.CounterVec
	Listed        prometheus.Counter
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Issued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civicid_credentials_issued_total",
			Help: "Credential issuance attempts, by credential type and outcome",
		}, []string{"type", "outcome"}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civicid_credentials_verifications_total",
			Help: "Credential verifications, by result",
		}, []string{"result"}),
		Listed: f.NewCounter(prometheus.CounterOpts{
			Name: "civicid_credentials_list_requests_total",
			Help: "Requests to list a user's credentials",
		}),
	}
}

func (m *Metrics) RecordIssue(credentialType, outcome string) {
	if m == nil {
		return
	}
	m.Issued.WithLabelValues(credentialType, outcome).Inc()
}

func (m *Metrics) RecordVerification(result string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementListed() {
	if m == nil {
		return
	}
	m.Listed.Inc()
}
