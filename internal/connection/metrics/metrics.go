package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the connection state machine.
type Metrics struct {
	InvitationsCreated prometheus.Counter
	Transitions        *prometheus.CounterVec
	WebhookMessages    *prometheus.CounterVec
	CASRetries         prometheus.Counter
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		InvitationsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "civicid_connection_invitations_created_total",
			Help: "Connection invitations created",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civicid_connection_transitions_total",
			Help: "Connection state transitions by source, target and decision",
		}, []string{"from", "to", "decision"}),
		WebhookMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civicid_connection_webhook_messages_total",
			Help: "Webhook messages by kind and outcome",
		}, []string{"kind", "outcome"}),
		CASRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "civicid_connection_cas_retries_total",
			Help: "State updates retried after losing a compare-and-swap",
		}),
	}
}

func (m *Metrics) IncrementInvitationCreated() {
	if m == nil {
		return
	}
	m.InvitationsCreated.Inc()
}

func (m *Metrics) RecordTransition(from, to, decision string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to, decision).Inc()
}

// RecordWebhookMessage counts one message. kind is connection, credential or
// unknown; outcome is processed, duplicate, dropped or failed.
func (m *Metrics) RecordWebhookMessage(kind, outcome string) {
	if m == nil {
		return
	}
	m.WebhookMessages.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncrementCASRetry() {
	if m == nil {
		return
	}
	m.CASRetries.Inc()
}
