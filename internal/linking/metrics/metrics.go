package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the linking workflow.
type Metrics struct {
	LinkingStarted     prometheus.Counter
	LinksCreated       prometheus.Counter
	LinksRemoved       prometheus.Counter
	CompletionRejected *prometheus.CounterVec
	CompleteDuration   prometheus.Histogram
}

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LinkingStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "civicid_linking_started_total",
			Help: "Linking invitations issued",
		}),
		LinksCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "civicid_linking_links_created_total",
			Help: "User to DID links created",
		}),
		LinksRemoved: f.NewCounter(prometheus.CounterOpts{
			Name: "civicid_linking_links_removed_total",
			Help: "User to DID links removed",
		}),
		CompletionRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "civicid_linking_completion_rejected_total",
			Help: "Link completions refused, by reason",
		}, []string{"reason"}),
		CompleteDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "civicid_linking_complete_duration_seconds",
			Help:    "Duration of link completion",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementStarted() {
	if m == nil {
		return
	}
	m.LinkingStarted.Inc()
}

func (m *Metrics) IncrementLinked() {
	if m == nil {
		return
	}
	m.LinksCreated.Inc()
}

func (m *Metrics) IncrementUnlinked() {
	if m == nil {
		return
	}
	m.LinksRemoved.Inc()
}

func (m *Metrics) IncrementRejected(reason string) {
	if m == nil {
		return
	}
	m.CompletionRejected.WithLabelValues(reason).Inc()
}

// ObserveComplete records a completion. Call with time.Now() at the start.
func (m *Metrics) ObserveComplete(start time.Time) {
	if m == nil {
		return
	}
	m.CompleteDuration.Observe(time.Since(start).Seconds())
}
