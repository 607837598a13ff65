package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
)

// Metrics provides observability for the user directory.
type Metrics struct {
	// Resolver decisions by field and outcome
	Disclosures *prometheus.CounterVec

	// Operation results by name and outcome label
	Operations *prometheus.CounterVec

	OperationLatency *prometheus.HistogramVec
}

// New registers all directory metrics with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Disclosures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "user_directory_disclosures_total",
			Help: "Visibility resolver decisions by field and decision",
		}, []string{"field", "decision"}), // decision: "disclose", "redact"

		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "user_directory_operations_total",
			Help: "Directory operations by name and outcome",
		}, []string{"operation", "outcome"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "user_directory_operation_duration_seconds",
			Help:    "Duration of directory operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

// ObserveDisclosure records one resolver decision.
func (m *Metrics) ObserveDisclosure(kind domain.FieldKind, decision domain.Disclosure) {
	if m != nil {
		m.Disclosures.WithLabelValues(string(kind), decision.String()).Inc()
	}
}

// ObserveOperation records the outcome and latency of an operation started at start.
func (m *Metrics) ObserveOperation(operation, outcome string, start time.Time) {
	if m != nil {
		m.Operations.WithLabelValues(operation, outcome).Inc()
		m.OperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
