package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the provisioning flow.
type Metrics struct {
	Registrations   *prometheus.CounterVec
	StageFailures   *prometheus.CounterVec
	RPCFallbacks    *prometheus.CounterVec
	ProfileAttempts prometheus.Histogram
	Duration        *prometheus.HistogramVec
}

// New creates and registers all provisioning metrics.
func New() *Metrics {
	return &Metrics{
		Registrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mesa_registrations_total",
			Help: "Registrations by entity kind and terminal outcome",
		}, []string{"kind", "outcome"}),
		StageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mesa_provisioning_stage_failures_total",
			Help: "Stage-level failures, including ones later absorbed by retries or fallbacks",
		}, []string{"kind", "stage"}),
		RPCFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mesa_rpc_fallbacks_total",
			Help: "Times a primary RPC name was unresolvable and a fallback was used",
		}, []string{"stage"}),
		ProfileAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mesa_profile_ensure_attempts",
			Help:    "Attempts needed before the profile ensure RPC succeeded",
			Buckets: []float64{1, 2, 3, 5, 10},
		}),
		Duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mesa_registration_duration_seconds",
			Help:    "End-to-end registration duration by entity kind",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}

// RecordOutcome increments the terminal outcome counter.
func (m *Metrics) RecordOutcome(kind, outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(kind, outcome).Inc()
}

// RecordStageFailure increments the per-stage failure counter.
func (m *Metrics) RecordStageFailure(kind, stage string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(kind, stage).Inc()
}

// RecordFallback increments the RPC fallback counter.
func (m *Metrics) RecordFallback(stage string) {
	if m == nil {
		return
	}
	m.RPCFallbacks.WithLabelValues(stage).Inc()
}

// ObserveProfileAttempts records how many ensure attempts a registration needed.
func (m *Metrics) ObserveProfileAttempts(attempts int) {
	if m == nil {
		return
	}
	m.ProfileAttempts.Observe(float64(attempts))
}

// ObserveDuration records the end-to-end registration latency.
func (m *Metrics) ObserveDuration(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(kind).Observe(seconds)
}
