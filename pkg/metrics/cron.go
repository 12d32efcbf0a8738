package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SweepMetrics records timing and outcomes for the periodic maintenance
// sweeps. All methods are safe on a nil receiver so the cron service can run
// without a registry in tests.
type SweepMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

// NewSweepMetrics registers the sweep metrics on the provided registerer.
func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	if reg == nil {
		return &SweepMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sweep_duration_seconds",
		Help:    "Duration of maintenance sweeps in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_runs_total",
		Help: "Maintenance sweep executions by outcome.",
	}, []string{"job", "outcome"})
	reg.MustRegister(duration, runs)
	return &SweepMetrics{duration: duration, runs: runs}
}

// ObserveDuration records the duration for the named sweep.
func (s *SweepMetrics) ObserveDuration(job string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess counts one successful run of the named sweep.
func (s *SweepMetrics) IncSuccess(job string) {
	if s == nil || s.runs == nil {
		return
	}
	s.runs.WithLabelValues(normalizeLabel(job), "success").Inc()
}

// IncFailure counts one failed run of the named sweep.
func (s *SweepMetrics) IncFailure(job string) {
	if s == nil || s.runs == nil {
		return
	}
	s.runs.WithLabelValues(normalizeLabel(job), "failure").Inc()
}

// normalizeLabel keeps metric label cardinality bounded when a caller passes
// an empty name. Shared by the sweep, HTTP, and outbox collectors.
func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
