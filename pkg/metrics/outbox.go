package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records publisher throughput and dead-letter activity.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	deadLetts prometheus.Counter
	batchTime prometheus.Histogram
	backlog   prometheus.Gauge
}

// NewOutboxMetrics registers the outbox metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Outbox events successfully published, labeled by event type.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_failed_total",
		Help: "Outbox publish attempts that failed, labeled by event type.",
	}, []string{"event_type"})
	deadLetts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_dead_lettered_total",
		Help: "Outbox events moved to the dead letter table.",
	})
	batchTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_batch_duration_seconds",
		Help:    "Time spent draining one outbox batch.",
		Buckets: prometheus.DefBuckets,
	})
	backlog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_backlog",
		Help: "Pending outbox rows observed at the start of the last batch.",
	})
	reg.MustRegister(published, failed, deadLetts, batchTime, backlog)
	return &OutboxMetrics{
		published: published,
		failed:    failed,
		deadLetts: deadLetts,
		batchTime: batchTime,
		backlog:   backlog,
	}
}

// IncPublished increments the published counter for the event type.
func (o *OutboxMetrics) IncPublished(eventType string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed increments the failure counter for the event type.
func (o *OutboxMetrics) IncFailed(eventType string) {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDeadLettered increments the dead letter counter.
func (o *OutboxMetrics) IncDeadLettered() {
	if o == nil || o.deadLetts == nil {
		return
	}
	o.deadLetts.Inc()
}

// ObserveBatch records the duration of one publish batch.
func (o *OutboxMetrics) ObserveBatch(elapsed time.Duration) {
	if o == nil || o.batchTime == nil {
		return
	}
	o.batchTime.Observe(elapsed.Seconds())
}

// SetBacklog records the pending row count seen by the publisher.
func (o *OutboxMetrics) SetBacklog(pending int) {
	if o == nil || o.backlog == nil {
		return
	}
	o.backlog.Set(float64(pending))
}
