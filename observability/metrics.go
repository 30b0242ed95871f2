package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments of the pipeline. All recording
// methods are safe on a nil *Metrics.
type Metrics struct {
	Transitions         *prometheus.CounterVec
	SweepTransitions    *prometheus.CounterVec
	SweepFailures       *prometheus.CounterVec
	HandlerFailures     *prometheus.CounterVec
	RevisionsCreated    prometheus.Counter
	RevisionsRestored   prometheus.Counter
	DeliveriesEnqueued  prometheus.Counter
	DeliveryAttempts    *prometheus.CounterVec
	DeliveriesSkipped   prometheus.Counter
	DeliveriesExhausted prometheus.Counter
	DeliveryLatency     prometheus.Histogram
	PendingDeliveries   prometheus.Gauge
}

// NewMetrics registers the pipeline instruments on reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "press_entry_transitions_total",
			Help: "Committed entry status transitions.",
		}, []string{"from", "to"}),
		SweepTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "press_sweep_transitions_total",
			Help: "Entries transitioned by scheduled sweeps.",
		}, []string{"sweep"}),
		SweepFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "press_sweep_failures_total",
			Help: "Per-row sweep failures.",
		}, []string{"sweep"}),
		HandlerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "press_handler_failures_total",
			Help: "Side-effect handler failures caught by the orchestrator.",
		}, []string{"handler"}),
		RevisionsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "press_revisions_created_total",
			Help: "Revisions captured before entry updates.",
		}),
		RevisionsRestored: f.NewCounter(prometheus.CounterOpts{
			Name: "press_revisions_restored_total",
			Help: "Entries restored from a revision.",
		}),
		DeliveriesEnqueued: f.NewCounter(prometheus.CounterOpts{
			Name: "press_webhook_deliveries_enqueued_total",
			Help: "Webhook delivery requests enqueued.",
		}),
		DeliveryAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "press_webhook_attempts_total",
			Help: "Webhook delivery attempts by outcome.",
		}, []string{"outcome"}),
		DeliveriesSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "press_webhook_duplicates_skipped_total",
			Help: "Deliveries skipped because the idempotency key was already delivered.",
		}),
		DeliveriesExhausted: f.NewCounter(prometheus.CounterOpts{
			Name: "press_webhook_deliveries_exhausted_total",
			Help: "Deliveries that consumed every attempt without success.",
		}),
		DeliveryLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "press_webhook_latency_seconds",
			Help:    "Webhook request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		PendingDeliveries: f.NewGauge(prometheus.GaugeOpts{
			Name: "press_webhook_pending_deliveries",
			Help: "Deliveries waiting for an attempt.",
		}),
	}
}

func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordSweep(sweep string, transitioned, failed int) {
	if m == nil {
		return
	}
	m.SweepTransitions.WithLabelValues(sweep).Add(float64(transitioned))
	m.SweepFailures.WithLabelValues(sweep).Add(float64(failed))
}

func (m *Metrics) RecordHandlerFailure(handler string) {
	if m == nil {
		return
	}
	m.HandlerFailures.WithLabelValues(handler).Inc()
}

func (m *Metrics) RecordRevision() {
	if m == nil {
		return
	}
	m.RevisionsCreated.Inc()
}

func (m *Metrics) RecordRestore() {
	if m == nil {
		return
	}
	m.RevisionsRestored.Inc()
}

func (m *Metrics) RecordEnqueued(n int) {
	if m == nil {
		return
	}
	m.DeliveriesEnqueued.Add(float64(n))
	m.PendingDeliveries.Add(float64(n))
}

// RecordAttempt records one HTTP attempt. outcome is "delivered", "retry"
// or "exhausted".
func (m *Metrics) RecordAttempt(outcome string, latencySeconds float64) {
	if m == nil {
		return
	}
	m.DeliveryAttempts.WithLabelValues(outcome).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
	switch outcome {
	case "delivered":
		m.PendingDeliveries.Dec()
	case "exhausted":
		m.PendingDeliveries.Dec()
		m.DeliveriesExhausted.Inc()
	}
}

func (m *Metrics) RecordDuplicate() {
	if m == nil {
		return
	}
	m.DeliveriesSkipped.Inc()
	m.PendingDeliveries.Dec()
}

// SetPending resets the pending gauge to a counted value, such as the
// store's CountPending at startup.
func (m *Metrics) SetPending(n int64) {
	if m == nil {
		return
	}
	m.PendingDeliveries.Set(float64(n))
}
