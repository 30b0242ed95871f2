package observability_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/xraph/press/observability"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *observability.Metrics
	m.RecordTransition("draft", "published")
	m.RecordSweep("publish", 1, 1)
	m.RecordHandlerFailure("cache")
	m.RecordRevision()
	m.RecordRestore()
	m.RecordEnqueued(2)
	m.RecordAttempt("delivered", 0.1)
	m.RecordDuplicate()
	m.SetPending(4)
}

func TestMetrics_SetPending(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())

	m.RecordEnqueued(2)
	m.SetPending(7)
	assert.InDelta(t, 7, testutil.ToFloat64(m.PendingDeliveries), 0)
}

func TestMetrics_Attempts(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())

	m.RecordEnqueued(3)
	m.RecordAttempt("retry", 0.2)
	m.RecordAttempt("delivered", 0.1)
	m.RecordAttempt("exhausted", 0.3)
	m.RecordDuplicate()

	assert.InDelta(t, 3, testutil.ToFloat64(m.DeliveriesEnqueued), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DeliveryAttempts.WithLabelValues("retry")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DeliveriesExhausted), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DeliveriesSkipped), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.PendingDeliveries), 0)
}

func TestMetrics_Sweeps(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())

	m.RecordSweep("publish", 4, 1)
	m.RecordHandlerFailure("webhook")

	assert.InDelta(t, 4, testutil.ToFloat64(m.SweepTransitions.WithLabelValues("publish")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SweepFailures.WithLabelValues("publish")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.HandlerFailures.WithLabelValues("webhook")), 0)
}

func TestTracer_NilStartsNoopSpan(t *testing.T) {
	var tr *observability.Tracer
	ctx, span := tr.StartSweepSpan(context.Background(), "publish")
	assert.NotNil(t, ctx)
	tr.EndSweepSpan(span, 0, 0)
}
