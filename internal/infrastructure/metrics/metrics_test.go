package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersPayoutMetrics(t *testing.T) {
	m := New()

	m.PayoutsProcessed.Inc()
	m.PayoutsSkipped.Inc()
	m.PayoutsFailed.Inc()
	m.PayoutAmountCents.Observe(50_00)
	m.PayoutRunDuration.Observe(2.5)
	m.EventsPublished.WithLabelValues("payout.completed").Inc()
	m.EventPublishErrors.Inc()
	m.OutboxBatchSize.Set(7)

	if got := testutil.ToFloat64(m.PayoutsProcessed); got != 1 {
		t.Fatalf("expected processed counter 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues("payout.completed")); got != 1 {
		t.Fatalf("expected published counter 1, got %f", got)
	}
	if got := testutil.ToFloat64(m.OutboxBatchSize); got != 7 {
		t.Fatalf("expected batch gauge 7, got %f", got)
	}
}
