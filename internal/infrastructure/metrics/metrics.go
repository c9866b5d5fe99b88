package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the payout pipeline.
type Metrics struct {
	// Payout run metrics
	PayoutsProcessed  prometheus.Counter
	PayoutsSkipped    prometheus.Counter
	PayoutsFailed     prometheus.Counter
	PayoutAmountCents prometheus.Histogram
	PayoutRunDuration prometheus.Histogram

	// Outbox publisher metrics
	EventsPublished    *prometheus.CounterVec
	EventPublishErrors prometheus.Counter
	OutboxBatchSize    prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		PayoutsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payouts_processed_total",
			Help: "Total number of payouts sent to a processor",
		}),
		PayoutsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payouts_skipped_total",
			Help: "Total number of payees skipped during payout runs",
		}),
		PayoutsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payouts_failed_total",
			Help: "Total number of payout attempts that errored",
		}),
		PayoutAmountCents: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "payouts_amount_cents",
			Help:    "Disbursed payout amounts in cents",
			Buckets: []float64{1_00, 10_00, 100_00, 1_000_00, 10_000_00, 100_000_00},
		}),
		PayoutRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "payouts_run_duration_seconds",
			Help:    "Duration of full scheduled payout runs",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		}),

		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payouts_events_published_total",
				Help: "Total outbox events published by type",
			},
			[]string{"event_type"},
		),
		EventPublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payouts_event_publish_errors_total",
			Help: "Total outbox events that failed to publish",
		}),
		OutboxBatchSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "payouts_outbox_batch_size",
			Help: "Number of unpublished events fetched in the last poll",
		}),
	}
}
