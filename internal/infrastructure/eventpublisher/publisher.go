package eventpublisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/vendora/payouts/internal/domain"
	"github.com/vendora/payouts/internal/infrastructure/logging"
	"github.com/vendora/payouts/internal/infrastructure/metrics"
	"github.com/vendora/payouts/internal/usecase"
)

// EventPublisher drains the outbox: it polls for unpublished payout events,
// hands them to a Publisher, and marks them published. Events stay in the
// outbox until MarkPublished succeeds, so delivery is at-least-once.
type EventPublisher struct {
	outboxRepo usecase.OutboxRepository
	publisher  Publisher
	logger     *logging.Logger
	metrics    *metrics.Metrics
	batchSize  int
	interval   time.Duration
	retention  time.Duration
}

// Publisher delivers a single outbox event to an external system.
type Publisher interface {
	Publish(ctx context.Context, event *domain.OutboxEvent) error
}

// Config for EventPublisher.
type Config struct {
	OutboxRepo usecase.OutboxRepository
	Publisher  Publisher
	Logger     *logging.Logger
	Metrics    *metrics.Metrics
	BatchSize  int           // Number of events to fetch per batch
	Interval   time.Duration // Polling interval
	Retention  time.Duration // How long published events are kept; zero disables cleanup
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(cfg Config) *EventPublisher {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}

	return &EventPublisher{
		outboxRepo: cfg.OutboxRepo,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		batchSize:  cfg.BatchSize,
		interval:   cfg.Interval,
		retention:  cfg.Retention,
	}
}

// Start begins the publishing loop. It runs until the context is cancelled.
func (ep *EventPublisher) Start(ctx context.Context) error {
	ep.logger.InfoCtx(ctx, "event publisher started",
		slog.Int("batch_size", ep.batchSize),
		slog.Duration("interval", ep.interval))

	ticker := time.NewTicker(ep.interval)
	defer ticker.Stop()

	// Process immediately on start
	if err := ep.processEvents(ctx); err != nil {
		ep.logger.ErrorCtx(ctx, "error processing events on start", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			ep.logger.InfoCtx(ctx, "event publisher shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := ep.processEvents(ctx); err != nil {
				ep.logger.ErrorCtx(ctx, "error processing events", slog.String("error", err.Error()))
			}
			ep.sweepPublished(ctx)
		}
	}
}

// processEvents fetches and publishes a batch of unpublished events.
func (ep *EventPublisher) processEvents(ctx context.Context) error {
	events, err := ep.outboxRepo.GetUnpublished(ctx, ep.batchSize)
	if err != nil {
		return err
	}

	if ep.metrics != nil {
		ep.metrics.OutboxBatchSize.Set(float64(len(events)))
	}

	if len(events) == 0 {
		return nil
	}

	ep.logger.InfoCtx(ctx, "publishing outbox events", slog.Int("count", len(events)))

	for _, event := range events {
		if err := ep.publishEvent(ctx, event); err != nil {
			if ep.metrics != nil {
				ep.metrics.EventPublishErrors.Inc()
			}
			ep.logger.ErrorCtx(ctx, "failed to publish event",
				slog.String("event_id", event.ID),
				slog.String("event_type", event.EventType),
				slog.String("error", err.Error()))
			// Continue processing other events even if one fails
			continue
		}

		if ep.metrics != nil {
			ep.metrics.EventsPublished.WithLabelValues(event.EventType).Inc()
		}

		// Mark as published
		if err := ep.outboxRepo.MarkPublished(ctx, event.ID, time.Now()); err != nil {
			ep.logger.ErrorCtx(ctx, "failed to mark event as published",
				slog.String("event_id", event.ID),
				slog.String("error", err.Error()))
			// Don't continue - we don't want to re-publish this event
		}
	}

	return nil
}

// publishEvent publishes a single event. Operator alerts are logged at error
// level so they surface on the on-call channel even when the downstream
// consumer is a plain log sink.
func (ep *EventPublisher) publishEvent(ctx context.Context, event *domain.OutboxEvent) error {
	if err := ep.publisher.Publish(ctx, event); err != nil {
		return err
	}

	if event.EventType == domain.EventTypeOperatorAlert {
		ep.logger.ErrorCtx(ctx, "operator alert published",
			slog.String("event_id", event.ID),
			slog.String("aggregate_type", event.AggregateType),
			slog.String("aggregate_id", event.AggregateID))
		return nil
	}

	ep.logger.InfoCtx(ctx, "event published",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.EventType),
		slog.String("aggregate_id", event.AggregateID))

	return nil
}

// sweepPublished deletes published events older than the retention window.
func (ep *EventPublisher) sweepPublished(ctx context.Context) {
	if ep.retention <= 0 {
		return
	}

	if err := ep.outboxRepo.DeletePublished(ctx, time.Now().Add(-ep.retention)); err != nil {
		ep.logger.WarnCtx(ctx, "failed to delete published events", slog.String("error", err.Error()))
	}
}

// LogPublisher is a simple publisher that logs events.
type LogPublisher struct {
	logger *logging.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger *logging.Logger) *LogPublisher {
	if logger == nil {
		logger = &logging.Logger{Logger: slog.Default()}
	}
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	p.logger.InfoCtx(ctx, "EVENT PUBLISHED",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.EventType),
		slog.String("aggregate_type", event.AggregateType),
		slog.String("aggregate_id", event.AggregateID),
		slog.String("payload", string(payload)))

	return nil
}
