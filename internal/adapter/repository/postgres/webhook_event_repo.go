package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendora/payouts/internal/domain"
)

// WebhookEventRepository implements usecase.WebhookEventRepository with a
// processed-event ledger keyed by (processor, event id).
type WebhookEventRepository struct {
	pool *pgxpool.Pool
}

// NewWebhookEventRepository creates a new WebhookEventRepository.
func NewWebhookEventRepository(pool *pgxpool.Pool) *WebhookEventRepository {
	return &WebhookEventRepository{pool: pool}
}

// Seen reports whether the event id was already recorded.
func (r *WebhookEventRepository) Seen(ctx context.Context, processor domain.ProcessorID, eventID string) (bool, error) {
	var seen bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM webhook_events WHERE processor = $1 AND event_id = $2
		 )`,
		string(processor), eventID).Scan(&seen)
	if err != nil {
		return false, err
	}

	return seen, nil
}

// MarkProcessed records the event id. The conflict target makes redelivery
// detection atomic: exactly one caller ever sees true for a given event.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, processor domain.ProcessorID, eventID string, processedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO webhook_events (processor, event_id, processed_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (processor, event_id) DO NOTHING`,
		string(processor), eventID, timeToPgTimestamptz(processedAt))
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}
