package repository

import (
	"context"
	"fmt"
	"time"

	"pitchside/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type WebhookEventRepository interface {
	// RecordEvent inserts the event or returns the row already stored for
	// (provider, provider_event_id).
	RecordEvent(ctx context.Context, e *model.BillingWebhookEvent) (*model.BillingWebhookEvent, error)
	// MarkProcessed stamps processed_at and stores procErr ("" on success).
	MarkProcessed(ctx context.Context, id int64, procErr string) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

type webhookEventRepo struct {
	pool *pgxpool.Pool
}

func NewWebhookEventRepo(pool *pgxpool.Pool) WebhookEventRepository {
	return &webhookEventRepo{pool: pool}
}

func (r *webhookEventRepo) RecordEvent(ctx context.Context, e *model.BillingWebhookEvent) (*model.BillingWebhookEvent, error) {
	// The no-op update makes RETURNING yield the stored row on conflict.
	const q = `
		INSERT INTO billing_webhook_events (provider, provider_event_id, event_type, payload_json)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT ON CONSTRAINT ux_billing_webhook_events_provider_event
		DO UPDATE SET event_type = billing_webhook_events.event_type
		RETURNING id, provider, provider_event_id, event_type, payload_json::text, processed_at, processing_error, created_at
	`
	var out model.BillingWebhookEvent
	err := r.pool.QueryRow(ctx, q, e.Provider, e.ProviderEventID, e.EventType, e.PayloadJSON).Scan(
		&out.ID, &out.Provider, &out.ProviderEventID, &out.EventType, &out.PayloadJSON,
		&out.ProcessedAt, &out.ProcessingError, &out.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("record webhook event %s: %w", e.ProviderEventID, err)
	}
	return &out, nil
}

func (r *webhookEventRepo) MarkProcessed(ctx context.Context, id int64, procErr string) error {
	const q = `
		UPDATE billing_webhook_events
		SET processed_at = NOW(), processing_error = $2
		WHERE id = $1
	`
	if _, err := r.pool.Exec(ctx, q, id, procErr); err != nil {
		return fmt.Errorf("mark webhook event %d processed: %w", id, err)
	}
	return nil
}

func (r *webhookEventRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	const q = `
		DELETE FROM billing_webhook_events
		WHERE processed_at IS NOT NULL AND processing_error = '' AND processed_at < $1
	`
	tag, err := r.pool.Exec(ctx, q, before)
	if err != nil {
		return 0, fmt.Errorf("delete webhook events before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}
