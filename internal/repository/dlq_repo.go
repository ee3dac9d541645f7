package repository

import (
	"context"
	"fmt"

	"pitchside/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DLQRepository interface {
	// Create stores a dead-lettered message. Pub/Sub may push the same message
	// more than once; later copies are ignored.
	Create(ctx context.Context, message *model.DeadLetterMessage) error
}

type dlqRepository struct {
	pool *pgxpool.Pool
}

func NewDLQRepository(pool *pgxpool.Pool) DLQRepository {
	return &dlqRepository{pool: pool}
}

func (r *dlqRepository) Create(ctx context.Context, message *model.DeadLetterMessage) error {
	const q = `
		INSERT INTO dead_letter_messages
			(subscription_name, message_id, event_type, payload, attributes, delivery_attempt, published_at, status)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT ux_dead_letter_messages_message DO NOTHING
	`
	_, err := r.pool.Exec(ctx, q,
		message.SubscriptionName,
		message.MessageID,
		message.EventType,
		message.Payload,
		message.Attributes,
		message.DeliveryAttempt,
		message.PublishedAt,
		message.Status,
	)
	if err != nil {
		return fmt.Errorf("insert dead letter message %s: %w", message.MessageID, err)
	}
	return nil
}
