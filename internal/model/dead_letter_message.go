package model

import "time"

const DeadLetterStatusUnprocessed = "unprocessed"

// DeadLetterMessage is a notification that exhausted its Pub/Sub delivery
// attempts and was pushed to the dead-letter endpoint. Payload holds the
// decoded body, Attributes the JSON-encoded message attributes.
type DeadLetterMessage struct {
	ID               string     `db:"id"`
	SubscriptionName string     `db:"subscription_name"`
	MessageID        string     `db:"message_id"`
	EventType        string     `db:"event_type"`
	Payload          string     `db:"payload"`
	Attributes       *string    `db:"attributes"`
	DeliveryAttempt  *int       `db:"delivery_attempt"`
	PublishedAt      *time.Time `db:"published_at"`
	Status           string     `db:"status"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}
