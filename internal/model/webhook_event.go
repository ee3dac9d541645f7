package model

import "time"

// BillingWebhookEvent stores provider webhook payloads with deduplication
// metadata for idempotent processing.
type BillingWebhookEvent struct {
	ID              int64      `db:"id" json:"id"`
	Provider        string     `db:"provider" json:"provider"`
	ProviderEventID string     `db:"provider_event_id" json:"provider_event_id"`
	EventType       string     `db:"event_type" json:"event_type"`
	PayloadJSON     string     `db:"payload_json" json:"payload_json"`
	ProcessedAt     *time.Time `db:"processed_at" json:"processed_at,omitempty"`
	ProcessingError string     `db:"processing_error" json:"processing_error"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// Done reports whether the event was already processed successfully.
func (e *BillingWebhookEvent) Done() bool {
	return e != nil && e.ProcessedAt != nil && e.ProcessingError == ""
}
