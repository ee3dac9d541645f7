package model

import "time"

const (
	PaymentResolutionResolved   = "resolved"
	PaymentResolutionUnresolved = "unresolved"
)

// Payment is an audit log entry for a completed checkout.
type Payment struct {
	ID          string    `db:"id" json:"id"`
	Provider    string    `db:"provider" json:"provider"`
	ProviderRef string    `db:"provider_ref" json:"provider_ref"`
	UserID      *string   `db:"user_id" json:"user_id,omitempty"`
	CustomerRef *string   `db:"customer_ref" json:"customer_ref,omitempty"`
	Email       string    `db:"email" json:"email"`
	PlanID      *string   `db:"plan_id" json:"plan_id,omitempty"`
	AmountCents int64     `db:"amount_cents" json:"amount_cents"`
	Currency    string    `db:"currency" json:"currency"`
	Status      string    `db:"status" json:"status"`
	Resolution  string    `db:"resolution" json:"resolution"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
