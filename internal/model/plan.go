package model

import "time"

// Plan is a purchasable catalog entry. Days is the length of the access window
// a purchase grants.
type Plan struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Days            int       `db:"days" json:"days"`
	AmountCents     int64     `db:"amount_cents" json:"amount_cents"`
	Currency        string    `db:"currency" json:"currency"`
	Active          bool      `db:"active" json:"active"`
	Free            bool      `db:"free" json:"free"`
	Recurring       bool      `db:"recurring" json:"recurring"`
	BillingPriceRef *string   `db:"billing_price_ref" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Purchasable reports whether a checkout may be started for the plan.
func (p *Plan) Purchasable() bool {
	return p != nil && p.Active && !p.Free && p.Days > 0 && p.BillingPriceRef != nil && *p.BillingPriceRef != ""
}
