package model

import (
	"strings"
	"time"
)

// User represents a parent or coach profile. UserID is the auth subject.
type User struct {
	UserID           string    `db:"user_id" json:"user_id"`
	Name             string    `db:"name" json:"name"`
	Email            string    `db:"email" json:"email"`
	AvatarURL        string    `db:"avatar_url" json:"avatar_url"`
	StripeCustomerID *string   `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// BillingCustomer returns the linked Stripe customer, if any.
func (u *User) BillingCustomer() (string, bool) {
	if u == nil || u.StripeCustomerID == nil || *u.StripeCustomerID == "" {
		return "", false
	}
	return *u.StripeCustomerID, true
}

// NormalizeEmail is the form emails are stored and matched in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
