package model

import (
	"strings"
	"time"
)

// SubscriptionStatus is the canonical status of an account-level subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusNone     SubscriptionStatus = "none"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// ParseSubscriptionStatus maps a billing provider status onto the canonical set.
// Unknown values map to SubscriptionStatusNone.
func ParseSubscriptionStatus(providerStatus string) SubscriptionStatus {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "active":
		return SubscriptionStatusActive
	case "trialing":
		return SubscriptionStatusTrialing
	case "past_due", "unpaid":
		return SubscriptionStatusPastDue
	case "canceled", "cancelled", "incomplete_expired", "paused":
		return SubscriptionStatusCanceled
	default:
		return SubscriptionStatusNone
	}
}

// ImpliesActive reports whether the status grants access while the period runs.
func (s SubscriptionStatus) ImpliesActive() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// Subscription mirrors the billing provider's subscription for a user. There is
// at most one row per user.
type Subscription struct {
	UserID                 string             `db:"user_id" json:"user_id"`
	BillingCustomerRef     *string            `db:"billing_customer_ref" json:"billing_customer_ref,omitempty"`
	BillingSubscriptionRef *string            `db:"billing_subscription_ref" json:"billing_subscription_ref,omitempty"`
	Status                 SubscriptionStatus `db:"status" json:"status"`
	CurrentPeriodEnd       *time.Time         `db:"current_period_end" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool               `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CreatedAt              time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time          `db:"updated_at" json:"updated_at"`
}

// IsLive reports whether the subscription grants access at now. CancelAtPeriodEnd
// does not matter here: access runs until the period ends either way.
func (s *Subscription) IsLive(now time.Time) bool {
	if s == nil || !s.Status.ImpliesActive() || s.CurrentPeriodEnd == nil {
		return false
	}
	return s.CurrentPeriodEnd.After(now)
}
