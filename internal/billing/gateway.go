// Package billing wraps the payment provider behind a small interface so the
// reconciler can be exercised with fakes.
package billing

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable marks provider failures worth retrying: timeouts,
	// network errors, rate limiting and 5xx responses.
	ErrUnavailable = errors.New("billing provider unavailable")
	// ErrNotFound means the provider has no object with the given id.
	ErrNotFound = errors.New("billing object not found")
	// ErrInvalidSignature means a webhook payload failed verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Webhook event types the reconciler acts on.
const (
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionResumed      = "customer.subscription.resumed"
	EventSubscriptionPaused       = "customer.subscription.paused"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventCheckoutCompleted        = "checkout.session.completed"
	EventCheckoutAsyncPaymentPaid = "checkout.session.async_payment_succeeded"
)

const PaymentStatusPaid = "paid"

// MetadataUserID is the metadata key binding provider objects to a user.
const MetadataUserID = "user_id"

// MetadataPlanID is the checkout session metadata key naming the bought plan.
const MetadataPlanID = "plan_id"

type Customer struct {
	ID      string
	Email   string
	UserID  string
	Deleted bool
}

// CheckoutSession is the subset of a provider checkout session used to
// confirm a purchase.
type CheckoutSession struct {
	ID              string
	PaymentStatus   string
	Mode            string
	CustomerRef     string
	CustomerUserID  string
	PayerEmail      string
	SubscriptionRef string
	PlanID          string
	PriceRefs       []string
	AmountCents     int64
	Currency        string
}

// Paid reports whether the payment has been captured. "no_payment_required"
// does not count.
func (s *CheckoutSession) Paid() bool {
	return s != nil && s.PaymentStatus == PaymentStatusPaid
}

// Subscription is the full provider state of a subscription as carried by
// lifecycle events.
type Subscription struct {
	ID                string
	CustomerRef       string
	Status            string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
	UserID            string
	PriceRef          string
}

// Event is a verified webhook event.
type Event struct {
	ID                string
	Type              string
	Created           time.Time
	Payload           []byte
	Subscription      *Subscription
	CheckoutSessionID string
}

type CustomerParams struct {
	UserID string
	Email  string
	Name   string
}

type CheckoutParams struct {
	CustomerRef string
	UserID      string
	PlanID      string
	PriceRef    string
	Recurring   bool
	SuccessURL  string
	CancelURL   string
}

type CheckoutRedirect struct {
	SessionID string
	URL       string
}

// Gateway is the billing provider as seen by the services.
type Gateway interface {
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	CreateCustomer(ctx context.Context, p CustomerParams) (string, error)
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutRedirect, error)
	CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error)
	// ConstructEvent verifies the signature header and decodes the event.
	ConstructEvent(payload []byte, signature string) (*Event, error)
}
