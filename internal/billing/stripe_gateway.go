package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeGateway implements Gateway with a per-process Stripe client.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	logger        zerolog.Logger
}

// NewStripeClient builds a Stripe API client whose HTTP calls time out after timeout.
func NewStripeClient(secretKey string, timeout time.Duration) *client.API {
	return client.New(secretKey, stripe.NewBackends(&http.Client{Timeout: timeout}))
}

func NewStripeGateway(api *client.API, webhookSecret string, logger zerolog.Logger) *StripeGateway {
	return &StripeGateway{
		api:           api,
		webhookSecret: webhookSecret,
		logger:        logger.With().Str("service", "StripeGateway").Logger(),
	}
}

func (g *StripeGateway) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")
	params.AddExpand("customer")

	sess, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, classify("get checkout session", err)
	}
	return checkoutSessionFromStripe(sess), nil
}

func checkoutSessionFromStripe(sess *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            sess.ID,
		PaymentStatus: string(sess.PaymentStatus),
		Mode:          string(sess.Mode),
		PlanID:        sess.Metadata[MetadataPlanID],
		AmountCents:   sess.AmountTotal,
		Currency:      string(sess.Currency),
	}
	if sess.Customer != nil {
		out.CustomerRef = sess.Customer.ID
		if !sess.Customer.Deleted {
			out.CustomerUserID = sess.Customer.Metadata[MetadataUserID]
		}
	}
	if sess.Subscription != nil {
		out.SubscriptionRef = sess.Subscription.ID
	}
	if sess.LineItems != nil {
		for _, li := range sess.LineItems.Data {
			if li != nil && li.Price != nil && li.Price.ID != "" {
				out.PriceRefs = append(out.PriceRefs, li.Price.ID)
			}
		}
	}

	switch {
	case sess.CustomerDetails != nil && sess.CustomerDetails.Email != "":
		out.PayerEmail = sess.CustomerDetails.Email
	case sess.CustomerEmail != "":
		out.PayerEmail = sess.CustomerEmail
	case sess.Customer != nil:
		out.PayerEmail = sess.Customer.Email
	}
	out.PayerEmail = strings.ToLower(strings.TrimSpace(out.PayerEmail))
	return out
}

func (g *StripeGateway) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	c, err := g.api.Customers.Get(id, params)
	if err != nil {
		return nil, classify("get customer", err)
	}
	return &Customer{ID: c.ID, Email: c.Email, UserID: c.Metadata[MetadataUserID], Deleted: c.Deleted}, nil
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, p CustomerParams) (string, error) {
	params := &stripe.CustomerParams{
		Email:    stripe.String(p.Email),
		Metadata: map[string]string{MetadataUserID: p.UserID},
	}
	if p.Name != "" {
		params.Name = stripe.String(p.Name)
	}
	params.Context = ctx
	params.SetIdempotencyKey("customer-" + p.UserID)

	c, err := g.api.Customers.New(params)
	if err != nil {
		g.logger.Error().Err(err).Str("user_id", p.UserID).Msg("Failed to create Stripe customer")
		return "", classify("create customer", err)
	}
	return c.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutRedirect, error) {
	mode := stripe.CheckoutSessionModePayment
	if p.Recurring {
		mode = stripe.CheckoutSessionModeSubscription
	}
	params := &stripe.CheckoutSessionParams{
		Customer:          stripe.String(p.CustomerRef),
		ClientReferenceID: stripe.String(p.UserID),
		LineItems:         []*stripe.CheckoutSessionLineItemParams{{Price: stripe.String(p.PriceRef), Quantity: stripe.Int64(1)}},
		Mode:              stripe.String(string(mode)),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		Metadata:          map[string]string{MetadataUserID: p.UserID, MetadataPlanID: p.PlanID},
	}
	if p.Recurring {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataUserID: p.UserID, MetadataPlanID: p.PlanID},
		}
	}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		g.logger.Error().Err(err).Str("plan_id", p.PlanID).Msg("Failed to create Stripe checkout session")
		return nil, classify("create checkout session", err)
	}
	return &CheckoutRedirect{SessionID: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerRef),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", classify("create billing portal session", err)
	}
	return sess.URL, nil
}

func (g *StripeGateway) ConstructEvent(payload []byte, signature string) (*Event, error) {
	return ParseStripeEvent(payload, signature, g.webhookSecret)
}

// ParseStripeEvent verifies a Stripe webhook and decodes the objects the
// reconciler needs. Events pinned to another API version are accepted; only
// stable fields are read.
func ParseStripeEvent(payload []byte, signature, secret string) (*Event, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrInvalidSignature)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if ev.Data == nil {
		return nil, errors.New("webhook event has no data")
	}

	out := &Event{
		ID:      ev.ID,
		Type:    string(ev.Type),
		Created: time.Unix(ev.Created, 0).UTC(),
		Payload: payload,
	}

	switch out.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionResumed,
		EventSubscriptionPaused, EventSubscriptionDeleted:
		sub, err := subscriptionFromRaw(ev.Data.Raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", out.Type, err)
		}
		out.Subscription = sub
	case EventCheckoutCompleted, EventCheckoutAsyncPaymentPaid:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", out.Type, err)
		}
		out.CheckoutSessionID = cs.ID
	}
	return out, nil
}

// subscriptionFromRaw reads the period end from the subscription items and
// falls back to the top-level field older API versions send.
func subscriptionFromRaw(raw json.RawMessage) (*Subscription, error) {
	var ss stripe.Subscription
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil, err
	}
	var legacy struct {
		CurrentPeriodEnd int64 `json:"current_period_end"`
	}
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, err
	}

	out := &Subscription{
		ID:                ss.ID,
		Status:            string(ss.Status),
		CancelAtPeriodEnd: ss.CancelAtPeriodEnd,
		UserID:            ss.Metadata[MetadataUserID],
	}
	if ss.Customer != nil {
		out.CustomerRef = ss.Customer.ID
	}

	periodEnd := legacy.CurrentPeriodEnd
	if ss.Items != nil {
		for _, item := range ss.Items.Data {
			if item == nil {
				continue
			}
			if item.CurrentPeriodEnd > periodEnd {
				periodEnd = item.CurrentPeriodEnd
			}
			if out.PriceRef == "" && item.Price != nil {
				out.PriceRef = item.Price.ID
			}
		}
	}
	if periodEnd > 0 {
		out.CurrentPeriodEnd = time.Unix(periodEnd, 0).UTC()
	}
	return out, nil
}
