package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pitchside/internal/billing"
	"pitchside/internal/metrics"
	"pitchside/internal/model"
	"pitchside/internal/pubsub"
	"pitchside/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const providerStripe = "stripe"

// ConfirmResult is the outcome of confirming a checkout session.
type ConfirmResult string

const (
	// ConfirmGranted means the buyer holds a grant for the session.
	ConfirmGranted ConfirmResult = "granted"
	// ConfirmNotPaid means the session is not paid yet; the caller may poll again.
	ConfirmNotPaid ConfirmResult = "not_paid"
	// ConfirmPendingReview means the payment was recorded but could not be
	// tied to a user or plan.
	ConfirmPendingReview ConfirmResult = "pending_review"
)

type ConfirmOutcome struct {
	Result        ConfirmResult
	PaymentStatus string
	Grant         *model.EntitlementGrant
	// NewGrant is false when the session had been confirmed before.
	NewGrant bool
}

type CheckoutService interface {
	CreateCheckout(ctx context.Context, userID, planID string) (string, error)
	CreatePortal(ctx context.Context, userID string) (string, error)
	ConfirmSession(ctx context.Context, sessionID string) (*ConfirmOutcome, error)
}

type CheckoutConfig struct {
	SuccessURL        string
	CancelURL         string
	PortalReturnURL   string
	NotificationTopic string
}

type checkoutService struct {
	gateway      billing.Gateway
	users        repository.UserRepository
	plans        repository.PlanRepository
	payments     repository.PaymentRepository
	entitlements repository.EntitlementRepository
	subs         repository.SubscriptionRepository
	notifier     *notifier
	metrics      *metrics.Collector
	cfg          CheckoutConfig
	now          func() time.Time
	logger       zerolog.Logger
}

func NewCheckoutService(
	gateway billing.Gateway,
	users repository.UserRepository,
	plans repository.PlanRepository,
	payments repository.PaymentRepository,
	entitlements repository.EntitlementRepository,
	subs repository.SubscriptionRepository,
	notifications pubsub.Publisher,
	m *metrics.Collector,
	cfg CheckoutConfig,
	now func() time.Time,
	logger zerolog.Logger,
) CheckoutService {
	lg := logger.With().Str("service", "CheckoutService").Logger()
	return &checkoutService{
		gateway:      gateway,
		users:        users,
		plans:        plans,
		payments:     payments,
		entitlements: entitlements,
		subs:         subs,
		notifier:     newNotifier(notifications, cfg.NotificationTopic, lg),
		metrics:      m,
		cfg:          cfg,
		now:          now,
		logger:       lg,
	}
}

// CreateCheckout starts a hosted checkout for planID and returns its URL.
func (s *checkoutService) CreateCheckout(ctx context.Context, userID, planID string) (string, error) {
	plan, err := s.plans.GetPlanByID(ctx, planID)
	if err != nil {
		return "", err
	}
	if plan == nil {
		return "", ErrPlanNotFound
	}
	if !plan.Purchasable() {
		return "", ErrPlanNotPurchasable
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	customerRef, err := s.getOrCreateCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	redirect, err := s.gateway.CreateCheckoutSession(ctx, billing.CheckoutParams{
		CustomerRef: customerRef,
		UserID:      user.UserID,
		PlanID:      plan.ID,
		PriceRef:    *plan.BillingPriceRef,
		Recurring:   plan.Recurring,
		SuccessURL:  withSessionPlaceholder(s.cfg.SuccessURL),
		CancelURL:   s.cfg.CancelURL,
	})
	if err != nil {
		return "", err
	}
	s.logger.Info().Str("user_id", userID).Str("plan_id", plan.ID).Str("session_id", redirect.SessionID).Msg("Checkout session created")
	return redirect.URL, nil
}

// withSessionPlaceholder appends the template variable the provider replaces
// with the session id, so the success page can call confirm.
func withSessionPlaceholder(successURL string) string {
	sep := "?"
	if strings.Contains(successURL, "?") {
		sep = "&"
	}
	return successURL + sep + "session_id={CHECKOUT_SESSION_ID}"
}

func (s *checkoutService) getOrCreateCustomer(ctx context.Context, user *model.User) (string, error) {
	if ref, ok := user.BillingCustomer(); ok {
		return ref, nil
	}
	customerRef, err := s.gateway.CreateCustomer(ctx, billing.CustomerParams{UserID: user.UserID, Email: user.Email, Name: user.Name})
	if err != nil {
		return "", err
	}
	if err := s.users.UpdateStripeCustomerID(ctx, user.UserID, customerRef); err != nil {
		return "", fmt.Errorf("store stripe customer id: %w", err)
	}
	return customerRef, nil
}

// CreatePortal returns a customer portal URL for the user's billing customer.
func (s *checkoutService) CreatePortal(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	ref, ok := user.BillingCustomer()
	if !ok {
		return "", ErrNoBillingCustomer
	}
	return s.gateway.CreatePortalSession(ctx, ref, s.cfg.PortalReturnURL)
}

// ConfirmSession reconciles a checkout session into a payment record, an
// entitlement grant and the subscription mirror. It is safe to call any
// number of times for the same session.
func (s *checkoutService) ConfirmSession(ctx context.Context, sessionID string) (*ConfirmOutcome, error) {
	log := s.logger.With().Str("session_id", sessionID).Logger()

	sess, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		s.metrics.CheckoutConfirm("error")
		return nil, err
	}
	if !sess.Paid() {
		log.Info().Str("payment_status", sess.PaymentStatus).Msg("Checkout session not paid yet")
		s.metrics.CheckoutConfirm(string(ConfirmNotPaid))
		return &ConfirmOutcome{Result: ConfirmNotPaid, PaymentStatus: sess.PaymentStatus}, nil
	}

	plan, err := s.resolvePlan(ctx, sess)
	if err != nil {
		return nil, err
	}
	user, err := s.resolveBuyer(ctx, sess)
	if err != nil {
		return nil, err
	}

	payment := &model.Payment{
		Provider:    providerStripe,
		ProviderRef: sess.ID,
		Email:       sess.PayerEmail,
		AmountCents: sess.AmountCents,
		Currency:    sess.Currency,
		Status:      sess.PaymentStatus,
		Resolution:  model.PaymentResolutionResolved,
	}
	if sess.CustomerRef != "" {
		payment.CustomerRef = &sess.CustomerRef
	}
	if user != nil {
		payment.UserID = &user.UserID
	}
	if plan != nil {
		payment.PlanID = &plan.ID
	}
	if user == nil || plan == nil {
		payment.Resolution = model.PaymentResolutionUnresolved
	}
	if _, err := s.payments.RecordPayment(ctx, payment); err != nil {
		return nil, err
	}

	if payment.Resolution == model.PaymentResolutionUnresolved {
		log.Warn().
			Bool("user_resolved", user != nil).
			Bool("plan_resolved", plan != nil).
			Msg("Paid checkout could not be reconciled; recorded for review")
		s.metrics.CheckoutConfirm(string(ConfirmPendingReview))
		return &ConfirmOutcome{Result: ConfirmPendingReview, PaymentStatus: sess.PaymentStatus}, nil
	}

	if _, linked := user.BillingCustomer(); sess.CustomerRef != "" && !linked {
		if err := s.users.UpdateStripeCustomerID(ctx, user.UserID, sess.CustomerRef); err != nil {
			log.Warn().Err(err).Str("user_id", user.UserID).Msg("Failed to link billing customer to user")
		}
	}

	now := s.now().UTC()
	grant, created, err := s.entitlements.InsertGrant(ctx, &model.EntitlementGrant{
		UserID:   user.UserID,
		PlanID:   &plan.ID,
		Source:   model.GrantSourceCheckoutSession,
		SourceID: sess.ID,
		StartsAt: now,
		EndsAt:   now.Add(time.Duration(plan.Days) * 24 * time.Hour),
	})
	if err != nil {
		return nil, err
	}

	if created {
		if err := s.seedSubscription(ctx, user.UserID, sess, grant); err != nil {
			return nil, err
		}
	}

	if created {
		s.metrics.GrantCreated(grant.Source)
		s.notifier.notify(ctx, EventEntitlementGranted, EntitlementGrantedMessage{
			UserID:   grant.UserID,
			PlayerID: grant.PlayerID,
			PlanID:   grant.PlanID,
			Source:   grant.Source,
			StartsAt: grant.StartsAt,
			EndsAt:   grant.EndsAt,
		})
	}
	log.Info().
		Str("user_id", user.UserID).
		Str("plan_id", plan.ID).
		Bool("new_grant", created).
		Time("ends_at", grant.EndsAt).
		Msg("Checkout session confirmed")
	s.metrics.CheckoutConfirm(string(ConfirmGranted))
	return &ConfirmOutcome{Result: ConfirmGranted, PaymentStatus: sess.PaymentStatus, Grant: grant, NewGrant: created}, nil
}

// seedSubscription writes the mirror for a freshly granted session, but only
// while no provider subscription owns the row. Once lifecycle webhooks have
// stored a subscription ref, they alone carry its status and period.
func (s *checkoutService) seedSubscription(ctx context.Context, userID string, sess *billing.CheckoutSession, grant *model.EntitlementGrant) error {
	existing, err := s.subs.GetSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if existing != nil && existing.BillingSubscriptionRef != nil && *existing.BillingSubscriptionRef != "" {
		return nil
	}
	periodEnd := grant.EndsAt
	if existing != nil && existing.CurrentPeriodEnd != nil && existing.CurrentPeriodEnd.After(periodEnd) {
		periodEnd = *existing.CurrentPeriodEnd
	}
	return s.subs.UpsertSubscription(ctx, repository.SubscriptionUpsert{
		UserID:                 userID,
		BillingCustomerRef:     sess.CustomerRef,
		BillingSubscriptionRef: sess.SubscriptionRef,
		Status:                 model.SubscriptionStatusActive,
		CurrentPeriodEnd:       &periodEnd,
	})
}

// resolvePlan prefers the plan id stamped on the session and falls back to
// the purchased price. Plans without days cannot be granted.
func (s *checkoutService) resolvePlan(ctx context.Context, sess *billing.CheckoutSession) (*model.Plan, error) {
	if sess.PlanID != "" {
		plan, err := s.plans.GetPlanByID(ctx, sess.PlanID)
		if err != nil {
			return nil, err
		}
		if plan != nil && plan.Days > 0 {
			return plan, nil
		}
	}
	for _, priceRef := range sess.PriceRefs {
		plan, err := s.plans.GetPlanByPriceRef(ctx, priceRef)
		if err != nil {
			return nil, err
		}
		if plan != nil && plan.Days > 0 {
			return plan, nil
		}
	}
	return nil, nil
}

// resolveBuyer binds the session to a user: first through the user id in the
// billing customer's metadata, then through the payer email.
func (s *checkoutService) resolveBuyer(ctx context.Context, sess *billing.CheckoutSession) (*model.User, error) {
	if _, err := uuid.Parse(sess.CustomerUserID); err == nil {
		u, err := s.users.GetUserByID(ctx, sess.CustomerUserID)
		if err != nil {
			return nil, err
		}
		if u != nil {
			return u, nil
		}
		s.logger.Warn().Str("session_id", sess.ID).Msg("Customer metadata names an unknown user; falling back to email")
	}
	if sess.PayerEmail == "" {
		return nil, nil
	}
	return s.users.GetUserByEmail(ctx, sess.PayerEmail)
}

