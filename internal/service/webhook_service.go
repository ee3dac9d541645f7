package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pitchside/internal/billing"
	"pitchside/internal/metrics"
	"pitchside/internal/model"
	"pitchside/internal/pubsub"
	"pitchside/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type WebhookService interface {
	// HandleEvent verifies and applies one webhook delivery. A nil error means
	// the delivery may be acknowledged; any other error asks the provider to
	// redeliver, except billing.ErrInvalidSignature which is final.
	HandleEvent(ctx context.Context, payload []byte, signature string) error
}

type webhookService struct {
	gateway      billing.Gateway
	checkout     CheckoutService
	events       repository.WebhookEventRepository
	users        repository.UserRepository
	subs         repository.SubscriptionRepository
	plans        repository.PlanRepository
	entitlements repository.EntitlementRepository
	notifier     *notifier
	metrics      *metrics.Collector
	now          func() time.Time
	logger       zerolog.Logger
}

func NewWebhookService(
	gateway billing.Gateway,
	checkout CheckoutService,
	events repository.WebhookEventRepository,
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	entitlements repository.EntitlementRepository,
	notifications pubsub.Publisher,
	notificationTopic string,
	m *metrics.Collector,
	now func() time.Time,
	logger zerolog.Logger,
) WebhookService {
	lg := logger.With().Str("service", "WebhookService").Logger()
	return &webhookService{
		gateway:      gateway,
		checkout:     checkout,
		events:       events,
		users:        users,
		subs:         subs,
		plans:        plans,
		entitlements: entitlements,
		notifier:     newNotifier(notifications, notificationTopic, lg),
		metrics:      m,
		now:          now,
		logger:       lg,
	}
}

func (s *webhookService) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.gateway.ConstructEvent(payload, signature)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Rejected webhook delivery")
		s.metrics.WebhookEvent("unknown", "rejected")
		return err
	}
	log := s.logger.With().Str("event_id", ev.ID).Str("event_type", ev.Type).Logger()

	stored, err := s.events.RecordEvent(ctx, &model.BillingWebhookEvent{
		Provider:        providerStripe,
		ProviderEventID: ev.ID,
		EventType:       ev.Type,
		PayloadJSON:     string(ev.Payload),
	})
	if err != nil {
		s.metrics.WebhookEvent(ev.Type, "error")
		return err
	}
	if stored.Done() {
		log.Info().Msg("Webhook event already processed")
		s.metrics.WebhookEvent(ev.Type, "duplicate")
		return nil
	}

	if err := s.dispatch(ctx, ev, log); err != nil {
		log.Error().Err(err).Msg("Webhook processing failed; provider will redeliver")
		if markErr := s.events.MarkProcessed(ctx, stored.ID, err.Error()); markErr != nil {
			log.Warn().Err(markErr).Msg("Failed to store webhook processing error")
		}
		s.metrics.WebhookEvent(ev.Type, "error")
		return err
	}

	if err := s.events.MarkProcessed(ctx, stored.ID, ""); err != nil {
		log.Warn().Err(err).Msg("Failed to mark webhook event processed")
	}
	s.metrics.WebhookEvent(ev.Type, "processed")
	return nil
}

func (s *webhookService) dispatch(ctx context.Context, ev *billing.Event, log zerolog.Logger) error {
	switch ev.Type {
	case billing.EventSubscriptionCreated, billing.EventSubscriptionUpdated,
		billing.EventSubscriptionResumed, billing.EventSubscriptionPaused,
		billing.EventSubscriptionDeleted:
		if ev.Subscription == nil {
			return fmt.Errorf("event %s carries no subscription", ev.ID)
		}
		return s.applySubscription(ctx, ev.Type, ev.Subscription, log)

	case billing.EventCheckoutCompleted, billing.EventCheckoutAsyncPaymentPaid:
		if ev.CheckoutSessionID == "" {
			log.Warn().Msg("Checkout event without session id")
			return nil
		}
		outcome, err := s.checkout.ConfirmSession(ctx, ev.CheckoutSessionID)
		if errors.Is(err, billing.ErrNotFound) {
			log.Warn().Str("session_id", ev.CheckoutSessionID).Msg("Checkout session from webhook not found")
			return nil
		}
		if err != nil {
			return err
		}
		log.Info().Str("session_id", ev.CheckoutSessionID).Str("result", string(outcome.Result)).Msg("Checkout event reconciled")
		return nil

	default:
		log.Debug().Msg("Ignoring unhandled webhook event type")
		return nil
	}
}

// applySubscription mirrors the provider state onto the user's subscription
// row and grants the current period when it is live. Deletion only mirrors
// the status; grants already written keep their windows.
func (s *webhookService) applySubscription(ctx context.Context, eventType string, sub *billing.Subscription, log zerolog.Logger) error {
	log = log.With().Str("subscription_id", sub.ID).Str("customer_id", sub.CustomerRef).Logger()

	userID, err := s.resolveSubscriber(ctx, sub)
	if err != nil {
		return err
	}
	if userID == "" {
		log.Warn().Msg("No user bound to billing customer; event skipped")
		return nil
	}

	status := model.ParseSubscriptionStatus(sub.Status)
	if eventType == billing.EventSubscriptionDeleted {
		status = model.SubscriptionStatusCanceled
	}
	var periodEnd *time.Time
	if !sub.CurrentPeriodEnd.IsZero() {
		end := sub.CurrentPeriodEnd.UTC()
		periodEnd = &end
	}

	if err := s.subs.UpsertSubscription(ctx, repository.SubscriptionUpsert{
		UserID:                 userID,
		BillingCustomerRef:     sub.CustomerRef,
		BillingSubscriptionRef: sub.ID,
		Status:                 status,
		CurrentPeriodEnd:       periodEnd,
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
	}); err != nil {
		return err
	}

	now := s.now().UTC()
	if !status.ImpliesActive() || periodEnd == nil || !periodEnd.After(now) {
		log.Info().Str("user_id", userID).Str("status", string(status)).Msg("Subscription mirrored")
		return nil
	}

	grant := &model.EntitlementGrant{
		UserID:   userID,
		Source:   model.GrantSourceStripeSubscription,
		SourceID: fmt.Sprintf("%s:%d", sub.ID, periodEnd.Unix()),
		StartsAt: now,
		EndsAt:   *periodEnd,
	}
	if sub.PriceRef != "" {
		plan, err := s.plans.GetPlanByPriceRef(ctx, sub.PriceRef)
		if err != nil {
			log.Warn().Err(err).Str("price_id", sub.PriceRef).Msg("Failed to resolve plan for subscription price")
		} else if plan != nil {
			grant.PlanID = &plan.ID
		}
	}

	stored, created, err := s.entitlements.InsertGrant(ctx, grant)
	if err != nil {
		return err
	}
	if created {
		s.metrics.GrantCreated(stored.Source)
		s.notifier.notify(ctx, EventEntitlementGranted, EntitlementGrantedMessage{
			UserID:   stored.UserID,
			PlanID:   stored.PlanID,
			Source:   stored.Source,
			StartsAt: stored.StartsAt,
			EndsAt:   stored.EndsAt,
		})
	}
	log.Info().
		Str("user_id", userID).
		Str("status", string(status)).
		Bool("new_grant", created).
		Time("period_end", *periodEnd).
		Msg("Subscription mirrored and period granted")
	return nil
}

// resolveSubscriber finds the owning user through the customer index
// (subscription mirror, then linked profiles), then the subscription metadata,
// then the customer's own metadata at the provider. "" means unresolvable.
func (s *webhookService) resolveSubscriber(ctx context.Context, sub *billing.Subscription) (string, error) {
	if sub.CustomerRef != "" {
		existing, err := s.subs.GetSubscriptionByCustomerRef(ctx, sub.CustomerRef)
		if err != nil {
			return "", err
		}
		if existing != nil {
			return existing.UserID, nil
		}
		u, err := s.users.GetUserByStripeCustomerID(ctx, sub.CustomerRef)
		if err != nil {
			return "", err
		}
		if u != nil {
			return u.UserID, nil
		}
	}

	if userID, err := s.knownUser(ctx, sub.UserID); err != nil || userID != "" {
		return userID, err
	}

	if sub.CustomerRef == "" {
		return "", nil
	}
	cust, err := s.gateway.GetCustomer(ctx, sub.CustomerRef)
	if errors.Is(err, billing.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if cust.Deleted {
		return "", nil
	}
	return s.knownUser(ctx, cust.UserID)
}

// knownUser returns userID when it names an existing profile.
func (s *webhookService) knownUser(ctx context.Context, userID string) (string, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return "", nil
	}
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil || u == nil {
		return "", err
	}
	return u.UserID, nil
}
