package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pitchside/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriptionUpsert is the full provider state mirrored onto a user's row.
type SubscriptionUpsert struct {
	UserID                 string
	BillingCustomerRef     string
	BillingSubscriptionRef string
	Status                 model.SubscriptionStatus
	CurrentPeriodEnd       *time.Time
	CancelAtPeriodEnd      bool
}

// SubscriptionRepository defines methods for accessing subscription data.
type SubscriptionRepository interface {
	GetSubscription(ctx context.Context, userID string) (*model.Subscription, error)
	// GetSubscriptionByCustomerRef resolves the customer-to-user index.
	GetSubscriptionByCustomerRef(ctx context.Context, customerRef string) (*model.Subscription, error)
	// UpsertSubscription writes the provider state keyed by user (last write wins).
	// Empty refs never erase refs that are already stored.
	UpsertSubscription(ctx context.Context, in SubscriptionUpsert) error
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `user_id, billing_customer_ref, billing_subscription_ref, status, current_period_end, cancel_at_period_end, created_at, updated_at`

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	var status string
	err := row.Scan(
		&s.UserID,
		&s.BillingCustomerRef,
		&s.BillingSubscriptionRef,
		&status,
		&s.CurrentPeriodEnd,
		&s.CancelAtPeriodEnd,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Status = model.SubscriptionStatus(status)
	return &s, nil
}

// GetSubscription returns the user's subscription regardless of status.
func (r *subscriptionRepo) GetSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	s, err := scanSubscription(r.pool.QueryRow(ctx, q, userID))
	if err != nil {
		return nil, fmt.Errorf("fetch subscription for user %s: %w", userID, err)
	}
	return s, nil
}

func (r *subscriptionRepo) GetSubscriptionByCustomerRef(ctx context.Context, customerRef string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + `
          FROM subscriptions
          WHERE billing_customer_ref = $1
          ORDER BY updated_at DESC
          LIMIT 1`
	s, err := scanSubscription(r.pool.QueryRow(ctx, q, customerRef))
	if err != nil {
		return nil, fmt.Errorf("fetch subscription for customer %s: %w", customerRef, err)
	}
	return s, nil
}

func (r *subscriptionRepo) UpsertSubscription(ctx context.Context, in SubscriptionUpsert) error {
	const q = `
		INSERT INTO subscriptions (user_id, billing_customer_ref, billing_subscription_ref, status, current_period_end, cancel_at_period_end, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET billing_customer_ref = COALESCE(EXCLUDED.billing_customer_ref, subscriptions.billing_customer_ref),
			billing_subscription_ref = COALESCE(EXCLUDED.billing_subscription_ref, subscriptions.billing_subscription_ref),
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			updated_at = NOW();
	`
	_, err := r.pool.Exec(ctx, q,
		in.UserID,
		in.BillingCustomerRef,
		in.BillingSubscriptionRef,
		string(in.Status),
		in.CurrentPeriodEnd,
		in.CancelAtPeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription for user %s: %w", in.UserID, err)
	}
	return nil
}
