package repository

import (
	"context"
	"fmt"

	"pitchside/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository interface {
	// RecordPayment appends an audit entry once per (provider, provider_ref).
	// It reports whether a new row was written.
	RecordPayment(ctx context.Context, p *model.Payment) (bool, error)
}

type paymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) PaymentRepository {
	return &paymentRepo{pool: pool}
}

func (r *paymentRepo) RecordPayment(ctx context.Context, p *model.Payment) (bool, error) {
	const q = `
		INSERT INTO payments (provider, provider_ref, user_id, customer_ref, email, plan_id, amount_cents, currency, status, resolution)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT ON CONSTRAINT ux_payments_provider_ref DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, q,
		p.Provider, p.ProviderRef, p.UserID, p.CustomerRef, p.Email, p.PlanID,
		p.AmountCents, p.Currency, p.Status, p.Resolution,
	)
	if err != nil {
		return false, fmt.Errorf("record payment %s/%s: %w", p.Provider, p.ProviderRef, err)
	}
	return tag.RowsAffected() == 1, nil
}
