package repository

import (
	"context"
	"errors"
	"fmt"

	"pitchside/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PlanRepository interface {
	GetPlanByID(ctx context.Context, id string) (*model.Plan, error)
	GetPlanByPriceRef(ctx context.Context, priceRef string) (*model.Plan, error)
	ListActivePlans(ctx context.Context) ([]model.Plan, error)
}

type planRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) PlanRepository {
	return &planRepo{pool: pool}
}

const planColumns = `id, name, days, amount_cents, currency, active, free, recurring, billing_price_ref, created_at`

func scanPlan(row pgx.Row) (*model.Plan, error) {
	var p model.Plan
	err := row.Scan(&p.ID, &p.Name, &p.Days, &p.AmountCents, &p.Currency, &p.Active, &p.Free, &p.Recurring, &p.BillingPriceRef, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *planRepo) getOne(ctx context.Context, where string, arg string) (*model.Plan, error) {
	q := `SELECT ` + planColumns + ` FROM subscription_plans WHERE ` + where
	p, err := scanPlan(r.pool.QueryRow(ctx, q, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (r *planRepo) GetPlanByID(ctx context.Context, id string) (*model.Plan, error) {
	p, err := r.getOne(ctx, "id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("fetch plan %s: %w", id, err)
	}
	return p, nil
}

func (r *planRepo) GetPlanByPriceRef(ctx context.Context, priceRef string) (*model.Plan, error) {
	p, err := r.getOne(ctx, "billing_price_ref = $1", priceRef)
	if err != nil {
		return nil, fmt.Errorf("fetch plan by price %s: %w", priceRef, err)
	}
	return p, nil
}

func (r *planRepo) ListActivePlans(ctx context.Context) ([]model.Plan, error) {
	q := `SELECT ` + planColumns + ` FROM subscription_plans WHERE active = TRUE ORDER BY amount_cents, id`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	plans := []model.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}
