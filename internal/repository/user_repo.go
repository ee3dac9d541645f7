package repository

import (
	"context"
	"errors"
	"fmt"

	"pitchside/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetUserByEmail matches case-insensitively; it returns nil when no profile uses the address.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error)
	UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error
}

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

const userColumns = `user_id, name, email, avatar_url, stripe_customer_id, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.UserID, &u.Name, &u.Email, &u.AvatarURL, &u.StripeCustomerID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) CreateUser(ctx context.Context, u *model.User) error {
	q := `INSERT INTO user_profiles (user_id, name, email, avatar_url)
          VALUES ($1, $2, $3, $4)
          ON CONFLICT (user_id) DO UPDATE
          SET name = EXCLUDED.name, email = EXCLUDED.email, avatar_url = EXCLUDED.avatar_url, updated_at = NOW()
          RETURNING ` + userColumns
	err := r.pool.QueryRow(ctx, q, u.UserID, u.Name, model.NormalizeEmail(u.Email), u.AvatarURL).
		Scan(&u.UserID, &u.Name, &u.Email, &u.AvatarURL, &u.StripeCustomerID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.UserID, err)
	}
	return nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM user_profiles WHERE user_id = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", id, err)
	}
	return u, nil
}

func (r *userRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM user_profiles WHERE LOWER(email) = LOWER($1)`
	u, err := scanUser(r.pool.QueryRow(ctx, q, model.NormalizeEmail(email)))
	if err != nil {
		return nil, fmt.Errorf("fetch user by email: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetUserByStripeCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM user_profiles WHERE stripe_customer_id = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, customerID))
	if err != nil {
		return nil, fmt.Errorf("fetch user by stripe customer %s: %w", customerID, err)
	}
	return u, nil
}

// UpdateStripeCustomerID links a customer to the profile unless one is already linked.
func (r *userRepo) UpdateStripeCustomerID(ctx context.Context, userID, customerID string) error {
	const q = `
		UPDATE user_profiles
		SET stripe_customer_id = $2, updated_at = NOW()
		WHERE user_id = $1 AND (stripe_customer_id IS NULL OR stripe_customer_id = $2)
	`
	if _, err := r.pool.Exec(ctx, q, userID, customerID); err != nil {
		return fmt.Errorf("update stripe customer for user %s: %w", userID, err)
	}
	return nil
}
