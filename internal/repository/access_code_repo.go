package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pitchside/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccessCodeRepository interface {
	GetAccessCode(ctx context.Context, code string) (*model.AccessCode, error)
}

type accessCodeRepo struct {
	pool *pgxpool.Pool
}

func NewAccessCodeRepo(pool *pgxpool.Pool) AccessCodeRepository {
	return &accessCodeRepo{pool: pool}
}

func (r *accessCodeRepo) GetAccessCode(ctx context.Context, code string) (*model.AccessCode, error) {
	const q = `SELECT code, days, active, valid_until FROM access_codes WHERE code = $1`
	var c model.AccessCode
	err := r.pool.QueryRow(ctx, q, strings.ToUpper(strings.TrimSpace(code))).Scan(&c.Code, &c.Days, &c.Active, &c.ValidUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch access code: %w", err)
	}
	return &c, nil
}
