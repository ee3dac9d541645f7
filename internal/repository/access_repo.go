package repository

import (
	"context"
	"errors"
	"fmt"

	"pitchside/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccessRepository interface {
	// GetPlayerAccess reads the computed access row for a player owned by
	// ownerUserID. It returns nil when no such player exists.
	GetPlayerAccess(ctx context.Context, ownerUserID, playerID string) (*model.PlayerAccess, error)
}

type accessRepo struct {
	pool *pgxpool.Pool
}

func NewAccessRepo(pool *pgxpool.Pool) AccessRepository {
	return &accessRepo{pool: pool}
}

func (r *accessRepo) GetPlayerAccess(ctx context.Context, ownerUserID, playerID string) (*model.PlayerAccess, error) {
	const q = `
		SELECT player_id, owner_user_id, access_ends_at
		FROM player_access_status
		WHERE player_id = $1 AND owner_user_id = $2
	`
	var a model.PlayerAccess
	err := r.pool.QueryRow(ctx, q, playerID, ownerUserID).Scan(&a.PlayerID, &a.OwnerUserID, &a.AccessEndsAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch access for player %s: %w", playerID, err)
	}
	return &a, nil
}
