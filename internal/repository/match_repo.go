package repository

import (
	"context"
	"fmt"

	"pitchside/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type MatchRepository interface {
	CreateMatch(ctx context.Context, m *model.Match) error
}

type matchRepo struct {
	pool *pgxpool.Pool
}

func NewMatchRepo(pool *pgxpool.Pool) MatchRepository {
	return &matchRepo{pool: pool}
}

func (r *matchRepo) CreateMatch(ctx context.Context, m *model.Match) error {
	const q = `
		INSERT INTO matches (player_id, opponent, played_at, goals, assists, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, q, m.PlayerID, m.Opponent, m.PlayedAt, m.Goals, m.Assists, m.Notes, m.CreatedBy).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create match for player %s: %w", m.PlayerID, err)
	}
	return nil
}
