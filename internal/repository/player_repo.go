package repository

import (
	"context"
	"errors"
	"fmt"

	"pitchside/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PlayerRepository interface {
	CreatePlayer(ctx context.Context, p *model.Player) error
	// GetPlayer returns the player only when ownerUserID owns it.
	GetPlayer(ctx context.Context, ownerUserID, playerID string) (*model.Player, error)
	ListPlayersByOwner(ctx context.Context, ownerUserID string) ([]model.Player, error)
}

type playerRepo struct {
	pool *pgxpool.Pool
}

func NewPlayerRepo(pool *pgxpool.Pool) PlayerRepository {
	return &playerRepo{pool: pool}
}

func (r *playerRepo) CreatePlayer(ctx context.Context, p *model.Player) error {
	const q = `
		INSERT INTO players (owner_user_id, name, birth_year)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	if err := r.pool.QueryRow(ctx, q, p.OwnerUserID, p.Name, p.BirthYear).Scan(&p.ID, &p.CreatedAt); err != nil {
		return fmt.Errorf("create player for user %s: %w", p.OwnerUserID, err)
	}
	return nil
}

func (r *playerRepo) GetPlayer(ctx context.Context, ownerUserID, playerID string) (*model.Player, error) {
	const q = `
		SELECT id, owner_user_id, name, birth_year, created_at
		FROM players
		WHERE id = $1 AND owner_user_id = $2
	`
	var p model.Player
	err := r.pool.QueryRow(ctx, q, playerID, ownerUserID).Scan(&p.ID, &p.OwnerUserID, &p.Name, &p.BirthYear, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch player %s: %w", playerID, err)
	}
	return &p, nil
}

func (r *playerRepo) ListPlayersByOwner(ctx context.Context, ownerUserID string) ([]model.Player, error) {
	const q = `
		SELECT id, owner_user_id, name, birth_year, created_at
		FROM players
		WHERE owner_user_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, q, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("list players for user %s: %w", ownerUserID, err)
	}
	defer rows.Close()

	players := []model.Player{}
	for rows.Next() {
		var p model.Player
		if err := rows.Scan(&p.ID, &p.OwnerUserID, &p.Name, &p.BirthYear, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}
