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

type EntitlementRepository interface {
	// InsertGrant stores g unless a grant with the same (source, source_id)
	// exists. created is false on conflict and the stored grant is returned.
	InsertGrant(ctx context.Context, g *model.EntitlementGrant) (stored *model.EntitlementGrant, created bool, err error)
	GetGrantBySource(ctx context.Context, source, sourceID string) (*model.EntitlementGrant, error)
	// ListExpiring returns owners whose latest access end lies in (from, to].
	ListExpiring(ctx context.Context, from, to time.Time) ([]model.ExpiringAccess, error)
}

type entitlementRepo struct {
	pool *pgxpool.Pool
}

func NewEntitlementRepo(pool *pgxpool.Pool) EntitlementRepository {
	return &entitlementRepo{pool: pool}
}

const grantColumns = `id, user_id, player_id, plan_id, source, source_id, starts_at, ends_at, created_at`

func scanGrant(row pgx.Row) (*model.EntitlementGrant, error) {
	var g model.EntitlementGrant
	err := row.Scan(&g.ID, &g.UserID, &g.PlayerID, &g.PlanID, &g.Source, &g.SourceID, &g.StartsAt, &g.EndsAt, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *entitlementRepo) InsertGrant(ctx context.Context, g *model.EntitlementGrant) (*model.EntitlementGrant, bool, error) {
	q := `INSERT INTO user_entitlements (user_id, player_id, plan_id, source, source_id, starts_at, ends_at)
          VALUES ($1, $2, $3, $4, $5, $6, $7)
          ON CONFLICT ON CONSTRAINT ux_user_entitlements_source DO NOTHING
          RETURNING ` + grantColumns
	stored, err := scanGrant(r.pool.QueryRow(ctx, q, g.UserID, g.PlayerID, g.PlanID, g.Source, g.SourceID, g.StartsAt, g.EndsAt))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert grant %s/%s: %w", g.Source, g.SourceID, err)
	}

	existing, err := r.GetGrantBySource(ctx, g.Source, g.SourceID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("grant %s/%s conflicted but is missing", g.Source, g.SourceID)
	}
	return existing, false, nil
}

func (r *entitlementRepo) GetGrantBySource(ctx context.Context, source, sourceID string) (*model.EntitlementGrant, error) {
	q := `SELECT ` + grantColumns + ` FROM user_entitlements WHERE source = $1 AND source_id = $2`
	g, err := scanGrant(r.pool.QueryRow(ctx, q, source, sourceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch grant %s/%s: %w", source, sourceID, err)
	}
	return g, nil
}

func (r *entitlementRepo) ListExpiring(ctx context.Context, from, to time.Time) ([]model.ExpiringAccess, error) {
	const q = `
		SELECT a.owner_user_id, u.email, a.player_id, a.access_ends_at
		FROM player_access_status a
		JOIN user_profiles u ON u.user_id = a.owner_user_id
		WHERE a.access_ends_at > $1 AND a.access_ends_at <= $2
		ORDER BY a.access_ends_at
	`
	rows, err := r.pool.Query(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("list expiring access: %w", err)
	}
	defer rows.Close()

	var out []model.ExpiringAccess
	for rows.Next() {
		var e model.ExpiringAccess
		if err := rows.Scan(&e.UserID, &e.Email, &e.PlayerID, &e.EndsAt); err != nil {
			return nil, fmt.Errorf("scan expiring access: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
