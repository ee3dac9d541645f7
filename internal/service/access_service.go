package service

import (
	"context"
	"strings"
	"time"

	"pitchside/internal/metrics"
	"pitchside/internal/model"
	"pitchside/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AccessStatus is the derived access state of one player.
type AccessStatus struct {
	PlayerID     string            `json:"player_id"`
	State        model.AccessState `json:"state"`
	AccessEndsAt *time.Time        `json:"access_ends_at,omitempty"`
}

type AccessService interface {
	// CanAccessPlayer is the authoritative guard for mutations on a player.
	// Any failure to read access state denies.
	CanAccessPlayer(ctx context.Context, userID, playerID string) bool
	Status(ctx context.Context, userID, playerID string) (*AccessStatus, error)
	RedeemCode(ctx context.Context, userID, playerID, code string) (*model.EntitlementGrant, error)
}

type accessService struct {
	access       repository.AccessRepository
	players      repository.PlayerRepository
	codes        repository.AccessCodeRepository
	entitlements repository.EntitlementRepository
	metrics      *metrics.Collector
	window       time.Duration
	now          func() time.Time
	logger       zerolog.Logger
}

func NewAccessService(
	access repository.AccessRepository,
	players repository.PlayerRepository,
	codes repository.AccessCodeRepository,
	entitlements repository.EntitlementRepository,
	m *metrics.Collector,
	expiringWindow time.Duration,
	now func() time.Time,
	logger zerolog.Logger,
) AccessService {
	return &accessService{
		access:       access,
		players:      players,
		codes:        codes,
		entitlements: entitlements,
		metrics:      m,
		window:       expiringWindow,
		now:          now,
		logger:       logger.With().Str("service", "AccessService").Logger(),
	}
}

func (s *accessService) CanAccessPlayer(ctx context.Context, userID, playerID string) bool {
	allowed := s.canAccess(ctx, userID, playerID)
	s.metrics.AccessCheck(allowed)
	return allowed
}

func (s *accessService) canAccess(ctx context.Context, userID, playerID string) bool {
	if userID == "" {
		return false
	}
	if _, err := uuid.Parse(playerID); err != nil {
		return false
	}
	a, err := s.access.GetPlayerAccess(ctx, userID, playerID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("player_id", playerID).Msg("Access read failed; denying")
		return false
	}
	return a.LiveAt(s.now())
}

func (s *accessService) Status(ctx context.Context, userID, playerID string) (*AccessStatus, error) {
	if _, err := uuid.Parse(playerID); err != nil {
		return nil, ErrPlayerNotFound
	}
	a, err := s.access.GetPlayerAccess(ctx, userID, playerID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrPlayerNotFound
	}
	return &AccessStatus{
		PlayerID:     a.PlayerID,
		State:        a.StateAt(s.now(), s.window),
		AccessEndsAt: a.AccessEndsAt,
	}, nil
}

// RedeemCode grants the code's days to one player the caller owns. A code can
// be used once; redeeming it again for the same player returns the same grant.
func (s *accessService) RedeemCode(ctx context.Context, userID, playerID, code string) (*model.EntitlementGrant, error) {
	if _, err := uuid.Parse(playerID); err != nil {
		return nil, ErrPlayerNotFound
	}
	player, err := s.players.GetPlayer(ctx, userID, playerID)
	if err != nil {
		return nil, err
	}
	if player == nil {
		return nil, ErrPlayerNotFound
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	ac, err := s.codes.GetAccessCode(ctx, code)
	if err != nil {
		return nil, err
	}

	// A code already spent on this player stays a success even after expiry.
	prior, err := s.entitlements.GetGrantBySource(ctx, model.GrantSourceAccessCode, code)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		return s.priorRedemption(prior, userID, playerID)
	}

	now := s.now().UTC()
	if !ac.RedeemableAt(now) {
		return nil, ErrCodeInvalid
	}

	grant, created, err := s.entitlements.InsertGrant(ctx, &model.EntitlementGrant{
		UserID:   userID,
		PlayerID: &player.ID,
		Source:   model.GrantSourceAccessCode,
		SourceID: ac.Code,
		StartsAt: now,
		EndsAt:   now.Add(time.Duration(ac.Days) * 24 * time.Hour),
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return s.priorRedemption(grant, userID, playerID)
	}
	s.metrics.GrantCreated(grant.Source)
	s.logger.Info().Str("user_id", userID).Str("player_id", playerID).Time("ends_at", grant.EndsAt).Msg("Access code redeemed")
	return grant, nil
}

func (s *accessService) priorRedemption(g *model.EntitlementGrant, userID, playerID string) (*model.EntitlementGrant, error) {
	if g.UserID == userID && g.PlayerID != nil && *g.PlayerID == playerID {
		return g, nil
	}
	return nil, ErrCodeAlreadyRedeemed
}
