package service

import (
	"context"
	"strings"
	"time"

	"pitchside/internal/model"
	"pitchside/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type PlayerService interface {
	Create(ctx context.Context, ownerUserID, name string, birthYear *int) (*model.Player, error)
	List(ctx context.Context, ownerUserID string) ([]model.Player, error)
}

type playerService struct {
	players repository.PlayerRepository
	users   repository.UserRepository
	logger  zerolog.Logger
}

func NewPlayerService(players repository.PlayerRepository, users repository.UserRepository, logger zerolog.Logger) PlayerService {
	return &playerService{
		players: players,
		users:   users,
		logger:  logger.With().Str("service", "PlayerService").Logger(),
	}
}

// Create adds a player owned by ownerUserID. The owner must have a profile.
func (s *playerService) Create(ctx context.Context, ownerUserID, name string, birthYear *int) (*model.Player, error) {
	owner, err := s.users.GetUserByID(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, ErrUserNotFound
	}
	p := &model.Player{OwnerUserID: owner.UserID, Name: strings.TrimSpace(name), BirthYear: birthYear}
	if err := s.players.CreatePlayer(ctx, p); err != nil {
		s.logger.Error().Err(err).Str("user_id", ownerUserID).Msg("Failed to create player")
		return nil, err
	}
	return p, nil
}

func (s *playerService) List(ctx context.Context, ownerUserID string) ([]model.Player, error) {
	return s.players.ListPlayersByOwner(ctx, ownerUserID)
}

type MatchInput struct {
	Opponent string
	PlayedAt time.Time
	Goals    int
	Assists  int
	Notes    string
}

type MatchService interface {
	// Create records a match after re-checking access for the caller.
	Create(ctx context.Context, userID, playerID string, in MatchInput) (*model.Match, error)
}

type matchService struct {
	matches repository.MatchRepository
	access  AccessService
	logger  zerolog.Logger
}

func NewMatchService(matches repository.MatchRepository, access AccessService, logger zerolog.Logger) MatchService {
	return &matchService{
		matches: matches,
		access:  access,
		logger:  logger.With().Str("service", "MatchService").Logger(),
	}
}

func (s *matchService) Create(ctx context.Context, userID, playerID string, in MatchInput) (*model.Match, error) {
	if _, err := uuid.Parse(playerID); err != nil {
		return nil, ErrAccessDenied
	}
	if !s.access.CanAccessPlayer(ctx, userID, playerID) {
		s.logger.Info().Str("user_id", userID).Str("player_id", playerID).Msg("Match creation denied")
		return nil, ErrAccessDenied
	}
	m := &model.Match{
		PlayerID:  playerID,
		Opponent:  strings.TrimSpace(in.Opponent),
		PlayedAt:  in.PlayedAt.UTC(),
		Goals:     in.Goals,
		Assists:   in.Assists,
		Notes:     in.Notes,
		CreatedBy: userID,
	}
	if err := s.matches.CreateMatch(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
