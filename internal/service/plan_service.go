package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"pitchside/internal/model"
	"pitchside/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const planCacheKey = "plans:purchasable:v1"

type PlanService interface {
	ListPlans(ctx context.Context) ([]model.Plan, error)
	GetPlan(ctx context.Context, id string) (*model.Plan, error)
}

type planService struct {
	repo   repository.PlanRepository
	cache  redis.Cmdable
	ttl    time.Duration
	logger zerolog.Logger
}

// NewPlanService reads the catalog through cache when it is non-nil.
func NewPlanService(repo repository.PlanRepository, cache redis.Cmdable, ttl time.Duration, logger zerolog.Logger) PlanService {
	return &planService{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("service", "PlanService").Logger(),
	}
}

// ListPlans returns the plans a user can check out.
func (s *planService) ListPlans(ctx context.Context) ([]model.Plan, error) {
	if plans, ok := s.cached(ctx); ok {
		return plans, nil
	}

	all, err := s.repo.ListActivePlans(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list plans")
		return nil, err
	}
	plans := make([]model.Plan, 0, len(all))
	for i := range all {
		if all[i].Purchasable() {
			plans = append(plans, all[i])
		}
	}

	if s.cache != nil {
		if b, err := json.Marshal(plans); err == nil {
			if err := s.cache.Set(ctx, planCacheKey, b, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to cache plans")
			}
		}
	}
	return plans, nil
}

func (s *planService) cached(ctx context.Context) ([]model.Plan, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, planCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("Plan cache read failed; using database")
		}
		return nil, false
	}
	var plans []model.Plan
	if err := json.Unmarshal(raw, &plans); err != nil {
		s.logger.Warn().Err(err).Msg("Discarding unreadable plan cache entry")
		return nil, false
	}
	return plans, true
}

func (s *planService) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	plan, err := s.repo.GetPlanByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("plan_id", id).Msg("Failed to fetch plan")
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}
