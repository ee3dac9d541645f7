package service

import (
	"context"
	"strings"

	"pitchside/internal/model"
	"pitchside/internal/repository"

	"github.com/google/uuid"
)

// UserService owns the parent/coach profile behind an authenticated subject.
type UserService interface {
	// Create inserts the profile or refreshes name, email and avatar of an
	// existing one. Billing links are never touched.
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

type userService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) UserService {
	return &userService{users: users}
}

func (s *userService) Create(ctx context.Context, u *model.User) (*model.User, error) {
	profile := *u
	profile.Name = strings.TrimSpace(profile.Name)
	profile.Email = model.NormalizeEmail(profile.Email)
	profile.StripeCustomerID = nil
	if err := s.users.CreateUser(ctx, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Get returns ErrUserNotFound for unknown or malformed ids.
func (s *userService) Get(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}
