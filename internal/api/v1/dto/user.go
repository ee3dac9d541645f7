package dto

import "time"

// UserCreateDTO creates or refreshes the caller's profile. The id always comes
// from the session, never the body.
type UserCreateDTO struct {
	Name      string `json:"name" validate:"required,max=200"`
	Email     string `json:"email" validate:"required,email,max=320"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url,max=2048"`
}

type UserResponseDTO struct {
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	AvatarURL     string    `json:"avatar_url"`
	BillingLinked bool      `json:"billing_linked"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
