package dto

import "time"

// AccessCheckRequestDTO is not validated by tag: a malformed id is a plain
// denial, not a bad request.
type AccessCheckRequestDTO struct {
	PlayerID string `json:"playerId"`
}

type AccessCheckResponseDTO struct {
	OK bool `json:"ok"`
}

type AccessStatusResponseDTO struct {
	PlayerID     string     `json:"player_id"`
	State        string     `json:"state"`
	AccessEndsAt *time.Time `json:"access_ends_at,omitempty"`
}

type RedeemCodeRequestDTO struct {
	Code     string `json:"code" validate:"required,min=3,max=64"`
	PlayerID string `json:"playerId" validate:"required,uuid"`
}

type GrantResponseDTO struct {
	ID       string    `json:"id"`
	PlayerID *string   `json:"player_id,omitempty"`
	PlanID   *string   `json:"plan_id,omitempty"`
	Source   string    `json:"source"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}
