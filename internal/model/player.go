package model

import "time"

type Player struct {
	ID          string    `db:"id" json:"id"`
	OwnerUserID string    `db:"owner_user_id" json:"owner_user_id"`
	Name        string    `db:"name" json:"name"`
	BirthYear   *int      `db:"birth_year" json:"birth_year,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Match struct {
	ID        string    `db:"id" json:"id"`
	PlayerID  string    `db:"player_id" json:"player_id"`
	Opponent  string    `db:"opponent" json:"opponent"`
	PlayedAt  time.Time `db:"played_at" json:"played_at"`
	Goals     int       `db:"goals" json:"goals"`
	Assists   int       `db:"assists" json:"assists"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AccessCode grants Days of access to a single player when redeemed.
type AccessCode struct {
	Code       string     `db:"code" json:"code"`
	Days       int        `db:"days" json:"days"`
	Active     bool       `db:"active" json:"active"`
	ValidUntil *time.Time `db:"valid_until" json:"valid_until,omitempty"`
}

// RedeemableAt reports whether the code can still be redeemed at now.
func (c *AccessCode) RedeemableAt(now time.Time) bool {
	if c == nil || !c.Active || c.Days <= 0 {
		return false
	}
	return c.ValidUntil == nil || now.Before(*c.ValidUntil)
}
