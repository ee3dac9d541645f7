package model

import "time"

// AccessState is the derived access state of a player profile. It is never stored.
type AccessState string

const (
	AccessStateNoAccess AccessState = "no_access"
	AccessStateActive   AccessState = "active"
	AccessStateExpiring AccessState = "expiring"
	AccessStateLapsed   AccessState = "lapsed"
)

// PlayerAccess is a row of the player_access_status view.
type PlayerAccess struct {
	PlayerID     string     `db:"player_id" json:"player_id"`
	OwnerUserID  string     `db:"owner_user_id" json:"owner_user_id"`
	AccessEndsAt *time.Time `db:"access_ends_at" json:"access_ends_at,omitempty"`
}

// LiveAt reports whether access is granted at now.
func (a *PlayerAccess) LiveAt(now time.Time) bool {
	return a != nil && a.AccessEndsAt != nil && a.AccessEndsAt.After(now)
}

// StateAt classifies access at now. Access ending within window counts as expiring.
func (a *PlayerAccess) StateAt(now time.Time, window time.Duration) AccessState {
	switch {
	case a == nil || a.AccessEndsAt == nil:
		return AccessStateNoAccess
	case !a.AccessEndsAt.After(now):
		return AccessStateLapsed
	case a.AccessEndsAt.Sub(now) <= window:
		return AccessStateExpiring
	default:
		return AccessStateActive
	}
}

// ExpiringAccess is an owner whose access ends inside the reminder window.
type ExpiringAccess struct {
	UserID   string    `db:"user_id" json:"user_id"`
	Email    string    `db:"email" json:"email"`
	PlayerID *string   `db:"player_id" json:"player_id,omitempty"`
	EndsAt   time.Time `db:"ends_at" json:"ends_at"`
}
