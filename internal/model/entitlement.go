package model

import "time"

// Grant sources. Together with a source id they form the idempotency key of a grant.
const (
	GrantSourceCheckoutSession    = "checkout_session"
	GrantSourceStripeSubscription = "stripe_subscription"
	GrantSourceAccessCode         = "access_code"
)

// EntitlementGrant is one immutable access period. A nil PlayerID means the
// grant covers every player the user owns.
type EntitlementGrant struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	PlayerID  *string   `db:"player_id" json:"player_id,omitempty"`
	PlanID    *string   `db:"plan_id" json:"plan_id,omitempty"`
	Source    string    `db:"source" json:"source"`
	SourceID  string    `db:"source_id" json:"source_id"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
	EndsAt    time.Time `db:"ends_at" json:"ends_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ActiveAt reports whether the grant window contains t.
func (g *EntitlementGrant) ActiveAt(t time.Time) bool {
	return !t.Before(g.StartsAt) && t.Before(g.EndsAt)
}

// Covers reports whether the grant applies to the given player of ownerUserID.
func (g *EntitlementGrant) Covers(ownerUserID, playerID string) bool {
	if g.PlayerID != nil {
		return *g.PlayerID == playerID
	}
	return g.UserID == ownerUserID
}
