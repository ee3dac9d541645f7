package service

import (
	"context"
	"time"

	"pitchside/internal/pubsub"

	"github.com/rs/zerolog"
)

// Notification event types published to the notification topic.
const (
	EventEntitlementGranted  = "entitlement.granted"
	EventEntitlementExpiring = "entitlement.expiring"
)

type EntitlementGrantedMessage struct {
	UserID   string    `json:"user_id"`
	PlayerID *string   `json:"player_id,omitempty"`
	PlanID   *string   `json:"plan_id,omitempty"`
	Source   string    `json:"source"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

type EntitlementExpiringMessage struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	PlayerID *string   `json:"player_id,omitempty"`
	EndsAt   time.Time `json:"ends_at"`
}

// notifier publishes best-effort notifications. Failures are logged and
// never surface to the caller.
type notifier struct {
	pub    pubsub.Publisher
	topic  string
	logger zerolog.Logger
}

func newNotifier(pub pubsub.Publisher, topic string, logger zerolog.Logger) *notifier {
	return &notifier{pub: pub, topic: topic, logger: logger}
}

func (n *notifier) notify(ctx context.Context, eventType string, msg any) bool {
	if n == nil || n.pub == nil || n.topic == "" {
		return false
	}
	id, err := pubsub.PublishJSON(ctx, n.pub, n.topic, eventType, msg)
	if err != nil {
		n.logger.Warn().Err(err).Str("event_type", eventType).Msg("Failed to publish notification")
		return false
	}
	n.logger.Debug().Str("event_type", eventType).Str("message_id", id).Msg("Notification published")
	return true
}
