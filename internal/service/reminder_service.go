package service

import (
	"context"
	"time"

	"pitchside/internal/pubsub"
	"pitchside/internal/repository"

	"github.com/rs/zerolog"
)

// ReminderService runs the scheduled housekeeping jobs.
type ReminderService interface {
	// SendExpiryReminders publishes one message per player whose access ends
	// within the expiring window. It returns how many were published.
	SendExpiryReminders(ctx context.Context) (int, error)
	// PurgeWebhookEvents deletes successfully processed webhook events older
	// than the retention period.
	PurgeWebhookEvents(ctx context.Context) (int64, error)
}

type reminderService struct {
	entitlements repository.EntitlementRepository
	events       repository.WebhookEventRepository
	notifier     *notifier
	window       time.Duration
	retention    time.Duration
	now          func() time.Time
	logger       zerolog.Logger
}

func NewReminderService(
	entitlements repository.EntitlementRepository,
	events repository.WebhookEventRepository,
	notifications pubsub.Publisher,
	topic string,
	window, retention time.Duration,
	now func() time.Time,
	logger zerolog.Logger,
) ReminderService {
	lg := logger.With().Str("service", "ReminderService").Logger()
	return &reminderService{
		entitlements: entitlements,
		events:       events,
		notifier:     newNotifier(notifications, topic, lg),
		window:       window,
		retention:    retention,
		now:          now,
		logger:       lg,
	}
}

func (s *reminderService) SendExpiryReminders(ctx context.Context) (int, error) {
	now := s.now().UTC()
	expiring, err := s.entitlements.ListExpiring(ctx, now, now.Add(s.window))
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, e := range expiring {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if s.notifier.notify(ctx, EventEntitlementExpiring, EntitlementExpiringMessage{
			UserID:   e.UserID,
			Email:    e.Email,
			PlayerID: e.PlayerID,
			EndsAt:   e.EndsAt,
		}) {
			sent++
		}
	}
	s.logger.Info().Int("candidates", len(expiring)).Int("sent", sent).Msg("Expiry reminders published")
	return sent, nil
}

func (s *reminderService) PurgeWebhookEvents(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.retention)
	n, err := s.events.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Purged processed webhook events")
	return n, nil
}
