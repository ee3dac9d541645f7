package worker

import (
	"context"

	"pitchside/internal/service"

	"github.com/rs/zerolog"
)

const (
	JobReminders = "reminders"
	JobPurge     = "purge"
)

// Jobs returns the housekeeping jobs backed by svc.
func Jobs(svc service.ReminderService, reminderSchedule, retentionSchedule string, logger zerolog.Logger) []Job {
	return []Job{
		{
			Name:     JobReminders,
			Schedule: reminderSchedule,
			Run: func(ctx context.Context) error {
				sent, err := svc.SendExpiryReminders(ctx)
				if err != nil {
					return err
				}
				logger.Info().Int("sent", sent).Msg("Expiry reminders published")
				return nil
			},
		},
		{
			Name:     JobPurge,
			Schedule: retentionSchedule,
			Run: func(ctx context.Context) error {
				n, err := svc.PurgeWebhookEvents(ctx)
				if err != nil {
					return err
				}
				logger.Info().Int64("deleted", n).Msg("Old webhook events purged")
				return nil
			},
		},
	}
}

// Find returns the job called name.
func Find(jobs []Job, name string) (Job, bool) {
	for _, j := range jobs {
		if j.Name == name {
			return j, true
		}
	}
	return Job{}, false
}
