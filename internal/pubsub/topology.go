package pubsub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// Topology describes the notification topic, its pull subscription for the
// mailer, and the dead-letter topic whose subscription pushes into the API.
type Topology struct {
	Topic               string
	DLQEndpoint         string
	Retention           time.Duration
	MaxDeliveryAttempts int
}

// Names returns the dead-letter topic and both subscription ids.
func (t Topology) Names() (dlqTopic, sub, dlqSub string) {
	return t.Topic + "-dlq", t.Topic + "-sub", t.Topic + "-dlq-sub"
}

func (t Topology) retryPolicy() *pubsub.RetryPolicy {
	return &pubsub.RetryPolicy{MinimumBackoff: 10 * time.Second, MaximumBackoff: 600 * time.Second}
}

// EnsureTopology creates whatever part of t is missing and brings existing
// subscriptions back in line with it.
func EnsureTopology(ctx context.Context, client *pubsub.Client, t Topology, logger zerolog.Logger) error {
	if t.Topic == "" {
		return errors.New("topology needs a topic")
	}
	dlqTopicID, subID, dlqSubID := t.Names()

	dlqTopic, err := ensureTopic(ctx, client, dlqTopicID, t.Retention, logger)
	if err != nil {
		return err
	}
	mainTopic, err := ensureTopic(ctx, client, t.Topic, t.Retention, logger)
	if err != nil {
		return err
	}

	err = ensureSubscription(ctx, client, subID, pubsub.SubscriptionConfig{
		Topic:            mainTopic,
		AckDeadline:      60 * time.Second,
		ExpirationPolicy: 31 * 24 * time.Hour,
		RetryPolicy:      t.retryPolicy(),
		DeadLetterPolicy: &pubsub.DeadLetterPolicy{
			DeadLetterTopic:     dlqTopic.String(),
			MaxDeliveryAttempts: t.MaxDeliveryAttempts,
		},
	}, logger)
	if err != nil {
		return err
	}

	return ensureSubscription(ctx, client, dlqSubID, pubsub.SubscriptionConfig{
		Topic:            dlqTopic,
		PushConfig:       pubsub.PushConfig{Endpoint: t.DLQEndpoint},
		AckDeadline:      60 * time.Second,
		ExpirationPolicy: 31 * 24 * time.Hour,
		RetryPolicy:      t.retryPolicy(),
	}, logger)
}

// ResetEmulator deletes every topic and subscription. Only for the local emulator.
func ResetEmulator(ctx context.Context, client *pubsub.Client, logger zerolog.Logger) error {
	subs := client.Subscriptions(ctx)
	for {
		sub, err := subs.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("list subscriptions: %w", err)
		}
		logger.Info().Str("subscription", sub.ID()).Msg("Deleting subscription")
		if err := sub.Delete(ctx); err != nil {
			logger.Warn().Err(err).Str("subscription", sub.ID()).Msg("Failed to delete subscription")
		}
	}

	topics := client.Topics(ctx)
	for {
		topic, err := topics.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("list topics: %w", err)
		}
		logger.Info().Str("topic", topic.ID()).Msg("Deleting topic")
		if err := topic.Delete(ctx); err != nil {
			logger.Warn().Err(err).Str("topic", topic.ID()).Msg("Failed to delete topic")
		}
	}
	return nil
}

func ensureTopic(ctx context.Context, client *pubsub.Client, id string, retention time.Duration, logger zerolog.Logger) (*pubsub.Topic, error) {
	topic := client.Topic(id)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %s: %w", id, err)
	}
	if !exists {
		logger.Info().Str("topic", id).Dur("retention", retention).Msg("Creating topic")
		created, err := client.CreateTopicWithConfig(ctx, id, &pubsub.TopicConfig{RetentionDuration: retention})
		if err != nil {
			return nil, fmt.Errorf("create topic %s: %w", id, err)
		}
		return created, nil
	}

	cfg, err := topic.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("read topic %s: %w", id, err)
	}
	if cfg.RetentionDuration != retention {
		logger.Warn().Str("topic", id).Msgf("Retention is %v, expected %v; update it manually", cfg.RetentionDuration, retention)
	}
	return topic, nil
}

func ensureSubscription(ctx context.Context, client *pubsub.Client, id string, want pubsub.SubscriptionConfig, logger zerolog.Logger) error {
	sub := client.Subscription(id)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check subscription %s: %w", id, err)
	}
	if !exists {
		logger.Info().Str("subscription", id).Str("endpoint", want.PushConfig.Endpoint).Msg("Creating subscription")
		if _, err := client.CreateSubscription(ctx, id, want); err != nil {
			return fmt.Errorf("create subscription %s: %w", id, err)
		}
		return nil
	}

	have, err := sub.Config(ctx)
	if err != nil {
		return fmt.Errorf("read subscription %s: %w", id, err)
	}
	if !subscriptionDrifted(have, want) {
		logger.Info().Str("subscription", id).Msg("Subscription up to date")
		return nil
	}

	logger.Info().Str("subscription", id).Msg("Updating subscription")
	_, err = sub.Update(ctx, pubsub.SubscriptionConfigToUpdate{
		PushConfig:  &want.PushConfig,
		AckDeadline: want.AckDeadline,
		RetryPolicy: want.RetryPolicy,
	})
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", id, err)
	}
	return nil
}

func subscriptionDrifted(have, want pubsub.SubscriptionConfig) bool {
	if have.PushConfig.Endpoint != want.PushConfig.Endpoint || have.AckDeadline != want.AckDeadline {
		return true
	}
	if (have.RetryPolicy == nil) != (want.RetryPolicy == nil) {
		return true
	}
	if have.RetryPolicy != nil {
		h, _ := have.RetryPolicy.MinimumBackoff.(time.Duration)
		w, _ := want.RetryPolicy.MinimumBackoff.(time.Duration)
		hm, _ := have.RetryPolicy.MaximumBackoff.(time.Duration)
		wm, _ := want.RetryPolicy.MaximumBackoff.(time.Duration)
		return h != w || hm != wm
	}
	return false
}
