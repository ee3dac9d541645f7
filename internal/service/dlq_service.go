package service

import (
	"context"
	"encoding/json"
	"errors"

	"pitchside/internal/api/v1/dto"
	"pitchside/internal/model"
	"pitchside/internal/repository"
)

// ErrInvalidDeadLetter is returned for pushes that cannot be stored.
var ErrInvalidDeadLetter = errors.New("dead letter push is missing message id or subscription")

// DLQService stores notifications that Pub/Sub gave up delivering so they can
// be inspected and replayed by hand.
type DLQService interface {
	ProcessAndSave(ctx context.Context, req *dto.PubSubPushRequest) error
}

type dlqService struct {
	repo repository.DLQRepository
}

func NewDLQService(repo repository.DLQRepository) DLQService {
	return &dlqService{repo: repo}
}

func (s *dlqService) ProcessAndSave(ctx context.Context, req *dto.PubSubPushRequest) error {
	if req.Message.MessageID == "" || req.Subscription == "" {
		return ErrInvalidDeadLetter
	}

	var attributes *string
	if len(req.Message.Attributes) > 0 {
		if b, err := json.Marshal(req.Message.Attributes); err == nil {
			encoded := string(b)
			attributes = &encoded
		}
	}

	return s.repo.Create(ctx, &model.DeadLetterMessage{
		SubscriptionName: req.Subscription,
		MessageID:        req.Message.MessageID,
		EventType:        req.Message.EventType(),
		Payload:          string(req.Message.Payload()),
		Attributes:       attributes,
		DeliveryAttempt:  req.DeliveryAttempt,
		PublishedAt:      req.Message.PublishTime,
		Status:           model.DeadLetterStatusUnprocessed,
	})
}
