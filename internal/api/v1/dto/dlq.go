package dto

import (
	"encoding/base64"
	"time"
)

// PubSubPushRequest is the body Pub/Sub posts to a push endpoint.
// DeliveryAttempt is only present on subscriptions with a dead-letter policy.
type PubSubPushRequest struct {
	Message         PubSubMessage `json:"message"`
	Subscription    string        `json:"subscription"`
	DeliveryAttempt *int          `json:"deliveryAttempt,omitempty"`
}

type PubSubMessage struct {
	Data        string            `json:"data"`
	MessageID   string            `json:"messageId"`
	PublishTime *time.Time        `json:"publishTime,omitempty"`
	Attributes  map[string]string `json:"attributes"`
}

// Payload returns the decoded message body. Data that is not valid base64 is
// returned as is so nothing pushed to the dead-letter endpoint is lost.
func (m PubSubMessage) Payload() []byte {
	b, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return []byte(m.Data)
	}
	return b
}

// EventType is the notification kind the publisher attached.
func (m PubSubMessage) EventType() string {
	return m.Attributes["event_type"]
}
