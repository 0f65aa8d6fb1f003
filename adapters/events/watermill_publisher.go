// Package events publishes session lifecycle notifications over Watermill.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/deorganized/sessionkit/ports"
)

// Topics carrying session lifecycle events.
const (
	TopicEstablished = "session.established"
	TopicRefreshed   = "session.refreshed"
	TopicEnded       = "session.ended"
)

// SessionEvent is the payload published on every lifecycle topic.
type SessionEvent struct {
	Address    string    `json:"address"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher port on top of any
// Watermill message.Publisher (redis streams in production, gochannel in
// process).
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill-backed publisher.
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishEstablished implements ports.EventPublisher.
func (p *WatermillPublisher) PublishEstablished(ctx context.Context, address string) error {
	return p.publish(TopicEstablished, SessionEvent{Address: address, OccurredAt: time.Now().UTC()})
}

// PublishRefreshed implements ports.EventPublisher.
func (p *WatermillPublisher) PublishRefreshed(ctx context.Context, address string) error {
	return p.publish(TopicRefreshed, SessionEvent{Address: address, OccurredAt: time.Now().UTC()})
}

// PublishEnded implements ports.EventPublisher.
func (p *WatermillPublisher) PublishEnded(ctx context.Context, address, reason string) error {
	return p.publish(TopicEnded, SessionEvent{Address: address, Reason: reason, OccurredAt: time.Now().UTC()})
}

func (p *WatermillPublisher) publish(topic string, event SessionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
