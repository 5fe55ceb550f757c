// Package events carries domain events between services over a topic
// exchange with one durable queue per consumer. Delivery is at least once.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topics published by the authoritative services.
const (
	TopicUserCreated    = "user.created"
	TopicUserUpdated    = "user.updated"
	TopicProductCreated = "product.created"
	TopicProductUpdated = "product.updated"
)

var (
	// ErrSkipRetry dead-letters a message without further redelivery.
	ErrSkipRetry = errors.New("events: skip retry")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("events: channel closed")
)

// Envelope is the unit delivered to handlers.
type Envelope struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	// Attempt is the 1-based delivery count.
	Attempt int `json:"-"`
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("events: decode %s payload: %w", e.Topic, err)
	}
	return nil
}

// Handler processes one delivery. Returning nil acknowledges the message;
// any error requeues it for redelivery.
type Handler func(ctx context.Context, env Envelope) error

// Channel publishes to topics and consumes from named queues bound to them.
type Channel interface {
	// Publish delivers payload, serialized as JSON, to every queue bound to topic.
	Publish(ctx context.Context, topic string, payload any) error
	// Subscribe binds queue to topic and consumes until ctx is done, returning ctx.Err().
	Subscribe(ctx context.Context, topic, queue string, h Handler) error
	Close() error
}

// QueueStats summarises a queue.
type QueueStats struct {
	Queue        string `json:"queue"`
	Pending      int    `json:"pending"`
	Acked        int    `json:"acked"`
	Redelivered  int    `json:"redelivered"`
	DeadLettered int    `json:"deadLettered"`
}

// Inspector exposes operator views over bindings and dead letters.
type Inspector interface {
	Bindings(ctx context.Context, topic string) ([]string, error)
	DeadLetters(ctx context.Context, queue string) ([]Envelope, error)
	Replay(ctx context.Context, queue string) (int, error)
	Stats(ctx context.Context, queue string) (QueueStats, error)
}

// QueueName returns the conventional queue for a topic.
func QueueName(topic string) string {
	return topic + "_queue"
}

func newEnvelope(topic string, payload any, now time.Time) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: encode %s payload: %w", topic, err)
	}
	return Envelope{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   raw,
		Timestamp: now.UTC(),
	}, nil
}
