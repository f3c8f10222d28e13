// Package kafka forwards audit events to a Kafka topic as JSON.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	audit "civicid/pkg/platform/audit"
)

// Publisher is the subset of the platform producer the store needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Store struct {
	producer Publisher
	topic    string
}

func New(producer Publisher, topic string) *Store {
	return &Store{producer: producer, topic: topic}
}

// Append keys records by subject so every event about one connection or DID
// is consumed in order.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := event.Subject
	if key == "" {
		key = event.UserID.String()
	}
	return s.producer.Publish(ctx, s.topic, []byte(key), payload)
}
