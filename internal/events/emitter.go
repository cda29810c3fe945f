package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Emitter stamps envelopes with the producing service and publishes them.
// A nil Pub turns Emit into a no-op, for deployments without Kafka.
type Emitter struct {
	Pub      Publisher
	Producer string
}

func (e *Emitter) Emit(ctx context.Context, eventType, key string, payload any) error {
	if e == nil || e.Pub == nil {
		return nil
	}
	topic, ok := TopicFor(eventType)
	if !ok {
		return fmt.Errorf("no topic for event %q", eventType)
	}
	env, err := NewEnvelope(eventType, e.Producer, key, payload)
	if err != nil {
		return err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return e.Pub.Publish(ctx, topic, PartitionKey(key), b)
}
