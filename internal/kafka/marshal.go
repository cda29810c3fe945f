package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-marketplace/internal/events"
)

// DecodeEnvelope reads the event envelope carried by m.
func DecodeEnvelope(m kafka.Message) (events.Envelope, error) {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return env, fmt.Errorf("decode envelope %s/%d@%d: %w", m.Topic, m.Partition, m.Offset, err)
	}
	return env, nil
}
