package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
)

type published struct {
	topic string
	key   string
	value []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic: topic, key: string(key), value: value})
	return nil
}

func TestEmitRoutesByEventType(t *testing.T) {
	pub := &fakePublisher{}
	e := &Emitter{Pub: pub, Producer: "marketplace-api"}

	err := e.Emit(context.Background(), EventOrderCancelled, "order-1", OrderStatusPayload{OrderID: "order-1", Status: "cancelled"})
	if err != nil {
		t.Fatalf("Emit error: %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(pub.msgs))
	}
	m := pub.msgs[0]
	if m.topic != TopicOrderCancelled || m.key != "order-1" {
		t.Errorf("unexpected routing topic=%s key=%s", m.topic, m.key)
	}

	var env Envelope
	if err := json.Unmarshal(m.value, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.EventType != EventOrderCancelled || env.Producer != "marketplace-api" || env.CorrelationID != "order-1" || env.EventID == "" {
		t.Errorf("unexpected envelope %+v", env)
	}
	p, err := Unwrap[OrderStatusPayload](env)
	if err != nil {
		t.Fatalf("Unwrap error: %v", err)
	}
	if p.Status != "cancelled" {
		t.Errorf("unexpected payload %+v", p)
	}
}

func TestEmitUnknownType(t *testing.T) {
	e := &Emitter{Pub: &fakePublisher{}}
	if err := e.Emit(context.Background(), "Nope", "x", nil); err == nil {
		t.Error("expected error for unknown event type")
	}
}

func TestNilEmitterIsNoop(t *testing.T) {
	var e *Emitter
	if err := e.Emit(context.Background(), EventOrderPlaced, "x", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := (&Emitter{}).Emit(context.Background(), EventOrderPlaced, "x", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
