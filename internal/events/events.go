// Package events defines the envelopes published to Kafka when orders move
// through their lifecycle and when notifications are created.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced         = "OrderPlaced"
	EventOrderDelivered      = "OrderDelivered"
	EventOrderCancelled      = "OrderCancelled"
	EventCheckoutCompleted   = "CheckoutCompleted"
	EventNotificationCreated = "NotificationCreated"
)

const envelopeVersion = 1

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order or session id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload with a fresh event id.
func NewEnvelope(eventType, producer, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  envelopeVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

// Unwrap decodes the payload of env into T.
func Unwrap[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	return t, nil
}

// ---- payloads ----

type OrderPlacedPayload struct {
	OrderID           string `json:"order_id"`
	ProductID         string `json:"product_id"`
	SellerID          string `json:"seller_id"`
	CustomerID        string `json:"customer_id"`
	Quantity          int    `json:"quantity"`
	Amount            int64  `json:"amount"`
	CheckoutSessionID string `json:"checkout_session_id,omitempty"`
}

// OrderStatusPayload is shared by OrderDelivered and OrderCancelled.
type OrderStatusPayload struct {
	OrderID    string    `json:"order_id"`
	ProductID  string    `json:"product_id"`
	SellerID   string    `json:"seller_id"`
	CustomerID string    `json:"customer_id"`
	Status     string    `json:"status"`
	Quantity   int       `json:"quantity"`
	Amount     int64     `json:"amount"`
	ChangedAt  time.Time `json:"changed_at"`
}

type CheckoutCompletedPayload struct {
	SessionID  string   `json:"session_id"`
	CustomerID string   `json:"customer_id"`
	OrderIDs   []string `json:"order_ids"`
	Rejected   []string `json:"rejected,omitempty"` // order ids recorded as cancelled for lack of stock
}

type NotificationCreatedPayload struct {
	NotificationID string            `json:"notification_id"`
	UserID         string            `json:"user_id"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Type           string            `json:"type"`
	Entity         string            `json:"entity,omitempty"`
	Params         map[string]string `json:"params,omitempty"`
}
