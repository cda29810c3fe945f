// Package notify stores in-app notifications, announces them on Kafka and
// relays them to the mailer from the notifier worker.
package notify

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
	"github.com/ariefcatur/go-marketplace/internal/auth"
	"github.com/ariefcatur/go-marketplace/internal/events"
	"github.com/ariefcatur/go-marketplace/internal/paging"
)

const (
	TypeOrderPlaced    = "order_placed"
	TypeOrderReceived  = "order_received"
	TypeOrderDelivered = "order_delivered"
	TypeOrderCancelled = "order_cancelled"
	TypeRefundDue      = "refund_due"
)

// Message is what producers hand to Notify.
type Message struct {
	UserID      string
	Title       string
	Description string
	Type        string
	Entity      string
	Params      map[string]string
}

type Notification struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Entity      string            `json:"entity"`
	Params      map[string]string `json:"params,omitempty"`
	Type        string            `json:"type,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type Store interface {
	Insert(ctx context.Context, n Notification) error
	List(ctx context.Context, userID string, plan paging.Plan) ([]Notification, error)
}

var Sorts = paging.Spec{
	Sorts: map[string]paging.Sort{
		"recent": {Field: paging.Field{Name: "created_at", Column: "n.created_at", Kind: paging.KindTime}, Dir: paging.Desc},
	},
	Default:      "recent",
	IDColumn:     "n.id",
	MinLimit:     1,
	MaxLimit:     100,
	DefaultLimit: 20,
}

func sortKey(n Notification) (paging.Value, string) {
	return paging.Time(n.CreatedAt), n.ID
}

type Service struct {
	Store  Store
	Events *events.Emitter
	Log    logrus.FieldLogger
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Notify records m for its recipient and publishes NotificationCreated.
// A publish failure is logged; the stored row is what the user reads.
func (s *Service) Notify(ctx context.Context, m Message) (Notification, error) {
	switch {
	case m.UserID == "":
		return Notification{}, apperr.InvalidRequest("notification has no recipient")
	case m.Title == "" || utf8.RuneCountInString(m.Title) > 200:
		return Notification{}, apperr.InvalidRequest("title must be 1-200 characters")
	case utf8.RuneCountInString(m.Description) > 400:
		return Notification{}, apperr.InvalidRequest("description must be at most 400 characters")
	}
	entity := m.Entity
	if entity == "" {
		entity = "user"
	}
	n := Notification{
		ID:          uuid.NewString(),
		UserID:      m.UserID,
		Title:       m.Title,
		Description: m.Description,
		Entity:      entity,
		Params:      m.Params,
		Type:        m.Type,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.Store.Insert(ctx, n); err != nil {
		return Notification{}, err
	}

	err := s.Events.Emit(ctx, events.EventNotificationCreated, n.UserID, events.NotificationCreatedPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Title:          n.Title,
		Description:    n.Description,
		Type:           n.Type,
		Entity:         n.Entity,
		Params:         n.Params,
	})
	if err != nil {
		s.Log.WithError(err).WithField("notification_id", n.ID).Warn("publish notification event")
	}
	return n, nil
}

// List pages through the caller's own notifications, newest first.
func (s *Service) List(ctx context.Context, p *auth.Principal, limit int, cursor string) (paging.Page[Notification], error) {
	if p == nil {
		return paging.Page[Notification]{}, apperr.Unauthorized()
	}
	plan, err := Sorts.Plan("", cursor, limit)
	if err != nil {
		return paging.Page[Notification]{}, err
	}
	items, err := s.Store.List(ctx, p.ID, plan)
	if err != nil {
		return paging.Page[Notification]{}, err
	}
	return paging.NewPage(items, sortKey), nil
}
