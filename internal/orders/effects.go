package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-marketplace/internal/events"
	"github.com/ariefcatur/go-marketplace/internal/notify"
)

// PlacedMessages are the notifications for a new order: one for the buyer
// and one for the seller.
func PlacedMessages(o Order) []notify.Message {
	params := map[string]string{"orderId": o.ID, "productId": o.ProductID}
	return []notify.Message{
		{
			UserID:      o.CustomerID,
			Title:       "Order placed",
			Description: fmt.Sprintf("Your order of %d item(s) is placed and expected by %s.", o.Quantity, o.EstimatedDeliveryAt.Format("Jan 2")),
			Type:        notify.TypeOrderPlaced,
			Entity:      "order",
			Params:      params,
		},
		{
			UserID:      o.SellerID,
			Title:       "New order received",
			Description: fmt.Sprintf("A customer ordered %d item(s) of your product.", o.Quantity),
			Type:        notify.TypeOrderReceived,
			Entity:      "order",
			Params:      params,
		},
	}
}

// TransitionMessages notify both parties that o left pending.
func TransitionMessages(o Order) []notify.Message {
	title, typ := "Order delivered", notify.TypeOrderDelivered
	if o.Status == StatusCancelled {
		title, typ = "Order cancelled", notify.TypeOrderCancelled
	}
	params := map[string]string{"orderId": o.ID, "productId": o.ProductID}
	msgs := make([]notify.Message, 0, 2)
	for _, uid := range []string{o.CustomerID, o.SellerID} {
		msgs = append(msgs, notify.Message{
			UserID:      uid,
			Title:       title,
			Description: fmt.Sprintf("Order %s is now %s.", o.ID, o.Status),
			Type:        typ,
			Entity:      "order",
			Params:      params,
		})
	}
	return msgs
}

func PlacedEvent(o Order) events.OrderPlacedPayload {
	return events.OrderPlacedPayload{
		OrderID:           o.ID,
		ProductID:         o.ProductID,
		SellerID:          o.SellerID,
		CustomerID:        o.CustomerID,
		Quantity:          o.Quantity,
		Amount:            o.Amount,
		CheckoutSessionID: o.CheckoutSessionID,
	}
}

// NotifyAll sends every message, collecting failures.
func NotifyAll(ctx context.Context, n Notifier, msgs []notify.Message) error {
	var errs []error
	for _, m := range msgs {
		if _, err := n.Notify(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) placed(o Order) {
	s.Dispatch.Dispatch("order.placed.notify", func(ctx context.Context) error {
		return NotifyAll(ctx, s.Notifier, PlacedMessages(o))
	})
	s.Dispatch.Dispatch("order.placed.event", func(ctx context.Context) error {
		return s.Events.Emit(ctx, events.EventOrderPlaced, o.ID, PlacedEvent(o))
	})
}

func (s *Service) transitioned(o Order) {
	at := s.now().UTC()
	s.Dispatch.Dispatch("order.sale", func(ctx context.Context) error {
		return s.Store.RecordSale(ctx, SaleFor(o, at))
	})
	s.Dispatch.Dispatch("order.transition.notify", func(ctx context.Context) error {
		return NotifyAll(ctx, s.Notifier, TransitionMessages(o))
	})

	eventType := events.EventOrderDelivered
	if o.Status == StatusCancelled {
		eventType = events.EventOrderCancelled
	}
	s.Dispatch.Dispatch("order.transition.event", func(ctx context.Context) error {
		return s.Events.Emit(ctx, eventType, o.ID, events.OrderStatusPayload{
			OrderID:    o.ID,
			ProductID:  o.ProductID,
			SellerID:   o.SellerID,
			CustomerID: o.CustomerID,
			Status:     string(o.Status),
			Quantity:   o.Quantity,
			Amount:     o.Amount,
			ChangedAt:  at,
		})
	})
}
