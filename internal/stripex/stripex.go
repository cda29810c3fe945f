// Package stripex is the Stripe implementation of checkout.Gateway.
package stripex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/ariefcatur/go-marketplace/internal/checkout"
)

type Gateway struct {
	API           *client.API
	WebhookSecret string
}

func New(secretKey, webhookSecret string) *Gateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Gateway{API: api, WebhookSecret: webhookSecret}
}

func (g *Gateway) CreateSession(ctx context.Context, req checkout.SessionRequest) (checkout.Session, error) {
	params := sessionParams(req)
	params.Context = ctx
	s, err := g.API.CheckoutSessions.New(params)
	if err != nil {
		return checkout.Session{}, err
	}
	return checkout.Session{ID: s.ID, URL: s.URL}, nil
}

func sessionParams(req checkout.SessionRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	currency := strings.ToLower(req.Currency)
	for _, l := range req.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(l.Name)}
		// Stripe rejects empty strings in optional fields.
		if l.Description != "" {
			product.Description = stripe.String(l.Description)
		}
		if l.Image != "" {
			product.Images = stripe.StringSlice([]string{l.Image})
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(l.UnitAmount),
				ProductData: product,
			},
			Quantity: stripe.Int64(int64(l.Quantity)),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}

// ParseEvent verifies the Stripe-Signature header against the endpoint
// secret, then decodes the event. The session is filled in for
// checkout.session.* events only.
func (g *Gateway) ParseEvent(payload []byte, signature string) (checkout.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return checkout.Event{}, err
	}
	out := checkout.Event{ID: ev.ID, Type: string(ev.Type)}
	if !strings.HasPrefix(out.Type, "checkout.session.") {
		return out, nil
	}
	if ev.Data == nil {
		return checkout.Event{}, fmt.Errorf("event %s has no data", ev.ID)
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
		return checkout.Event{}, fmt.Errorf("decode checkout session: %w", err)
	}
	out.Session = &checkout.SessionObject{
		ID:            s.ID,
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      s.Metadata,
	}
	return out, nil
}
