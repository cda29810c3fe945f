// Package checkout turns a cart into a hosted payment session and, once the
// gateway confirms payment, into orders. Confirmations may arrive more than
// once and concurrently; each session is applied exactly once.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
	"github.com/ariefcatur/go-marketplace/internal/auth"
	"github.com/ariefcatur/go-marketplace/internal/events"
	"github.com/ariefcatur/go-marketplace/internal/notify"
	"github.com/ariefcatur/go-marketplace/internal/orders"
	"github.com/ariefcatur/go-marketplace/internal/redisx"
)

const (
	maxLines    = 100
	maxQuantity = 10000

	dedupConsumer = "checkout"
)

// orderNamespace seeds the ids of orders created from a session, so a line
// maps to the same order id however often its session is confirmed.
var orderNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:marketplace:checkout-order"))

// Product is what a checkout needs to know about a catalogue entry.
type Product struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Image       string
	Price       int64
	Discount    int64
	Stock       int
}

// Result reports what applying a confirmation did. Replay means the session
// had been applied before and nothing changed.
type Result struct {
	Replay   bool
	Placed   []orders.Order
	Rejected []orders.Order
}

// Store is implemented by Repo.
type Store interface {
	Products(ctx context.Context, ids []string) ([]Product, error)
	Apply(ctx context.Context, sessionID string, in Intent, at time.Time) (Result, error)
}

type Reconciler struct {
	Store    Store
	Gateway  Gateway
	Redis    *redis.Client // optional: fast path for repeated confirmations
	Dispatch orders.Dispatcher
	Notifier orders.Notifier
	Events   *events.Emitter
	Currency string
	Log      logrus.FieldLogger
	Now      func() time.Time
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

type Item struct {
	ProductID string `json:"id"`
	Quantity  int    `json:"quantity"`
}

type Request struct {
	Products   []Item `json:"products"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
	Address    string `json:"address"`
}

func (req *Request) validate() error {
	if n := len(req.Products); n < 1 || n > maxLines {
		return apperr.InvalidRequest("checkout needs between 1 and %d products", maxLines)
	}
	seen := make(map[string]bool, len(req.Products))
	for _, it := range req.Products {
		if it.ProductID == "" {
			return apperr.InvalidRequest("product id is required")
		}
		if it.Quantity < 1 || it.Quantity > maxQuantity {
			return apperr.InvalidRequest("quantity must be between 1 and %d", maxQuantity)
		}
		if seen[it.ProductID] {
			return apperr.InvalidRequest("product %s is listed more than once", it.ProductID)
		}
		seen[it.ProductID] = true
	}
	if req.SuccessURL == "" || req.CancelURL == "" {
		return apperr.InvalidRequest("successUrl and cancelUrl are required")
	}
	return nil
}

// BuildSession prices the cart at current prices, checks stock and opens a
// payment session carrying the order intent. No stock is reserved here.
func (r *Reconciler) BuildSession(ctx context.Context, p *auth.Principal, req Request) (Session, error) {
	if p == nil {
		return Session{}, apperr.Unauthorized()
	}
	if p.IsAdmin() {
		return Session{}, apperr.Forbidden("admins cannot check out")
	}
	if err := req.validate(); err != nil {
		return Session{}, err
	}
	if req.Address == "" {
		req.Address = p.Address
	}
	if req.Address == "" {
		return Session{}, apperr.InvalidRequest("a delivery address is required")
	}
	if r.Gateway == nil {
		return Session{}, errors.New("payment gateway is not configured")
	}

	ids := make([]string, len(req.Products))
	for i, it := range req.Products {
		ids[i] = it.ProductID
	}
	found, err := r.Store.Products(ctx, ids)
	if err != nil {
		return Session{}, err
	}
	byID := make(map[string]Product, len(found))
	for _, pr := range found {
		byID[pr.ID] = pr
	}

	in := Intent{CustomerID: p.ID, Address: req.Address}
	sreq := SessionRequest{
		CustomerEmail: p.Email,
		Currency:      r.Currency,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
	}
	for _, it := range req.Products {
		pr, ok := byID[it.ProductID]
		if !ok {
			return Session{}, apperr.NotFound("product %s does not exist", it.ProductID)
		}
		if pr.OwnerID == p.ID {
			return Session{}, apperr.InvalidRequest("you cannot buy your own product %q", pr.Title)
		}
		if pr.Stock < it.Quantity {
			return Session{}, apperr.InsufficientStock("only %d of %q left in stock", pr.Stock, pr.Title)
		}
		unit := orders.UnitPrice(pr.Price, pr.Discount)
		in.Lines = append(in.Lines, Line{ProductID: pr.ID, SellerID: pr.OwnerID, Quantity: it.Quantity, UnitPrice: unit})
		sreq.Lines = append(sreq.Lines, LineItem{
			Name:        pr.Title,
			Description: pr.Description,
			Image:       pr.Image,
			UnitAmount:  unit,
			Quantity:    it.Quantity,
		})
	}

	md, err := EncodeIntent(in)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.CodeInvalidRequest, err, "cart is too large for one checkout")
	}
	sreq.Metadata = md

	sess, err := r.Gateway.CreateSession(ctx, sreq)
	if err != nil {
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	r.Log.WithFields(logrus.Fields{"session_id": sess.ID, "customer_id": p.ID, "lines": len(in.Lines)}).
		Info("checkout session created")
	return sess, nil
}

// HandleEvent verifies and applies one gateway webhook delivery. Event types
// other than a paid session are acknowledged without effect.
func (r *Reconciler) HandleEvent(ctx context.Context, payload []byte, signature string) error {
	if r.Gateway == nil {
		return errors.New("payment gateway is not configured")
	}
	ev, err := r.Gateway.ParseEvent(payload, signature)
	if err != nil {
		return apperr.Wrap(apperr.CodeInvalidRequest, err, "invalid webhook signature or payload")
	}
	log := r.Log.WithFields(logrus.Fields{"event_id": ev.ID, "event_type": ev.Type})

	switch ev.Type {
	case EventSessionCompleted:
		if ev.Session == nil {
			return apperr.InvalidRequest("event carries no checkout session")
		}
		if ev.Session.PaymentStatus != PaymentStatusPaid {
			log.WithField("payment_status", ev.Session.PaymentStatus).Info("session completed before payment; waiting")
			return nil
		}
	case EventAsyncPaymentSucceeded:
		if ev.Session == nil {
			return apperr.InvalidRequest("event carries no checkout session")
		}
	default:
		log.Debug("ignoring webhook event")
		return nil
	}

	_, err = r.ApplyConfirmation(ctx, ev.Session.ID, ev.Session.Metadata)
	return err
}

// ApplyConfirmation creates the orders of a paid session exactly once.
func (r *Reconciler) ApplyConfirmation(ctx context.Context, sessionID string, metadata map[string]string) (Result, error) {
	if sessionID == "" {
		return Result{}, apperr.InvalidRequest("session id is required")
	}
	log := r.Log.WithField("session_id", sessionID)
	key := fmt.Sprintf(redisx.KeyDedup, dedupConsumer, sessionID)

	if r.Redis != nil {
		seen, err := redisx.Exists(ctx, r.Redis, key)
		if err != nil {
			log.WithError(err).Warn("dedup lookup failed; relying on the session claim")
		} else if seen {
			log.Debug("confirmation already applied")
			return Result{Replay: true}, nil
		}
	}

	in, err := DecodeIntent(metadata)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.CodeInvalidRequest, err, "checkout session metadata is unreadable")
	}

	res, err := r.Store.Apply(ctx, sessionID, in, r.now().UTC().Truncate(time.Microsecond))
	if err != nil {
		return Result{}, err
	}

	if r.Redis != nil {
		if err := r.Redis.Set(ctx, key, "1", redisx.TTLDedup).Err(); err != nil {
			log.WithError(err).Warn("dedup mark failed")
		}
	}
	if res.Replay {
		log.Info("confirmation already applied")
		return res, nil
	}

	log.WithFields(logrus.Fields{"placed": len(res.Placed), "rejected": len(res.Rejected)}).Info("checkout applied")
	r.applied(sessionID, in.CustomerID, res)
	return res, nil
}

// OrderFor builds the pending order for line index i of a session. The id
// is derived from the session and index.
func OrderFor(sessionID string, i int, in Intent, line Line, at time.Time) orders.Order {
	id := uuid.NewSHA1(orderNamespace, []byte(sessionID+":"+strconv.Itoa(i))).String()
	ref := orders.ProductRef{ID: line.ProductID, OwnerID: line.SellerID, Price: line.UnitPrice}
	o := orders.New(id, ref, in.CustomerID, in.Address, line.Quantity, at)
	o.CheckoutSessionID = sessionID
	return o
}

// RefundMessage tells the customer a paid line could not be filled.
func RefundMessage(o orders.Order) notify.Message {
	return notify.Message{
		UserID:      o.CustomerID,
		Title:       "Item unavailable",
		Description: fmt.Sprintf("%d item(s) of your order sold out before payment completed; the amount of %d will be refunded.", o.Quantity, o.Amount),
		Type:        notify.TypeRefundDue,
		Entity:      "order",
		Params:      map[string]string{"orderId": o.ID, "productId": o.ProductID, "sessionId": o.CheckoutSessionID},
	}
}

func (r *Reconciler) applied(sessionID, customerID string, res Result) {
	msgs := make([]notify.Message, 0, 2*len(res.Placed)+len(res.Rejected))
	for _, o := range res.Placed {
		msgs = append(msgs, orders.PlacedMessages(o)...)
	}
	for _, o := range res.Rejected {
		msgs = append(msgs, RefundMessage(o))
	}
	r.Dispatch.Dispatch("checkout.notify", func(ctx context.Context) error {
		return orders.NotifyAll(ctx, r.Notifier, msgs)
	})

	payload := events.CheckoutCompletedPayload{SessionID: sessionID, CustomerID: customerID}
	for _, o := range res.Placed {
		payload.OrderIDs = append(payload.OrderIDs, o.ID)
	}
	for _, o := range res.Rejected {
		payload.Rejected = append(payload.Rejected, o.ID)
	}
	r.Dispatch.Dispatch("checkout.event", func(ctx context.Context) error {
		var errs []error
		for _, o := range res.Placed {
			if err := r.Events.Emit(ctx, events.EventOrderPlaced, o.ID, orders.PlacedEvent(o)); err != nil {
				errs = append(errs, err)
			}
		}
		if err := r.Events.Emit(ctx, events.EventCheckoutCompleted, sessionID, payload); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})
}
