package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
	"github.com/ariefcatur/go-marketplace/internal/auth"
	"github.com/ariefcatur/go-marketplace/internal/events"
	"github.com/ariefcatur/go-marketplace/internal/notify"
	"github.com/ariefcatur/go-marketplace/internal/paging"
	"github.com/ariefcatur/go-marketplace/internal/redisx"
)

const maxQuantity = 10000

// Store is implemented by Repo.
type Store interface {
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context, f Filter, plan paging.Plan) ([]Order, error)
	Place(ctx context.Context, productID string, qty int, build func(ProductRef) (Order, error)) (Order, error)
	Transition(ctx context.Context, id string, to Status, at time.Time) (Order, error)
	RecordSale(ctx context.Context, s Sale) error
}

// Dispatcher runs side effects off the request path.
type Dispatcher interface {
	Dispatch(name string, fn func(ctx context.Context) error) bool
}

type Notifier interface {
	Notify(ctx context.Context, m notify.Message) (notify.Notification, error)
}

type Service struct {
	Store    Store
	Redis    *redis.Client // optional: read cache and buy-now idempotency
	Dispatch Dispatcher
	Notifier Notifier
	Events   *events.Emitter
	Log      logrus.FieldLogger
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type PlaceRequest struct {
	Quantity       int    `json:"quantity"`
	Address        string `json:"address"`
	IdempotencyKey string `json:"-"`
}

// Place is the synchronous buy-now path: stock is reserved and the order
// inserted in one transaction.
func (s *Service) Place(ctx context.Context, p *auth.Principal, productID string, req PlaceRequest) (Order, error) {
	if p == nil {
		return Order{}, apperr.Unauthorized()
	}
	if p.IsAdmin() {
		return Order{}, apperr.Forbidden("administrators cannot place orders")
	}
	if req.Quantity < 1 || req.Quantity > maxQuantity {
		return Order{}, apperr.InvalidRequest("quantity must be between 1 and %d", maxQuantity)
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		address = p.Address
	}
	if address == "" {
		return Order{}, apperr.InvalidRequest("a delivery address is required")
	}

	idemKey := ""
	if req.IdempotencyKey != "" && s.Redis != nil {
		idemKey = fmt.Sprintf(redisx.KeyIdemOrderCreate, p.ID, req.IdempotencyKey)
		o, replay, err := s.claimIdempotencyKey(ctx, idemKey)
		if err != nil {
			return Order{}, err
		}
		if replay {
			return o, nil
		}
	}

	o, err := s.Store.Place(ctx, productID, req.Quantity, func(prod ProductRef) (Order, error) {
		if prod.OwnerID == p.ID {
			return Order{}, apperr.InvalidRequest("you cannot order your own product")
		}
		return New(uuid.NewString(), prod, p.ID, address, req.Quantity, s.now()), nil
	})
	if idemKey != "" {
		s.settleIdempotencyKey(ctx, idemKey, o, err)
	}
	if err != nil {
		return Order{}, err
	}

	s.placed(o)
	return o, nil
}

// claimIdempotencyKey marks key in flight. A key already holding an order id
// replays that order.
func (s *Service) claimIdempotencyKey(ctx context.Context, key string) (Order, bool, error) {
	ok, err := s.Redis.SetNX(ctx, key, redisx.IdemPending, redisx.TTLIdempotency).Result()
	if err != nil {
		s.Log.WithError(err).Warn("idempotency unavailable, placing without it")
		return Order{}, false, nil
	}
	if ok {
		return Order{}, false, nil
	}
	orderID, err := s.Redis.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Order{}, false, err
	}
	if orderID == "" || orderID == redisx.IdemPending {
		return Order{}, false, apperr.Conflict("a request with this idempotency key is still in progress")
	}
	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return Order{}, false, err
	}
	return o, true, nil
}

func (s *Service) settleIdempotencyKey(ctx context.Context, key string, o Order, placeErr error) {
	var err error
	if placeErr != nil {
		err = s.Redis.Del(ctx, key).Err()
	} else {
		err = s.Redis.Set(ctx, key, o.ID, redisx.TTLIdempotency).Err()
	}
	if err != nil {
		s.Log.WithError(err).WithField("key", key).Warn("idempotency key not settled")
	}
}

// Get returns an order its participants or an administrator may see.
func (s *Service) Get(ctx context.Context, p *auth.Principal, id string) (Order, error) {
	if p == nil {
		return Order{}, apperr.Unauthorized()
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !p.IsAdmin() && !o.IsParticipant(p.ID) {
		return Order{}, apperr.Forbidden("you are not a party to this order")
	}
	return o, nil
}

func (s *Service) load(ctx context.Context, id string) (Order, error) {
	key := fmt.Sprintf(redisx.KeyOrder, id)
	if s.Redis != nil {
		var o Order
		if err := redisx.GetJSON(ctx, s.Redis, key, &o); err == nil {
			return o, nil
		}
	}
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if s.Redis != nil {
		if err := redisx.SetJSON(ctx, s.Redis, key, o, redisx.TTLOrderCache); err != nil {
			s.Log.WithError(err).Debug("order cache write failed")
		}
	}
	return o, nil
}

func (s *Service) evict(ctx context.Context, id string) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrder, id)).Err(); err != nil {
		s.Log.WithError(err).WithField("order_id", id).Warn("order cache eviction failed")
	}
}

type ListParams struct {
	Limit    int
	Sort     string
	Cursor   string
	Status   string
	Product  string
	From     string
	To       string
	Resource string // customer (default) or seller
	Seller   string // administrators only
	Customer string // administrators only
}

// List pages through orders the caller may see. Non-administrators see the
// orders they placed, or with resource=seller the orders on their products.
func (s *Service) List(ctx context.Context, p *auth.Principal, lp ListParams) (paging.Page[Order], error) {
	if p == nil {
		return paging.Page[Order]{}, apperr.Unauthorized()
	}
	f, err := s.filterFor(p, lp)
	if err != nil {
		return paging.Page[Order]{}, err
	}
	plan, err := Sorts.Plan(lp.Sort, lp.Cursor, lp.Limit)
	if err != nil {
		return paging.Page[Order]{}, err
	}
	items, err := s.Store.List(ctx, f, plan)
	if err != nil {
		return paging.Page[Order]{}, err
	}
	return paging.NewPage(items, SortKey(plan.Sort.Field)), nil
}

func (s *Service) filterFor(p *auth.Principal, lp ListParams) (Filter, error) {
	var f Filter
	if !p.IsAdmin() && (lp.Seller != "" || lp.Customer != "") {
		return f, apperr.Forbidden("only administrators can list other users' orders")
	}
	f.SellerID, f.CustomerID = lp.Seller, lp.Customer

	switch lp.Resource {
	case "":
		if !p.IsAdmin() {
			f.CustomerID = p.ID
		}
	case "customer":
		f.CustomerID = p.ID
	case "seller":
		f.SellerID = p.ID
	default:
		return f, apperr.InvalidRequest("resource must be customer or seller")
	}

	if lp.Status != "" {
		st, err := ParseStatus(lp.Status)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	f.ProductID = lp.Product

	if lp.From != "" {
		t, _, err := parseBound(lp.From)
		if err != nil {
			return f, apperr.InvalidRequest("from: %v", err)
		}
		f.From = &t
	}
	if lp.To != "" {
		t, dateOnly, err := parseBound(lp.To)
		if err != nil {
			return f, apperr.InvalidRequest("to: %v", err)
		}
		// a bare date includes the whole day
		if dateOnly {
			t = t.Add(24 * time.Hour)
		} else {
			t = t.Add(time.Microsecond)
		}
		f.Until = &t
	}
	if f.From != nil && f.Until != nil && !f.From.Before(*f.Until) {
		return f, apperr.InvalidRequest("from must be before to")
	}
	return f, nil
}

func parseBound(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%q is neither a date nor an RFC3339 timestamp", v)
	}
	return t, false, nil
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
	Paid   *bool  `json:"paid,omitempty"`
}

// UpdateStatus delivers or cancels a pending order. Validation and
// entitlement are checked before anything is written; the side effects run
// after the transition commits and never fail the call.
func (s *Service) UpdateStatus(ctx context.Context, p *auth.Principal, id string, req UpdateStatusRequest) (Order, error) {
	if p == nil {
		return Order{}, apperr.Unauthorized()
	}
	if req.Paid != nil && !*req.Paid {
		return Order{}, apperr.InvalidRequest("a placed order cannot be marked unpaid")
	}
	to := Status(req.Status)
	if to != StatusDelivered && to != StatusCancelled {
		return Order{}, apperr.InvalidRequest("status must be delivered or cancelled")
	}

	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if err := entitled(p, o, to); err != nil {
		return Order{}, err
	}
	if !CanTransition(o.Status, to) {
		return Order{}, apperr.InvalidOrderState(string(o.Status))
	}

	o, err = s.Store.Transition(ctx, id, to, s.now().UTC().Truncate(time.Microsecond))
	if err != nil {
		return Order{}, err
	}
	s.evict(ctx, id)
	s.transitioned(o)
	return o, nil
}

func entitled(p *auth.Principal, o Order, to Status) error {
	if p.IsAdmin() || o.SellerID == p.ID {
		return nil
	}
	if to == StatusCancelled && o.CustomerID == p.ID {
		return nil
	}
	if to == StatusDelivered {
		return apperr.Forbidden("only the seller or an administrator can mark an order delivered")
	}
	return apperr.Forbidden("only the seller, the customer or an administrator can cancel an order")
}
