package orders

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
	"github.com/ariefcatur/go-marketplace/internal/notify"
	"github.com/ariefcatur/go-marketplace/internal/paging"
)

type fakeProduct struct {
	ref   ProductRef
	stock int
}

// fakeStore mirrors Repo in memory; the mutex stands in for row locks.
type fakeStore struct {
	mu       sync.Mutex
	products map[string]*fakeProduct
	orders   map[string]Order
	sales    []Sale
}

func newFakeStore() *fakeStore {
	return &fakeStore{products: map[string]*fakeProduct{}, orders: map[string]Order{}}
}

func (f *fakeStore) addProduct(id, owner string, price, discount int64, stock int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[id] = &fakeProduct{ref: ProductRef{ID: id, OwnerID: owner, Title: id, Price: price, Discount: discount}, stock: stock}
}

func (f *fakeStore) stock(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].stock
}

func (f *fakeStore) Get(ctx context.Context, id string) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return Order{}, apperr.NotFound("order does not exist")
	}
	return o, nil
}

func (f *fakeStore) List(ctx context.Context, flt Filter, plan paging.Plan) ([]Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := SortKey(plan.Sort.Field)
	var out []Order
	for _, o := range f.orders {
		switch {
		case flt.CustomerID != "" && o.CustomerID != flt.CustomerID,
			flt.SellerID != "" && o.SellerID != flt.SellerID,
			flt.ProductID != "" && o.ProductID != flt.ProductID,
			flt.Status != "" && o.Status != flt.Status,
			flt.From != nil && o.OrderedAt.Before(*flt.From),
			flt.Until != nil && !o.OrderedAt.Before(*flt.Until):
			continue
		}
		if v, id := key(o); plan.After(v, id) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		av, aid := key(out[i])
		bv, bid := key(out[j])
		return plan.Less(av, aid, bv, bid)
	})
	if len(out) > plan.Limit {
		out = out[:plan.Limit]
	}
	return out, nil
}

func (f *fakeStore) Place(ctx context.Context, productID string, qty int, build func(ProductRef) (Order, error)) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return Order{}, apperr.NotFound("product does not exist")
	}
	o, err := build(p.ref)
	if err != nil {
		return Order{}, err
	}
	if p.stock < qty {
		return Order{}, apperr.InsufficientStock("only %d left", p.stock)
	}
	p.stock -= qty
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeStore) Transition(ctx context.Context, id string, to Status, at time.Time) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return Order{}, apperr.NotFound("order does not exist")
	}
	if o.Status != StatusPending {
		return Order{}, apperr.InvalidOrderState(string(o.Status))
	}
	o.Status = to
	if to == StatusDelivered {
		o.DeliveredAt = &at
	}
	if to == StatusCancelled {
		if p, ok := f.products[o.ProductID]; ok {
			p.stock += o.Quantity
		}
	}
	f.orders[id] = o
	return o, nil
}

func (f *fakeStore) RecordSale(ctx context.Context, s Sale) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sales = append(f.sales, s)
	return nil
}

// syncDispatcher runs tasks inline so tests can assert on their effects.
type syncDispatcher struct {
	mu    sync.Mutex
	names []string
}

func (d *syncDispatcher) Dispatch(name string, fn func(ctx context.Context) error) bool {
	d.mu.Lock()
	d.names = append(d.names, name)
	d.mu.Unlock()
	_ = fn(context.Background())
	return true
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (n *fakeNotifier) Notify(ctx context.Context, m notify.Message) (notify.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, m)
	return notify.Notification{UserID: m.UserID, Title: m.Title}, nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
