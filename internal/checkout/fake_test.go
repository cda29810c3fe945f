package checkout

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-marketplace/internal/notify"
	"github.com/ariefcatur/go-marketplace/internal/orders"
)

// fakeStore mirrors Repo in memory; the mutex stands in for the session
// row lock and the conditional stock update.
type fakeStore struct {
	mu       sync.Mutex
	products map[string]*Product
	sessions map[string]bool
	orders   map[string]orders.Order
}

func newFakeStore() *fakeStore {
	return &fakeStore{products: map[string]*Product{}, sessions: map[string]bool{}, orders: map[string]orders.Order{}}
}

func (f *fakeStore) add(p Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = &p
}

func (f *fakeStore) stock(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

func (f *fakeStore) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeStore) Products(ctx context.Context, ids []string) ([]Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) Apply(ctx context.Context, sessionID string, in Intent, at time.Time) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessions[sessionID] {
		return Result{Replay: true}, nil
	}
	f.sessions[sessionID] = true

	var res Result
	for i, line := range in.Lines {
		o := OrderFor(sessionID, i, in, line, at)
		p, ok := f.products[line.ProductID]
		switch {
		case !ok:
			o.Status = orders.StatusCancelled
			res.Rejected = append(res.Rejected, o)
			continue
		case p.Stock < line.Quantity:
			o.Status = orders.StatusCancelled
			res.Rejected = append(res.Rejected, o)
		default:
			p.Stock -= line.Quantity
			res.Placed = append(res.Placed, o)
		}
		f.orders[o.ID] = o
	}
	return res, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []SessionRequest
	events   map[string]Event // keyed by signature
}

func (g *fakeGateway) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return Session{ID: "cs_test_1", URL: "https://pay.example/cs_test_1"}, nil
}

func (g *fakeGateway) ParseEvent(payload []byte, signature string) (Event, error) {
	ev, ok := g.events[signature]
	if !ok {
		return Event{}, errors.New("no signatures found matching the expected signature")
	}
	return ev, nil
}

type syncDispatcher struct{}

func (syncDispatcher) Dispatch(name string, fn func(ctx context.Context) error) bool {
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
	return notify.Notification{UserID: m.UserID}, nil
}

func (n *fakeNotifier) types() map[string]int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := map[string]int{}
	for _, m := range n.msgs {
		out[m.Type]++
	}
	return out
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
