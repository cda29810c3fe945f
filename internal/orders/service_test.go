package orders

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
	"github.com/ariefcatur/go-marketplace/internal/auth"
)

var (
	seller   = &auth.Principal{ID: "seller", Role: auth.RoleUser}
	customer = &auth.Principal{ID: "customer", Role: auth.RoleUser, Address: "Kathmandu"}
	stranger = &auth.Principal{ID: "stranger", Role: auth.RoleUser}
	admin    = &auth.Principal{ID: "admin", Role: auth.RoleAdmin}
)

type harness struct {
	svc      *Service
	store    *fakeStore
	dispatch *syncDispatcher
	notifier *fakeNotifier
}

func newHarness() *harness {
	h := &harness{store: newFakeStore(), dispatch: &syncDispatcher{}, notifier: &fakeNotifier{}}
	h.svc = &Service{
		Store:    h.store,
		Dispatch: h.dispatch,
		Notifier: h.notifier,
		Log:      quietLogger(),
		Now:      func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) },
	}
	h.store.addProduct("apples", seller.ID, 250, 20, 5)
	return h
}

func TestPlaceReservesAndPrices(t *testing.T) {
	h := newHarness()
	o, err := h.svc.Place(context.Background(), customer, "apples", PlaceRequest{Quantity: 3})
	if err != nil {
		t.Fatalf("Place error: %v", err)
	}
	if o.Status != StatusPending || o.UnitPrice != 200 || o.Amount != 600 {
		t.Errorf("unexpected order %+v", o)
	}
	if o.SellerID != seller.ID || o.CustomerID != customer.ID || o.Address != "Kathmandu" {
		t.Errorf("unexpected parties %+v", o)
	}
	if !o.EstimatedDeliveryAt.Equal(o.OrderedAt.Add(DeliveryWindow)) {
		t.Errorf("unexpected delivery estimate %v", o.EstimatedDeliveryAt)
	}
	if got := h.store.stock("apples"); got != 2 {
		t.Errorf("expected stock 2, got %d", got)
	}
	if h.notifier.count() != 2 {
		t.Errorf("expected 2 notifications, got %d", h.notifier.count())
	}
}

func TestPlaceRejects(t *testing.T) {
	tests := []struct {
		name string
		p    *auth.Principal
		id   string
		req  PlaceRequest
		code apperr.Code
	}{
		{"anonymous", nil, "apples", PlaceRequest{Quantity: 1}, apperr.CodeUnauthorized},
		{"admin", admin, "apples", PlaceRequest{Quantity: 1}, apperr.CodeForbidden},
		{"zero quantity", customer, "apples", PlaceRequest{Quantity: 0}, apperr.CodeInvalidRequest},
		{"no address", stranger, "apples", PlaceRequest{Quantity: 1}, apperr.CodeInvalidRequest},
		{"own product", seller, "apples", PlaceRequest{Quantity: 1, Address: "x"}, apperr.CodeInvalidRequest},
		{"missing product", customer, "pears", PlaceRequest{Quantity: 1}, apperr.CodeNotFound},
		{"too many", customer, "apples", PlaceRequest{Quantity: 6}, apperr.CodeInsufficientStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			_, err := h.svc.Place(context.Background(), tt.p, tt.id, tt.req)
			if !apperr.Is(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
			if got := h.store.stock("apples"); got != 5 {
				t.Errorf("stock changed to %d", got)
			}
			if len(h.store.orders) != 0 || h.notifier.count() != 0 {
				t.Error("rejected placement left traces")
			}
		})
	}
}

func TestConcurrentPlaceScenario(t *testing.T) {
	h := newHarness()
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Place(context.Background(), customer, "apples", PlaceRequest{Quantity: 3})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperr.Is(err, apperr.CodeInsufficientStock):
				fail++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || fail != 1 {
		t.Errorf("expected one success and one failure, got %d and %d", ok, fail)
	}
	if got := h.store.stock("apples"); got != 2 {
		t.Errorf("expected stock 2, got %d", got)
	}
	if len(h.store.orders) != 1 {
		t.Errorf("expected exactly one order, got %d", len(h.store.orders))
	}
}

func TestLifecycleMonotonic(t *testing.T) {
	for _, first := range []Status{StatusDelivered, StatusCancelled} {
		t.Run(string(first), func(t *testing.T) {
			h := newHarness()
			ctx := context.Background()
			o, err := h.svc.Place(ctx, customer, "apples", PlaceRequest{Quantity: 2})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := h.svc.UpdateStatus(ctx, seller, o.ID, UpdateStatusRequest{Status: string(first)}); err != nil {
				t.Fatalf("first transition: %v", err)
			}
			for _, next := range []Status{StatusDelivered, StatusCancelled} {
				_, err := h.svc.UpdateStatus(ctx, admin, o.ID, UpdateStatusRequest{Status: string(next)})
				if !apperr.Is(err, apperr.CodeInvalidOrderState) {
					t.Errorf("%s -> %s: expected invalid_order_state, got %v", first, next, err)
				}
				if apperr.Message(err) != "order is already "+string(first) {
					t.Errorf("unexpected message %q", apperr.Message(err))
				}
			}
		})
	}
}

func TestCancelRestoresStockAndRecordsSale(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o, _ := h.svc.Place(ctx, customer, "apples", PlaceRequest{Quantity: 4})
	if got := h.store.stock("apples"); got != 1 {
		t.Fatalf("expected stock 1, got %d", got)
	}

	got, err := h.svc.UpdateStatus(ctx, customer, o.ID, UpdateStatusRequest{Status: "cancelled"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCancelled || got.DeliveredAt != nil {
		t.Errorf("unexpected order %+v", got)
	}
	if s := h.store.stock("apples"); s != 5 {
		t.Errorf("expected stock restored to 5, got %d", s)
	}
	if len(h.store.sales) != 1 || !h.store.sales[0].Cancelled || h.store.sales[0].Amount != 0 {
		t.Errorf("unexpected sales %+v", h.store.sales)
	}
	// 2 for the placement, 2 for the cancellation
	if h.notifier.count() != 4 {
		t.Errorf("expected 4 notifications, got %d", h.notifier.count())
	}
}

func TestDeliverRecordsSale(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o, _ := h.svc.Place(ctx, customer, "apples", PlaceRequest{Quantity: 1})

	h.svc.Now = func() time.Time { return o.OrderedAt.Add(50 * time.Hour) }
	got, err := h.svc.UpdateStatus(ctx, seller, o.ID, UpdateStatusRequest{Status: "delivered", Paid: boolPtr(true)})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if got.DeliveredAt == nil {
		t.Fatal("expected delivered_at to be set")
	}
	if len(h.store.sales) != 1 {
		t.Fatalf("expected one sale, got %d", len(h.store.sales))
	}
	s := h.store.sales[0]
	if s.Cancelled || s.Amount != o.Amount || s.DeliveryDays != 2 || s.Quantity != 1 {
		t.Errorf("unexpected sale %+v", s)
	}
	if h.store.stock("apples") != 4 {
		t.Error("delivery must not touch stock")
	}
}

func TestUpdateStatusRejects(t *testing.T) {
	tests := []struct {
		name string
		p    *auth.Principal
		req  UpdateStatusRequest
		code apperr.Code
	}{
		{"anonymous", nil, UpdateStatusRequest{Status: "cancelled"}, apperr.CodeUnauthorized},
		{"unpaid", seller, UpdateStatusRequest{Status: "delivered", Paid: boolPtr(false)}, apperr.CodeInvalidRequest},
		{"bad status", seller, UpdateStatusRequest{Status: "pending"}, apperr.CodeInvalidRequest},
		{"customer delivers", customer, UpdateStatusRequest{Status: "delivered"}, apperr.CodeForbidden},
		{"stranger cancels", stranger, UpdateStatusRequest{Status: "cancelled"}, apperr.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			o, err := h.svc.Place(context.Background(), customer, "apples", PlaceRequest{Quantity: 1})
			if err != nil {
				t.Fatal(err)
			}
			_, err = h.svc.UpdateStatus(context.Background(), tt.p, o.ID, tt.req)
			if !apperr.Is(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
			if cur, _ := h.store.Get(context.Background(), o.ID); cur.Status != StatusPending {
				t.Errorf("order changed to %s", cur.Status)
			}
		})
	}

	h := newHarness()
	if _, err := h.svc.UpdateStatus(context.Background(), admin, "missing", UpdateStatusRequest{Status: "cancelled"}); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestConcurrentTransitionsOneWins(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o, _ := h.svc.Place(ctx, customer, "apples", PlaceRequest{Quantity: 2})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := "cancelled"
			if i%2 == 0 {
				status = "delivered"
			}
			_, err := h.svc.UpdateStatus(ctx, seller, o.ID, UpdateStatusRequest{Status: status})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !apperr.Is(err, apperr.CodeInvalidOrderState) {
				t.Errorf("unexpected error %v", err)
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("expected exactly one transition, got %d", wins)
	}
	cur, _ := h.store.Get(ctx, o.ID)
	want := 3
	if cur.Status == StatusCancelled {
		want = 5
	}
	if got := h.store.stock("apples"); got != want {
		t.Errorf("expected stock %d after %s, got %d", want, cur.Status, got)
	}
}

func TestGetVisibility(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	o, _ := h.svc.Place(ctx, customer, "apples", PlaceRequest{Quantity: 1})

	for _, p := range []*auth.Principal{seller, customer, admin} {
		if _, err := h.svc.Get(ctx, p, o.ID); err != nil {
			t.Errorf("%s: unexpected error %v", p.ID, err)
		}
	}
	if _, err := h.svc.Get(ctx, stranger, o.ID); !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if _, err := h.svc.Get(ctx, nil, o.ID); !apperr.Is(err, apperr.CodeUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}

func TestListVisibilityAndPaging(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.store.addProduct("pears", stranger.ID, 100, 0, 100)
	for i := 0; i < 6; i++ {
		if _, err := h.svc.Place(ctx, customer, "pears", PlaceRequest{Quantity: 1 + i%2}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := h.svc.Place(ctx, stranger, "apples", PlaceRequest{Quantity: 1, Address: "Pokhara"}); err != nil {
		t.Fatal(err)
	}

	collect := func(p *auth.Principal, lp ListParams) []Order {
		t.Helper()
		var all []Order
		for {
			page, err := h.svc.List(ctx, p, lp)
			if err != nil {
				t.Fatalf("List error: %v", err)
			}
			all = append(all, page.Items...)
			if page.Cursor == "" {
				return all
			}
			lp.Cursor = page.Cursor
		}
	}

	mine := collect(customer, ListParams{Limit: 4, Sort: "amount_desc"})
	if len(mine) != 6 {
		t.Fatalf("expected 6 customer orders, got %d", len(mine))
	}
	for i := 1; i < len(mine); i++ {
		if mine[i-1].Amount < mine[i].Amount {
			t.Fatalf("amounts out of order at %d", i)
		}
	}
	if got := collect(stranger, ListParams{Resource: "seller", Limit: 5}); len(got) != 6 {
		t.Errorf("expected 6 orders on the stranger's product, got %d", len(got))
	}
	if got := collect(admin, ListParams{Limit: 100}); len(got) != 7 {
		t.Errorf("expected admin to see 7 orders, got %d", len(got))
	}
	if got := collect(admin, ListParams{Customer: stranger.ID}); len(got) != 1 {
		t.Errorf("expected 1 order for customer filter, got %d", len(got))
	}

	for _, lp := range []ListParams{{Seller: "x"}, {Customer: "y"}} {
		if _, err := h.svc.List(ctx, customer, lp); !apperr.Is(err, apperr.CodeForbidden) {
			t.Errorf("%+v: expected forbidden, got %v", lp, err)
		}
	}
	for _, lp := range []ListParams{{Resource: "owner"}, {Status: "lost"}, {From: "yesterday"}, {Sort: "rating"}, {Cursor: "garbage!"}} {
		_, err := h.svc.List(ctx, customer, lp)
		if !apperr.Is(err, apperr.CodeInvalidRequest) && !apperr.Is(err, apperr.CodeInvalidCursor) {
			t.Errorf("%+v: expected a request error, got %v", lp, err)
		}
	}
}

func TestFilterDateBounds(t *testing.T) {
	svc := &Service{}
	f, err := svc.filterFor(customer, ListParams{From: "2024-06-01", To: "2024-06-01"})
	if err != nil {
		t.Fatalf("filterFor error: %v", err)
	}
	if f.Until.Sub(*f.From) != 24*time.Hour {
		t.Errorf("expected a one-day window, got %v..%v", f.From, f.Until)
	}
	if f.CustomerID != customer.ID {
		t.Errorf("expected customer scoping, got %+v", f)
	}
	if _, err := svc.filterFor(customer, ListParams{From: "2024-06-02", To: "2024-06-01"}); !apperr.Is(err, apperr.CodeInvalidRequest) {
		t.Errorf("expected invalid_request for inverted range, got %v", err)
	}
	f, err = svc.filterFor(customer, ListParams{To: "2024-06-01T10:00:00Z"})
	if err != nil || f.Until == nil || !f.Until.After(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("expected inclusive timestamp bound, got %v, %v", f.Until, err)
	}
}

func boolPtr(b bool) *bool { return &b }

func ExampleUnitPrice() {
	fmt.Println(UnitPrice(250, 20), UnitPrice(999, 33), UnitPrice(100, 100))
	// Output: 200 669 0
}
