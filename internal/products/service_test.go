package products

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
	"github.com/ariefcatur/go-marketplace/internal/auth"
	"github.com/ariefcatur/go-marketplace/internal/paging"
)

type fakeStore struct {
	mu   sync.Mutex
	rows map[string]Product
}

func newFakeStore() *fakeStore { return &fakeStore{rows: map[string]Product{}} }

func (f *fakeStore) Create(ctx context.Context, p Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[p.ID] = p
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return Product{}, apperr.NotFound("product does not exist")
	}
	return p, nil
}

func (f *fakeStore) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.rows {
		if p.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Update(ctx context.Context, id string, req UpdateRequest) (Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.rows[id]
	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.Discount != nil {
		p.Discount = *req.Discount
	}
	f.rows[id] = p
	return p, nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeStore) List(ctx context.Context, flt Filter, plan paging.Plan) ([]Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := SortKey(plan.Sort.Field)
	var out []Product
	for _, p := range f.rows {
		switch {
		case flt.OwnerID != "" && p.OwnerID != flt.OwnerID,
			flt.Category != "" && p.Category != flt.Category,
			flt.Query != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(flt.Query)),
			flt.PriceGTE > 0 && p.Price < flt.PriceGTE,
			flt.PriceLTE > 0 && p.Price > flt.PriceLTE:
			continue
		}
		if v, id := key(p); plan.After(v, id) {
			out = append(out, p)
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

var (
	verified   = &auth.Principal{ID: "seller", Verified: true}
	unverified = &auth.Principal{ID: "newbie"}
	other      = &auth.Principal{ID: "other", Verified: true}
	admin      = &auth.Principal{ID: "admin", Role: auth.RoleAdmin}
)

func newService() (*Service, *fakeStore) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	store := newFakeStore()
	return &Service{Store: store, Log: l}, store
}

func intPtr(i int) *int       { return &i }
func i64Ptr(i int64) *int64   { return &i }
func strPtr(s string) *string { return &s }

func TestCreate(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	p, err := svc.Create(ctx, verified, CreateRequest{Title: "  Apples ", Category: CategoryFruits, Price: 250})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if p.Title != "Apples" || p.Stock != 1 || p.Discount != 0 || p.OwnerID != verified.ID {
		t.Errorf("unexpected product %+v", p)
	}

	tests := []struct {
		name string
		p    *auth.Principal
		req  CreateRequest
		code apperr.Code
	}{
		{"anonymous", nil, CreateRequest{Title: "x", Category: CategoryFruits, Price: 1}, apperr.CodeUnauthorized},
		{"admin", admin, CreateRequest{Title: "x", Category: CategoryFruits, Price: 1}, apperr.CodeInvalidRequest},
		{"no title", verified, CreateRequest{Category: CategoryFruits, Price: 1}, apperr.CodeInvalidRequest},
		{"bad category", verified, CreateRequest{Title: "x", Category: "meat", Price: 1}, apperr.CodeInvalidRequest},
		{"free", verified, CreateRequest{Title: "x", Category: CategoryFruits, Price: 0}, apperr.CodeInvalidRequest},
		{"too pricey", verified, CreateRequest{Title: "x", Category: CategoryFruits, Price: maxPrice + 1}, apperr.CodeInvalidRequest},
		{"zero stock", verified, CreateRequest{Title: "x", Category: CategoryFruits, Price: 1, Stock: intPtr(0)}, apperr.CodeInvalidRequest},
		{"discount", verified, CreateRequest{Title: "x", Category: CategoryFruits, Price: 1, Discount: i64Ptr(101)}, apperr.CodeInvalidRequest},
		{"long title", verified, CreateRequest{Title: strings.Repeat("a", maxTitle+1), Category: CategoryFruits, Price: 1}, apperr.CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.p, tt.req); !apperr.Is(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestUnverifiedSellerLimit(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	req := CreateRequest{Title: "x", Category: CategoryVegetables, Price: 10}
	for i := 0; i < unverifiedLimit; i++ {
		if _, err := svc.Create(ctx, unverified, req); err != nil {
			t.Fatalf("product %d: %v", i, err)
		}
	}
	if _, err := svc.Create(ctx, unverified, req); !apperr.Is(err, apperr.CodeInvalidRequest) {
		t.Errorf("expected the limit to apply, got %v", err)
	}
}

func TestUpdateAndDeleteEntitlement(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	p, _ := svc.Create(ctx, verified, CreateRequest{Title: "Apples", Category: CategoryFruits, Price: 250})

	if _, err := svc.Update(ctx, other, p.ID, UpdateRequest{Price: i64Ptr(10)}); !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if _, err := svc.Update(ctx, verified, p.ID, UpdateRequest{}); !apperr.Is(err, apperr.CodeInvalidRequest) {
		t.Errorf("expected invalid_request for empty update, got %v", err)
	}
	if _, err := svc.Update(ctx, verified, p.ID, UpdateRequest{Title: strPtr("  ")}); !apperr.Is(err, apperr.CodeInvalidRequest) {
		t.Errorf("expected invalid_request for blank title, got %v", err)
	}
	got, err := svc.Update(ctx, admin, p.ID, UpdateRequest{Stock: intPtr(0), Discount: i64Ptr(50)})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if got.Stock != 0 || got.Discount != 50 {
		t.Errorf("unexpected product %+v", got)
	}
	if _, err := svc.Update(ctx, verified, "missing", UpdateRequest{Price: i64Ptr(1)}); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}

	if err := svc.Delete(ctx, other, p.ID); !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if err := svc.Delete(ctx, verified, p.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := svc.Get(ctx, p.ID); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("expected not_found after delete, got %v", err)
	}
}

func TestListStableAcrossTies(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	same := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("p%02d", i)
		store.rows[id] = Product{ID: id, OwnerID: "seller", Title: "Same", Category: CategoryFruits, Price: 100, CreatedAt: same}
	}
	store.rows["x"] = Product{ID: "x", OwnerID: "other", Title: "Mango", Category: CategoryFruits, Price: 300, CreatedAt: same.Add(time.Hour)}

	for key := range Sorts.Sorts {
		seen := map[string]bool{}
		cursor := ""
		for {
			page, err := svc.List(ctx, nil, ListParams{Sort: key, Limit: 3, Cursor: cursor})
			if err != nil {
				t.Fatalf("%s: %v", key, err)
			}
			for _, p := range page.Items {
				if seen[p.ID] {
					t.Fatalf("%s: %s repeated", key, p.ID)
				}
				seen[p.ID] = true
			}
			if page.Cursor == "" {
				break
			}
			cursor = page.Cursor
		}
		if len(seen) != 11 {
			t.Errorf("%s: expected 11 products, got %d", key, len(seen))
		}
	}

	page, err := svc.List(ctx, verified, ListParams{Resource: "self", Limit: 100})
	if err != nil || len(page.Items) != 10 {
		t.Errorf("resource=self: %d items, %v", len(page.Items), err)
	}
	page, err = svc.List(ctx, nil, ListParams{Query: "man", PriceGTE: 200})
	if err != nil || len(page.Items) != 1 || page.Items[0].ID != "x" {
		t.Errorf("filters: %+v, %v", page.Items, err)
	}
	if _, err := svc.List(ctx, nil, ListParams{Resource: "self"}); !apperr.Is(err, apperr.CodeUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
	if _, err := svc.List(ctx, nil, ListParams{Category: "meat"}); !apperr.Is(err, apperr.CodeInvalidRequest) {
		t.Errorf("expected invalid_request, got %v", err)
	}
	priceCursor := paging.Encode(paging.Cursor{ID: "x", Value: paging.Int(5)})
	if _, err := svc.List(ctx, nil, ListParams{Sort: "title_asc", Cursor: priceCursor}); !apperr.Is(err, apperr.CodeInvalidCursor) {
		t.Errorf("expected invalid_cursor, got %v", err)
	}
}
