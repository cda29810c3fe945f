package products

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
	"github.com/ariefcatur/go-marketplace/internal/auth"
	"github.com/ariefcatur/go-marketplace/internal/paging"
)

type Store interface {
	Create(ctx context.Context, p Product) error
	Get(ctx context.Context, id string) (Product, error)
	CountByOwner(ctx context.Context, ownerID string) (int, error)
	Update(ctx context.Context, id string, req UpdateRequest) (Product, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter, plan paging.Plan) ([]Product, error)
}

type Service struct {
	Store Store
	Log   logrus.FieldLogger
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) Create(ctx context.Context, p *auth.Principal, req CreateRequest) (Product, error) {
	if p == nil {
		return Product{}, apperr.Unauthorized()
	}
	if p.IsAdmin() {
		return Product{}, apperr.InvalidRequest("administrators cannot list products")
	}
	if err := req.normalize(); err != nil {
		return Product{}, err
	}
	if !p.Verified {
		n, err := s.Store.CountByOwner(ctx, p.ID)
		if err != nil {
			return Product{}, err
		}
		if n >= unverifiedLimit {
			return Product{}, apperr.InvalidRequest("unverified sellers cannot list more than %d products", unverifiedLimit)
		}
	}

	prod := Product{
		ID:          uuid.NewString(),
		OwnerID:     p.ID,
		Title:       req.Title,
		Description: req.Description,
		Image:       req.Image,
		Category:    req.Category,
		Price:       req.Price,
		Discount:    *req.Discount,
		Stock:       *req.Stock,
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.Store.Create(ctx, prod); err != nil {
		return Product{}, err
	}
	return s.Store.Get(ctx, prod.ID)
}

func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	return s.Store.Get(ctx, id)
}

// owned loads a product the caller may edit.
func (s *Service) owned(ctx context.Context, p *auth.Principal, id string) (Product, error) {
	if p == nil {
		return Product{}, apperr.Unauthorized()
	}
	prod, err := s.Store.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if !p.IsAdmin() && prod.OwnerID != p.ID {
		return Product{}, apperr.Forbidden("only the owner or an administrator can change this product")
	}
	return prod, nil
}

func (s *Service) Update(ctx context.Context, p *auth.Principal, id string, req UpdateRequest) (Product, error) {
	if p == nil {
		return Product{}, apperr.Unauthorized()
	}
	if err := req.normalize(); err != nil {
		return Product{}, err
	}
	if _, err := s.owned(ctx, p, id); err != nil {
		return Product{}, err
	}
	return s.Store.Update(ctx, id, req)
}

func (s *Service) Delete(ctx context.Context, p *auth.Principal, id string) error {
	if _, err := s.owned(ctx, p, id); err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	s.Log.WithFields(logrus.Fields{"product_id": id, "by": p.ID}).Info("product deleted")
	return nil
}

type ListParams struct {
	Limit    int
	Sort     string
	Cursor   string
	Query    string
	Owner    string
	Resource string // "self" lists the caller's own products
	Category string
	PriceGTE int64
	PriceLTE int64
}

func (s *Service) List(ctx context.Context, p *auth.Principal, lp ListParams) (paging.Page[Product], error) {
	f := Filter{Query: lp.Query, OwnerID: lp.Owner, PriceGTE: lp.PriceGTE, PriceLTE: lp.PriceLTE}
	switch lp.Resource {
	case "":
	case "self":
		if p == nil {
			return paging.Page[Product]{}, apperr.Unauthorized()
		}
		f.OwnerID = p.ID
	default:
		return paging.Page[Product]{}, apperr.InvalidRequest("resource must be self")
	}
	if lp.Category != "" {
		f.Category = Category(lp.Category)
		if !f.Category.Valid() {
			return paging.Page[Product]{}, apperr.InvalidRequest("category must be fruits or vegetables")
		}
	}
	if f.PriceGTE < 0 || f.PriceLTE < 0 {
		return paging.Page[Product]{}, apperr.InvalidRequest("price bounds cannot be negative")
	}

	plan, err := Sorts.Plan(lp.Sort, lp.Cursor, lp.Limit)
	if err != nil {
		return paging.Page[Product]{}, err
	}
	items, err := s.Store.List(ctx, f, plan)
	if err != nil {
		return paging.Page[Product]{}, err
	}
	return paging.NewPage(items, SortKey(plan.Sort.Field)), nil
}
