package reviews

import (
	"context"
	"strconv"
	"time"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
	"github.com/ariefcatur/go-marketplace/internal/auth"
	"github.com/ariefcatur/go-marketplace/internal/paging"
)

type Store interface {
	ProductOwner(ctx context.Context, productID string) (string, error)
	Insert(ctx context.Context, rv Review) error
	Get(ctx context.Context, productID, userID string) (Review, error)
	Update(ctx context.Context, productID, userID string, req UpdateRequest, at time.Time) (Review, error)
	Delete(ctx context.Context, productID, userID string) error
	List(ctx context.Context, f Filter, plan paging.Plan) ([]Review, error)
}

type Service struct {
	Store Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) Post(ctx context.Context, p *auth.Principal, productID string, req PostRequest) (Review, error) {
	if p == nil {
		return Review{}, apperr.Unauthorized()
	}
	if err := req.normalize(); err != nil {
		return Review{}, err
	}
	owner, err := s.Store.ProductOwner(ctx, productID)
	if err != nil {
		return Review{}, err
	}
	if owner == p.ID {
		return Review{}, apperr.InvalidRequest("you cannot review your own product")
	}
	rv := Review{
		ProductID: productID,
		UserID:    p.ID,
		Title:     req.Title,
		Text:      req.Text,
		Rating:    req.Rating,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.Store.Insert(ctx, rv); err != nil {
		return Review{}, err
	}
	return s.Store.Get(ctx, productID, p.ID)
}

// Update edits the caller's own review of productID.
func (s *Service) Update(ctx context.Context, p *auth.Principal, productID string, req UpdateRequest) (Review, error) {
	if p == nil {
		return Review{}, apperr.Unauthorized()
	}
	if err := req.normalize(); err != nil {
		return Review{}, err
	}
	return s.Store.Update(ctx, productID, p.ID, req, s.now().UTC().Truncate(time.Microsecond))
}

func (s *Service) Delete(ctx context.Context, p *auth.Principal, productID string) error {
	if p == nil {
		return apperr.Unauthorized()
	}
	return s.Store.Delete(ctx, productID, p.ID)
}

type ListParams struct {
	Limit  int
	Sort   string
	Cursor string
	Rating string
}

// ListResult is a page of other users' reviews; Self carries the caller's
// own review on the first page.
type ListResult struct {
	paging.Page[Review]
	Self *Review `json:"self,omitempty"`
}

func (s *Service) List(ctx context.Context, p *auth.Principal, productID string, lp ListParams) (ListResult, error) {
	f := Filter{ProductID: productID}
	if lp.Rating != "" {
		r, err := strconv.Atoi(lp.Rating)
		if err != nil || checkRating(r) != nil {
			return ListResult{}, apperr.InvalidRequest("rating must be between 1 and 5")
		}
		f.Rating = r
	}
	plan, err := Sorts.Plan(lp.Sort, lp.Cursor, lp.Limit)
	if err != nil {
		return ListResult{}, err
	}

	var res ListResult
	if p != nil {
		f.ExcludeUser = p.ID
		if plan.Cursor == nil {
			self, err := s.Store.Get(ctx, productID, p.ID)
			switch {
			case err == nil:
				if f.Rating == 0 || self.Rating == f.Rating {
					res.Self = &self
				}
			case !apperr.Is(err, apperr.CodeNotFound):
				return ListResult{}, err
			}
		}
	}
	items, err := s.Store.List(ctx, f, plan)
	if err != nil {
		return ListResult{}, err
	}
	res.Page = paging.NewPage(items, SortKey(plan.Sort.Field))
	return res, nil
}
