// Package products is the seller catalogue: listing, editing and browsing
// products with keyset pagination.
package products

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
	"github.com/ariefcatur/go-marketplace/internal/paging"
)

type Category string

const (
	CategoryFruits     Category = "fruits"
	CategoryVegetables Category = "vegetables"
)

func (c Category) Valid() bool {
	return c == CategoryFruits || c == CategoryVegetables
}

const (
	maxTitle       = 200
	maxDescription = 200
	maxImage       = 200
	maxPrice       = 100000
	maxStock       = 10000

	// unverified sellers may list at most this many products
	unverifiedLimit = 10
)

type Owner struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Verified bool   `json:"is_verified"`
}

type Product struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Category    Category  `json:"category"`
	Price       int64     `json:"price"`
	Discount    int64     `json:"discount"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	Owner       *Owner    `json:"owner,omitempty"`
}

type CreateRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Category    Category `json:"category"`
	Price       int64    `json:"price"`
	Stock       *int     `json:"stock"`
	Discount    *int64   `json:"discount"`
}

func (r *CreateRequest) normalize() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	if err := checkText(r.Title, r.Description, r.Image); err != nil {
		return err
	}
	if r.Title == "" {
		return apperr.InvalidRequest("title is required")
	}
	if !r.Category.Valid() {
		return apperr.InvalidRequest("category must be fruits or vegetables")
	}
	if err := checkPrice(r.Price); err != nil {
		return err
	}
	if r.Stock == nil {
		one := 1
		r.Stock = &one
	}
	if *r.Stock < 1 || *r.Stock > maxStock {
		return apperr.InvalidRequest("stock must be between 1 and %d", maxStock)
	}
	if r.Discount == nil {
		var zero int64
		r.Discount = &zero
	}
	return checkDiscount(*r.Discount)
}

// UpdateRequest carries only the fields to change.
type UpdateRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Image       *string   `json:"image"`
	Category    *Category `json:"category"`
	Price       *int64    `json:"price"`
	Stock       *int      `json:"stock"`
	Discount    *int64    `json:"discount"`
}

func (r *UpdateRequest) empty() bool {
	return r.Title == nil && r.Description == nil && r.Image == nil && r.Category == nil &&
		r.Price == nil && r.Stock == nil && r.Discount == nil
}

func (r *UpdateRequest) normalize() error {
	if r.empty() {
		return apperr.InvalidRequest("at least one field must be specified to update a product")
	}
	var title, desc, image string
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		if t == "" {
			return apperr.InvalidRequest("title cannot be empty")
		}
		r.Title, title = &t, t
	}
	if r.Description != nil {
		d := strings.TrimSpace(*r.Description)
		r.Description, desc = &d, d
	}
	if r.Image != nil {
		image = *r.Image
	}
	if err := checkText(title, desc, image); err != nil {
		return err
	}
	if r.Category != nil && !r.Category.Valid() {
		return apperr.InvalidRequest("category must be fruits or vegetables")
	}
	if r.Price != nil {
		if err := checkPrice(*r.Price); err != nil {
			return err
		}
	}
	if r.Stock != nil && (*r.Stock < 0 || *r.Stock > maxStock) {
		return apperr.InvalidRequest("stock must be between 0 and %d", maxStock)
	}
	if r.Discount != nil {
		return checkDiscount(*r.Discount)
	}
	return nil
}

func checkText(title, desc, image string) error {
	switch {
	case utf8.RuneCountInString(title) > maxTitle:
		return apperr.InvalidRequest("title is too long")
	case utf8.RuneCountInString(desc) > maxDescription:
		return apperr.InvalidRequest("description is too long")
	case len(image) > maxImage:
		return apperr.InvalidRequest("image url is too long")
	}
	return nil
}

func checkPrice(p int64) error {
	if p < 1 || p > maxPrice {
		return apperr.InvalidRequest("price must be between 1 and %d", maxPrice)
	}
	return nil
}

func checkDiscount(d int64) error {
	if d < 0 || d > 100 {
		return apperr.InvalidRequest("discount must be between 0 and 100")
	}
	return nil
}

var (
	fieldCreatedAt = paging.Field{Name: "created_at", Column: "p.created_at", Kind: paging.KindTime}
	fieldTitle     = paging.Field{Name: "title", Column: "p.title", Kind: paging.KindString}
	fieldPrice     = paging.Field{Name: "price", Column: "p.price", Kind: paging.KindInt}
)

// Sorts is the product listing sort table. Titles compare bytewise (the
// column uses the "C" collation).
var Sorts = paging.Spec{
	Sorts: map[string]paging.Sort{
		"recent":     {Field: fieldCreatedAt, Dir: paging.Desc},
		"oldest":     {Field: fieldCreatedAt, Dir: paging.Asc},
		"title_asc":  {Field: fieldTitle, Dir: paging.Asc},
		"title_desc": {Field: fieldTitle, Dir: paging.Desc},
		"price_asc":  {Field: fieldPrice, Dir: paging.Asc},
		"price_desc": {Field: fieldPrice, Dir: paging.Desc},
	},
	Default:      "recent",
	IDColumn:     "p.id",
	MinLimit:     1,
	MaxLimit:     100,
	DefaultLimit: 20,
}

func SortKey(f paging.Field) func(Product) (paging.Value, string) {
	return func(p Product) (paging.Value, string) {
		switch f.Name {
		case "title":
			return paging.String(p.Title), p.ID
		case "price":
			return paging.Int(p.Price), p.ID
		default:
			return paging.Time(p.CreatedAt), p.ID
		}
	}
}
