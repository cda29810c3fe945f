// Package reviews lets customers rate products, one review per product and
// customer.
package reviews

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
	"github.com/ariefcatur/go-marketplace/internal/paging"
)

type Reviewer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Review struct {
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Text      string    `json:"text,omitempty"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      *Reviewer `json:"user,omitempty"`
}

type PostRequest struct {
	Title  string `json:"title"`
	Text   string `json:"text"`
	Rating int    `json:"rating"`
}

func (r *PostRequest) normalize() error {
	r.Title, r.Text = strings.TrimSpace(r.Title), strings.TrimSpace(r.Text)
	if r.Title == "" || utf8.RuneCountInString(r.Title) > 100 {
		return apperr.InvalidRequest("title must be 1-100 characters")
	}
	if utf8.RuneCountInString(r.Text) > 500 {
		return apperr.InvalidRequest("review text must be at most 500 characters")
	}
	return checkRating(r.Rating)
}

type UpdateRequest struct {
	Title  *string `json:"title"`
	Text   *string `json:"text"`
	Rating *int    `json:"rating"`
}

func (r *UpdateRequest) normalize() error {
	if r.Title == nil && r.Text == nil && r.Rating == nil {
		return apperr.InvalidRequest("at least one field must be specified to update a review")
	}
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		if t == "" || utf8.RuneCountInString(t) > 100 {
			return apperr.InvalidRequest("title must be 1-100 characters")
		}
		r.Title = &t
	}
	if r.Text != nil {
		t := strings.TrimSpace(*r.Text)
		if utf8.RuneCountInString(t) > 500 {
			return apperr.InvalidRequest("review text must be at most 500 characters")
		}
		r.Text = &t
	}
	if r.Rating != nil {
		return checkRating(*r.Rating)
	}
	return nil
}

func checkRating(r int) error {
	if r < 1 || r > 5 {
		return apperr.InvalidRequest("rating must be between 1 and 5")
	}
	return nil
}

var (
	fieldCreatedAt = paging.Field{Name: "created_at", Column: "r.created_at", Kind: paging.KindTime}
	fieldRating    = paging.Field{Name: "rating", Column: "r.rating", Kind: paging.KindInt}
)

// Sorts pages reviews of one product; the reviewer id is unique within it.
var Sorts = paging.Spec{
	Sorts: map[string]paging.Sort{
		"desc":        {Field: fieldCreatedAt, Dir: paging.Desc},
		"asc":         {Field: fieldCreatedAt, Dir: paging.Asc},
		"rating_desc": {Field: fieldRating, Dir: paging.Desc},
		"rating_asc":  {Field: fieldRating, Dir: paging.Asc},
	},
	Default:      "desc",
	IDColumn:     "r.user_id",
	MinLimit:     1,
	MaxLimit:     100,
	DefaultLimit: 20,
}

func SortKey(f paging.Field) func(Review) (paging.Value, string) {
	return func(r Review) (paging.Value, string) {
		if f.Name == "rating" {
			return paging.Int(int64(r.Rating)), r.UserID
		}
		return paging.Time(r.CreatedAt), r.UserID
	}
}
