package reviews

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
	"github.com/ariefcatur/go-marketplace/internal/paging"
	"github.com/ariefcatur/go-marketplace/internal/postgres"
)

const reviewColumns = `r.product_id, r.user_id, r.title, COALESCE(r.text, ''), r.rating, r.created_at, r.updated_at, u.name`

const reviewFrom = ` FROM reviews r JOIN users u ON u.id = r.user_id`

func scanReview(row pgx.Row) (Review, error) {
	var (
		r    Review
		name string
	)
	if err := row.Scan(&r.ProductID, &r.UserID, &r.Title, &r.Text, &r.Rating, &r.CreatedAt, &r.UpdatedAt, &name); err != nil {
		return Review{}, err
	}
	r.User = &Reviewer{ID: r.UserID, Name: name}
	return r, nil
}

type Filter struct {
	ProductID   string
	Rating      int
	ExcludeUser string
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) ProductOwner(ctx context.Context, productID string) (string, error) {
	var owner string
	err := r.DB.QueryRow(ctx, `SELECT owner_id FROM products WHERE id = $1`, productID).Scan(&owner)
	return owner, postgres.Translate(err, "product")
}

// Insert adds a review; a second review by the same user is a conflict.
func (r *Repo) Insert(ctx context.Context, rv Review) error {
	tag, err := r.DB.Exec(ctx, `
		INSERT INTO reviews(product_id, user_id, title, text, rating, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $6)
		ON CONFLICT (product_id, user_id) DO NOTHING`,
		rv.ProductID, rv.UserID, rv.Title, rv.Text, rv.Rating, rv.CreatedAt)
	if err != nil {
		return postgres.Translate(err, "review")
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("you have already reviewed this product")
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, productID, userID string) (Review, error) {
	rv, err := scanReview(r.DB.QueryRow(ctx,
		`SELECT `+reviewColumns+reviewFrom+` WHERE r.product_id = $1 AND r.user_id = $2`, productID, userID))
	return rv, postgres.Translate(err, "review")
}

func (r *Repo) Update(ctx context.Context, productID, userID string, req UpdateRequest, at time.Time) (Review, error) {
	q := &postgres.Query{}
	set := []string{"updated_at = " + q.Arg(at)}
	if req.Title != nil {
		set = append(set, "title = "+q.Arg(*req.Title))
	}
	if req.Text != nil {
		set = append(set, "text = NULLIF("+q.Arg(*req.Text)+", '')")
	}
	if req.Rating != nil {
		set = append(set, "rating = "+q.Arg(*req.Rating))
	}
	q.Where("product_id = " + q.Arg(productID))
	q.Where("user_id = " + q.Arg(userID))

	tag, err := r.DB.Exec(ctx, `UPDATE reviews SET `+strings.Join(set, ", ")+q.Clause(), q.Args()...)
	if err != nil {
		return Review{}, postgres.Translate(err, "review")
	}
	if tag.RowsAffected() == 0 {
		return Review{}, apperr.NotFound("review does not exist")
	}
	return r.Get(ctx, productID, userID)
}

func (r *Repo) Delete(ctx context.Context, productID, userID string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM reviews WHERE product_id = $1 AND user_id = $2`, productID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("review does not exist")
	}
	return nil
}

func (r *Repo) List(ctx context.Context, f Filter, plan paging.Plan) ([]Review, error) {
	q := &postgres.Query{}
	q.Where("r.product_id = " + q.Arg(f.ProductID))
	if f.Rating > 0 {
		q.Where("r.rating = " + q.Arg(f.Rating))
	}
	if f.ExcludeUser != "" {
		q.Where("r.user_id <> " + q.Arg(f.ExcludeUser))
	}
	q.Where(plan.Predicate(q.Arg))

	sql := `SELECT ` + reviewColumns + reviewFrom + q.Clause() +
		` ORDER BY ` + plan.OrderBy() + ` LIMIT ` + q.Arg(plan.Limit)
	rows, err := r.DB.Query(ctx, sql, q.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Review, 0, plan.Limit)
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}
