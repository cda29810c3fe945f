package products

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-marketplace/internal/inventory"
	"github.com/ariefcatur/go-marketplace/internal/paging"
	"github.com/ariefcatur/go-marketplace/internal/postgres"
)

const productColumns = `p.id, p.owner_id, p.title, COALESCE(p.description, ''), COALESCE(p.image, ''), p.category,
	p.price, p.discount, p.stock, p.created_at, u.name, u.is_verified`

const productFrom = ` FROM products p JOIN users u ON u.id = p.owner_id`

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		owner Owner
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Image, &p.Category,
		&p.Price, &p.Discount, &p.Stock, &p.CreatedAt, &owner.Name, &owner.Verified)
	if err != nil {
		return Product{}, err
	}
	owner.ID = p.OwnerID
	p.Owner = &owner
	return p, nil
}

// Filter narrows a listing. Zero values do not filter.
type Filter struct {
	Query    string
	OwnerID  string
	Category Category
	PriceGTE int64
	PriceLTE int64
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type Repo struct {
	DB     *pgxpool.Pool
	Ledger *inventory.Ledger
}

func (r *Repo) Create(ctx context.Context, p Product) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, owner_id, title, description, image, category, price, discount, stock, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10)`,
		p.ID, p.OwnerID, p.Title, p.Description, p.Image, string(p.Category), p.Price, p.Discount, p.Stock, p.CreatedAt)
	return postgres.Translate(err, "product")
}

func (r *Repo) Get(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+productFrom+` WHERE p.id = $1`, id))
	return p, postgres.Translate(err, "product")
}

func (r *Repo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT count(*) FROM products WHERE owner_id = $1`, ownerID).Scan(&n)
	return n, err
}

// Update applies the non-nil fields of req. Stock goes through the ledger.
func (r *Repo) Update(ctx context.Context, id string, req UpdateRequest) (Product, error) {
	var p Product
	err := postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		q := &postgres.Query{}
		var set []string
		add := func(col string, v any) { set = append(set, col+" = "+q.Arg(v)) }
		if req.Title != nil {
			add("title", *req.Title)
		}
		if req.Description != nil {
			add("description", *req.Description)
		}
		if req.Image != nil {
			add("image", *req.Image)
		}
		if req.Category != nil {
			add("category", string(*req.Category))
		}
		if req.Price != nil {
			add("price", *req.Price)
		}
		if req.Discount != nil {
			add("discount", *req.Discount)
		}
		if len(set) > 0 {
			q.Where("id = " + q.Arg(id))
			tag, err := tx.Exec(ctx, `UPDATE products SET `+strings.Join(set, ", ")+q.Clause(), q.Args()...)
			if err != nil {
				return postgres.Translate(err, "product")
			}
			if tag.RowsAffected() == 0 {
				return postgres.Translate(pgx.ErrNoRows, "product")
			}
		}
		if req.Stock != nil {
			if err := r.Ledger.Restock(ctx, tx, id, *req.Stock); err != nil {
				return err
			}
		}
		var err error
		p, err = scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+productFrom+` WHERE p.id = $1`, id))
		return postgres.Translate(err, "product")
	})
	return p, err
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return postgres.Translate(pgx.ErrNoRows, "product")
	}
	return nil
}

func (r *Repo) List(ctx context.Context, f Filter, plan paging.Plan) ([]Product, error) {
	q := &postgres.Query{}
	if f.Query != "" {
		q.Where("p.title ILIKE " + q.Arg("%"+likeEscaper.Replace(f.Query)+"%"))
	}
	if f.OwnerID != "" {
		q.Where("p.owner_id = " + q.Arg(f.OwnerID))
	}
	if f.Category != "" {
		q.Where("p.category = " + q.Arg(string(f.Category)))
	}
	if f.PriceGTE > 0 {
		q.Where("p.price >= " + q.Arg(f.PriceGTE))
	}
	if f.PriceLTE > 0 {
		q.Where("p.price <= " + q.Arg(f.PriceLTE))
	}
	q.Where(plan.Predicate(q.Arg))

	sql := `SELECT ` + productColumns + productFrom + q.Clause() +
		` ORDER BY ` + plan.OrderBy() + ` LIMIT ` + q.Arg(plan.Limit)
	rows, err := r.DB.Query(ctx, sql, q.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Product, 0, plan.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
