package checkout

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
	"github.com/ariefcatur/go-marketplace/internal/inventory"
	"github.com/ariefcatur/go-marketplace/internal/orders"
	"github.com/ariefcatur/go-marketplace/internal/postgres"
)

type Repo struct {
	DB     *pgxpool.Pool
	Ledger *inventory.Ledger
}

func (r *Repo) Products(ctx context.Context, ids []string) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, owner_id, title, COALESCE(description, ''), COALESCE(image, ''), price, discount, stock
		FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Product, 0, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.Image, &p.Price, &p.Discount, &p.Stock); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Apply claims sessionID and turns its lines into orders in one transaction.
// The claim is a primary-key insert: a second delivery, even a concurrent
// one, waits for the first to commit and then finds the row taken.
func (r *Repo) Apply(ctx context.Context, sessionID string, in Intent, at time.Time) (Result, error) {
	var res Result
	err := postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		res = Result{}
		tag, err := tx.Exec(ctx, `
			INSERT INTO checkout_sessions(session_id, customer_id, order_count, applied_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (session_id) DO NOTHING`, sessionID, in.CustomerID, len(in.Lines), at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			res.Replay = true
			return nil
		}

		for i, line := range in.Lines {
			o := OrderFor(sessionID, i, in, line, at)
			placed, err := r.applyLine(ctx, tx, &o)
			if err != nil {
				return err
			}
			if placed {
				res.Placed = append(res.Placed, o)
			} else {
				res.Rejected = append(res.Rejected, o)
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// applyLine reserves stock for o and writes it. A line that cannot be
// filled is stored as cancelled with stock untouched; a line whose product
// is gone cannot be stored at all.
func (r *Repo) applyLine(ctx context.Context, tx pgx.Tx, o *orders.Order) (bool, error) {
	if _, err := orders.LoadProduct(ctx, tx, o.ProductID); err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			o.Status = orders.StatusCancelled
			return false, nil
		}
		return false, err
	}

	_, err := r.Ledger.Reserve(ctx, tx, o.ProductID, o.Quantity)
	switch {
	case err == nil:
	case apperr.Is(err, apperr.CodeInsufficientStock):
		o.Status = orders.StatusCancelled
		return false, orders.Insert(ctx, tx, *o)
	default:
		return false, err
	}
	return true, orders.Insert(ctx, tx, *o)
}
