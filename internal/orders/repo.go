package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
	"github.com/ariefcatur/go-marketplace/internal/inventory"
	"github.com/ariefcatur/go-marketplace/internal/paging"
	"github.com/ariefcatur/go-marketplace/internal/postgres"
)

const orderColumns = `o.id, o.product_id, o.seller_id, o.customer_id, COALESCE(o.checkout_session_id, ''), o.address,
	o.status, o.quantity, o.unit_price, o.amount, o.ordered_at, o.estimated_delivery_at, o.delivered_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.ProductID, &o.SellerID, &o.CustomerID, &o.CheckoutSessionID, &o.Address,
		&o.Status, &o.Quantity, &o.UnitPrice, &o.Amount, &o.OrderedAt, &o.EstimatedDeliveryAt, &o.DeliveredAt)
	return o, err
}

// Filter narrows a listing. Empty fields do not filter.
type Filter struct {
	CustomerID string
	SellerID   string
	ProductID  string
	Status     Status
	From       *time.Time // inclusive
	Until      *time.Time // exclusive
}

type Repo struct {
	DB     *pgxpool.Pool
	Ledger *inventory.Ledger
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id))
	return o, postgres.Translate(err, "order")
}

func (r *Repo) List(ctx context.Context, f Filter, plan paging.Plan) ([]Order, error) {
	q := &postgres.Query{}
	if f.CustomerID != "" {
		q.Where("o.customer_id = " + q.Arg(f.CustomerID))
	}
	if f.SellerID != "" {
		q.Where("o.seller_id = " + q.Arg(f.SellerID))
	}
	if f.ProductID != "" {
		q.Where("o.product_id = " + q.Arg(f.ProductID))
	}
	if f.Status != "" {
		q.Where("o.status = " + q.Arg(string(f.Status)))
	}
	if f.From != nil {
		q.Where("o.ordered_at >= " + q.Arg(*f.From))
	}
	if f.Until != nil {
		q.Where("o.ordered_at < " + q.Arg(*f.Until))
	}
	q.Where(plan.Predicate(q.Arg))

	sql := `SELECT ` + orderColumns + ` FROM orders o` + q.Clause() +
		` ORDER BY ` + plan.OrderBy() + ` LIMIT ` + q.Arg(plan.Limit)
	rows, err := r.DB.Query(ctx, sql, q.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Order, 0, plan.Limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// LoadProduct reads the pricing snapshot of a product.
func LoadProduct(ctx context.Context, db postgres.DBTX, productID string) (ProductRef, error) {
	var p ProductRef
	err := db.QueryRow(ctx, `SELECT id, owner_id, title, price, discount FROM products WHERE id = $1`, productID).
		Scan(&p.ID, &p.OwnerID, &p.Title, &p.Price, &p.Discount)
	return p, postgres.Translate(err, "product")
}

// Insert writes a new order row.
func Insert(ctx context.Context, db postgres.DBTX, o Order) error {
	_, err := db.Exec(ctx, `
		INSERT INTO orders(id, product_id, seller_id, customer_id, checkout_session_id, address, status,
			quantity, unit_price, amount, ordered_at, estimated_delivery_at, delivered_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.ProductID, o.SellerID, o.CustomerID, o.CheckoutSessionID, o.Address, string(o.Status),
		o.Quantity, o.UnitPrice, o.Amount, o.OrderedAt, o.EstimatedDeliveryAt, o.DeliveredAt)
	return postgres.Translate(err, "order")
}

// Place reserves stock and inserts the order built by build in one
// transaction; either both happen or neither does.
func (r *Repo) Place(ctx context.Context, productID string, qty int, build func(ProductRef) (Order, error)) (Order, error) {
	var o Order
	err := postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		p, err := LoadProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if o, err = build(p); err != nil {
			return err
		}
		if _, err := r.Ledger.Reserve(ctx, tx, productID, qty); err != nil {
			return err
		}
		return Insert(ctx, tx, o)
	})
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// Transition moves a pending order to status to. The update is guarded on
// status = 'pending' so only one of several concurrent transitions wins;
// the losers see the winner's status. Cancelling releases the reserved stock
// in the same transaction.
func (r *Repo) Transition(ctx context.Context, id string, to Status, at time.Time) (Order, error) {
	var deliveredAt *time.Time
	if to == StatusDelivered {
		deliveredAt = &at
	}
	var o Order
	err := postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		var err error
		o, err = scanOrder(tx.QueryRow(ctx, `
			UPDATE orders o SET status = $2, delivered_at = COALESCE($3::timestamptz, o.delivered_at)
			WHERE o.id = $1 AND o.status = 'pending'
			RETURNING `+orderColumns, id, string(to), deliveredAt))
		if errors.Is(err, pgx.ErrNoRows) {
			var current string
			err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
			if err != nil {
				return postgres.Translate(err, "order")
			}
			return apperr.InvalidOrderState(current)
		}
		if err != nil {
			return err
		}
		if to == StatusCancelled {
			return r.Ledger.Release(ctx, tx, o.ProductID, o.Quantity)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// RecordSale writes the aggregate row once per order.
func (r *Repo) RecordSale(ctx context.Context, s Sale) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO sales(order_id, product_id, seller_id, quantity, amount, delivery_days, is_cancelled, sold_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (order_id) DO NOTHING`,
		s.OrderID, s.ProductID, s.SellerID, s.Quantity, s.Amount, s.DeliveryDays, s.Cancelled, s.SoldOn)
	return err
}
