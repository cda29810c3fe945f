// Package inventory owns every write to products.stock. Reservations are a
// single conditional decrement so concurrent buyers can never drive stock
// below zero, whatever the isolation level.
package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-marketplace/internal/apperr"
	"github.com/ariefcatur/go-marketplace/internal/postgres"
)

type Ledger struct {
	Log logrus.FieldLogger
}

// Reserve takes qty units of productID and returns the stock left. It runs
// on db, normally the caller's transaction, so the decrement commits or rolls
// back together with the order row.
func (l *Ledger) Reserve(ctx context.Context, db postgres.DBTX, productID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, apperr.InvalidRequest("quantity must be positive")
	}
	var remaining int
	err := db.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
		RETURNING stock`, productID, qty).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	var (
		title string
		stock int
	)
	err = db.QueryRow(ctx, `SELECT title, stock FROM products WHERE id = $1`, productID).Scan(&title, &stock)
	if err != nil {
		return 0, postgres.Translate(err, "product")
	}
	return 0, apperr.InsufficientStock("only %d of %q left in stock", stock, title)
}

// Release returns qty units to productID. A product deleted in the meantime
// is not an error: its orders are gone with it.
func (l *Ledger) Release(ctx context.Context, db postgres.DBTX, productID string, qty int) error {
	if qty <= 0 {
		return apperr.InvalidRequest("quantity must be positive")
	}
	tag, err := db.Exec(ctx, `UPDATE products SET stock = stock + $2 WHERE id = $1`, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		l.Log.WithFields(logrus.Fields{"product_id": productID, "qty": qty}).Warn("release skipped, product no longer exists")
	}
	return nil
}

// Restock sets an absolute stock level, as a seller edit does.
func (l *Ledger) Restock(ctx context.Context, db postgres.DBTX, productID string, stock int) error {
	if stock < 0 {
		return apperr.InvalidRequest("stock cannot be negative")
	}
	tag, err := db.Exec(ctx, `UPDATE products SET stock = $2 WHERE id = $1`, productID, stock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("product does not exist")
	}
	return nil
}
