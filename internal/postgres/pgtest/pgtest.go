// Package pgtest opens the integration-test database. Tests skip when
// TEST_POSTGRES_DSN is unset or unreachable.
//
// Packages run in parallel against the same database, so tables are never
// truncated; every fixture gets fresh uuids and tests scope their queries to
// the users they created.
package pgtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-marketplace/internal/postgres"
)

func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := postgres.Connect(ctx, dsn)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// User inserts a user row and returns its id.
func User(t *testing.T, db *pgxpool.Pool, role string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(context.Background(),
		`INSERT INTO users(id, name, email, role, is_verified) VALUES ($1, $2, $3, $4, TRUE)`,
		id, "user-"+id[:8], id[:8]+"@example.com", role)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

// Product inserts a product owned by ownerID and returns its id.
func Product(t *testing.T, db *pgxpool.Pool, ownerID string, price, discount, stock int) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(context.Background(),
		`INSERT INTO products(id, owner_id, title, category, price, discount, stock) VALUES ($1, $2, $3, 'fruits', $4, $5, $6)`,
		id, ownerID, "product-"+id[:8], price, discount, stock)
	if err != nil {
		t.Fatalf("insert product: %v", err)
	}
	return id
}

// Stock reads the current stock of a product.
func Stock(t *testing.T, db *pgxpool.Pool, productID string) int {
	t.Helper()
	var stock int
	if err := db.QueryRow(context.Background(), `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock); err != nil {
		t.Fatalf("read stock: %v", err)
	}
	return stock
}
