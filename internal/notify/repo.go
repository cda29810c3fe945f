package notify

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-marketplace/internal/paging"
	"github.com/ariefcatur/go-marketplace/internal/postgres"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Insert(ctx context.Context, n Notification) error {
	var params *string
	if len(n.Params) > 0 {
		b, err := json.Marshal(n.Params)
		if err != nil {
			return err
		}
		s := string(b)
		params = &s
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO notifications(id, user_id, title, description, entity, params, type, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8)`,
		n.ID, n.UserID, n.Title, n.Description, n.Entity, params, n.Type, n.CreatedAt)
	return postgres.Translate(err, "notification")
}

func (r *Repo) List(ctx context.Context, userID string, plan paging.Plan) ([]Notification, error) {
	q := &postgres.Query{}
	q.Where("n.user_id = " + q.Arg(userID))
	q.Where(plan.Predicate(q.Arg))

	sql := `SELECT n.id, n.user_id, n.title, COALESCE(n.description, ''), n.entity, n.params, COALESCE(n.type, ''), n.created_at
		FROM notifications n` + q.Clause() + ` ORDER BY ` + plan.OrderBy() + ` LIMIT ` + q.Arg(plan.Limit)
	rows, err := r.DB.Query(ctx, sql, q.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Notification, 0, plan.Limit)
	for rows.Next() {
		var (
			n      Notification
			params *string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Description, &n.Entity, &params, &n.Type, &n.CreatedAt); err != nil {
			return nil, err
		}
		if params != nil && *params != "" {
			if err := json.Unmarshal([]byte(*params), &n.Params); err != nil {
				return nil, err
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Email resolves the mail address of a user for the relay.
func (r *Repo) Email(ctx context.Context, userID string) (string, error) {
	var email string
	err := r.DB.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	return email, postgres.Translate(err, "user")
}
