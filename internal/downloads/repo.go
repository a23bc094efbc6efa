package downloads

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace/internal/domain/order"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) IsClient(ctx context.Context, userID string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM clientview WHERE user_id = $1)
	`, userID).Scan(&ok)
	return ok, err
}

func (r *Repo) Orders(ctx context.Context, customerID string) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT order_number::text, customer_id::text, COALESCE(order_status, false), created_at
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		var o order.Order
		if err := rows.Scan(&o.OrderNumber, &o.CustomerID, &o.OrderStatus, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
