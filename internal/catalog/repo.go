package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"marketplace/internal/domain/catalog"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

// ListPosts returns seller posts, newest first. An empty subject means all subjects.
func (r *Repo) ListPosts(ctx context.Context, subject string) ([]catalog.Post, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, COALESCE(title, ''), COALESCE(content, ''), COALESCE(subject, ''),
		       COALESCE(seller_name, ''), COALESCE(seller_img, ''), COALESCE(major_municipality, ''),
		       COALESCE(user_id::text, ''), COALESCE(image_urls, ''),
		       COALESCE(price, 0)::text, COALESCE(price_id, ''), COALESCE(product_id, '')
		FROM sellerposts
		WHERE $1 = '' OR subject = $1
		ORDER BY id DESC
	`, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Post
	for rows.Next() {
		var p catalog.Post
		var price string
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Content, &p.Subject,
			&p.SellerName, &p.SellerImg, &p.MajorMunicipality,
			&p.UserID, &p.ImageURLs,
			&price, &p.PriceID, &p.ProductID,
		); err != nil {
			return nil, err
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("post %d price %q: %w", p.ID, price, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) ListSubjects(ctx context.Context) ([]catalog.Subject, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, COALESCE(category, '')
		FROM subject
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Subject
	for rows.Next() {
		var s catalog.Subject
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
