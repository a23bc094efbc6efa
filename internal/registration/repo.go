package registration

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace/internal/domain/profile"
)

var ErrNoProfile = errors.New("profile not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Profile(ctx context.Context, userID string) (profile.Profile, error) {
	var p profile.Profile
	err := r.db.QueryRow(ctx, `
		SELECT user_id::text, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(email, '')
		FROM profiles
		WHERE user_id = $1
		LIMIT 1
	`, userID).Scan(&p.UserID, &p.FirstName, &p.LastName, &p.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return profile.Profile{}, ErrNoProfile
	}
	return p, err
}

func (r *Repo) Countries(ctx context.Context) ([]profile.Country, error) {
	rows, err := r.db.Query(ctx, `SELECT id, country FROM country ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (profile.Country, error) {
		var c profile.Country
		err := row.Scan(&c.ID, &c.Country)
		return c, err
	})
}

func (r *Repo) Municipalities(ctx context.Context) ([]profile.Municipality, error) {
	rows, err := r.db.Query(ctx, `SELECT id, major_municipality FROM major_municipality ORDER BY major_municipality ASC`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (profile.Municipality, error) {
		var m profile.Municipality
		err := row.Scan(&m.ID, &m.Name)
		return m, err
	})
}
