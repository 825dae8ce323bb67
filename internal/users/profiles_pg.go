package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/sundayezeilo/filelinks/internal/errx"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Profiles loads persisted users from the users table.
type Profiles struct {
	db querier
}

// NewProfiles returns a profile loader backed by db.
func NewProfiles(db querier) *Profiles {
	return &Profiles{db: db}
}

// LoadUserProfile returns the persisted user with the given id.
func (p *Profiles) LoadUserProfile(ctx context.Context, userID int64) (User, error) {
	const op = "users.profiles.LoadUserProfile"

	var u User
	err := p.db.QueryRow(ctx,
		`SELECT id, username, created_at FROM users WHERE id = $1`, userID,
	).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, errx.E(op, errx.NotFound, err)
		}
		return User{}, errx.E(op, errx.Unavailable, err)
	}
	return u, nil
}

// CreateUser inserts a user and returns it with its assigned id.
func (p *Profiles) CreateUser(ctx context.Context, username string) (User, error) {
	const op = "users.profiles.CreateUser"

	if username == "" {
		return User{}, errx.E(op, errx.Invalid, errors.New("username cannot be empty"))
	}

	u := User{Username: username}
	err := p.db.QueryRow(ctx,
		`INSERT INTO users (username) VALUES ($1) RETURNING id, created_at`, username,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return User{}, errx.E(op, errx.Unavailable, err)
	}
	return u, nil
}
