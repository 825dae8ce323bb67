package links

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/filelinks/internal/errx"
)

// pgQuerier is the subset of *pgxpool.Pool the store needs.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type pgStore struct {
	db pgQuerier
}

// NewPGStore returns a Store over the file_web_serve table.
func NewPGStore(db pgQuerier) Store {
	return &pgStore{db: db}
}

const (
	upsertLinkSQL = `
INSERT INTO file_web_serve (token, expire_at)
VALUES ($1, $2)
ON CONFLICT (token) DO UPDATE SET expire_at = EXCLUDED.expire_at`

	getLinkSQL    = `SELECT expire_at FROM file_web_serve WHERE token = $1`
	deleteLinkSQL = `DELETE FROM file_web_serve WHERE token = $1`
	scanLinksSQL  = `SELECT token, expire_at FROM file_web_serve`
)

func mapStoreError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errx.E(op, errx.NotFound, err)
	}
	return errx.E(op, errx.Unavailable, err)
}

func (s *pgStore) Upsert(ctx context.Context, token string, expireAt time.Time) error {
	const op = "links.pg.Upsert"

	if _, err := s.db.Exec(ctx, upsertLinkSQL, token, expireAt.UTC()); err != nil {
		return mapStoreError(op, err)
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, token string) (time.Time, error) {
	const op = "links.pg.Get"

	var expireAt time.Time
	if err := s.db.QueryRow(ctx, getLinkSQL, token).Scan(&expireAt); err != nil {
		return time.Time{}, mapStoreError(op, err)
	}
	return expireAt, nil
}

func (s *pgStore) Delete(ctx context.Context, token string) error {
	const op = "links.pg.Delete"

	if _, err := s.db.Exec(ctx, deleteLinkSQL, token); err != nil {
		return mapStoreError(op, err)
	}
	return nil
}

func (s *pgStore) ScanAll(ctx context.Context, fn func(token string, expireAt time.Time) error) error {
	const op = "links.pg.ScanAll"

	rows, err := s.db.Query(ctx, scanLinksSQL)
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}

	var (
		token    string
		expireAt time.Time
	)
	_, err = pgx.ForEachRow(rows, []any{&token, &expireAt}, func() error {
		return fn(token, expireAt)
	})
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}
