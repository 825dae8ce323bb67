package stats

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/filelinks/internal/errx"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGSink persists counters in the user_stats and system_stats tables.
type PGSink struct {
	db execer
}

// NewPGSink returns a sink backed by db.
func NewPGSink(db execer) *PGSink {
	return &PGSink{db: db}
}

const (
	incrementUserStatSQL = `
INSERT INTO user_stats (user_id, name, value)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, name) DO UPDATE SET value = user_stats.value + EXCLUDED.value`

	incrementSystemStatSQL = `
INSERT INTO system_stats (name, value)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET value = system_stats.value + EXCLUDED.value`
)

// Increment adds amount to the counter in one statement.
func (s *PGSink) Increment(ctx context.Context, scope Scope, counter string, amount int64) error {
	const op = "stats.pg.Increment"

	if counter == "" {
		return errx.E(op, errx.Invalid, errors.New("counter name cannot be empty"))
	}

	var err error
	if scope.System {
		_, err = s.db.Exec(ctx, incrementSystemStatSQL, counter, amount)
	} else {
		_, err = s.db.Exec(ctx, incrementUserStatSQL, scope.UserID, counter, amount)
	}
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}
