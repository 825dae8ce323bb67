package links

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sundayezeilo/filelinks/internal/errx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS file_web_serve (
	token     TEXT PRIMARY KEY NOT NULL,
	expire_at INTEGER NOT NULL
)`

// SQLiteStore keeps link records in a local SQLite file. Expiry is stored as
// unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// The driver serialises writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, token string, expireAt time.Time) error {
	const op = "links.sqlite.Upsert"

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO file_web_serve (token, expire_at) VALUES (?, ?)`,
		token, expireAt.UnixMilli(),
	)
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, token string) (time.Time, error) {
	const op = "links.sqlite.Get"

	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT expire_at FROM file_web_serve WHERE token = ?`, token,
	).Scan(&ms)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, errx.E(op, errx.NotFound, err)
		}
		return time.Time{}, errx.E(op, errx.Unavailable, err)
	}
	return time.UnixMilli(ms), nil
}

func (s *SQLiteStore) Delete(ctx context.Context, token string) error {
	const op = "links.sqlite.Delete"

	if _, err := s.db.ExecContext(ctx, `DELETE FROM file_web_serve WHERE token = ?`, token); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

// ScanAll reads every row before invoking fn so callbacks that write to the
// store do not contend with the open cursor on the single connection.
func (s *SQLiteStore) ScanAll(ctx context.Context, fn func(token string, expireAt time.Time) error) error {
	const op = "links.sqlite.ScanAll"

	type record struct {
		token    string
		expireAt time.Time
	}

	rows, err := s.db.QueryContext(ctx, `SELECT token, expire_at FROM file_web_serve`)
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}

	var records []record
	for rows.Next() {
		var (
			token string
			ms    int64
		)
		if err := rows.Scan(&token, &ms); err != nil {
			rows.Close()
			return errx.E(op, errx.Unavailable, err)
		}
		records = append(records, record{token, time.UnixMilli(ms)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return errx.E(op, errx.Unavailable, err)
	}
	rows.Close()

	for _, r := range records {
		if err := fn(r.token, r.expireAt); err != nil {
			return err
		}
	}
	return nil
}
