package filearea

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/filelinks/internal/errx"
)

// dbtx is the subset of *pgxpool.Pool used by the catalog.
type dbtx interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGCatalog reads file entries from the file_entries table.
type PGCatalog struct {
	db dbtx
}

// NewPGCatalog returns a catalog backed by db.
func NewPGCatalog(db dbtx) *PGCatalog {
	return &PGCatalog{db: db}
}

const loadFileEntrySQL = `
SELECT id, area_tag, file_name, file_path, byte_size, created_at
FROM file_entries
WHERE id = $1`

// LoadFileEntry returns the entry with the given id.
func (c *PGCatalog) LoadFileEntry(ctx context.Context, fileID int64) (Entry, error) {
	const op = "filearea.catalog.LoadFileEntry"

	var e Entry
	err := c.db.QueryRow(ctx, loadFileEntrySQL, fileID).Scan(
		&e.ID, &e.AreaTag, &e.FileName, &e.FilePath, &e.ByteSize, &e.CreatedAt,
	)
	if err != nil {
		return Entry{}, mapCatalogError(op, err)
	}
	return e, nil
}

const addFileEntrySQL = `
INSERT INTO file_entries (area_tag, file_name, file_path, byte_size)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`

// AddFileEntry registers a file and returns it with its assigned id.
func (c *PGCatalog) AddFileEntry(ctx context.Context, e Entry) (Entry, error) {
	const op = "filearea.catalog.AddFileEntry"

	if e.FileName == "" || e.FilePath == "" {
		return Entry{}, errx.E(op, errx.Invalid, errors.New("file name and path are required"))
	}
	if e.ByteSize < 0 {
		return Entry{}, errx.E(op, errx.Invalid, fmt.Errorf("negative byte size %d", e.ByteSize))
	}

	err := c.db.QueryRow(ctx, addFileEntrySQL, e.AreaTag, e.FileName, e.FilePath, e.ByteSize).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return Entry{}, mapCatalogError(op, err)
	}
	return e, nil
}

func mapCatalogError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errx.E(op, errx.NotFound, err)
	}
	return errx.E(op, errx.Unavailable, err)
}
