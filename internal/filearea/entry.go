// Package filearea looks up file-area entries: the metadata the board keeps for
// every uploaded file. Only the fields needed to serve a download are exposed.
package filearea

import (
	"context"
	"time"
)

// Entry describes a stored file.
type Entry struct {
	ID        int64
	AreaTag   string
	FileName  string
	FilePath  string // relative to the file root
	ByteSize  int64
	CreatedAt time.Time
}

// Catalog loads file entries by id.
type Catalog interface {
	LoadFileEntry(ctx context.Context, fileID int64) (Entry, error)
}
