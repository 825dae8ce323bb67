package links

import (
	"context"
	"time"
)

// Store persists link expiry records keyed by token. A record exists iff the
// link may be served; the only update path is a full replace.
type Store interface {
	// Upsert inserts or replaces the record for token.
	Upsert(ctx context.Context, token string, expireAt time.Time) error
	// Get returns the stored expiry, or an errx.NotFound error.
	Get(ctx context.Context, token string) (time.Time, error)
	// Delete removes the record. Deleting a missing token is not an error.
	Delete(ctx context.Context, token string) error
	// ScanAll calls fn once per stored record. A non-nil error from fn stops the scan.
	ScanAll(ctx context.Context, fn func(token string, expireAt time.Time) error) error
}
