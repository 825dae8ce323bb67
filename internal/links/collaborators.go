package links

import (
	"context"
	"net/http"

	"github.com/sundayezeilo/filelinks/internal/filearea"
	"github.com/sundayezeilo/filelinks/internal/stats"
	"github.com/sundayezeilo/filelinks/internal/users"
)

// TokenCodec maps (userID, fileID) pairs to opaque tokens and back.
type TokenCodec interface {
	Encode(userID, fileID int64) (string, error)
	Decode(token string) (userID, fileID int64, err error)
}

// WebRouteAdapter is the hosting web server as seen by the service.
type WebRouteAdapter interface {
	IsEnabled() bool
	AddRoute(method, path string, handler http.HandlerFunc) bool
	BuildURL(path string) string
	FileNotFound(w http.ResponseWriter, r *http.Request)
}

// FileCatalog loads file metadata by id.
type FileCatalog interface {
	LoadFileEntry(ctx context.Context, fileID int64) (filearea.Entry, error)
}

// entryInvalidator is implemented by catalogs that cache entries.
type entryInvalidator interface {
	Invalidate(fileID int64)
}

// SessionLookup finds a user with a live terminal connection.
type SessionLookup interface {
	ActiveSessionForUser(userID int64) (users.User, bool)
}

// ProfileLoader loads a persisted user.
type ProfileLoader interface {
	LoadUserProfile(ctx context.Context, userID int64) (users.User, error)
}

// StatsSink accepts counter increments.
type StatsSink interface {
	Increment(ctx context.Context, scope stats.Scope, counter string, amount int64) error
}
