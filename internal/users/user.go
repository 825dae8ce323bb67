// Package users resolves board users for download accounting: first from the
// set of live terminal sessions, then from persisted profiles.
package users

import "time"

// User is the part of a board user needed to attribute downloads.
type User struct {
	ID        int64
	Username  string
	CreatedAt time.Time
}
