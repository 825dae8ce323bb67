// Package stats records download counters for users and for the whole system.
//
// A Sink only promises to add amount to a named counter. Storage, export and
// fan-out are left to the implementations in this package.
package stats

import (
	"context"
	"errors"
	"strconv"
)

// Counter names used by the download path.
const (
	DownloadCount = "dl_total_count"
	DownloadBytes = "dl_total_bytes"
)

// Scope selects whose counter is incremented.
type Scope struct {
	UserID int64
	System bool
}

// User returns the scope of a single user's counters.
func User(userID int64) Scope { return Scope{UserID: userID} }

// System returns the board-wide scope.
func System() Scope { return Scope{System: true} }

func (s Scope) String() string {
	if s.System {
		return "system"
	}
	return "user:" + strconv.FormatInt(s.UserID, 10)
}

// Sink accepts counter increments.
type Sink interface {
	Increment(ctx context.Context, scope Scope, counter string, amount int64) error
}

// Multi fans an increment out to every sink and joins their errors.
type Multi []Sink

// Increment calls Increment on every sink, even after one fails.
func (m Multi) Increment(ctx context.Context, scope Scope, counter string, amount int64) error {
	var errs []error
	for _, s := range m {
		if err := s.Increment(ctx, scope, counter, amount); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
