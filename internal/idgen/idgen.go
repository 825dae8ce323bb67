// Package idgen mints identifiers for published download events.
package idgen

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator returns a new identifier on every call.
// Implementations are safe for concurrent use.
type Generator interface {
	NewID() (string, error)
}

/***************
 * Time-ordered
 ***************/

type timeOrdered struct {
	retries int
}

// TimeOrdered returns a Generator of UUIDv7 strings, so event ids sort by
// creation time. retries extra attempts are made when the clock source fails.
func TimeOrdered(retries int) Generator {
	if retries < 0 {
		retries = 0
	}
	return timeOrdered{retries: retries}
}

func (g timeOrdered) NewID() (string, error) {
	var last error
	for range g.retries + 1 {
		id, err := uuid.NewV7()
		if err == nil {
			return id.String(), nil
		}
		last = err
	}
	return "", fmt.Errorf("event id: uuid v7 failed after %d attempts: %w", g.retries+1, last)
}

/***************
 * Sequence
 ***************/

// Sequence yields prefix-1, prefix-2, ... It gives stable ids where events
// must be compared byte for byte.
type Sequence struct {
	prefix string
	n      atomic.Uint64
}

// NewSequence returns a Sequence starting at 1.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

func (s *Sequence) NewID() (string, error) {
	return s.prefix + "-" + strconv.FormatUint(s.n.Add(1), 10), nil
}
