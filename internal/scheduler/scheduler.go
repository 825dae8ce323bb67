// Package scheduler keeps at most one pending expiry timer per token and calls an
// eviction callback when a timer fires.
//
// The timer set is a cache of "when to evict", rebuilt from persistent storage on
// startup. Nothing outside this package reads or mutates it directly.
package scheduler

import (
	"log/slog"
	"sync"
	"time"
)

// Scheduler maps tokens to pending one-shot timers.
// It is safe for concurrent use.
type Scheduler struct {
	onExpire func(token string)
	now      func() time.Time
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	seq     uint64
	stopped bool
}

type entry struct {
	timer    *time.Timer
	gen      uint64
	expireAt time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the wall clock used to compute remaining time.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a Scheduler that calls onExpire(token) once per fired timer.
// onExpire runs on its own goroutine, never on the goroutine that called Arm.
func New(onExpire func(token string), opts ...Option) *Scheduler {
	s := &Scheduler{
		onExpire: onExpire,
		now:      time.Now,
		logger:   slog.Default(),
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")
	return s
}

// Arm schedules eviction of token at expireAt, superseding any timer already
// pending for it. An expireAt in the past is evicted on the next scheduling
// opportunity.
func (s *Scheduler) Arm(token string, expireAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if prev, ok := s.entries[token]; ok {
		prev.timer.Stop()
		delete(s.entries, token)
	}

	remaining := expireAt.Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}

	s.seq++
	gen := s.seq
	s.entries[token] = &entry{
		// AfterFunc always runs f on a new goroutine, including for a zero duration.
		timer:    time.AfterFunc(remaining, func() { s.fire(token, gen) }),
		gen:      gen,
		expireAt: expireAt,
	}

	s.logger.Debug("timer armed",
		"token", token,
		"expire_at", expireAt,
		"remaining", remaining,
	)
}

// Cancel stops the pending timer for token, if any, and reports whether one existed.
func (s *Scheduler) Cancel(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, token)
	return true
}

// Pending reports whether a timer is currently armed for token.
func (s *Scheduler) Pending(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[token]
	return ok
}

// ExpireAt returns the expiry the pending timer for token was armed with.
func (s *Scheduler) ExpireAt(token string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return time.Time{}, false
	}
	return e.expireAt, true
}

// Len returns the number of armed timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// Stop cancels every pending timer and makes later Arm calls no-ops.
// Abandoned timers are rebuilt from storage on the next start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, token)
	}
	s.stopped = true
}

// fire removes token from the live set and then invokes the eviction callback.
// A timer that was superseded after it started firing finds a newer generation
// in the map and does nothing.
func (s *Scheduler) fire(token string, gen uint64) {
	s.mu.Lock()
	e, ok := s.entries[token]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.entries, token)
	s.mu.Unlock()

	s.logger.Debug("timer fired", "token", token)

	if s.onExpire != nil {
		s.onExpire(token)
	}
}
