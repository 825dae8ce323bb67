package links

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/sundayezeilo/filelinks/internal/errx"
	"github.com/sundayezeilo/filelinks/internal/scheduler"
	"github.com/sundayezeilo/filelinks/internal/stats"
	"github.com/sundayezeilo/filelinks/internal/users"
)

const (
	DefaultTTL       = 48 * time.Hour
	DefaultRoutePath = "/f/"

	evictTimeout  = 10 * time.Second
	recordTimeout = 30 * time.Second
)

// Service mints, resolves and expires temporary download links.
type Service interface {
	IsEnabled() bool
	Create(ctx context.Context, req CreateLinkRequest) (Link, error)
	Resolve(ctx context.Context, token string) (Link, error)
	Lookup(ctx context.Context, userID, fileID int64) (Link, error)
	Remove(ctx context.Context, token string) error
	RecordDownload(ctx context.Context, userID, bytes int64) error
	ServeDownload(w http.ResponseWriter, r *http.Request)
	Startup(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceConfig holds the service's collaborators and settings.
// Store, Codec, Router and Files are required.
type ServiceConfig struct {
	Store    Store
	Codec    TokenCodec
	Router   WebRouteAdapter
	Files    FileCatalog
	FS       afero.Fs // where file entry paths resolve; defaults to the OS filesystem
	Sessions SessionLookup
	Profiles ProfileLoader
	Stats    StatsSink
	Logger   *slog.Logger

	RoutePath  string        // default "/f/"
	DefaultTTL time.Duration // default 48h
	Now        func() time.Time
}

type service struct {
	store    Store
	codec    TokenCodec
	router   WebRouteAdapter
	files    FileCatalog
	fs       afero.Fs
	sessions SessionLookup
	profiles ProfileLoader
	stats    StatsSink
	logger   *slog.Logger

	routePath  string
	defaultTTL time.Duration
	now        func() time.Time

	timers *scheduler.Scheduler
	locks  *keyedMutex

	mu       sync.Mutex
	closing  bool
	inflight sync.WaitGroup
}

// NewService creates a new service instance.
func NewService(cfg ServiceConfig) (Service, error) {
	const op = "links.service.New"

	switch {
	case cfg.Store == nil:
		return nil, errx.E(op, errx.Invalid, errors.New("store is required"))
	case cfg.Codec == nil:
		return nil, errx.E(op, errx.Invalid, errors.New("codec is required"))
	case cfg.Router == nil:
		return nil, errx.E(op, errx.Invalid, errors.New("router is required"))
	case cfg.Files == nil:
		return nil, errx.E(op, errx.Invalid, errors.New("file catalog is required"))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "links")

	fs := cfg.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	var sink StatsSink = stats.Multi{}
	if cfg.Stats != nil {
		sink = cfg.Stats
	}

	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &service{
		store:      cfg.Store,
		codec:      cfg.Codec,
		router:     cfg.Router,
		files:      cfg.Files,
		fs:         fs,
		sessions:   cfg.Sessions,
		profiles:   cfg.Profiles,
		stats:      sink,
		logger:     logger,
		routePath:  normalizeRoutePath(cfg.RoutePath),
		defaultTTL: ttl,
		now:        now,
		locks:      newKeyedMutex(),
	}
	s.timers = scheduler.New(s.onExpire,
		scheduler.WithClock(now),
		scheduler.WithLogger(logger),
	)
	return s, nil
}

func normalizeRoutePath(p string) string {
	if p == "" {
		return DefaultRoutePath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func notEnabled(op string) error {
	return errx.E(op, errx.NotEnabled, errors.New("web server is not enabled"))
}

func (s *service) IsEnabled() bool {
	return s.router.IsEnabled()
}

func (s *service) buildURL(token string) string {
	return s.router.BuildURL(s.routePath + token)
}

// Create mints the token for the pair and stores (or refreshes) its expiry.
func (s *service) Create(ctx context.Context, req CreateLinkRequest) (Link, error) {
	const op = "links.service.Create"

	if !s.IsEnabled() {
		return Link{}, notEnabled(op)
	}
	if req.UserID < 0 || req.FileID < 0 {
		return Link{}, errx.E(op, errx.Invalid, errors.New("user and file ids must be non-negative"))
	}

	ttl := s.defaultTTL
	if req.TTL != nil {
		if *req.TTL < 0 {
			return Link{}, errx.E(op, errx.Invalid, fmt.Errorf("negative ttl %s", *req.TTL))
		}
		ttl = *req.TTL
	}

	token, err := s.codec.Encode(req.UserID, req.FileID)
	if err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}
	expireAt := s.now().Add(ttl)

	unlock := s.locks.Lock(token)
	defer unlock()

	if err := s.store.Upsert(ctx, token, expireAt); err != nil {
		return Link{}, errx.E(op, errx.Unavailable, err)
	}
	s.timers.Arm(token, expireAt)
	linksArmedTimers.Set(float64(s.timers.Len()))
	linksCreatedTotal.Inc()

	s.logger.InfoContext(ctx, "link created",
		"token", token,
		"user_id", req.UserID,
		"file_id", req.FileID,
		"expire_at", expireAt,
	)

	return Link{
		Token:    token,
		UserID:   req.UserID,
		FileID:   req.FileID,
		ExpireAt: expireAt,
		URL:      s.buildURL(token),
	}, nil
}

// Resolve returns the link for token if a non-expired record exists.
func (s *service) Resolve(ctx context.Context, token string) (Link, error) {
	const op = "links.service.Resolve"

	if !s.IsEnabled() {
		return Link{}, notEnabled(op)
	}

	userID, fileID, err := s.codec.Decode(token)
	if err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	expireAt, err := s.store.Get(ctx, token)
	if err != nil {
		if errx.Is(err, errx.NotFound) {
			return Link{}, errx.E(op, errx.Invalid, errors.New("invalid or unknown link"))
		}
		return Link{}, errx.E(op, errx.Unavailable, err)
	}

	// A row can outlive its expiry until the timer's eviction lands.
	if !expireAt.After(s.now()) {
		return Link{}, errx.E(op, errx.Invalid, errors.New("link expired"))
	}

	return Link{
		Token:    token,
		UserID:   userID,
		FileID:   fileID,
		ExpireAt: expireAt,
		URL:      s.buildURL(token),
	}, nil
}

// Lookup returns the existing link for a pair without refreshing it.
func (s *service) Lookup(ctx context.Context, userID, fileID int64) (Link, error) {
	const op = "links.service.Lookup"

	if !s.IsEnabled() {
		return Link{}, notEnabled(op)
	}

	token, err := s.codec.Encode(userID, fileID)
	if err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	link, err := s.Resolve(ctx, token)
	if err != nil {
		if errx.Is(err, errx.Invalid) {
			return Link{}, errx.E(op, errx.NotFound, err)
		}
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return link, nil
}

// Remove deletes the record for token and cancels its timer.
func (s *service) Remove(ctx context.Context, token string) error {
	const op = "links.service.Remove"

	if !s.IsEnabled() {
		return notEnabled(op)
	}
	if token == "" {
		return errx.E(op, errx.Invalid, errors.New("token cannot be empty"))
	}

	unlock := s.locks.Lock(token)
	defer unlock()

	s.timers.Cancel(token)
	linksArmedTimers.Set(float64(s.timers.Len()))

	if err := s.store.Delete(ctx, token); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	linksRemovedTotal.Inc()

	s.logger.InfoContext(ctx, "link removed", "token", token)
	return nil
}

// RecordDownload attributes a completed download to the user and the system.
func (s *service) RecordDownload(ctx context.Context, userID, bytes int64) error {
	const op = "links.service.RecordDownload"

	user, err := s.downloadingUser(ctx, userID)
	if err != nil {
		return errx.E(op, errx.KindOf(err), err)
	}

	increments := []struct {
		scope   stats.Scope
		counter string
		amount  int64
	}{
		{stats.User(user.ID), stats.DownloadCount, 1},
		{stats.User(user.ID), stats.DownloadBytes, bytes},
		{stats.System(), stats.DownloadCount, 1},
		{stats.System(), stats.DownloadBytes, bytes},
	}

	var errs []error
	for _, inc := range increments {
		if err := s.stats.Increment(ctx, inc.scope, inc.counter, inc.amount); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", inc.scope, inc.counter, err))
		}
	}
	if len(errs) > 0 {
		return errx.E(op, errx.Unavailable, errors.Join(errs...))
	}
	return nil
}

func (s *service) downloadingUser(ctx context.Context, userID int64) (users.User, error) {
	const op = "links.service.downloadingUser"

	if s.sessions != nil {
		if u, ok := s.sessions.ActiveSessionForUser(userID); ok {
			return u, nil
		}
	}
	if s.profiles == nil {
		return users.User{}, errx.E(op, errx.NotFound,
			fmt.Errorf("user %d is not connected and profiles are unavailable", userID))
	}
	return s.profiles.LoadUserProfile(ctx, userID)
}

// Startup rebuilds expiry timers from the store and registers the download route.
func (s *service) Startup(ctx context.Context) error {
	const op = "links.service.Startup"

	var armed int
	err := s.store.ScanAll(ctx, func(token string, expireAt time.Time) error {
		unlock := s.locks.Lock(token)
		defer unlock()

		// Already armed by a Create that landed after the scan read this row.
		if s.timers.Pending(token) {
			return nil
		}
		s.timers.Arm(token, expireAt)
		armed++
		return nil
	})
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	linksArmedTimers.Set(float64(s.timers.Len()))

	s.logger.InfoContext(ctx, "link timers rehydrated", "count", armed)

	if !s.IsEnabled() {
		s.logger.InfoContext(ctx, "web server not enabled, download route not registered")
		return nil
	}

	pattern := s.routePath + "{token}"
	if !s.router.AddRoute(http.MethodGet, pattern, s.ServeDownload) {
		return errx.E(op, errx.Internal, errors.New("failed adding route"))
	}

	s.logger.InfoContext(ctx, "download route registered", "pattern", pattern)
	return nil
}

// Shutdown abandons pending timers and waits for in-flight evictions and
// stats recordings. The store keeps every record for the next Startup.
func (s *service) Shutdown(ctx context.Context) error {
	const op = "links.service.Shutdown"

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	s.timers.Stop()
	linksArmedTimers.Set(0)

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errx.E(op, errx.Unavailable, ctx.Err())
	}
}

// begin registers background work unless shutdown has started.
func (s *service) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return false
	}
	s.inflight.Add(1)
	return true
}

// onExpire runs on the scheduler's timer goroutine.
func (s *service) onExpire(token string) {
	if !s.begin() {
		return
	}
	defer s.inflight.Done()

	s.evict(token)
}

func (s *service) evict(token string) {
	unlock := s.locks.Lock(token)
	defer unlock()

	// Re-armed by a Create between the timer firing and this lock.
	if s.timers.Pending(token) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), evictTimeout)
	defer cancel()

	if err := s.store.Delete(ctx, token); err != nil {
		s.logger.Error("failed to evict expired link",
			"token", token,
			"error", err.Error(),
			"error_kind", errx.KindOf(err),
		)
		return
	}
	linksEvictedTotal.Inc()
	linksArmedTimers.Set(float64(s.timers.Len()))

	s.logger.Debug("expired link evicted", "token", token)
}

// goBackground runs fn on a tracked goroutine.
func (s *service) goBackground(fn func()) bool {
	if !s.begin() {
		return false
	}
	go func() {
		defer s.inflight.Done()
		fn()
	}()
	return true
}
