package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sundayezeilo/filelinks/internal/config"
	"github.com/sundayezeilo/filelinks/internal/httpx"
	"github.com/sundayezeilo/filelinks/internal/links"
)

// ReadinessChecker reports whether a backing service can take traffic.
type ReadinessChecker interface {
	CheckReady(ctx context.Context) error
}

// Server represents the HTTP server with all dependencies.
// It is also the web route adapter the links service registers its
// download route through.
type Server struct {
	config *config.Config
	logger *slog.Logger
	mux    *http.ServeMux
	server *http.Server

	metrics   *httpx.HTTPMetrics
	gatherer  prometheus.Gatherer
	limiter   *httpx.ClientLimiter
	readiness []ReadinessChecker
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithMetrics records request metrics and exposes gatherer on /metrics.
func WithMetrics(m *httpx.HTTPMetrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithDownloadLimiter rate limits routes added through AddRoute.
func WithDownloadLimiter(l *httpx.ClientLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithReadiness adds a check to GET /x/ready.
func WithReadiness(c ReadinessChecker) Option {
	return func(s *Server) { s.readiness = append(s.readiness, c) }
}

// New creates a new Server instance with its fixed routes registered.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		config: cfg,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the routes known at construction time.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /x/health", s.healthCheckHandler)
	s.mux.HandleFunc("GET /x/ready", s.readinessHandler)

	if s.gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// MountAdmin registers the operator API behind bearer auth. Without
// ADMIN_API_TOKEN the API stays unmounted and MountAdmin reports false.
func (s *Server) MountAdmin(h *links.Handler) bool {
	token := s.config.Links.AdminAPIToken
	if token == "" {
		s.logger.Info("admin api disabled, ADMIN_API_TOKEN not set")
		return false
	}

	auth := httpx.BearerAuth(token)
	s.mux.Handle("POST /api/links", auth(http.HandlerFunc(h.CreateLink)))
	s.mux.Handle("GET /api/links/{token}", auth(http.HandlerFunc(h.GetLink)))
	s.mux.Handle("DELETE /api/links/{token}", auth(http.HandlerFunc(h.DeleteLink)))
	s.mux.Handle("GET /api/users/{userID}/files/{fileID}/link", auth(http.HandlerFunc(h.LookupLink)))
	s.mux.Handle("PUT /api/sessions/{userID}/{connID}", auth(http.HandlerFunc(h.AttachSession)))
	s.mux.Handle("DELETE /api/sessions/{userID}/{connID}", auth(http.HandlerFunc(h.DetachSession)))
	return true
}

// IsEnabled reports whether the public web server is switched on.
func (s *Server) IsEnabled() bool {
	return s.config.Links.WebEnabled
}

// AddRoute registers handler for method and path. It reports false when the
// pattern is malformed or collides with an existing route.
func (s *Server) AddRoute(method, path string, handler http.HandlerFunc) (ok bool) {
	pattern := method + " " + path

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("failed to register route", "pattern", pattern, "error", fmt.Sprint(r))
			ok = false
		}
	}()

	var h http.Handler = handler
	if s.limiter != nil {
		h = httpx.RateLimit(s.limiter)(h)
	}
	s.mux.Handle(pattern, h)

	s.logger.Info("route registered", "pattern", pattern)
	return true
}

// BuildURL joins path onto the configured public base URL.
func (s *Server) BuildURL(path string) string {
	base := strings.TrimRight(s.config.Server.BaseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// FileNotFound writes the plain-text not-found page every failed download gets.
func (s *Server) FileNotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("File not found\n"))
}

// Handler returns the mux wrapped in the middleware stack.
func (s *Server) Handler() http.Handler {
	return s.applyMiddleware(s.mux)
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	// Listen for errors from the server
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting http server",
			"addr", s.server.Addr,
			"env", s.config.App.Environment,
		)
		serverErrors <- s.server.ListenAndServe()
	}()

	// Listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		s.logger.Info("received shutdown signal", "signal", sig.String())

	case <-ctx.Done():
		s.logger.Info("context cancelled, stopping server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		// Force close if graceful shutdown fails
		if closeErr := s.server.Close(); closeErr != nil {
			return fmt.Errorf("failed to close server: %w", closeErr)
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// applyMiddleware wraps the handler with middleware in the correct order.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	middlewares := []httpx.Middleware{
		httpx.Recovery(s.logger), // Outermost: catch panics
		httpx.RequestID,          // Add request ID
		httpx.Logger(s.logger),   // Log requests
		httpx.CORS(nil),          // CORS headers (allow all in dev)
	}
	if s.metrics != nil {
		// Innermost so the matched pattern is visible after the mux runs.
		middlewares = append(middlewares, httpx.Metrics(s.metrics))
	}

	h := httpx.Chain(middlewares...)(handler)
	if s.config.Observability.Enabled {
		h = otelhttp.NewHandler(h, "filelinks")
	}
	return h
}

// healthCheckHandler handles health check requests.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"service":     s.config.Observability.ServiceName,
		"version":     s.config.Observability.ServiceVersion,
		"web_enabled": s.IsEnabled(),
	})
}

// readinessHandler fails while any readiness check fails.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	for _, c := range s.readiness {
		if err := c.CheckReady(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "readiness check failed", "error", err.Error())
			httpx.WriteError(w, http.StatusServiceUnavailable, "not_ready", err.Error(), nil)
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded, forcing close")
			return s.server.Close()
		}
		return err
	}

	return nil
}
