package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sundayezeilo/filelinks/internal/config"
	"github.com/sundayezeilo/filelinks/internal/httpx"
	"github.com/sundayezeilo/filelinks/internal/links"
	"github.com/sundayezeilo/filelinks/internal/users"
)

/***************
 * Helpers
 ***************/

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            "0",
			BaseURL:         "https://bbs.example.com/",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			IdleTimeout:     5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		App:           config.AppConfig{Environment: "test", LogLevel: "debug"},
		Observability: config.ObservabilityConfig{ServiceName: "filelinks", ServiceVersion: "test"},
		Links:         config.LinksConfig{WebEnabled: true, AdminAPIToken: "s3cret"},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func do(t *testing.T, h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// stubService answers every lookup with a fixed link.
type stubService struct{}

func (stubService) IsEnabled() bool { return true }
func (stubService) Create(context.Context, links.CreateLinkRequest) (links.Link, error) {
	return links.Link{}, nil
}
func (stubService) Resolve(_ context.Context, token string) (links.Link, error) {
	return links.Link{Token: token, UserID: 1, FileID: 2, ExpireAt: time.Now().Add(time.Hour)}, nil
}
func (stubService) Lookup(context.Context, int64, int64) (links.Link, error) {
	return links.Link{}, nil
}
func (stubService) Remove(context.Context, string) error { return nil }
func (stubService) RecordDownload(context.Context, int64, int64) error { return nil }
func (stubService) ServeDownload(http.ResponseWriter, *http.Request) {}
func (stubService) Startup(context.Context) error { return nil }
func (stubService) Shutdown(context.Context) error { return nil }

type stubReadiness struct{ err error }

func (s stubReadiness) CheckReady(context.Context) error { return s.err }

/***************
 * Route adapter
 ***************/

func TestServer_AddRoute(t *testing.T) {
	t.Run("registered route is served", func(t *testing.T) {
		s := New(testConfig(), discardLogger())

		ok := s.AddRoute(http.MethodGet, "/f/{token}", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("token=" + r.PathValue("token")))
		})
		if !ok {
			t.Fatal("AddRoute() = false, want true")
		}

		w := do(t, s.Handler(), http.MethodGet, "/f/abc123", nil)
		if w.Code != http.StatusOK || w.Body.String() != "token=abc123" {
			t.Errorf("GET /f/abc123 = %d %q", w.Code, w.Body.String())
		}
		if w.Header().Get("X-Request-ID") == "" {
			t.Error("middleware stack not applied to added route")
		}
	})

	t.Run("duplicate pattern fails", func(t *testing.T) {
		s := New(testConfig(), discardLogger())
		h := func(http.ResponseWriter, *http.Request) {}

		if !s.AddRoute(http.MethodGet, "/f/{token}", h) {
			t.Fatal("first AddRoute() = false")
		}
		if s.AddRoute(http.MethodGet, "/f/{token}", h) {
			t.Error("duplicate AddRoute() = true, want false")
		}
	})

	t.Run("malformed pattern fails", func(t *testing.T) {
		s := New(testConfig(), discardLogger())
		if s.AddRoute(http.MethodGet, "f/{token", func(http.ResponseWriter, *http.Request) {}) {
			t.Error("AddRoute() with malformed path = true, want false")
		}
	})

	t.Run("added routes are rate limited", func(t *testing.T) {
		limiter, err := httpx.NewClientLimiter(0.001, 1, 16)
		if err != nil {
			t.Fatalf("NewClientLimiter() unexpected error: %v", err)
		}
		s := New(testConfig(), discardLogger(), WithDownloadLimiter(limiter))
		s.AddRoute(http.MethodGet, "/f/{token}", func(http.ResponseWriter, *http.Request) {})

		if w := do(t, s.Handler(), http.MethodGet, "/f/a", nil); w.Code != http.StatusOK {
			t.Fatalf("first request = %d, want 200", w.Code)
		}
		if w := do(t, s.Handler(), http.MethodGet, "/f/a", nil); w.Code != http.StatusTooManyRequests {
			t.Errorf("second request = %d, want 429", w.Code)
		}
		// Health stays reachable.
		if w := do(t, s.Handler(), http.MethodGet, "/x/health", nil); w.Code != http.StatusOK {
			t.Errorf("health = %d, want 200", w.Code)
		}
	})
}

func TestServer_BuildURL(t *testing.T) {
	s := New(testConfig(), discardLogger())

	tests := []struct {
		path, want string
	}{
		{"/f/abc123", "https://bbs.example.com/f/abc123"},
		{"f/abc123", "https://bbs.example.com/f/abc123"},
	}
	for _, tt := range tests {
		if got := s.BuildURL(tt.path); got != tt.want {
			t.Errorf("BuildURL(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestServer_IsEnabled(t *testing.T) {
	cfg := testConfig()
	if !New(cfg, discardLogger()).IsEnabled() {
		t.Error("IsEnabled() = false, want true")
	}

	cfg.Links.WebEnabled = false
	if New(cfg, discardLogger()).IsEnabled() {
		t.Error("IsEnabled() = true, want false")
	}
}

func TestServer_FileNotFound(t *testing.T) {
	s := New(testConfig(), discardLogger())

	w := httptest.NewRecorder()
	s.FileNotFound(w, httptest.NewRequest(http.MethodGet, "/f/nope", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
	if w.Body.String() != "File not found\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}

/***************
 * Fixed routes
 ***************/

func TestServer_AdminRoutes(t *testing.T) {
	admin := links.NewHandler(links.HandlerConfig{Service: stubService{}, Logger: discardLogger()})

	t.Run("require bearer token", func(t *testing.T) {
		s := New(testConfig(), discardLogger())
		if !s.MountAdmin(admin) {
			t.Fatal("MountAdmin() = false, want true")
		}

		if w := do(t, s.Handler(), http.MethodGet, "/api/links/abc", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("no token = %d, want 401", w.Code)
		}

		bad := http.Header{"Authorization": {"Bearer wrong"}}
		if w := do(t, s.Handler(), http.MethodGet, "/api/links/abc", bad); w.Code != http.StatusUnauthorized {
			t.Errorf("wrong token = %d, want 401", w.Code)
		}

		good := http.Header{"Authorization": {"Bearer s3cret"}}
		w := do(t, s.Handler(), http.MethodGet, "/api/links/abc", good)
		if w.Code != http.StatusOK {
			t.Errorf("valid token = %d, want 200 (body %s)", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), `"token":"abc"`) {
			t.Errorf("body = %s", w.Body.String())
		}
	})

	t.Run("session routes carry the connection id", func(t *testing.T) {
		sessions := users.NewSessions()
		s := New(testConfig(), discardLogger())
		s.MountAdmin(links.NewHandler(links.HandlerConfig{Service: stubService{}, Sessions: sessions, Logger: discardLogger()}))

		good := http.Header{"Authorization": {"Bearer s3cret"}, "Content-Type": {"application/json"}}
		req := httptest.NewRequest(http.MethodPut, "/api/sessions/42/node3", strings.NewReader(`{"username":"sysop"}`))
		req.Header = good
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("attach = %d, want 204 (body %s)", w.Code, w.Body.String())
		}
		if _, ok := sessions.ActiveSessionForUser(42); !ok {
			t.Fatal("user 42 not attached")
		}

		if w := do(t, s.Handler(), http.MethodDelete, "/api/sessions/42", good); w.Code != http.StatusNotFound {
			t.Errorf("detach without connection id = %d, want 404", w.Code)
		}
		if w := do(t, s.Handler(), http.MethodDelete, "/api/sessions/42/node3", good); w.Code != http.StatusNoContent {
			t.Errorf("detach = %d, want 204", w.Code)
		}
		if _, ok := sessions.ActiveSessionForUser(42); ok {
			t.Error("user 42 still attached")
		}
	})

	t.Run("unmounted without token", func(t *testing.T) {
		cfg := testConfig()
		cfg.Links.AdminAPIToken = ""
		s := New(cfg, discardLogger())
		if s.MountAdmin(admin) {
			t.Error("MountAdmin() = true without a token")
		}

		good := http.Header{"Authorization": {"Bearer s3cret"}}
		if w := do(t, s.Handler(), http.MethodGet, "/api/links/abc", good); w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}

func TestServer_Health(t *testing.T) {
	s := New(testConfig(), discardLogger())

	w := do(t, s.Handler(), http.MethodGet, "/x/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) || !strings.Contains(w.Body.String(), `"web_enabled":true`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     []ReadinessChecker
		wantStatus int
	}{
		{"no checks", nil, http.StatusOK},
		{"all ready", []ReadinessChecker{stubReadiness{}, stubReadiness{}}, http.StatusOK},
		{"one failing", []ReadinessChecker{stubReadiness{}, stubReadiness{err: errors.New("postgres down")}}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			for _, c := range tt.checks {
				opts = append(opts, WithReadiness(c))
			}
			s := New(testConfig(), discardLogger(), opts...)

			if w := do(t, s.Handler(), http.MethodGet, "/x/ready", nil); w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := httpx.NewHTTPMetrics(reg)
	if err != nil {
		t.Fatalf("NewHTTPMetrics() unexpected error: %v", err)
	}

	s := New(testConfig(), discardLogger(), WithMetrics(m, reg))
	s.AddRoute(http.MethodGet, "/f/{token}", func(w http.ResponseWriter, r *http.Request) {})

	do(t, s.Handler(), http.MethodGet, "/f/one", nil)
	do(t, s.Handler(), http.MethodGet, "/f/two", nil)

	if n := testutil.CollectAndCount(reg, "http_requests_total"); n != 1 {
		t.Errorf("http_requests_total series = %d, want 1 (labelled by pattern)", n)
	}

	w := do(t, s.Handler(), http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `route="GET /f/{token}"`) {
		t.Errorf("/metrics missing route label:\n%s", w.Body.String())
	}
}

func TestServer_StartStopsOnContextCancel(t *testing.T) {
	s := New(testConfig(), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}
