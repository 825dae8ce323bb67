package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"SERVER_PORT":             "8080",
		"SERVER_HOST":             "0.0.0.0",
		"SERVER_BASE_URL":         "http://localhost:8080",
		"SERVER_READ_TIMEOUT":     "10s",
		"SERVER_WRITE_TIMEOUT":    "10s",
		"SERVER_IDLE_TIMEOUT":     "120s",
		"SERVER_SHUTDOWN_TIMEOUT": "30s",

		"DB_HOST":      "localhost",
		"DB_PORT":      "5432",
		"DB_USER":      "testuser",
		"DB_PASSWORD":  "testpass",
		"DB_NAME":      "testdb",
		"DB_SSLMODE":   "disable",
		"DB_MAX_CONNS": "25",
		"DB_MIN_CONNS": "5",

		"APP_ENV":   "test",
		"LOG_LEVEL": "debug",

		"OTEL_ENABLED": "false",

		"BOARD_NAME": "Demo BBS",
		"FILE_ROOT":  "/srv/bbs/files",
	}
}

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for key, value := range env {
		t.Setenv(key, value)
	}
}

func TestLoad_Success(t *testing.T) {
	env := baseEnv()
	env["OTEL_ENABLED"] = "true"
	env["OTEL_SERVICE_NAME"] = "filelinks"
	env["OTEL_SERVICE_VERSION"] = "1.0.0"
	env["OTEL_ENDPOINT"] = "localhost:4317"
	env["OTEL_INSECURE"] = "true"
	env["OTEL_TRACING_SAMPLE_RATE"] = "1.0"
	env["LINKS_STORE"] = "redis"
	env["REDIS_ADDR"] = "cache:6379"
	env["REDIS_DB"] = "2"
	env["LINKS_DEFAULT_TTL"] = "36h"
	env["STATS_SINKS"] = "postgres,kafka"
	env["KAFKA_BROKERS"] = "k1:9092,k2:9092"
	env["ADMIN_API_TOKEN"] = "s3cret"
	setEnv(t, env)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.BaseURL != "http://localhost:8080" {
		t.Errorf("Server.BaseURL = %s, want http://localhost:8080", cfg.Server.BaseURL)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 10s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.MaxConns != 25 {
		t.Errorf("Database.MaxConns = %d, want 25", cfg.Database.MaxConns)
	}
	if !cfg.Observability.Enabled || cfg.Observability.ServiceName != "filelinks" {
		t.Errorf("Observability = %+v", cfg.Observability)
	}

	if cfg.Links.BoardName != "Demo BBS" {
		t.Errorf("Links.BoardName = %q, want Demo BBS", cfg.Links.BoardName)
	}
	if cfg.Links.Store != StoreRedis || cfg.Links.RedisAddr != "cache:6379" || cfg.Links.RedisDB != 2 {
		t.Errorf("Links redis settings = %+v", cfg.Links)
	}
	if cfg.Links.DefaultTTL != 36*time.Hour {
		t.Errorf("Links.DefaultTTL = %v, want 36h", cfg.Links.DefaultTTL)
	}
	if cfg.Links.AdminAPIToken != "s3cret" {
		t.Errorf("Links.AdminAPIToken = %q", cfg.Links.AdminAPIToken)
	}

	if !cfg.Stats.Enabled(SinkKafka) || !cfg.Stats.Enabled(SinkPostgres) || cfg.Stats.Enabled(SinkPrometheus) {
		t.Errorf("Stats.Sinks = %v", cfg.Stats.Sinks)
	}
	if len(cfg.Stats.KafkaBrokers) != 2 || cfg.Stats.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("Stats.KafkaBrokers = %v", cfg.Stats.KafkaBrokers)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, baseEnv())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	l := cfg.Links
	if !l.WebEnabled {
		t.Error("Links.WebEnabled = false, want true")
	}
	if l.RoutePath != "/f/" {
		t.Errorf("Links.RoutePath = %q, want /f/", l.RoutePath)
	}
	if l.DefaultTTL != 48*time.Hour {
		t.Errorf("Links.DefaultTTL = %v, want 48h", l.DefaultTTL)
	}
	if l.TokenMinLength != 0 {
		t.Errorf("Links.TokenMinLength = %d, want 0", l.TokenMinLength)
	}
	if l.Store != StorePostgres {
		t.Errorf("Links.Store = %q, want postgres", l.Store)
	}
	if l.FileCacheSize != 1024 || l.FileCacheTTL != 5*time.Minute {
		t.Errorf("file cache = %d/%v, want 1024/5m", l.FileCacheSize, l.FileCacheTTL)
	}
	if l.DownloadRateLimit != 5 || l.DownloadRateBurst != 10 {
		t.Errorf("rate limit = %v/%d, want 5/10", l.DownloadRateLimit, l.DownloadRateBurst)
	}
	if l.AdminAPIToken != "" {
		t.Errorf("Links.AdminAPIToken = %q, want empty", l.AdminAPIToken)
	}

	if len(cfg.Stats.Sinks) != 1 || cfg.Stats.Sinks[0] != SinkPostgres {
		t.Errorf("Stats.Sinks = %v, want [postgres]", cfg.Stats.Sinks)
	}
	if !cfg.Observability.MetricsEnabled {
		t.Error("Observability.MetricsEnabled = false, want true")
	}
	if !cfg.Database.MigrateOnStart {
		t.Error("Database.MigrateOnStart = false, want true")
	}
}

func TestLoad_MissingRequiredVariable(t *testing.T) {
	tests := []string{
		"SERVER_PORT",
		"DB_HOST",
		"DB_NAME",
		"APP_ENV",
		"OTEL_ENABLED",
		"BOARD_NAME",
		"FILE_ROOT",
	}

	for _, skip := range tests {
		t.Run("missing "+skip, func(t *testing.T) {
			os.Clearenv()

			env := baseEnv()
			delete(env, skip)
			setEnv(t, env)

			if _, err := Load(); err == nil {
				t.Errorf("Load() should fail when %s is missing", skip)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"invalid duration", map[string]string{"SERVER_READ_TIMEOUT": "invalid"}, "Server"},
		{"invalid int", map[string]string{"DB_MAX_CONNS": "not-a-number"}, "Database"},
		{"invalid bool", map[string]string{"OTEL_ENABLED": "maybe"}, "Observability"},
		{"invalid float", map[string]string{"OTEL_TRACING_SAMPLE_RATE": "abc"}, "Observability"},
		{"relative base url", map[string]string{"SERVER_BASE_URL": "bbs.example.com"}, "base URL"},
		{"blank board name", map[string]string{"BOARD_NAME": "   "}, "board name"},
		{"unknown store", map[string]string{"LINKS_STORE": "mongo"}, "invalid link store"},
		{"route path without slash", map[string]string{"LINKS_ROUTE_PATH": "f/"}, "route path"},
		{"zero ttl", map[string]string{"LINKS_DEFAULT_TTL": "0s"}, "ttl"},
		{"negative token length", map[string]string{"LINKS_TOKEN_MIN_LENGTH": "-1"}, "token min length"},
		{"negative redis db", map[string]string{"LINKS_STORE": "redis", "REDIS_DB": "-1"}, "redis db"},
		{"empty sqlite path", map[string]string{"LINKS_STORE": "sqlite", "LINKS_SQLITE_PATH": ""}, "sqlite path"},
		{"negative rate", map[string]string{"DOWNLOAD_RATE_LIMIT": "-1"}, "rate limit"},
		{"zero burst", map[string]string{"DOWNLOAD_RATE_BURST": "0"}, "burst"},
		{"unknown sink", map[string]string{"STATS_SINKS": "postgres,statsd"}, "invalid stats sink"},
		{"duplicate sink", map[string]string{"STATS_SINKS": "postgres,postgres"}, "twice"},
		{"kafka without brokers", map[string]string{"STATS_SINKS": "kafka"}, "kafka brokers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			for k, v := range tt.env {
				env[k] = v
			}
			setEnv(t, env)

			_, err := Load()
			if err == nil {
				t.Fatalf("Load() should fail for %v", tt.env)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLinksConfig_CacheAndRateCanBeDisabled(t *testing.T) {
	env := baseEnv()
	env["FILE_CACHE_SIZE"] = "0"
	env["FILE_CACHE_TTL"] = "0s"
	env["DOWNLOAD_RATE_LIMIT"] = "0"
	env["DOWNLOAD_RATE_BURST"] = "0"
	env["STATS_SINKS"] = ""
	setEnv(t, env)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Links.FileCacheSize != 0 || cfg.Links.DownloadRateLimit != 0 {
		t.Errorf("Links = %+v", cfg.Links)
	}
	if len(cfg.Stats.Sinks) != 0 {
		t.Errorf("Stats.Sinks = %v, want none", cfg.Stats.Sinks)
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	db := DatabaseConfig{
		Host:     "testhost",
		Port:     "5432",
		User:     "testuser",
		Password: "testpass",
		Name:     "testdb",
		SSLMode:  "disable",
	}

	expected := "host=testhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	if got := db.ConnectionString(); got != expected {
		t.Errorf("ConnectionString() = %s, want %s", got, expected)
	}
}

func TestDatabaseConfig_MigrationURL(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db",
		Port:     "5432",
		User:     "bbs",
		Password: "p@ss/word",
		Name:     "filelinks",
		SSLMode:  "require",
	}

	want := "pgx5://bbs:p%40ss%2Fword@db:5432/filelinks?sslmode=require"
	if got := db.MigrationURL(); got != want {
		t.Errorf("MigrationURL() = %s, want %s", got, want)
	}
}
