package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	App           AppConfig
	Observability ObservabilityConfig
	Links         LinksConfig
	Stats         StatsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" required:"true"`
	Host            string        `envconfig:"SERVER_HOST" required:"true"`
	BaseURL         string        `envconfig:"SERVER_BASE_URL" required:"true"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" required:"true"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" required:"true"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" required:"true"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" required:"true"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base URL must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host           string `envconfig:"DB_HOST" required:"true"`
	Port           string `envconfig:"DB_PORT" required:"true"`
	User           string `envconfig:"DB_USER" required:"true"`
	Password       string `envconfig:"DB_PASSWORD" required:"true"`
	Name           string `envconfig:"DB_NAME" required:"true"`
	SSLMode        string `envconfig:"DB_SSLMODE" required:"true"`
	MaxConns       int32  `envconfig:"DB_MAX_CONNS" required:"true"`
	MinConns       int32  `envconfig:"DB_MIN_CONNS" required:"true"`
	MigrateOnStart bool   `envconfig:"DB_MIGRATE" default:"true"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.MinConns <= 0 {
		return fmt.Errorf("min connections must be positive")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) cannot be greater than max connections (%d)", c.MinConns, c.MaxConns)
	}

	validSSLModes := map[string]bool{
		"disable":     true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("invalid SSL mode: %s (must be one of: disable, require, verify-ca, verify-full)", c.SSLMode)
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// MigrationURL returns the URL golang-migrate's pgx5 driver expects.
func (c *DatabaseConfig) MigrationURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" required:"true"`   // development, staging, production, test
	LogLevel    string `envconfig:"LOG_LEVEL" required:"true"` // debug, info, warn, error
}

// Validate validates the app configuration.
func (c *AppConfig) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// ObservabilityConfig holds configuration for tracing/metrics.
type ObservabilityConfig struct {
	Enabled           bool    `envconfig:"OTEL_ENABLED" required:"true"`
	ServiceName       string  `envconfig:"OTEL_SERVICE_NAME"`
	ServiceVersion    string  `envconfig:"OTEL_SERVICE_VERSION"`
	OTelEndpoint      string  `envconfig:"OTEL_ENDPOINT"`
	OTelInsecure      bool    `envconfig:"OTEL_INSECURE"`
	TracingSampleRate float64 `envconfig:"OTEL_TRACING_SAMPLE_RATE"`
	MetricsEnabled    bool    `envconfig:"METRICS_ENABLED" default:"true"`
}

// Validate validates the observability configuration.
func (c *ObservabilityConfig) Validate() error {
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("tracing sample rate must be between 0 and 1, got %f", c.TracingSampleRate)
	}

	// Only require these when observability is enabled.
	if c.Enabled {
		if c.ServiceName == "" {
			return fmt.Errorf("service name is required when observability is enabled")
		}
		if c.OTelEndpoint == "" {
			return fmt.Errorf("OTEL endpoint is required when observability is enabled")
		}
		if c.ServiceVersion == "" {
			return fmt.Errorf("service version is required when observability is enabled")
		}
	}

	return nil
}

// Link store backends.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
)

// LinksConfig holds the temporary download link settings.
type LinksConfig struct {
	WebEnabled bool          `envconfig:"WEB_ENABLED" default:"true"`
	BoardName  string        `envconfig:"BOARD_NAME" required:"true"`
	RoutePath  string        `envconfig:"LINKS_ROUTE_PATH" default:"/f/"`
	DefaultTTL time.Duration `envconfig:"LINKS_DEFAULT_TTL" default:"48h"`
	// Changing TokenMinLength invalidates every token already handed out.
	TokenMinLength int `envconfig:"LINKS_TOKEN_MIN_LENGTH" default:"0"`

	Store          string `envconfig:"LINKS_STORE" default:"postgres"`
	SQLitePath     string `envconfig:"LINKS_SQLITE_PATH" default:"filelinks.sqlite3"`
	RedisAddr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"filelinks"`

	FileRoot      string        `envconfig:"FILE_ROOT" required:"true"`
	FileCacheSize int           `envconfig:"FILE_CACHE_SIZE" default:"1024"` // 0 disables the cache
	FileCacheTTL  time.Duration `envconfig:"FILE_CACHE_TTL" default:"5m"`

	DownloadRateLimit float64 `envconfig:"DOWNLOAD_RATE_LIMIT" default:"5"` // requests/second per client, 0 disables
	DownloadRateBurst int     `envconfig:"DOWNLOAD_RATE_BURST" default:"10"`

	AdminAPIToken string `envconfig:"ADMIN_API_TOKEN"` // empty leaves the admin API unmounted
}

// Validate validates the links configuration.
func (c *LinksConfig) Validate() error {
	if strings.TrimSpace(c.BoardName) == "" {
		return fmt.Errorf("board name cannot be empty")
	}
	if c.RoutePath != "" && !strings.HasPrefix(c.RoutePath, "/") {
		return fmt.Errorf("route path must start with '/', got %q", c.RoutePath)
	}
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("default link ttl must be positive")
	}
	if c.TokenMinLength < 0 {
		return fmt.Errorf("token min length cannot be negative")
	}

	switch c.Store {
	case StorePostgres:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required when the link store is sqlite")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis address is required when the link store is redis")
		}
		if c.RedisDB < 0 {
			return fmt.Errorf("redis db cannot be negative")
		}
	default:
		return fmt.Errorf("invalid link store: %s (must be one of: postgres, sqlite, redis)", c.Store)
	}

	if c.FileRoot == "" {
		return fmt.Errorf("file root cannot be empty")
	}
	if c.FileCacheSize < 0 {
		return fmt.Errorf("file cache size cannot be negative")
	}
	if c.FileCacheSize > 0 && c.FileCacheTTL <= 0 {
		return fmt.Errorf("file cache ttl must be positive when the cache is enabled")
	}
	if c.DownloadRateLimit < 0 {
		return fmt.Errorf("download rate limit cannot be negative")
	}
	if c.DownloadRateLimit > 0 && c.DownloadRateBurst <= 0 {
		return fmt.Errorf("download rate burst must be positive when rate limiting is enabled")
	}
	return nil
}

// Stats sinks.
const (
	SinkPostgres   = "postgres"
	SinkPrometheus = "prometheus"
	SinkKafka      = "kafka"
)

// StatsConfig selects where download statistics are written.
type StatsConfig struct {
	Sinks        []string `envconfig:"STATS_SINKS" default:"postgres"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"filelinks.download-stats"`
}

// Validate validates the stats configuration.
func (c *StatsConfig) Validate() error {
	seen := make(map[string]bool, len(c.Sinks))
	for _, s := range c.Sinks {
		switch s {
		case SinkPostgres, SinkPrometheus, SinkKafka:
		default:
			return fmt.Errorf("invalid stats sink: %s (must be one of: postgres, prometheus, kafka)", s)
		}
		if seen[s] {
			return fmt.Errorf("stats sink %s listed twice", s)
		}
		seen[s] = true
	}

	if seen[SinkKafka] {
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("kafka brokers are required when the kafka sink is enabled")
		}
		if c.KafkaTopic == "" {
			return fmt.Errorf("kafka topic is required when the kafka sink is enabled")
		}
	}
	return nil
}

// Enabled reports whether sink is listed.
func (c *StatsConfig) Enabled(sink string) bool {
	for _, s := range c.Sinks {
		if s == sink {
			return true
		}
	}
	return false
}

// Load loads configuration from environment variables only.
// (Do .env loading in cmd/server/main.go for dev, not here.)
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load Server config: %w", err)
	}
	if err := cfg.Server.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Server config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to load Database config: %w", err)
	}
	if err := cfg.Database.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Database config: %w", err)
	}

	if err := envconfig.Process("", &cfg.App); err != nil {
		return nil, fmt.Errorf("failed to load App config: %w", err)
	}
	if err := cfg.App.Validate(); err != nil {
		return nil, fmt.Errorf("invalid App config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Observability); err != nil {
		return nil, fmt.Errorf("failed to load Observability config: %w", err)
	}
	if err := cfg.Observability.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Observability config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Links); err != nil {
		return nil, fmt.Errorf("failed to load Links config: %w", err)
	}
	if err := cfg.Links.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Links config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Stats); err != nil {
		return nil, fmt.Errorf("failed to load Stats config: %w", err)
	}
	if err := cfg.Stats.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Stats config: %w", err)
	}

	return cfg, nil
}
