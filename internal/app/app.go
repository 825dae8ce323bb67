package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/sundayezeilo/filelinks/internal/config"
	"github.com/sundayezeilo/filelinks/internal/database"
	"github.com/sundayezeilo/filelinks/internal/filearea"
	"github.com/sundayezeilo/filelinks/internal/httpx"
	"github.com/sundayezeilo/filelinks/internal/links"
	"github.com/sundayezeilo/filelinks/internal/server"
	"github.com/sundayezeilo/filelinks/internal/stats"
	"github.com/sundayezeilo/filelinks/internal/telemetry"
	"github.com/sundayezeilo/filelinks/internal/users"
	"github.com/sundayezeilo/filelinks/tokencodec"
)

// App holds the application dependencies and configuration.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DBPool   *pgxpool.Pool
	Server   *server.Server
	Links    links.Service
	Sessions *users.Sessions

	closers         []io.Closer
	shutdownTracing telemetry.ShutdownFunc
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.Observability.ServiceVersion,
		"board", cfg.Links.BoardName,
	)

	a := &App{Config: cfg, Logger: logger}
	if err := a.wire(ctx); err != nil {
		_ = a.Shutdown()
		return nil, err
	}

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"link_store", cfg.Links.Store,
		"stats_sinks", cfg.Stats.Sinks,
	)

	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger

	shutdownTracing, err := telemetry.InitTracing(cfg.Observability, logger)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	a.shutdownTracing = shutdownTracing

	// Connect to database
	pool, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DBPool = pool

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(cfg.Database.MigrationURL(), logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	store, err := a.openLinkStore(ctx)
	if err != nil {
		return err
	}

	codec, err := tokencodec.New(cfg.Links.BoardName, tokencodec.WithMinLength(cfg.Links.TokenMinLength))
	if err != nil {
		return fmt.Errorf("failed to build token codec: %w", err)
	}

	var catalog links.FileCatalog = filearea.NewPGCatalog(pool)
	if cfg.Links.FileCacheSize > 0 {
		catalog = filearea.NewCachedCatalog(filearea.NewPGCatalog(pool), cfg.Links.FileCacheSize, cfg.Links.FileCacheTTL)
	}

	// HTTP and stats metrics get their own registry; package-level
	// collectors stay on the default one.
	reg := prometheus.NewRegistry()

	sink, err := a.statsSink(pool, reg)
	if err != nil {
		return err
	}

	var opts []server.Option
	if cfg.Observability.MetricsEnabled {
		m, err := httpx.NewHTTPMetrics(reg)
		if err != nil {
			return fmt.Errorf("failed to register http metrics: %w", err)
		}
		opts = append(opts, server.WithMetrics(m, prometheus.Gatherers{prometheus.DefaultGatherer, reg}))
	}
	if cfg.Links.DownloadRateLimit > 0 {
		limiter, err := httpx.NewClientLimiter(rate.Limit(cfg.Links.DownloadRateLimit), cfg.Links.DownloadRateBurst, httpx.DefaultLimiterCacheSize)
		if err != nil {
			return fmt.Errorf("failed to build download limiter: %w", err)
		}
		opts = append(opts, server.WithDownloadLimiter(limiter))
	}
	opts = append(opts, server.WithReadiness(database.NewReadinessChecker(pool)))

	srv := server.New(cfg, logger, opts...)
	sessions := users.NewSessions()

	svc, err := links.NewService(links.ServiceConfig{
		Store:      store,
		Codec:      codec,
		Router:     srv,
		Files:      catalog,
		FS:         afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), cfg.Links.FileRoot)),
		Sessions:   sessions,
		Profiles:   users.NewProfiles(pool),
		Stats:      sink,
		Logger:     logger,
		RoutePath:  cfg.Links.RoutePath,
		DefaultTTL: cfg.Links.DefaultTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to build links service: %w", err)
	}

	srv.MountAdmin(links.NewHandler(links.HandlerConfig{
		Service:  svc,
		Sessions: sessions,
		Logger:   logger,
	}))

	a.Server = srv
	a.Links = svc
	a.Sessions = sessions
	return nil
}

// openLinkStore selects the backend holding live link rows.
func (a *App) openLinkStore(ctx context.Context) (links.Store, error) {
	cfg := a.Config.Links

	switch cfg.Store {
	case config.StoreSQLite:
		s, err := links.OpenSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite link store: %w", err)
		}
		a.closers = append(a.closers, s)
		return s, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, client)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		return links.NewRedisStore(client, cfg.RedisKeyPrefix), nil

	default:
		return links.NewPGStore(a.DBPool), nil
	}
}

// statsSink fans download counters out to every configured sink.
func (a *App) statsSink(pool *pgxpool.Pool, reg prometheus.Registerer) (stats.Sink, error) {
	cfg := a.Config.Stats

	var sinks stats.Multi
	if cfg.Enabled(config.SinkPostgres) {
		sinks = append(sinks, stats.NewPGSink(pool))
	}
	if cfg.Enabled(config.SinkPrometheus) {
		p, err := stats.NewPrometheusSink(reg)
		if err != nil {
			return nil, fmt.Errorf("failed to register stats metrics: %w", err)
		}
		sinks = append(sinks, p)
	}
	if cfg.Enabled(config.SinkKafka) {
		k := stats.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, k)
		sinks = append(sinks, k)
	}
	return sinks, nil
}

// Start rehydrates live links, then serves until ctx ends or a signal arrives.
func (a *App) Start(ctx context.Context) error {
	if err := a.Links.Startup(ctx); err != nil {
		return fmt.Errorf("failed to start links service: %w", err)
	}

	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
		"base_url", a.Config.Server.BaseURL,
	)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.Links != nil {
		if err := a.Links.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("links shutdown: %w", err))
		}
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}

	return errors.Join(errs...)
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
