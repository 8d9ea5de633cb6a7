// Package main is the entrypoint for the token API server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tokenapi/tokenapi/internal/audit"
	"github.com/tokenapi/tokenapi/internal/cache"
	"github.com/tokenapi/tokenapi/internal/config"
	"github.com/tokenapi/tokenapi/internal/handler"
	"github.com/tokenapi/tokenapi/internal/logging"
	"github.com/tokenapi/tokenapi/internal/metrics"
	"github.com/tokenapi/tokenapi/internal/middleware"
	"github.com/tokenapi/tokenapi/internal/repository"
	"github.com/tokenapi/tokenapi/internal/router"
	"github.com/tokenapi/tokenapi/internal/server"
	"github.com/tokenapi/tokenapi/internal/service"
	"github.com/tokenapi/tokenapi/internal/token"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", logging.SanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", logging.RedactURL(cfg.DatabaseURL)),
		)
		return err
	}
	logger.Info("connected to database")

	if cfg.MigrateOnStart {
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return err
		}
		version, _ := repo.MigrationVersion(ctx)
		logger.Info("migrations applied", "version", version)
	}

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.Options{
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
	})
	if err != nil {
		repo.Close()
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", logging.SanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", logging.RedactURL(cfg.RedisURL)),
		)
		return err
	}
	logger.Info("connected to Redis")

	recorder := metrics.NewInMemory()

	var (
		sink        audit.Sink
		auditReader handler.AuditReader
		publisher   *audit.Publisher
	)
	if cfg.AuditStreamEnabled {
		publisher = audit.NewPublisher(cacheClient.Client(), logger, recorder)
		sink, auditReader = publisher, publisher
	}

	tokens := token.NewManager(token.NewPostgresStore(repo), token.Config{
		TTL:      cfg.TokenTTL,
		CacheTTL: cfg.AuthCacheTTL,
		Cache:    cacheClient,
		Audit:    sink,
		Metrics:  recorder,
		Logger:   logger,
	})

	users := service.NewUserService(repo, tokens, recorder, logger)
	orders := service.NewOrderService(repo)
	catalog := service.NewCatalogService(repo)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	security := middleware.DefaultSecurityConfig()
	security.IsDevelopment = cfg.IsDevelopment()
	security.MaxRequestBodySize = cfg.MaxRequestBodySize

	r := router.New(router.Config{
		Logger:          logger,
		Accounts:        handler.NewAccountHandler(users, tokens, logger),
		Orders:          handler.NewOrderHandler(orders, logger),
		Catalog:         handler.NewCatalogHandler(catalog, logger),
		Admin:           handler.NewAdminHandler(repo, tokens, auditReader, logger),
		Health:          handler.NewHealthHandler(repo, cacheClient),
		Metrics:         handler.NewMetricsHandler(recorder),
		Authenticator:   tokens,
		AuthMinDuration: cfg.AuthMinDuration,
		LoginRateLimit: middleware.RateLimitConfig{
			Logger:            logger,
			Limiter:           cacheClient,
			Metrics:           recorder,
			Enabled:           cfg.LoginRateLimitEnabled,
			RequestsPerMinute: cfg.LoginRateLimitRPM,
			Burst:             cfg.LoginRateLimitBurst,
		},
		Security: security,
		CORS:     cors,

		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered first, closed last.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})
	if publisher != nil {
		srv.OnShutdown("audit", publisher.Flush)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"token_ttl", cfg.TokenTTL,
		"audit_stream", cfg.AuditStreamEnabled,
	)

	return srv.Run(ctx)
}
