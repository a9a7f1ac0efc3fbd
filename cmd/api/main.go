// Package main is the entrypoint for the secondchance API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/secondchance/secondchance/internal/auth"
	"github.com/secondchance/secondchance/internal/cache"
	"github.com/secondchance/secondchance/internal/config"
	"github.com/secondchance/secondchance/internal/handler"
	"github.com/secondchance/secondchance/internal/metrics"
	"github.com/secondchance/secondchance/internal/middleware"
	"github.com/secondchance/secondchance/internal/server"
	"github.com/secondchance/secondchance/internal/service"
	"github.com/secondchance/secondchance/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	gw, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if err := gw.EnsureIndexes(ctx); err != nil {
		_ = gw.Close(context.Background())
		return fmt.Errorf("ensure indexes: %w", err)
	}
	logger.Info("connected to store", "driver", cfg.StoreDriver)

	// Redis is optional: without it items are read straight from the store
	// and the auth routes are not rate limited.
	var (
		cacheClient *cache.Cache
		itemCache   service.ItemCache
		limiter     middleware.IPLimiter
		cacheHealth handler.HealthChecker
	)
	if cfg.CacheEnabled() {
		cacheClient, err = cache.New(ctx, cfg.RedisURL, cache.WithItemTTL(cfg.ItemCacheTTL))
		if err != nil {
			_ = gw.Close(context.Background())
			return fmt.Errorf("connect redis at %s: %s", config.RedactURL(cfg.RedisURL), config.SanitizeError(err, cfg.RedisURL))
		}
		itemCache, limiter, cacheHealth = cacheClient, cacheClient, cacheClient
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set; item cache and auth rate limiting disabled")
	}

	hasher, err := auth.NewHasher(cfg.PasswordHash, cfg.BcryptCost)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	// Initialize services
	recorder := metrics.NewInMemory()
	identity := service.NewIdentityService(gw, hasher, tokens, logger, recorder)
	listing := service.NewListingService(gw, itemCache, logger, recorder)

	highest, err := listing.SyncSequence(ctx)
	if err != nil {
		return fmt.Errorf("sync item sequence: %w", err)
	}
	logger.Info("item sequence ready", "highest_id", highest)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	router := server.NewRouter(server.RouterDeps{
		Logger:  logger,
		Health:  handler.NewHealthHandler(gw, cacheHealth),
		Metrics: handler.NewMetricsHandler(recorder),
		Auth:    handler.NewAuthHandler(identity, logger),
		Items:   handler.NewItemHandler(listing, logger),
		AuthRateLimit: middleware.RateLimitConfig{
			Logger:  logger,
			Limiter: limiter,
			Enabled: cfg.RateLimitAuthEnabled,
			Scope:   "auth",
			RPS:     cfg.RateLimitAuthRPS,
			Burst:   cfg.RateLimitAuthBurst,
		},
		Security:       middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()},
		CORS:           corsCfg,
		MaxRequestBody: cfg.MaxRequestBodySize,
	})

	srv := server.New(router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("store", gw.Close)
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error { return cacheClient.Close() })
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"store", cfg.StoreDriver,
		"password_hash", cfg.PasswordHash,
	)

	return srv.Run(ctx)
}

// openStore connects the gateway selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config) (store.Gateway, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		gw, err := store.NewMongo(ctx, cfg.MongoURL, cfg.MongoDatabase, cfg.StoreTimeout)
		if err != nil {
			return nil, fmt.Errorf("connect mongo at %s: %s", config.RedactURL(cfg.MongoURL), config.SanitizeError(err, cfg.MongoURL))
		}
		return gw, nil
	case config.DriverPostgres:
		gw, err := store.NewPostgres(ctx, cfg.DatabaseURL, cfg.StoreTimeout)
		if err != nil {
			return nil, fmt.Errorf("connect postgres at %s: %s", config.RedactURL(cfg.DatabaseURL), config.SanitizeError(err, cfg.DatabaseURL))
		}
		return gw, nil
	case config.DriverMemory:
		return store.NewMemory(), nil
	default:
		return nil, errors.New("unknown store driver " + cfg.StoreDriver)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "secondchance")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
