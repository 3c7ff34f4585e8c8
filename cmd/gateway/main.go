package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/epion-news/epion/cmd/gateway/internal/handlers"
	"github.com/epion-news/epion/cmd/gateway/internal/middleware"
	"github.com/epion-news/epion/internal/annotate"
	"github.com/epion-news/epion/internal/config"
	"github.com/epion-news/epion/internal/db"
	"github.com/epion-news/epion/internal/sources"
	"github.com/epion-news/epion/internal/store"
	"github.com/epion-news/epion/internal/tracing"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Initialize(cfg.Tracing, logger)
	if err != nil {
		logger.Warn("Tracing unavailable", zap.Error(err))
		shutdownTracing = func(context.Context) error { return nil }
	}

	pgDB, err := db.Open(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pgDB.Close()
	articles := store.New(pgDB, logger)

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Failed to parse Redis URL", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, source cache and shared rate limits degraded", zap.Error(err))
	}
	cancel()

	scorer := sources.LoadScorer(cfg.Credibility.RulesPath, logger)
	if cfg.Credibility.Watch && cfg.Credibility.RulesPath != "" {
		watcher, err := config.NewWatcher(logger)
		if err != nil {
			logger.Warn("Credibility rules will not hot-reload", zap.Error(err))
		} else if err := watcher.Watch(cfg.Credibility.RulesPath, scorer.Reload); err != nil {
			logger.Warn("Credibility rules will not hot-reload", zap.Error(err))
			watcher.Stop()
		} else {
			watcher.Start(ctx)
			defer watcher.Stop()
		}
	}

	svc := annotate.NewService(
		articles,
		store.NewSourceCache(redisClient, cfg.Cache.SourceTTL, logger),
		scorer,
		logger,
	)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		trusted, err := middleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
		if err != nil {
			logger.Fatal("Invalid rate_limit.trusted_proxies", zap.Error(err))
		}
		limiter = middleware.NewRateLimiter(redisClient, cfg.RateLimit.RequestsPerMinute, trusted, logger)
	}

	checks := map[string]handlers.Pinger{
		"postgres": articles,
		"redis": handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
	}

	server := &http.Server{
		Addr:        ":" + strconv.Itoa(cfg.Server.Port),
		Handler:     newRouter(svc, checks, limiter, cfg.Server.AllowedOrigins, logger),
		ReadTimeout: cfg.Server.ReadTimeout,
		// WebSocket streams outlive any write timeout; the stream handler
		// sets per-message deadlines itself.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Gateway starting", zap.Int("port", cfg.Server.Port), zap.String("version", version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start gateway", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Gateway shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Gateway forced to shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Failed to flush traces", zap.Error(err))
	}

	logger.Info("Gateway stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = lvl
	}
	if os.Getenv("EPION_LOG_DEV") == "1" {
		zcfg.Encoding = "console"
	}
	return zcfg.Build()
}
