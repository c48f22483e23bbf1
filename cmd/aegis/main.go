package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aegis-hfm/aegis-hfm/internal/app"
	"github.com/aegis-hfm/aegis-hfm/internal/facility"
	"github.com/aegis-hfm/aegis-hfm/internal/observability"
	"github.com/aegis-hfm/aegis-hfm/internal/platform/cache"
	"github.com/aegis-hfm/aegis-hfm/internal/platform/db"
	"github.com/aegis-hfm/aegis-hfm/internal/statement"
	statementhttp "github.com/aegis-hfm/aegis-hfm/internal/statement/http"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The statement cache degrades to pass-through when Redis is down, so a
	// failed connection is not fatal for the API server.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, statement cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	repo := statement.NewRepository(pool)
	if err := repo.EnsureSeedTemplates(ctx); err != nil {
		logger.Error("seed statement templates", slog.Any("error", err))
		os.Exit(1)
	}

	resolver := facility.NewResolver(facility.NewRepository(pool))

	statementService := statement.NewService(statement.ServiceConfig{
		Templates:  repo,
		Events:     repo,
		Facilities: repo,
		Periods:    repo,
		Projects:   repo,
		Resolver:   resolver,
		EndingCash: repo,
		Logger:     logger,
	})

	statementCache := statement.NewCache(redisClient, cfg.StatementCacheTTL)
	if err := statementCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	metrics := observability.NewMetrics()

	statementHandler := statementhttp.NewHandler(logger, statement.CachedService{
		Service: statementService,
		Cache:   statementCache,
	}, nil).WithMetrics(metrics)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		StatementHandler: statementHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
