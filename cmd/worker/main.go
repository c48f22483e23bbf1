package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/aegis-hfm/aegis-hfm/internal/app"
	"github.com/aegis-hfm/aegis-hfm/internal/facility"
	"github.com/aegis-hfm/aegis-hfm/internal/platform/cache"
	"github.com/aegis-hfm/aegis-hfm/internal/platform/db"
	"github.com/aegis-hfm/aegis-hfm/internal/statement"
	"github.com/aegis-hfm/aegis-hfm/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	repo := statement.NewRepository(pool)
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

	warmupJob := jobs.NewStatementWarmupJob(statement.CachedService{
		Service: statementService,
		Cache:   statementCache,
	}, pool, logger, nil)
	snapshotJob := jobs.NewStatementSnapshotJob(statementService, repo, statementCache, logger, nil)

	warmupTask, err := jobs.NewStatementWarmupTask(jobs.StatementWarmupPayload{
		Scopes: parseWarmupScopes(cfg.WarmupScopes, logger),
	})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStatementWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskStatementSnapshot, Handler: snapshotJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

// parseWarmupScopes converts "statement_code/project_id/period_id" triples
// into province-wide warmup scopes. Malformed entries are logged and skipped;
// an empty result lets the warmup job discover scopes from reported data.
func parseWarmupScopes(raw []string, logger *slog.Logger) []jobs.StatementScope {
	var scopes []jobs.StatementScope
	for _, entry := range raw {
		parts := strings.Split(strings.TrimSpace(entry), "/")
		if len(parts) != 3 {
			logger.Warn("skipping malformed warmup scope", slog.String("scope", entry))
			continue
		}
		projectID, errP := strconv.ParseInt(parts[1], 10, 64)
		periodID, errR := strconv.ParseInt(parts[2], 10, 64)
		if parts[0] == "" || errP != nil || errR != nil {
			logger.Warn("skipping malformed warmup scope", slog.String("scope", entry))
			continue
		}
		scopes = append(scopes, jobs.StatementScope{
			StatementCode:     parts[0],
			ProjectID:         projectID,
			ReportingPeriodID: periodID,
			Level:             facility.LevelProvince,
		})
	}
	return scopes
}
