package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-app/gatehouse/internal/app"
	"github.com/gatehouse-app/gatehouse/internal/idp"
	jobmetrics "github.com/gatehouse-app/gatehouse/internal/jobs"
	"github.com/gatehouse-app/gatehouse/internal/platform/db"
	"github.com/gatehouse-app/gatehouse/internal/users"
	"github.com/gatehouse-app/gatehouse/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	var pool *pgxpool.Pool
	if cfg.Persistent() {
		pool, err = db.New(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
	} else {
		logger.Warn("no database configured, directory sync runs are skipped")
	}

	var directory jobs.Directory
	idpCfg := idp.Config{
		Domain:       cfg.IdPDomain,
		ClientID:     cfg.IdPM2MClientID,
		ClientSecret: cfg.IdPM2MClientSecret,
		Connection:   cfg.IdPConnection,
		AppClientID:  cfg.OIDCClientID,
	}
	if idpCfg.Configured() {
		directory = idp.NewClient(idpCfg)
	} else {
		logger.Warn("management api not configured, directory sync runs are skipped")
	}

	var mirror users.Repository
	if pool != nil {
		mirror = users.NewPGRepository(pool)
	}

	metrics := jobmetrics.NewMetrics(nil)
	syncJob := jobs.NewUserSyncJob(directory, mirror, logger, metrics)

	syncTask, err := jobs.NewUserSyncTask(jobs.UserSyncPayload{Trigger: "scheduled"})
	if err != nil {
		logger.Error("build sync task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskUserSync, Handler: syncJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/30 * * * *", Task: syncTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("create worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker exited", slog.Any("error", err))
		os.Exit(1)
	}
}
