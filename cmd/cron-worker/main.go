package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/streetmed-backend/internal/admission"
	"github.com/angelmondragon/streetmed-backend/internal/assignments"
	"github.com/angelmondragon/streetmed-backend/internal/cron"
	"github.com/angelmondragon/streetmed-backend/internal/queue"
	"github.com/angelmondragon/streetmed-backend/internal/rounds"
	"github.com/angelmondragon/streetmed-backend/pkg/config"
	"github.com/angelmondragon/streetmed-backend/pkg/db"
	"github.com/angelmondragon/streetmed-backend/pkg/logger"
	"github.com/angelmondragon/streetmed-backend/pkg/metrics"
	"github.com/angelmondragon/streetmed-backend/pkg/migrate"
	"github.com/angelmondragon/streetmed-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	coordination := metrics.NewCoordinationMetrics(prometheus.DefaultRegisterer)
	schedule, err := buildSchedule(cfg, logg, dbClient, redisClient, coordination)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewSweepLock(redisClient, redisClient.LockKey("scheduler"), cfg.Scheduler.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Schedule: schedule,
		Lock:     lock,
		Metrics:  metrics.NewSchedulerMetrics(prometheus.DefaultRegisterer),
		Tick:     cfg.Scheduler.Tick,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        schedule.Names(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildSchedule(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, coordination *metrics.CoordinationMetrics) (*cron.Schedule, error) {
	conn := dbClient.DB()
	view, err := queue.NewView(queue.NewRepository(conn), redisClient, cfg.Queue.SnapshotTTL, logg, coordination)
	if err != nil {
		return nil, err
	}

	schedule := cron.NewSchedule()

	if cfg.FeatureFlags.AutoAssignEnabled {
		admissionSvc, err := admission.NewService(admission.NewRepository(conn), rounds.NewRepository(conn), dbClient, view, coordination)
		if err != nil {
			return nil, fmt.Errorf("admission service: %w", err)
		}
		job, err := cron.NewAutoAssignJob(cron.AutoAssignJobParams{Logger: logg, Admission: admissionSvc})
		if err != nil {
			return nil, err
		}
		if err := schedule.Add(job, cfg.Scheduler.AutoAssignEvery); err != nil {
			return nil, err
		}
	}

	if cfg.Scheduler.StaleReportAfter > 0 || cfg.Scheduler.AssignmentReleaseAfter > 0 {
		assignmentsSvc, err := assignments.NewService(assignments.NewRepository(conn), dbClient, view, coordination)
		if err != nil {
			return nil, fmt.Errorf("assignments service: %w", err)
		}
		job, err := cron.NewStaleAssignmentJob(cron.StaleAssignmentJobParams{
			Logger:       logg,
			Assignments:  assignmentsSvc,
			ReportAfter:  cfg.Scheduler.StaleReportAfter,
			ReleaseAfter: cfg.Scheduler.AssignmentReleaseAfter,
		})
		if err != nil {
			return nil, err
		}
		if err := schedule.Add(job, cfg.Scheduler.StaleSweepEvery); err != nil {
			return nil, err
		}
	}

	return schedule, nil
}
