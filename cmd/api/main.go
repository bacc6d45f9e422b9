package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/streetmed-backend/api/routes"
	"github.com/angelmondragon/streetmed-backend/internal/admission"
	"github.com/angelmondragon/streetmed-backend/internal/assignments"
	"github.com/angelmondragon/streetmed-backend/internal/lottery"
	"github.com/angelmondragon/streetmed-backend/internal/orders"
	"github.com/angelmondragon/streetmed-backend/internal/queue"
	"github.com/angelmondragon/streetmed-backend/internal/rounds"
	"github.com/angelmondragon/streetmed-backend/internal/signups"
	"github.com/angelmondragon/streetmed-backend/pkg/config"
	"github.com/angelmondragon/streetmed-backend/pkg/db"
	"github.com/angelmondragon/streetmed-backend/pkg/logger"
	"github.com/angelmondragon/streetmed-backend/pkg/metrics"
	"github.com/angelmondragon/streetmed-backend/pkg/migrate"
	"github.com/angelmondragon/streetmed-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	coordination := metrics.NewCoordinationMetrics(registry)

	services, err := buildServices(cfg, logg, dbClient, redisClient, coordination)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, coordination *metrics.CoordinationMetrics) (routes.Services, error) {
	conn := dbClient.DB()
	roundsRepo := rounds.NewRepository(conn)
	signupsRepo := signups.NewRepository(conn)

	view, err := queue.NewView(queue.NewRepository(conn), redisClient, cfg.Queue.SnapshotTTL, logg, coordination)
	if err != nil {
		return routes.Services{}, err
	}

	ordersSvc, err := orders.NewService(orders.NewRepository(conn), dbClient, view)
	if err != nil {
		return routes.Services{}, err
	}
	assignmentsSvc, err := assignments.NewService(assignments.NewRepository(conn), dbClient, view, coordination)
	if err != nil {
		return routes.Services{}, err
	}
	roundsSvc, err := rounds.NewService(roundsRepo, dbClient, view, cfg.Rounds.DefaultOrderCapacity)
	if err != nil {
		return routes.Services{}, err
	}
	signupsSvc, err := signups.NewService(signupsRepo, roundsRepo, dbClient)
	if err != nil {
		return routes.Services{}, err
	}
	admissionSvc, err := admission.NewService(admission.NewRepository(conn), roundsRepo, dbClient, view, coordination)
	if err != nil {
		return routes.Services{}, err
	}
	lotterySvc, err := lottery.NewService(signupsRepo, roundsRepo, dbClient, lottery.NewDrawer(cfg.Lottery.Seed), coordination)
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Orders:      ordersSvc,
		Assignments: assignmentsSvc,
		Rounds:      roundsSvc,
		Signups:     signupsSvc,
		Admission:   admissionSvc,
		Lottery:     lotterySvc,
		Queue:       view,
	}, nil
}
