package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edurewards/edurewards-backend/api/routes"
	"github.com/edurewards/edurewards-backend/internal/redemptions"
	"github.com/edurewards/edurewards-backend/pkg/config"
	"github.com/edurewards/edurewards-backend/pkg/db"
	"github.com/edurewards/edurewards-backend/pkg/instance"
	"github.com/edurewards/edurewards-backend/pkg/logger"
	"github.com/edurewards/edurewards-backend/pkg/metrics"
	"github.com/edurewards/edurewards-backend/pkg/migrate"
	"github.com/edurewards/edurewards-backend/pkg/redis"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
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

	dbClient, err := db.Open(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	// redis is optional: offline deployments run on SQLite alone
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
	}

	store, err := redemptions.SelectStore(cfg.FeatureFlags, dbClient.DB(), redisClient, cfg.Redemption.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to select redemption store", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	redemptionService, err := redemptions.NewService(redemptions.ServiceParams{
		Store:                 store,
		ExpiryDays:            cfg.Redemption.ExpiryDays,
		MaxGenerationAttempts: cfg.Redemption.MaxGenerationAttempts,
		StoreTimeout:          cfg.Redemption.StoreTimeout,
		Logger:                logg,
		Metrics:               metrics.NewRedemptionMetrics(registry),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create redemption service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":           cfg.App.Env,
		"addr":          addr,
		"instance":      instance.GetID(),
		"store_backend": cfg.FeatureFlags.StoreBackend,
		"sqlite":        cfg.FeatureFlags.UseSQLite,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, redemptionService, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
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
		err := multierr.Combine(
			server.Shutdown(shutdownCtx),
			closeRedis(redisClient),
			dbClient.Close(),
		)
		if err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func closeRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
