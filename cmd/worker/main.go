// Background worker: refreshes the catalog from the provider on a schedule
// and exposes its own metrics endpoint.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cineswipe/cineswipe/internal/app/catalog"
	"github.com/cineswipe/cineswipe/internal/app/worker"
	"github.com/cineswipe/cineswipe/internal/platform/clock"
	"github.com/cineswipe/cineswipe/internal/platform/config"
	"github.com/cineswipe/cineswipe/internal/platform/health"
	"github.com/cineswipe/cineswipe/internal/platform/logger"
	"github.com/cineswipe/cineswipe/internal/platform/migrations"
	postgresstorage "github.com/cineswipe/cineswipe/internal/platform/storage/postgres"
	redisstorage "github.com/cineswipe/cineswipe/internal/platform/storage/redis"
	"github.com/cineswipe/cineswipe/internal/platform/tmdb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	// The worker shares the API's GORM connection setup so migrations and
	// models never diverge between the two binaries.
	db, err := postgresstorage.Open(ctx, cfg.PostgresDSN())
	if err != nil {
		logger.Fatal("postgres connection failed", "err", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("unwrapping sql.DB failed", "err", err)
	}
	defer sqlDB.Close()

	if cfg.AutoMigrate {
		if err := migrations.Run(db); err != nil {
			logger.Fatal("automatic migration failed", "err", err)
		}
	}

	redisClient, err := redisstorage.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("redis connection failed", "err", err)
	}
	defer redisClient.Close()

	contentRepo := postgresstorage.NewContentRepository(db)
	genreRepo := postgresstorage.NewGenreRepository(db)
	detailCache := redisstorage.NewDetailCache(redisClient, cfg.DetailCachePrefix, cfg.DetailCacheTTL)
	systemClock := clock.NewSystemClock()
	provider := tmdb.NewClient(cfg.TMDBBaseURL, cfg.TMDBAccessToken, cfg.TMDBMaxRPS, nil)

	catalogSvc := catalog.NewService(contentRepo, genreRepo, provider, detailCache, systemClock, logger.L(), cfg.OverviewMaxLen)
	checker := health.NewChecker(sqlDB, redisClient)

	if cfg.WorkerMetricsAddress != "" {
		go func() {
			// Metrics keep the refresh loop observable while the main
			// goroutine drives the schedule.
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/readyz", checker.ReadyHandler())
			logger.Info("worker metrics listening", "addr", cfg.WorkerMetricsAddress)
			if err := http.ListenAndServe(cfg.WorkerMetricsAddress, mux); err != nil {
				logger.Error("worker metrics server error", "err", err)
			}
		}()
	}

	refresher := worker.NewRefresher(catalogSvc, cfg.RefreshInterval, logger.L())

	logger.Info("refresh worker started", "interval", cfg.RefreshInterval.String())
	err = refresher.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logger.Fatal("worker stopped with error", "err", err)
	}

	logger.Info("worker stopped")
}
