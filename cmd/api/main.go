// API binary: loads configuration, wires dependencies and serves HTTP.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cineswipe/cineswipe/internal/app/cards"
	"github.com/cineswipe/cineswipe/internal/app/catalog"
	"github.com/cineswipe/cineswipe/internal/app/httpapi"
	"github.com/cineswipe/cineswipe/internal/app/leaderboard"
	"github.com/cineswipe/cineswipe/internal/app/voting"
	"github.com/cineswipe/cineswipe/internal/domain"
	"github.com/cineswipe/cineswipe/internal/platform/clock"
	"github.com/cineswipe/cineswipe/internal/platform/config"
	"github.com/cineswipe/cineswipe/internal/platform/health"
	"github.com/cineswipe/cineswipe/internal/platform/ids"
	"github.com/cineswipe/cineswipe/internal/platform/logger"
	"github.com/cineswipe/cineswipe/internal/platform/migrations"
	"github.com/cineswipe/cineswipe/internal/platform/ratelimit"
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

	// One shared connection serves the whole process: pooling plus readiness
	// checks ride on it.
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
		// Automatic migrations run only when enabled to avoid surprises in
		// production.
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
	voteRepo := postgresstorage.NewVoteRepository(db)
	detailCache := redisstorage.NewDetailCache(redisClient, cfg.DetailCachePrefix, cfg.DetailCacheTTL)
	systemClock := clock.NewSystemClock()
	idGen := ids.NewGenerator()

	provider := tmdb.NewClient(cfg.TMDBBaseURL, cfg.TMDBAccessToken, cfg.TMDBMaxRPS, nil)

	buckets := map[string]ratelimit.Bucket{
		"vote": {Max: cfg.VoteLimitMax, Window: cfg.VoteLimitWindow},
		"read": {Max: cfg.ReadLimitMax, Window: cfg.ReadLimitWindow},
	}
	var admission domain.Admission
	switch cfg.RateLimitBackend {
	case "redis":
		admission = ratelimit.NewRedis(redisClient, buckets, cfg.RateLimitRedisPrefix)
	case "off":
		admission = ratelimit.NewNoop()
	default:
		memLimiter := ratelimit.NewMemory(buckets, cfg.RateLimitSweepEvery, systemClock)
		defer memLimiter.Stop()
		admission = memLimiter
	}

	catalogSvc := catalog.NewService(contentRepo, genreRepo, provider, detailCache, systemClock, logger.L(), cfg.OverviewMaxLen)
	votingSvc := voting.NewService(voteRepo, systemClock, idGen)
	cardSvc := cards.NewService(contentRepo, voteRepo, catalogSvc, logger.L())
	boardSvc := leaderboard.NewService(contentRepo, systemClock)

	mux := http.NewServeMux()
	checker := health.NewChecker(sqlDB, redisClient)

	api := httpapi.New(votingSvc, cardSvc, boardSvc, catalogSvc, admission, logger.L())
	api.Register(mux)
	mux.HandleFunc("/readyz", checker.ReadyHandler())
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.HTTPAddress, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	logger.Info("api listening", "addr", cfg.HTTPAddress)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", "err", err)
	}
}
