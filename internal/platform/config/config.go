// Package config centralizes the environment variables consumed by the binaries.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aggregates every parameter needed by the API and the refresh worker.
type Config struct {
	HTTPAddress string
	LogLevel    string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TMDBBaseURL     string
	TMDBAccessToken string
	TMDBMaxRPS      int

	DetailCacheTTL    time.Duration
	DetailCachePrefix string

	OverviewMaxLen int

	RateLimitBackend     string // memory | redis | off
	VoteLimitMax         int
	VoteLimitWindow      time.Duration
	ReadLimitMax         int
	ReadLimitWindow      time.Duration
	RateLimitSweepEvery  time.Duration
	RateLimitRedisPrefix string

	AutoMigrate bool

	RefreshInterval      time.Duration
	WorkerMetricsAddress string
}

func Load() (Config, error) {
	// Defaults favour local runs; environment variables override them in
	// Docker/K8s.
	cfg := Config{
		HTTPAddress:          getEnv("HTTP_ADDRESS", ":8080"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		PostgresHost:         getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:         getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:         getEnv("POSTGRES_USER", "cineswipe"),
		PostgresPassword:     getEnv("POSTGRES_PASSWORD", "cineswipe"),
		PostgresDB:           getEnv("POSTGRES_DB", "cineswipe"),
		PostgresSSLMode:      getEnv("POSTGRES_SSLMODE", "disable"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		TMDBBaseURL:          getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBAccessToken:      os.Getenv("TMDB_API_READ_ACCESS_TOKEN"),
		TMDBMaxRPS:           getEnvAsInt("TMDB_MAX_RPS", 40),
		DetailCacheTTL:       getEnvAsDuration("DETAIL_CACHE_TTL", time.Hour),
		DetailCachePrefix:    getEnv("DETAIL_CACHE_PREFIX", "detail"),
		OverviewMaxLen:       getEnvAsInt("OVERVIEW_MAX_LEN", 500),
		RateLimitBackend:     getEnv("RATE_LIMIT_BACKEND", "memory"),
		VoteLimitMax:         getEnvAsInt("RATE_LIMIT_VOTE_MAX", 1),
		VoteLimitWindow:      getEnvAsDuration("RATE_LIMIT_VOTE_WINDOW", time.Second),
		ReadLimitMax:         getEnvAsInt("RATE_LIMIT_READ_MAX", 30),
		ReadLimitWindow:      getEnvAsDuration("RATE_LIMIT_READ_WINDOW", time.Second),
		RateLimitSweepEvery:  getEnvAsDuration("RATE_LIMIT_SWEEP_EVERY", time.Minute),
		RateLimitRedisPrefix: getEnv("RATE_LIMIT_REDIS_PREFIX", "ratelimit"),
		AutoMigrate:          getEnvAsBool("DB_AUTO_MIGRATE", true),
		RefreshInterval:      getEnvAsDuration("CATALOG_REFRESH_INTERVAL", 6*time.Hour),
		WorkerMetricsAddress: getEnv("WORKER_METRICS_ADDRESS", ":9090"),
	}

	dbStr := getEnv("REDIS_DB", "0")
	dbInt, err := strconv.Atoi(dbStr)
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = dbInt

	return cfg, nil
}

func (c Config) PostgresDSN() string {
	// DSN format stays compatible with GORM and migration tooling.
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
		c.PostgresSSLMode,
	)
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvAsBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	switch value {
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return true
	}
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
