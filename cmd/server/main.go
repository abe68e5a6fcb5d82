// Command server runs the team analytics HTTP API: it accepts ticket
// snapshots as JSON or CSV uploads, runs the analysis engine and serves
// the persisted run history.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/teampulse/teampulse/internal/analysis"
	"github.com/teampulse/teampulse/internal/cache"
	"github.com/teampulse/teampulse/internal/config"
	"github.com/teampulse/teampulse/internal/database"
	apperrors "github.com/teampulse/teampulse/internal/errors"
	"github.com/teampulse/teampulse/internal/middleware"
	"github.com/teampulse/teampulse/internal/monitoring"
	"github.com/teampulse/teampulse/internal/privacy"
	"github.com/teampulse/teampulse/internal/ratelimit"
	"github.com/teampulse/teampulse/internal/security"
)

func getEnvOrDefault(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	logger := monitoring.NewLogger()
	slog.SetDefault(logger.Logger)

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	dataDir := getEnvOrDefault("DATA_DIR", "./data")
	db, err := database.NewDB(dataDir)
	if err != nil {
		slog.Error("Failed to open database", "data_dir", dataDir, "error", err)
		os.Exit(1)
	}
	defer apperrors.SafeClose(db, "database")

	redisClient, err := ratelimit.NewRedisClient(
		os.Getenv("REDIS_ADDR"),
		os.Getenv("REDIS_PASSWORD"),
		getEnvInt("REDIS_DB", 0),
	)
	if err != nil {
		slog.Warn("Redis connection failed, continuing with in-memory rate limiting", "error", err)
	}
	defer apperrors.SafeClose(redisClient, "redis")

	metrics := monitoring.NewMetrics()
	limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.Config{
		IPLimitPerMin:      getEnvInt("RATE_LIMIT_IP_PER_MIN", 60),
		AnalyzeLimitPerMin: getEnvInt("RATE_LIMIT_ANALYZE_PER_MIN", 10),
		BurstMultiplier:    getEnvInt("RATE_LIMIT_BURST_MULTIPLIER", 2),
	}, metrics)

	srv := newServer(serverDeps{
		logger:        logger,
		metrics:       metrics,
		limiter:       limiter,
		redis:         redisClient,
		db:            db,
		repo:          database.NewRepository(db),
		cache:         cache.NewCache(time.Duration(getEnvInt("CACHE_TTL_MINUTES", 15)) * time.Minute),
		security:      security.NewSecurityMiddleware(security.DefaultSecurityConfig()),
		compression:   middleware.NewCompression(middleware.DefaultCompressionConfig()),
		anonymizer:    privacy.NewAnonymizer(getEnvOrDefault("ANONYMIZE_SALT", "teampulse")),
		allowedOrigin: getEnvOrDefault("ALLOWED_ORIGINS", "*"),
		engineDefaults: analysis.Config{
			Thresholds:         config.FromEnv(),
			DateDrivenProjects: getEnvList("DATE_DRIVEN_PROJECTS"),
			Strict:             getEnvBool("ANALYZE_STRICT", false),
			Workers:            getEnvInt("ANALYZE_WORKERS", 0),
		},
	})

	port := getEnvOrDefault("PORT", "8080")
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.SystemLogger("startup", "listening on port "+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.SystemLogger("shutdown", "signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Forced shutdown", "error", err)
	}

	logger.SystemLogger("shutdown", "server stopped")
}
