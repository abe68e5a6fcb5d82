// Package ratelimit provides distributed request throttling backed by
// redis, with an in-memory token bucket fallback when redis is down.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/teampulse/teampulse/internal/monitoring"
)

// Config holds the limiter bounds.
type Config struct {
	// Per-IP request budget per minute across all endpoints.
	IPLimitPerMin int
	// Per-IP budget per minute for the analyze endpoints, which are far
	// more expensive than the rest of the API.
	AnalyzeLimitPerMin int
	BurstMultiplier    int
}

func DefaultConfig() Config {
	return Config{
		IPLimitPerMin:      60,
		AnalyzeLimitPerMin: 10,
		BurstMultiplier:    2,
	}
}

// Result is one rate limit decision.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RateLimiter checks budgets against redis when available and an in-memory
// token bucket otherwise.
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	config       Config
	metrics      *monitoring.Metrics

	fallbackLimiters map[string]*rate.Limiter
	fallbackMutex    sync.RWMutex
}

func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	rl := &RateLimiter{
		redisClient:      redisClient,
		config:           config,
		metrics:          metrics,
		fallbackLimiters: make(map[string]*rate.Limiter),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	go rl.cleanupFallbackLimiters()

	return rl
}

// AllowIP checks the general per-minute budget for an IP.
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	key := fmt.Sprintf("ratelimit:ip:%s", ip)
	return rl.allow(ctx, key, rl.config.IPLimitPerMin, time.Minute)
}

// AllowAnalyze checks the tighter analyze-endpoint budget for an IP.
func (rl *RateLimiter) AllowAnalyze(ctx context.Context, ip string) (*Result, error) {
	key := fmt.Sprintf("ratelimit:analyze:%s", ip)
	return rl.allow(ctx, key, rl.config.AnalyzeLimitPerMin, time.Minute)
}

func (rl *RateLimiter) allow(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	if rl.redisClient.IsEnabled() && rl.redisLimiter != nil {
		result, err := rl.allowRedis(ctx, key, limit, period)
		if err != nil {
			slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
			return rl.allowFallback(key, limit, period)
		}
		return result, nil
	}

	return rl.allowFallback(key, limit, period)
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit,
		Burst:  limit,
		Period: period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: res.RetryAfter,
	}, nil
}

func (rl *RateLimiter) allowFallback(key string, limit int, period time.Duration) (*Result, error) {
	rl.fallbackMutex.Lock()
	limiter, exists := rl.fallbackLimiters[key]
	if !exists {
		rps := rate.Limit(float64(limit) / period.Seconds())
		burst := limit * rl.config.BurstMultiplier
		if burst < 5 {
			burst = 5
		}
		limiter = rate.NewLimiter(rps, burst)
		rl.fallbackLimiters[key] = limiter
	}
	rl.fallbackMutex.Unlock()

	allowed := limiter.Allow()

	remaining := int(limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(period),
	}
	if !allowed {
		result.RetryAfter = time.Until(result.ResetAt)
	}

	return result, nil
}

// cleanupFallbackLimiters caps the fallback map so long-running processes
// do not accumulate a bucket per IP forever.
func (rl *RateLimiter) cleanupFallbackLimiters() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		rl.fallbackMutex.Lock()
		if len(rl.fallbackLimiters) > 1000 {
			slog.Info("Cleaning up fallback rate limiters", "count", len(rl.fallbackLimiters))
			rl.fallbackLimiters = make(map[string]*rate.Limiter)
		}
		rl.fallbackMutex.Unlock()
	}
}

// GetStats reports limiter state for the metrics endpoint.
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.RLock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMutex.RUnlock()

	stats := map[string]interface{}{
		"redis_enabled":     rl.redisClient.IsEnabled(),
		"fallback_limiters": fallbackCount,
	}
	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
	}
	return stats
}
