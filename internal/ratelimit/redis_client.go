package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the redis connection with graceful degradation: when
// no address is configured or the ping fails, the limiter runs on the
// in-memory fallback instead of refusing to start.
type RedisClient struct {
	client  *redis.Client
	enabled bool
	addr    string
}

// NewRedisClient connects to redis, or returns a disabled client when addr
// is empty.
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	if addr == "" {
		slog.Warn("Redis not configured, rate limiting will use in-memory fallback")
		return &RedisClient{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Redis ping failed, falling back to in-memory rate limiting", "error", err)
		return &RedisClient{enabled: false, addr: addr}, fmt.Errorf("redis ping failed: %w", err)
	}

	slog.Info("Redis client connected", "addr", addr, "db", db)
	return &RedisClient{client: client, enabled: true, addr: addr}, nil
}

func (r *RedisClient) GetClient() *redis.Client {
	return r.client
}

func (r *RedisClient) IsEnabled() bool {
	return r.enabled
}

func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if !r.enabled {
		return fmt.Errorf("redis is disabled")
	}
	return r.client.Ping(ctx).Err()
}

func (r *RedisClient) Close() error {
	if r.enabled && r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *RedisClient) GetPoolStats() map[string]interface{} {
	if !r.enabled || r.client == nil {
		return map[string]interface{}{"enabled": false}
	}

	stats := r.client.PoolStats()
	return map[string]interface{}{
		"enabled":     true,
		"addr":        r.addr,
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}
