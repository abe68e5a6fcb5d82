// Package cache provides a TTL response cache for the analyze endpoint.
// Identical request bodies produce identical results, so the full JSON
// response can be replayed without rerunning the engine.
package cache

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/teampulse/teampulse/internal/monitoring"
)

type item struct {
	data      []byte
	expiresAt time.Time
}

func (i *item) expired() bool {
	return time.Now().After(i.expiresAt)
}

// Cache is a thread-safe in-memory cache with a single TTL.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*item
	ttl   time.Duration
}

// NewCache starts a cache with the given TTL and a background sweeper.
func NewCache(ttl time.Duration) *Cache {
	c := &Cache{
		items: make(map[string]*item),
		ttl:   ttl,
	}
	go c.sweep()
	return c
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		for key, it := range c.items {
			if it.expired() {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}

func (c *Cache) generateKey(input []byte) string {
	return fmt.Sprintf("%x", md5.Sum(input))
}

// Get returns the cached bytes for a key, if present and fresh.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	it, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if it.expired() {
		c.Delete(key)
		return nil, false
	}
	return it.data, true
}

// Set stores bytes under a key with the cache's TTL.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &item{data: data, expiresAt: time.Now().Add(c.ttl)}
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear drops every entry. Exposed through the cache admin endpoint.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*item)
}

func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats reports entry counts for the cache stats endpoint.
func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	expired := 0
	for _, it := range c.items {
		if it.expired() {
			expired++
		}
	}

	return map[string]interface{}{
		"total_items":   len(c.items),
		"expired_items": expired,
		"active_items":  len(c.items) - expired,
		"ttl_seconds":   c.ttl.Seconds(),
	}
}

// Middleware caches successful responses for POST requests to the given
// path, keyed by request body.
func (c *Cache) Middleware(path string, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodPost || ctx.Request.URL.Path != path {
			ctx.Next()
			return
		}

		body, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.Next()
			return
		}
		ctx.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		cacheKey := c.generateKey(body)

		if cached, found := c.Get(cacheKey); found {
			slog.Debug("Cache hit", "key", cacheKey[:8]+"...")
			metrics.IncrementCacheHit()
			ctx.Data(http.StatusOK, "application/json", cached)
			ctx.Abort()
			return
		}

		metrics.IncrementCacheMiss()

		wrapper := &responseWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}
		ctx.Writer = wrapper
		ctx.Next()

		if ctx.Writer.Status() == http.StatusOK {
			c.Set(cacheKey, wrapper.body.Bytes())
		}
	}
}

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
