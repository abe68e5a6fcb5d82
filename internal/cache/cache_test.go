package cache

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teampulse/teampulse/internal/monitoring"
)

func TestCacheGetSetExpiry(t *testing.T) {
	c := NewCache(50 * time.Millisecond)

	_, found := c.Get("missing")
	assert.False(t, found)

	c.Set("k", []byte("v"))
	data, found := c.Get("k")
	require.True(t, found)
	assert.Equal(t, []byte("v"), data)
	assert.Equal(t, 1, c.Size())

	time.Sleep(60 * time.Millisecond)
	_, found = c.Get("k")
	assert.False(t, found, "entries expire after the TTL")
}

func TestCacheClearAndStats(t *testing.T) {
	c := NewCache(time.Minute)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))

	stats := c.Stats()
	assert.Equal(t, 2, stats["total_items"])
	assert.Equal(t, 2, stats["active_items"])

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestMiddlewareReplaysIdenticalRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c := NewCache(time.Minute)
	metrics := monitoring.NewMetrics()

	handlerCalls := 0
	router := gin.New()
	router.Use(c.Middleware("/api/v1/analyze", metrics))
	router.POST("/api/v1/analyze", func(ctx *gin.Context) {
		handlerCalls++
		ctx.JSON(http.StatusOK, gin.H{"ok": true})
	})

	do := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(body))
		router.ServeHTTP(w, req)
		return w
	}

	first := do(`{"records":[]}`)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, 1, handlerCalls)

	second := do(`{"records":[]}`)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, 1, handlerCalls, "identical body must be served from cache")
	assert.Equal(t, first.Body.String(), second.Body.String())

	do(`{"records":[{"assignee":"Alice"}]}`)
	assert.Equal(t, 2, handlerCalls, "different body bypasses the cache")
}

func TestMiddlewareIgnoresOtherPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c := NewCache(time.Minute)
	metrics := monitoring.NewMetrics()

	router := gin.New()
	router.Use(c.Middleware("/api/v1/analyze", metrics))
	router.GET("/health", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, c.Size())
}
