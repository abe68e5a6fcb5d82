package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// IPRateLimitMiddleware enforces the general per-IP budget and injects the
// standard rate limit headers. A limiter failure never blocks the request.
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowIP(c.Request.Context(), ip)
		if err != nil {
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		rl.apply(c, result, "per-minute request")
	}
}

// AnalyzeRateLimitMiddleware enforces the tighter analyze budget on the
// analyze endpoints only.
func (rl *RateLimiter) AnalyzeRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, "/api/v1/analyze") {
			c.Next()
			return
		}

		ip := c.ClientIP()
		result, err := rl.AllowAnalyze(c.Request.Context(), ip)
		if err != nil {
			slog.Error("Analyze rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		rl.apply(c, result, "analysis")
	}
}

func (rl *RateLimiter) apply(c *gin.Context, result *Result, budget string) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

	if result.Allowed {
		c.Next()
		return
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitBlock()
	}

	retryAfter := int(result.RetryAfter.Seconds())
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":       "rate limit exceeded",
		"message":     "You have exceeded the " + budget + " limit of " + strconv.Itoa(result.Limit),
		"retry_after": retryAfter,
		"reset_at":    result.ResetAt.Unix(),
	})
	c.Abort()
}
