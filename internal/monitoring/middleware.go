package monitoring

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// MonitoringMiddleware records per-request counters and logs every request.
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.IncrementRequest()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		metrics.RecordResponseTime(duration)
		metrics.RecordRequestByStatus(statusCode)
		if statusCode >= 400 {
			metrics.IncrementError()
		}

		logger.RequestLogger(c.Request.Method, c.Request.URL.Path, c.ClientIP(), statusCode, duration)

		if duration > 5*time.Second {
			logger.Warn("Slow request",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"duration_ms", duration.Milliseconds(),
			)
		}
		if statusCode >= 500 {
			logger.SystemLogger("server_error", fmt.Sprintf("Status %d for %s %s", statusCode, c.Request.Method, c.Request.URL.Path))
		}
	}
}
