// Package middleware holds transport middleware that is not tied to a
// specific subsystem.
package middleware

import (
	"compress/gzip"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// CompressionConfig controls response compression.
type CompressionConfig struct {
	// Level is the gzip compression level, 1 (fastest) to 9 (smallest).
	Level int
	// ContentTypes lists the response content types worth compressing.
	ContentTypes []string
}

func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		Level: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/plain",
			"text/html",
		},
	}
}

// Compression gzips responses for clients that accept it. Writers are
// pooled; the compress decision is made per response from its content
// type.
type Compression struct {
	config CompressionConfig
	pool   sync.Pool

	totalResponses      int64
	compressedResponses int64
}

func NewCompression(config CompressionConfig) *Compression {
	cm := &Compression{config: config}
	cm.pool = sync.Pool{
		New: func() interface{} {
			gz, _ := gzip.NewWriterLevel(io.Discard, config.Level)
			return gz
		},
	}
	return cm
}

// Handler returns the gin middleware. It must sit outside any middleware
// that writes response bodies, so error responses and cache replays are
// compressed too.
func (cm *Compression) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		atomic.AddInt64(&cm.totalResponses, 1)

		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
			c.Next()
			return
		}

		gz := cm.pool.Get().(*gzip.Writer)
		gz.Reset(c.Writer)

		gw := &gzipWriter{ResponseWriter: c.Writer, gz: gz, cm: cm}
		c.Writer = gw

		defer func() {
			if gw.compress {
				gz.Close()
				atomic.AddInt64(&cm.compressedResponses, 1)
			}
			c.Writer = gw.ResponseWriter
			cm.pool.Put(gz)
		}()

		c.Next()
	}
}

func (cm *Compression) shouldCompress(contentType string) bool {
	for _, ct := range cm.config.ContentTypes {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}

// GetStats reports compression counters for the metrics endpoint.
func (cm *Compression) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"total_responses":      atomic.LoadInt64(&cm.totalResponses),
		"compressed_responses": atomic.LoadInt64(&cm.compressedResponses),
	}
}

// gzipWriter decides on first write whether the response is compressible.
// The content type is only reliable at that point; gin sets it right
// before the body is written.
type gzipWriter struct {
	gin.ResponseWriter
	gz       *gzip.Writer
	cm       *Compression
	decided  bool
	compress bool
}

func (w *gzipWriter) Write(data []byte) (int, error) {
	if !w.decided {
		w.decided = true
		if w.cm.shouldCompress(w.Header().Get("Content-Type")) {
			w.compress = true
			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Set("Vary", "Accept-Encoding")
			w.Header().Del("Content-Length")
		}
	}

	if w.compress {
		return w.gz.Write(data)
	}
	return w.ResponseWriter.Write(data)
}

func (w *gzipWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}
