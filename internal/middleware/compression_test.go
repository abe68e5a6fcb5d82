package middleware

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compressionRouter(cm *Compression) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(cm.Handler())
	router.GET("/json", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"payload": strings.Repeat("x", 2048)})
	})
	router.GET("/binary", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/octet-stream", []byte{0x01, 0x02})
	})
	return router
}

func TestCompressionRoundTrip(t *testing.T) {
	cm := NewCompression(DefaultCompressionConfig())
	router := compressionRouter(cm)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/json", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	gr, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	decoded, err := io.ReadAll(gr)
	require.NoError(t, err)

	var body map[string]string
	require.NoError(t, json.Unmarshal(decoded, &body))
	assert.Len(t, body["payload"], 2048)

	stats := cm.GetStats()
	assert.Equal(t, int64(1), stats["compressed_responses"])
}

func TestCompressionSkippedWithoutAcceptHeader(t *testing.T) {
	router := compressionRouter(NewCompression(DefaultCompressionConfig()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/json", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Contains(t, w.Body.String(), "payload")
}

func TestCompressionSkipsUnlistedContentTypes(t *testing.T) {
	router := compressionRouter(NewCompression(DefaultCompressionConfig()))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/binary", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, []byte{0x01, 0x02}, w.Body.Bytes())
}
