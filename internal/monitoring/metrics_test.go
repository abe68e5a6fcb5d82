package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCountersAndStats(t *testing.T) {
	m := NewMetrics()

	m.IncrementRequest()
	m.IncrementRequest()
	m.IncrementError()
	m.IncrementCacheHit()
	m.IncrementCacheMiss()
	m.RecordRun(100, 3)
	m.RecordRequestByStatus(200)
	m.RecordRequestByStatus(200)
	m.RecordRequestByStatus(500)

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats["total_requests"])
	assert.Equal(t, int64(1), stats["error_count"])
	assert.InDelta(t, 50.0, stats["error_rate_percent"].(float64), 1e-9)
	assert.InDelta(t, 50.0, stats["cache_hit_rate_percent"].(float64), 1e-9)
	assert.Equal(t, int64(1), stats["analysis_runs"])
	assert.Equal(t, int64(100), stats["records_ingested"])
	assert.Equal(t, int64(3), stats["records_dropped"])

	dist := stats["status_code_distribution"].(map[int]int64)
	assert.Equal(t, int64(2), dist[200])
	assert.Equal(t, int64(1), dist[500])
}

func TestMetricsPercentiles(t *testing.T) {
	m := NewMetrics()
	assert.Equal(t, time.Duration(0), m.GetPercentileResponseTime(95))

	for i := 1; i <= 100; i++ {
		m.RecordResponseTime(time.Duration(i) * time.Millisecond)
	}

	assert.Equal(t, 50*time.Millisecond, m.GetPercentileResponseTime(50))
	assert.GreaterOrEqual(t, m.GetPercentileResponseTime(99), 95*time.Millisecond)
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.IncrementRequest()
	m.RecordResponseTime(time.Second)
	m.RecordRequestByStatus(200)

	m.Reset()

	stats := m.GetStats()
	assert.Equal(t, int64(0), stats["total_requests"])
	assert.Empty(t, stats["status_code_distribution"])
	assert.Equal(t, time.Duration(0), m.GetPercentileResponseTime(50))
}
