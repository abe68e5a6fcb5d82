package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds in-process counters for the service. All counters are
// cumulative since start; the metrics endpoint exposes them as a snapshot.
type Metrics struct {
	RequestCount    int64
	ErrorCount      int64
	CacheHits       int64
	CacheMisses     int64
	AnalysisRuns    int64
	RecordsIngested int64
	RecordsDropped  int64
	RateLimitBlocks int64
	StartTime       time.Time

	responseTimes   []time.Duration
	responseTimesMu sync.RWMutex

	requestsByStatus map[int]int64
	statusMu         sync.RWMutex
}

func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:        time.Now(),
		responseTimes:    make([]time.Duration, 0, 1000),
		requestsByStatus: make(map[int]int64),
	}
}

func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

func (m *Metrics) IncrementRateLimitBlock() {
	atomic.AddInt64(&m.RateLimitBlocks, 1)
}

// RecordRun accumulates per-run ingest volumes.
func (m *Metrics) RecordRun(records, dropped int) {
	atomic.AddInt64(&m.AnalysisRuns, 1)
	atomic.AddInt64(&m.RecordsIngested, int64(records))
	atomic.AddInt64(&m.RecordsDropped, int64(dropped))
}

// RecordResponseTime keeps the last 1000 samples for percentile queries.
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.responseTimesMu.Lock()
	m.responseTimes = append(m.responseTimes, duration)
	if len(m.responseTimes) > 1000 {
		m.responseTimes = m.responseTimes[1:]
	}
	m.responseTimesMu.Unlock()
}

func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	m.requestsByStatus[statusCode]++
}

// GetPercentileResponseTime returns the p-th percentile of recent response
// times.
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.responseTimesMu.RLock()
	defer m.responseTimesMu.RUnlock()

	if len(m.responseTimes) == 0 {
		return 0
	}

	times := make([]time.Duration, len(m.responseTimes))
	copy(times, m.responseTimes)
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	index := int(float64(len(times)-1) * percentile / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}
	return times[index]
}

func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()

	distribution := make(map[int]int64, len(m.requestsByStatus))
	for code, count := range m.requestsByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetStats returns the full metrics snapshot for the metrics endpoint.
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)
	cacheHits := atomic.LoadInt64(&m.CacheHits)
	cacheMisses := atomic.LoadInt64(&m.CacheMisses)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	cacheHitRate := float64(0)
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total) * 100
	}

	return map[string]interface{}{
		"uptime_seconds":           time.Since(m.StartTime).Seconds(),
		"total_requests":           requests,
		"error_count":              errors,
		"error_rate_percent":       errorRate,
		"cache_hits":               cacheHits,
		"cache_misses":             cacheMisses,
		"cache_hit_rate_percent":   cacheHitRate,
		"analysis_runs":            atomic.LoadInt64(&m.AnalysisRuns),
		"records_ingested":         atomic.LoadInt64(&m.RecordsIngested),
		"records_dropped":          atomic.LoadInt64(&m.RecordsDropped),
		"rate_limit_blocks":        atomic.LoadInt64(&m.RateLimitBlocks),
		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1e6,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1e6,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1e6,
		"status_code_distribution": m.GetStatusCodeDistribution(),
		"start_time":               m.StartTime.Format(time.RFC3339),
	}
}

// Reset clears all counters. Used by tests.
func (m *Metrics) Reset() {
	atomic.StoreInt64(&m.RequestCount, 0)
	atomic.StoreInt64(&m.ErrorCount, 0)
	atomic.StoreInt64(&m.CacheHits, 0)
	atomic.StoreInt64(&m.CacheMisses, 0)
	atomic.StoreInt64(&m.AnalysisRuns, 0)
	atomic.StoreInt64(&m.RecordsIngested, 0)
	atomic.StoreInt64(&m.RecordsDropped, 0)
	atomic.StoreInt64(&m.RateLimitBlocks, 0)

	m.responseTimesMu.Lock()
	m.responseTimes = m.responseTimes[:0]
	m.responseTimesMu.Unlock()

	m.statusMu.Lock()
	m.requestsByStatus = make(map[int]int64)
	m.statusMu.Unlock()

	m.StartTime = time.Now()
}
