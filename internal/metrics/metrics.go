// Package metrics keeps the widget's running performance counters. It is a
// pure aggregator; only successful webhook completions and cache hits feed it.
package metrics

import (
	"fmt"
	"sync"
	"time"
)

// Metrics accumulates send and cache-hit counters with an incremental mean
// of response latency.
type Metrics struct {
	mu                  sync.Mutex
	messagesSent        int
	averageResponseTime time.Duration
	cacheHits           int
}

func New() *Metrics {
	return &Metrics{}
}

// RecordSend notes one successful webhook exchange and folds its latency into
// the running mean.
func (m *Metrics) RecordSend(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesSent++
	n := time.Duration(m.messagesSent)
	m.averageResponseTime = (m.averageResponseTime*(n-1) + latency) / n
}

// RecordCacheHit notes one response served from the cache.
func (m *Metrics) RecordCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	MessagesSent        int
	AverageResponseTime time.Duration
	CacheHits           int
	CacheSize           int
	CacheHitRate        string
}

// Snapshot renders the current counters. The hit rate is a percentage of
// cache hits over sent messages, "0%" before anything has been sent.
func (m *Metrics) Snapshot(cacheSize int) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	rate := "0%"
	if m.messagesSent > 0 {
		rate = fmt.Sprintf("%.2f%%", float64(m.cacheHits)/float64(m.messagesSent)*100)
	}
	return Snapshot{
		MessagesSent:        m.messagesSent,
		AverageResponseTime: m.averageResponseTime,
		CacheHits:           m.cacheHits,
		CacheSize:           cacheSize,
		CacheHitRate:        rate,
	}
}
