package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordSend_IncrementalMean(t *testing.T) {
	m := New()
	m.RecordSend(100 * time.Millisecond)
	m.RecordSend(300 * time.Millisecond)

	snap := m.Snapshot(0)
	require.Equal(t, 2, snap.MessagesSent)
	require.Equal(t, 200*time.Millisecond, snap.AverageResponseTime)
}

func TestRecordSend_SingleSample(t *testing.T) {
	m := New()
	m.RecordSend(150 * time.Millisecond)

	snap := m.Snapshot(0)
	require.Equal(t, 1, snap.MessagesSent)
	require.Equal(t, 150*time.Millisecond, snap.AverageResponseTime)
}

func TestSnapshot_HitRateZeroSends(t *testing.T) {
	m := New()
	m.RecordCacheHit()

	snap := m.Snapshot(0)
	require.Equal(t, "0%", snap.CacheHitRate)
	require.Equal(t, 1, snap.CacheHits)
}

func TestSnapshot_HitRateFormatting(t *testing.T) {
	m := New()
	m.RecordSend(10 * time.Millisecond)
	m.RecordCacheHit()

	snap := m.Snapshot(5)
	require.Equal(t, "100.00%", snap.CacheHitRate)
	require.Equal(t, 5, snap.CacheSize)
}

func TestSnapshot_FractionalHitRate(t *testing.T) {
	m := New()
	m.RecordSend(time.Millisecond)
	m.RecordSend(time.Millisecond)
	m.RecordSend(time.Millisecond)
	m.RecordCacheHit()

	snap := m.Snapshot(0)
	require.Equal(t, "33.33%", snap.CacheHitRate)
}
