package observability

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollector_Counters(t *testing.T) {
	m := NewMetricsCollector()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Increment("x", 1, nil)
		}()
	}
	wg.Wait()

	snapshot := m.Snapshot()
	assert.Equal(t, int64(5), snapshot.Counters["x"])
}

func TestMetricsCollector_Gauges(t *testing.T) {
	m := NewMetricsCollector()

	m.Gauge("temperature", 0.5, nil)
	m.Gauge("temperature", 0.9, nil)

	// Last write wins.
	assert.Equal(t, 0.9, m.Snapshot().Gauges["temperature"])
}

func TestMetricsCollector_HistogramStats(t *testing.T) {
	m := NewMetricsCollector()

	for _, v := range []float64{1, 2, 3} {
		m.Histogram("y", v, nil)
	}

	stats := m.Snapshot().Histograms["y"]
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 6.0, stats.Sum)
	assert.Equal(t, 2.0, stats.Mean)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 3.0, stats.Max)
}

func TestMetricsCollector_TagCompositeKeys(t *testing.T) {
	m := NewMetricsCollector()

	m.Increment("requests", 1, map[string]string{"agent": "root", "status": "ok"})
	m.Increment("requests", 2, map[string]string{"status": "ok", "agent": "root"})
	m.Increment("requests", 7, map[string]string{"agent": "child"})

	snapshot := m.Snapshot()

	// Tag order must not matter, keys render with sorted tag names.
	assert.Equal(t, int64(3), snapshot.Counters["requests{agent=root,status=ok}"])
	assert.Equal(t, int64(7), snapshot.Counters["requests{agent=child}"])
}

func TestMetricsCollector_SnapshotDoesNotMutate(t *testing.T) {
	m := NewMetricsCollector()

	m.Histogram("y", 1, nil)
	first := m.Snapshot()
	second := m.Snapshot()
	assert.Equal(t, first.Histograms["y"], second.Histograms["y"])

	// Mutating a snapshot must not leak back into the collector.
	first.Counters["ghost"] = 99
	assert.NotContains(t, m.Snapshot().Counters, "ghost")
}

func TestMetricsCollector_Reset(t *testing.T) {
	m := NewMetricsCollector()

	m.Increment("a", 1, nil)
	m.Gauge("b", 2, nil)
	m.Histogram("c", 3, nil)

	m.Reset()

	snapshot := m.Snapshot()
	assert.Empty(t, snapshot.Counters)
	assert.Empty(t, snapshot.Gauges)
	assert.Empty(t, snapshot.Histograms)
}

func TestMetricsCollector_ConcurrentMixedUse(t *testing.T) {
	m := NewMetricsCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Increment("ops", 1, nil)
				m.Gauge("load", float64(j), nil)
				m.Histogram("latency", float64(j), nil)
			}
		}()
	}
	wg.Wait()

	snapshot := m.Snapshot()
	assert.Equal(t, int64(1000), snapshot.Counters["ops"])
	require.Contains(t, snapshot.Histograms, "latency")
	assert.Equal(t, 1000, snapshot.Histograms["latency"].Count)
}
