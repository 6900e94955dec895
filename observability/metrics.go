package observability

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// HistogramStats is the reduced view of a histogram series computed on read.
type HistogramStats struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Metrics is a fully reduced snapshot of all collected metrics.
type Metrics struct {
	Counters   map[string]int64          `json:"counters"`
	Gauges     map[string]float64        `json:"gauges"`
	Histograms map[string]HistogramStats `json:"histograms"`
	Timestamp  time.Time                 `json:"timestamp"`
}

// MetricsCollector accumulates counters, gauges and histograms keyed by metric
// name plus an optional sorted tag set. All mutation paths hold a single mutex
// for the duration of a map update only; reductions happen on read. Safe for
// concurrent use by multiple orchestration passes.
type MetricsCollector struct {
	mu         sync.Mutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
}

// NewMetricsCollector constructs an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

// Increment adds value to a monotonic counter.
func (m *MetricsCollector) Increment(metric string, value int64, tags map[string]string) {
	key := metricKey(metric, tags)
	m.mu.Lock()
	m.counters[key] += value
	m.mu.Unlock()
}

// Gauge sets a gauge to the given value (last write wins).
func (m *MetricsCollector) Gauge(metric string, value float64, tags map[string]string) {
	key := metricKey(metric, tags)
	m.mu.Lock()
	m.gauges[key] = value
	m.mu.Unlock()
}

// Histogram records an observation for later reduction.
func (m *MetricsCollector) Histogram(metric string, value float64, tags map[string]string) {
	key := metricKey(metric, tags)
	m.mu.Lock()
	m.histograms[key] = append(m.histograms[key], value)
	m.mu.Unlock()
}

// Snapshot returns a reduced copy of all metrics without mutating state.
func (m *MetricsCollector) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Metrics{
		Counters:   make(map[string]int64, len(m.counters)),
		Gauges:     make(map[string]float64, len(m.gauges)),
		Histograms: make(map[string]HistogramStats, len(m.histograms)),
		Timestamp:  time.Now().UTC(),
	}

	for k, v := range m.counters {
		snap.Counters[k] = v
	}
	for k, v := range m.gauges {
		snap.Gauges[k] = v
	}
	for k, values := range m.histograms {
		if len(values) == 0 {
			continue
		}
		stats := HistogramStats{Count: len(values), Min: values[0], Max: values[0]}
		for _, v := range values {
			stats.Sum += v
			if v < stats.Min {
				stats.Min = v
			}
			if v > stats.Max {
				stats.Max = v
			}
		}
		stats.Mean = stats.Sum / float64(stats.Count)
		snap.Histograms[k] = stats
	}

	return snap
}

// Reset clears all three stores atomically relative to concurrent readers.
func (m *MetricsCollector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = make(map[string]int64)
	m.gauges = make(map[string]float64)
	m.histograms = make(map[string][]float64)
}

// metricKey renders a metric name plus sorted tags into a single composite key
// of the form name{k1=v1,k2=v2}.
func metricKey(metric string, tags map[string]string) string {
	if len(tags) == 0 {
		return metric
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, tags[k]))
	}

	return fmt.Sprintf("%s{%s}", metric, strings.Join(pairs, ","))
}
