package observability

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter adapts a MetricsCollector snapshot to the Prometheus collection
// model so the runtime metrics can be scraped alongside other process metrics.
// Counters map to counters, gauges to gauges and histogram series to summaries
// (count + sum). It is an unchecked collector: Describe sends no descriptors.
type Exporter struct {
	collector *MetricsCollector
	registry  *prometheus.Registry
}

// NewExporter registers the collector with a fresh Prometheus registry.
func NewExporter(collector *MetricsCollector) *Exporter {
	e := &Exporter{collector: collector, registry: prometheus.NewRegistry()}
	e.registry.MustRegister(e)
	return e
}

// Describe implements prometheus.Collector. Sending nothing marks the
// exporter as unchecked, which is required because the metric set is dynamic.
func (e *Exporter) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector by reducing the current snapshot.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	snap := e.collector.Snapshot()

	for key, value := range snap.Counters {
		name, labels, values := splitKey(key)
		desc := prometheus.NewDesc(sanitizeName(name), "profilermesh counter", labels, nil)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(value), values...)
	}

	for key, value := range snap.Gauges {
		name, labels, values := splitKey(key)
		desc := prometheus.NewDesc(sanitizeName(name), "profilermesh gauge", labels, nil)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, value, values...)
	}

	for key, stats := range snap.Histograms {
		name, labels, values := splitKey(key)
		desc := prometheus.NewDesc(sanitizeName(name), "profilermesh histogram", labels, nil)
		ch <- prometheus.MustNewConstSummary(desc, uint64(stats.Count), stats.Sum, nil, values...)
	}
}

// Registry returns the underlying Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Handler returns an HTTP handler for the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// splitKey decomposes a composite metric key (name{k=v,...}) back into the
// metric name plus parallel label key / value slices.
func splitKey(key string) (string, []string, []string) {
	open := strings.IndexByte(key, '{')
	if open < 0 || !strings.HasSuffix(key, "}") {
		return key, nil, nil
	}

	name := key[:open]
	var labels, values []string
	for _, pair := range strings.Split(key[open+1:len(key)-1], ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		labels = append(labels, sanitizeName(k))
		values = append(values, v)
	}

	return name, labels, values
}

// sanitizeName maps a dotted metric name onto the Prometheus charset.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
