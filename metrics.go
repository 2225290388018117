// metrics.go: Prometheus-backed metrics collector
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements MetricsCollector on top of a Prometheus
// registry. All instruments are registered once at construction; the
// record methods are lock-free counter/gauge updates safe on hot paths.
type PrometheusCollector struct {
	gets         *prometheus.CounterVec
	sets         prometheus.Counter
	deletes      prometheus.Counter
	evictions    prometheus.Counter
	negativeHits prometheus.Counter
	coalesced    prometheus.Counter
	memoryBytes  prometheus.Gauge
	latency      *prometheus.HistogramVec
}

// NewPrometheusCollector creates a collector registered on reg under the
// given namespace (e.g. "myapp"); metric names follow the
// <namespace>_cache_* convention.
func NewPrometheusCollector(reg prometheus.Registerer, namespace string) (*PrometheusCollector, error) {
	pc := &PrometheusCollector{
		gets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "gets_total",
			Help:      "Cache lookups partitioned by result.",
		}, []string{"result"}),
		sets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "sets_total",
			Help:      "Cache write operations.",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "deletes_total",
			Help:      "Cache delete operations.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries evicted under a size or memory budget.",
		}),
		negativeHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "negative_hits_total",
			Help:      "Lookups answered by the negative cache.",
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "coalesced_fetches_total",
			Help:      "Upstream fetches avoided by request coalescing.",
		}),
		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "memory_bytes",
			Help:      "Estimated bytes held by cached entries.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operation_duration_seconds",
			Help:      "Latency of cache operations.",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 12),
		}, []string{"operation"}),
	}

	for _, collector := range []prometheus.Collector{
		pc.gets, pc.sets, pc.deletes, pc.evictions,
		pc.negativeHits, pc.coalesced, pc.memoryBytes, pc.latency,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func (pc *PrometheusCollector) RecordGet(latencyNs int64, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	pc.gets.WithLabelValues(result).Inc()
	pc.latency.WithLabelValues("get").Observe(seconds(latencyNs))
}

func (pc *PrometheusCollector) RecordSet(latencyNs int64) {
	pc.sets.Inc()
	pc.latency.WithLabelValues("set").Observe(seconds(latencyNs))
}

func (pc *PrometheusCollector) RecordDelete(latencyNs int64) {
	pc.deletes.Inc()
	pc.latency.WithLabelValues("delete").Observe(seconds(latencyNs))
}

func (pc *PrometheusCollector) RecordEviction() {
	pc.evictions.Inc()
}

func (pc *PrometheusCollector) RecordNegativeHit() {
	pc.negativeHits.Inc()
}

func (pc *PrometheusCollector) RecordCoalesced() {
	pc.coalesced.Inc()
}

func (pc *PrometheusCollector) RecordMemoryUsage(bytes int64) {
	pc.memoryBytes.Set(float64(bytes))
}

func seconds(ns int64) float64 {
	return float64(ns) / float64(time.Second)
}

// Ensure PrometheusCollector implements MetricsCollector
var _ MetricsCollector = (*PrometheusCollector)(nil)
