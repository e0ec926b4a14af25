// Package prom exports a metered cache's counters to Prometheus.
//
// Like the OpenTelemetry publisher, the model is strictly pull: the
// Collector reads a counter snapshot at scrape time and emits const
// metrics. Nothing is pushed per cache operation.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rjmurillo/cachemetrics/cache"
	"github.com/rjmurillo/cachemetrics/metered"
)

// Source is the slice of the metered decorator the Collector needs.
// *metered.Cache satisfies it for any key/value types.
type Source interface {
	Name() string
	Stats() metered.Stats
}

// Collector implements prometheus.Collector over one cache instance.
// Safe for concurrent scrapes: every Collect takes a fresh snapshot.
type Collector struct {
	src Source

	hits      *prometheus.Desc
	misses    *prometheus.Desc
	evictions *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a Collector for src.
//   - ns, sub:     Prometheus namespace and subsystem
//   - constLabels: static labels applied to all metrics (may be nil)
//
// If the source cache is named, a "cache" const label is added so several
// instances can be registered against one registry without colliding.
func NewCollector(src Source, ns, sub string, constLabels prometheus.Labels) *Collector {
	if name := src.Name(); name != "" {
		merged := prometheus.Labels{"cache": name}
		for k, v := range constLabels {
			merged[k] = v
		}
		constLabels = merged
	}
	return &Collector{
		src: src,
		hits: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "hits_total"),
			"Cache hits.", nil, constLabels),
		misses: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "misses_total"),
			"Cache misses.", nil, constLabels),
		evictions: prometheus.NewDesc(
			prometheus.BuildFQName(ns, sub, "evictions_total"),
			"Cache-initiated evictions by reason.", []string{"reason"}, constLabels),
	}
}

// Describe sends the metric descriptors.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
}

// Collect snapshots the cache counters and emits one const metric per
// signal. Individual counter reads are atomic; cross-counter skew within
// one scrape is acceptable to Prometheus.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue,
		float64(s.Expired), cache.ReasonExpired.String())
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue,
		float64(s.TokenExpired), cache.ReasonTokenExpired.String())
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue,
		float64(s.Capacity), cache.ReasonCapacity.String())
}
