package cachemetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/cachekit/pkg/cache"
	"github.com/dmitrymomot/cachekit/pkg/transform"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "cachekit"

// StatsSource is implemented by *cache.Engine.
type StatsSource interface {
	Stats() cache.Stats
}

// TransformSource is implemented by *transform.Gateway.
type TransformSource interface {
	Stats() transform.Stats
}

// Option configures a Collector.
type Option func(*options)

type options struct {
	labels    prometheus.Labels
	transform TransformSource
	namespace string
}

// WithNamespace replaces the metric name prefix. Default: "cachekit".
func WithNamespace(ns string) Option {
	return func(o *options) {
		if ns != "" {
			o.namespace = ns
		}
	}
}

// WithConstLabels attaches labels to every metric, e.g. the cache name.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(o *options) {
		o.labels = labels
	}
}

// WithTransform also exports the counters of a transform gateway.
func WithTransform(src TransformSource) Option {
	return func(o *options) {
		o.transform = src
	}
}

// Collector exports cache statistics as Prometheus metrics.
// Values are read on every scrape, so the collector holds no state.
type Collector struct {
	src       StatsSource
	transform TransformSource

	entries     *prometheus.Desc
	sizeBytes   *prometheus.Desc
	hits        *prometheus.Desc
	misses      *prometheus.Desc
	evictions   *prometheus.Desc
	expirations *prometheus.Desc
	hitRatio    *prometheus.Desc
	memoryRatio *prometheus.Desc
	strategy    *prometheus.Desc

	trRequests  *prometheus.Desc
	trCompleted *prometheus.Desc
	trTimeouts  *prometheus.Desc
	trFailures  *prometheus.Desc
	trLate      *prometheus.Desc
	trPending   *prometheus.Desc
}

// New creates a collector for src. Register it with a prometheus.Registerer.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(cachemetrics.New(engine,
//	    cachemetrics.WithConstLabels(prometheus.Labels{"cache": "users"}),
//	))
func New(src StatsSource, opts ...Option) *Collector {
	o := &options{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(o)
	}

	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(o.namespace, "", name), help, labels, o.labels)
	}

	return &Collector{
		src:       src,
		transform: o.transform,

		entries:     desc("entries", "Number of entries currently stored."),
		sizeBytes:   desc("size_bytes", "Bytes charged against the size budget."),
		hits:        desc("hits_total", "Reads that returned a live entry."),
		misses:      desc("misses_total", "Reads that found no live entry."),
		evictions:   desc("evictions_total", "Live entries removed to honor a budget."),
		expirations: desc("expirations_total", "Entries removed because their TTL elapsed."),
		hitRatio:    desc("hit_ratio", "Hits divided by all reads."),
		memoryRatio: desc("memory_usage_ratio", "Used bytes divided by the size budget."),
		strategy:    desc("eviction_strategy", "Eviction strategy currently in effect.", "strategy"),

		trRequests:  desc("transform_requests_total", "Requests sent to the transform helper."),
		trCompleted: desc("transform_completed_total", "Transform requests answered in time."),
		trTimeouts:  desc("transform_timeouts_total", "Transform requests that fell back after a timeout."),
		trFailures:  desc("transform_failures_total", "Transform requests that fell back after a helper error."),
		trLate:      desc("transform_late_responses_total", "Helper responses discarded after their caller gave up."),
		trPending:   desc("transform_pending", "Transform requests waiting for a response."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.entries, c.sizeBytes, c.hits, c.misses, c.evictions,
		c.expirations, c.hitRatio, c.memoryRatio, c.strategy,
	} {
		ch <- d
	}
	if c.transform != nil {
		for _, d := range []*prometheus.Desc{
			c.trRequests, c.trCompleted, c.trTimeouts, c.trFailures, c.trLate, c.trPending,
		} {
			ch <- d
		}
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()

	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.TotalEntries))
	ch <- prometheus.MustNewConstMetric(c.sizeBytes, prometheus.GaugeValue, float64(st.TotalSizeBytes))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(st.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(st.Misses))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(st.EvictionCount))
	ch <- prometheus.MustNewConstMetric(c.expirations, prometheus.CounterValue, float64(st.ExpiredCount))
	ch <- prometheus.MustNewConstMetric(c.hitRatio, prometheus.GaugeValue, st.HitRate)
	ch <- prometheus.MustNewConstMetric(c.memoryRatio, prometheus.GaugeValue, st.MemoryUsagePct/100)
	ch <- prometheus.MustNewConstMetric(c.strategy, prometheus.GaugeValue, 1, string(st.Strategy))

	if c.transform == nil {
		return
	}
	ts := c.transform.Stats()
	ch <- prometheus.MustNewConstMetric(c.trRequests, prometheus.CounterValue, float64(ts.Requests))
	ch <- prometheus.MustNewConstMetric(c.trCompleted, prometheus.CounterValue, float64(ts.Completed))
	ch <- prometheus.MustNewConstMetric(c.trTimeouts, prometheus.CounterValue, float64(ts.Timeouts))
	ch <- prometheus.MustNewConstMetric(c.trFailures, prometheus.CounterValue, float64(ts.Failures))
	ch <- prometheus.MustNewConstMetric(c.trLate, prometheus.CounterValue, float64(ts.LateResponses))
	ch <- prometheus.MustNewConstMetric(c.trPending, prometheus.GaugeValue, float64(ts.Pending))
}

var _ prometheus.Collector = (*Collector)(nil)
