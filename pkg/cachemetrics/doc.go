// Package cachemetrics exports cache engine and transform gateway statistics
// to Prometheus.
//
// The [Collector] reads [cache.Stats] on every scrape and reports counters
// (hits, misses, evictions, expirations), gauges (entries, bytes, hit ratio,
// memory usage ratio) and the eviction strategy currently in effect as a
// labeled gauge. With [WithTransform] it also reports the gateway's request,
// timeout and late-response counters.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(cachemetrics.New(engine, cachemetrics.WithTransform(gateway)))
//	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package cachemetrics
