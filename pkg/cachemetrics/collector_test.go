package cachemetrics_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/cachekit/pkg/cache"
	"github.com/dmitrymomot/cachekit/pkg/cachemetrics"
	"github.com/dmitrymomot/cachekit/pkg/transform"
)

type staticStats cache.Stats

func (s staticStats) Stats() cache.Stats { return cache.Stats(s) }

type staticTransform transform.Stats

func (s staticTransform) Stats() transform.Stats { return transform.Stats(s) }

func TestCollector(t *testing.T) {
	t.Parallel()

	src := staticStats{
		Strategy:       cache.StrategyLFU,
		TotalEntries:   12,
		TotalSizeBytes: 2048,
		Hits:           90,
		Misses:         10,
		TotalAccesses:  100,
		HitRate:        0.9,
		MissRate:       0.1,
		EvictionCount:  4,
		ExpiredCount:   3,
		MemoryUsagePct: 50,
	}

	t.Run("cache metrics", func(t *testing.T) {
		t.Parallel()

		c := cachemetrics.New(src, cachemetrics.WithConstLabels(prometheus.Labels{"cache": "users"}))

		expected := `
# HELP cachekit_entries Number of entries currently stored.
# TYPE cachekit_entries gauge
cachekit_entries{cache="users"} 12
# HELP cachekit_evictions_total Live entries removed to honor a budget.
# TYPE cachekit_evictions_total counter
cachekit_evictions_total{cache="users"} 4
# HELP cachekit_eviction_strategy Eviction strategy currently in effect.
# TYPE cachekit_eviction_strategy gauge
cachekit_eviction_strategy{cache="users",strategy="lfu"} 1
# HELP cachekit_hit_ratio Hits divided by all reads.
# TYPE cachekit_hit_ratio gauge
cachekit_hit_ratio{cache="users"} 0.9
# HELP cachekit_memory_usage_ratio Used bytes divided by the size budget.
# TYPE cachekit_memory_usage_ratio gauge
cachekit_memory_usage_ratio{cache="users"} 0.5
`
		require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
			"cachekit_entries",
			"cachekit_evictions_total",
			"cachekit_eviction_strategy",
			"cachekit_hit_ratio",
			"cachekit_memory_usage_ratio",
		))
		require.Equal(t, 9, testutil.CollectAndCount(c))
	})

	t.Run("transform metrics", func(t *testing.T) {
		t.Parallel()

		c := cachemetrics.New(src,
			cachemetrics.WithNamespace("app"),
			cachemetrics.WithTransform(staticTransform{Requests: 10, Completed: 7, Timeouts: 2, Failures: 1, LateResponses: 2}),
		)

		expected := `
# HELP app_transform_timeouts_total Transform requests that fell back after a timeout.
# TYPE app_transform_timeouts_total counter
app_transform_timeouts_total 2
# HELP app_transform_late_responses_total Helper responses discarded after their caller gave up.
# TYPE app_transform_late_responses_total counter
app_transform_late_responses_total 2
`
		require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
			"app_transform_timeouts_total",
			"app_transform_late_responses_total",
		))
		require.Equal(t, 15, testutil.CollectAndCount(c))
	})

	t.Run("reads a live engine", func(t *testing.T) {
		t.Parallel()

		engine, err := cache.New[string](cache.Config{})
		require.NoError(t, err)
		t.Cleanup(func() { _ = engine.Close() })

		reg := prometheus.NewPedanticRegistry()
		require.NoError(t, reg.Register(cachemetrics.New(engine)))

		n, err := testutil.GatherAndCount(reg, "cachekit_entries", "cachekit_hits_total")
		require.NoError(t, err)
		require.Equal(t, 2, n)
	})
}
