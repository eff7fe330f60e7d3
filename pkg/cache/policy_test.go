package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/cachekit/pkg/cache"
)

func TestEviction_LRU(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newEngine[string](t, cache.Config{MaxEntries: 3, EvictionStrategy: cache.StrategyLRU}, cache.WithClock(clock.Now))
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, k, "v"))
		clock.Advance(time.Second)
	}
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "d", "v"))

	require.False(t, c.Has("b"), "least recently used key goes first")
	require.True(t, c.Has("a"))
	require.True(t, c.Has("c"))
	require.True(t, c.Has("d"))
}

func TestEviction_LFU(t *testing.T) {
	t.Parallel()

	t.Run("least frequently used key goes first", func(t *testing.T) {
		t.Parallel()

		c := newEngine[string](t, cache.Config{MaxEntries: 3, EvictionStrategy: cache.StrategyLFU})
		ctx := context.Background()

		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, c.Set(ctx, k, "v"))
		}
		hits := map[string]int{"a": 3, "b": 1, "c": 2}
		for k, n := range hits {
			for range n {
				_, err := c.Get(ctx, k)
				require.NoError(t, err)
			}
		}

		require.NoError(t, c.Set(ctx, "d", "v"))

		require.False(t, c.Has("b"))
		require.True(t, c.Has("a"))
		require.True(t, c.Has("c"))
	})

	t.Run("frequency survives replacement", func(t *testing.T) {
		t.Parallel()

		c := newEngine[string](t, cache.Config{MaxEntries: 3, EvictionStrategy: cache.StrategyLFU})
		ctx := context.Background()

		require.NoError(t, c.Set(ctx, "a", "v1"))
		for range 5 {
			_, _ = c.Get(ctx, "a")
		}
		require.NoError(t, c.Set(ctx, "a", "v2"))

		info, ok := c.Peek("a")
		require.True(t, ok)
		require.Zero(t, info.AccessCount)

		require.NoError(t, c.Set(ctx, "b", "v"))
		require.NoError(t, c.Set(ctx, "c", "v"))
		_, _ = c.Get(ctx, "b")
		_, _ = c.Get(ctx, "c")

		require.NoError(t, c.Set(ctx, "d", "v"))

		require.True(t, c.Has("a"))
		require.False(t, c.Has("b"), "ties go to the oldest insertion")
		require.True(t, c.Has("c"))
	})

	t.Run("carried frequency ends with the maintenance window", func(t *testing.T) {
		t.Parallel()

		c := newEngine[string](t, cache.Config{MaxEntries: 3, EvictionStrategy: cache.StrategyLFU})
		ctx := context.Background()

		require.NoError(t, c.Set(ctx, "a", "v1"))
		for range 5 {
			_, _ = c.Get(ctx, "a")
		}
		require.NoError(t, c.Set(ctx, "a", "v2"))
		require.NoError(t, c.Set(ctx, "b", "v"))
		require.NoError(t, c.Set(ctx, "c", "v"))
		_, _ = c.Get(ctx, "b")
		_, _ = c.Get(ctx, "c")

		c.Maintain()

		require.NoError(t, c.Set(ctx, "d", "v"))

		require.False(t, c.Has("a"), "replaced key is back to its own access count")
		require.True(t, c.Has("b"))
		require.True(t, c.Has("c"))
	})
}

func TestEviction_TTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newEngine[string](t, cache.Config{MaxEntries: 3, EvictionStrategy: cache.StrategyTTL}, cache.WithClock(clock.Now))
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, k, "v"))
		clock.Advance(time.Second)
	}
	for range 10 {
		_, _ = c.Get(ctx, "a")
	}

	require.NoError(t, c.Set(ctx, "d", "v"))

	require.False(t, c.Has("a"), "oldest entry goes first regardless of use")
	require.True(t, c.Has("b"))
}

func TestEviction_Adaptive(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := newEngine[string](t, cache.Config{MaxEntries: 3, EvictionStrategy: cache.StrategyAdaptive}, cache.WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "low", "v", cache.WithPriority(cache.PriorityLow)))
	require.NoError(t, c.Set(ctx, "high", "v", cache.WithPriority(cache.PriorityHigh)))
	require.NoError(t, c.Set(ctx, "medium", "v", cache.WithPriority(cache.PriorityMedium)))
	clock.Advance(10 * time.Second)

	require.NoError(t, c.Set(ctx, "fresh1", "v"))
	require.False(t, c.Has("low"), "idle low priority entry goes first")

	require.NoError(t, c.Set(ctx, "fresh2", "v"))
	require.False(t, c.Has("medium"))
	require.True(t, c.Has("high"))
	require.True(t, c.Has("fresh1"), "just written entries have no idle time")
}

func TestEviction_CriticalLastForEveryStrategy(t *testing.T) {
	t.Parallel()

	for _, strategy := range []cache.Strategy{cache.StrategyLRU, cache.StrategyLFU, cache.StrategyTTL, cache.StrategyAdaptive} {
		t.Run(string(strategy), func(t *testing.T) {
			t.Parallel()

			clock := newFakeClock()
			c := newEngine[string](t, cache.Config{MaxEntries: 2, EvictionStrategy: strategy}, cache.WithClock(clock.Now))
			ctx := context.Background()

			require.NoError(t, c.Set(ctx, "critical", "v", cache.WithPriority(cache.PriorityCritical)))
			clock.Advance(time.Hour / 2)
			for i := range 5 {
				require.NoError(t, c.Set(ctx, "k"+string(rune('a'+i)), "v"))
				clock.Advance(time.Second)
			}

			require.True(t, c.Has("critical"))
			require.Equal(t, 2, c.Len())
		})
	}

	t.Run("critical entries evict each other when nothing else is left", func(t *testing.T) {
		t.Parallel()

		c := newEngine[string](t, cache.Config{MaxEntries: 1})
		ctx := context.Background()

		require.NoError(t, c.Set(ctx, "c1", "v", cache.WithPriority(cache.PriorityCritical)))
		require.NoError(t, c.Set(ctx, "c2", "v", cache.WithPriority(cache.PriorityCritical)))

		require.False(t, c.Has("c1"))
		require.True(t, c.Has("c2"))
	})
}

func TestStrategySelection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("fixed LRU without adaptive eviction", func(t *testing.T) {
		t.Parallel()

		c := newEngine[string](t, cache.Config{})
		require.Equal(t, cache.StrategyLRU, c.Stats().Strategy)
	})

	t.Run("pinned strategy wins", func(t *testing.T) {
		t.Parallel()

		c := newEngine[string](t, cache.Config{AdaptiveEviction: true, EvictionStrategy: cache.StrategyTTL})
		require.Equal(t, cache.StrategyTTL, c.Stats().Strategy)
	})

	t.Run("thrashing workload uses LRU", func(t *testing.T) {
		t.Parallel()

		c := newEngine[string](t, cache.Config{AdaptiveEviction: true})
		for range 3 {
			_, _ = c.Get(ctx, "missing")
		}
		require.Equal(t, cache.StrategyLRU, c.Stats().Strategy)
	})

	t.Run("stable workload uses LFU", func(t *testing.T) {
		t.Parallel()

		c := newEngine[string](t, cache.Config{AdaptiveEviction: true})
		require.NoError(t, c.Set(ctx, "k", "v"))
		for range 101 {
			_, _ = c.Get(ctx, "k")
		}
		require.Equal(t, cache.StrategyLFU, c.Stats().Strategy)
	})

	t.Run("stable hit rate needs enough accesses", func(t *testing.T) {
		t.Parallel()

		c := newEngine[string](t, cache.Config{AdaptiveEviction: true})
		require.NoError(t, c.Set(ctx, "k", "v"))
		for range 100 {
			_, _ = c.Get(ctx, "k")
		}
		require.Equal(t, cache.StrategyAdaptive, c.Stats().Strategy)
	})

	t.Run("mixed workload uses adaptive", func(t *testing.T) {
		t.Parallel()

		c := newEngine[string](t, cache.Config{AdaptiveEviction: true})
		require.NoError(t, c.Set(ctx, "k", "v"))
		for range 3 {
			_, _ = c.Get(ctx, "k")
		}
		for range 2 {
			_, _ = c.Get(ctx, "missing")
		}
		require.Equal(t, cache.StrategyAdaptive, c.Stats().Strategy)

		require.NoError(t, c.Clear(ctx))
		require.Equal(t, cache.StrategyLRU, c.Stats().Strategy)
	})
}
