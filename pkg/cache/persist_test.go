package cache_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/cachekit/pkg/cache"
	"github.com/dmitrymomot/cachekit/pkg/snapshot"
)

const snapshotKey = "test:snapshot"

func persistentConfig() cache.Config {
	return cache.Config{PersistToDisk: true, SnapshotKey: snapshotKey}
}

// seedSnapshot fills an engine, saves it and closes it.
func seedSnapshot(t *testing.T, store snapshot.Store, clock *fakeClock, cfg cache.Config) {
	t.Helper()

	c, err := cache.New[user](cfg, cache.WithSnapshotStore(store), cache.WithClock(clock.Now))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "user:1", user{Name: "Alice"},
		cache.WithTTL(-1),
		cache.WithPriority(cache.PriorityCritical),
		cache.WithTags("users"),
		cache.WithMetadata(map[string]string{"origin": "db"}),
	))
	require.NoError(t, c.Set(ctx, "user:2", user{Name: "Bob"}, cache.WithTTL(48*time.Hour), cache.WithTags("users")))
	require.NoError(t, c.Set(ctx, "user:3", user{Name: "Carol"}, cache.WithTTL(30*time.Minute)))

	for range 3 {
		_, err := c.Get(ctx, "user:1")
		require.NoError(t, err)
	}
	_, _ = c.Get(ctx, "missing")

	require.NoError(t, c.Save(ctx))
	require.NoError(t, c.Close())
}

func TestSnapshot_Restore(t *testing.T) {
	t.Parallel()

	store := snapshot.NewMemory()
	clock := newFakeClock()
	seedSnapshot(t, store, clock, persistentConfig())

	clock.Advance(time.Hour)
	c := newEngine[user](t, persistentConfig(), cache.WithSnapshotStore(store), cache.WithClock(clock.Now))
	ctx := context.Background()

	got, err := c.Get(ctx, "user:1")
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Name)

	info, ok := c.Peek("user:1")
	require.True(t, ok)
	require.Equal(t, int64(4), info.AccessCount)
	require.Equal(t, cache.PriorityCritical, info.Priority)
	require.Equal(t, []string{"users"}, info.Tags)
	require.Equal(t, map[string]string{"origin": "db"}, info.Metadata)

	require.True(t, c.Has("user:2"))
	require.False(t, c.Has("user:3"), "entries that expired while persisted are dropped")

	st := c.Stats()
	require.Equal(t, int64(4), st.Hits)
	require.Equal(t, int64(1), st.Misses)
	require.Equal(t, 2, st.TotalEntries)

	require.Equal(t, 2, c.InvalidateByTag("users"))
}

func TestSnapshot_RestoreRebuildsRecency(t *testing.T) {
	t.Parallel()

	store := snapshot.NewMemory()
	clock := newFakeClock()
	cfg := persistentConfig()
	cfg.MaxEntries = 3
	cfg.EvictionStrategy = cache.StrategyLRU

	c, err := cache.New[string](cfg, cache.WithSnapshotStore(store), cache.WithClock(clock.Now))
	require.NoError(t, err)
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, k, "v"))
		clock.Advance(time.Second)
	}
	_, _ = c.Get(ctx, "a")
	require.NoError(t, c.Save(ctx))
	require.NoError(t, c.Close())

	restored := newEngine[string](t, cfg, cache.WithSnapshotStore(store), cache.WithClock(clock.Now))
	require.NoError(t, restored.Set(ctx, "d", "v"))

	require.False(t, restored.Has("b"))
	require.True(t, restored.Has("a"))
}

func TestSnapshot_Freshness(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		age      time.Duration
		restored bool
	}{
		{name: "one hour old is restored", age: time.Hour, restored: true},
		{name: "just under a day is restored", age: 24*time.Hour - time.Second, restored: true},
		{name: "exactly a day is discarded", age: 24 * time.Hour, restored: false},
		{name: "25 hours old is discarded", age: 25 * time.Hour, restored: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := snapshot.NewMemory()
			clock := newFakeClock()
			seedSnapshot(t, store, clock, persistentConfig())

			clock.Advance(tc.age)
			c := newEngine[user](t, persistentConfig(), cache.WithSnapshotStore(store), cache.WithClock(clock.Now))

			require.Equal(t, tc.restored, c.Has("user:1"))

			if !tc.restored {
				st := c.Stats()
				require.Zero(t, st.TotalEntries)
				require.Zero(t, st.Hits)

				_, err := store.Load(context.Background(), snapshotKey)
				require.ErrorIs(t, err, snapshot.ErrNotFound, "stale snapshot is deleted")
			}
		})
	}
}

func TestSnapshot_CustomMaxAge(t *testing.T) {
	t.Parallel()

	store := snapshot.NewMemory()
	clock := newFakeClock()
	cfg := persistentConfig()
	cfg.SnapshotMaxAge = time.Hour
	seedSnapshot(t, store, clock, cfg)

	clock.Advance(2 * time.Hour)
	c := newEngine[user](t, cfg, cache.WithSnapshotStore(store), cache.WithClock(clock.Now))
	require.Zero(t, c.Len())
}

func TestSnapshot_ColdStart(t *testing.T) {
	t.Parallel()

	t.Run("missing snapshot", func(t *testing.T) {
		t.Parallel()

		c := newEngine[user](t, persistentConfig(), cache.WithSnapshotStore(snapshot.NewMemory()))
		require.Zero(t, c.Len())
	})

	t.Run("corrupt snapshot", func(t *testing.T) {
		t.Parallel()

		store := snapshot.NewMemory()
		require.NoError(t, store.Save(context.Background(), snapshotKey, []byte("{not json")))

		c := newEngine[user](t, persistentConfig(), cache.WithSnapshotStore(store))
		require.Zero(t, c.Len())
	})

	t.Run("persistence disabled ignores the store", func(t *testing.T) {
		t.Parallel()

		store := snapshot.NewMemory()
		clock := newFakeClock()
		seedSnapshot(t, store, clock, persistentConfig())

		c := newEngine[user](t, cache.Config{SnapshotKey: snapshotKey}, cache.WithSnapshotStore(store), cache.WithClock(clock.Now))
		require.Zero(t, c.Len())
		require.NoError(t, c.Save(context.Background()))
	})
}

func TestSnapshot_BackgroundSave(t *testing.T) {
	t.Parallel()

	store := snapshot.NewMemory()
	c, err := cache.New[string](persistentConfig(), cache.WithSnapshotStore(store))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v"))
	require.NoError(t, c.Close())

	blob, err := store.Load(ctx, snapshotKey)
	require.NoError(t, err)

	var doc struct {
		Entries []struct {
			Key string `json:"key"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(blob, &doc))
	require.Len(t, doc.Entries, 1)
	require.Equal(t, "k", doc.Entries[0].Key)
}

func TestSnapshot_ScheduledSave(t *testing.T) {
	t.Parallel()

	store := snapshot.NewMemory()
	cfg := persistentConfig()
	cfg.SnapshotSchedule = "@every 1s"
	c := newEngine[string](t, cfg, cache.WithSnapshotStore(store))

	require.Eventually(t, func() bool {
		_, err := store.Load(context.Background(), snapshotKey)
		return err == nil
	}, 3*time.Second, 50*time.Millisecond)
	require.Zero(t, c.Len())
}

func TestSnapshot_CompressedEntries(t *testing.T) {
	t.Parallel()

	store := snapshot.NewMemory()
	cfg := persistentConfig()
	cfg.CompressionEnabled = true

	value := strings.Repeat("snapshot me ", 300)
	ctx := context.Background()

	c, err := cache.New[string](cfg, cache.WithSnapshotStore(store))
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "big", value))
	require.NoError(t, c.Save(ctx))
	require.NoError(t, c.Close())

	restored := newEngine[string](t, cfg, cache.WithSnapshotStore(store))
	got, err := restored.Get(ctx, "big")
	require.NoError(t, err)
	require.Equal(t, value, got)

	t.Run("skipped without a transformer", func(t *testing.T) {
		plain := cfg
		plain.CompressionEnabled = false

		c := newEngine[string](t, plain, cache.WithSnapshotStore(store))
		require.False(t, c.Has("big"))
	})
}
