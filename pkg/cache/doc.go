// Package cache provides an in-process cache engine bounded by total bytes
// and entry count, with pluggable eviction order, lazy and active
// expiration, tag invalidation, optional payload compression and
// snapshot persistence.
//
// # Engine
//
// [New] builds an [Engine] from a [Config]. The configuration is copied and
// never changes afterwards:
//
//	c, err := cache.New[Profile](cache.Config{
//	    MaxSizeBytes:     16 << 20,
//	    MaxEntries:       10000,
//	    DefaultTTL:       5 * time.Minute,
//	    CleanupInterval:  30 * time.Second,
//	    AdaptiveEviction: true,
//	}, cache.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	err = c.Set(ctx, "user:42", profile,
//	    cache.WithTTL(time.Hour),
//	    cache.WithPriority(cache.PriorityHigh),
//	    cache.WithTags("users", "tenant:7"),
//	)
//	p, err := c.Get(ctx, "user:42")
//	removed := c.InvalidateByTag("tenant:7")
//
// TTL semantics for Set:
//   - Positive duration: entry expires after this duration
//   - Zero or omitted: use Config.DefaultTTL
//   - Negative: entry never expires
//
// # Budgets and Eviction
//
// After every Set the store holds at most MaxEntries entries and
// MaxSizeBytes bytes. The byte cost of a value is the length of its
// marshaled form (see [WithSizer] and [WithMarshaler]), or of its
// compressed form when compression is enabled. A value that alone exceeds
// MaxSizeBytes is rejected with [ErrPayloadTooLarge].
//
// When a write needs room, expired entries are dropped first. Live entries
// are then evicted in the order of a [Strategy]:
//
//   - [StrategyLRU]: least recently read first
//   - [StrategyLFU]: fewest reads first; read counts survive replacement of a key
//   - [StrategyTTL]: oldest entry first
//   - [StrategyAdaptive]: highest idle*weight/(reads per second+1) first, where the
//     priority weight is critical 0.1, high 0.5, medium 1.0, low 2.0
//
// Ties go to the entry inserted first. Critical entries are evicted only
// after every other entry is gone. Clear removes everything regardless.
//
// Config.EvictionStrategy pins a strategy. Otherwise, with AdaptiveEviction
// enabled, the engine picks LFU for stable workloads (hit rate above 0.8
// over more than 100 reads), LRU when the hit rate is below 0.5 and the
// adaptive score in between. Without AdaptiveEviction it uses LRU.
//
// # Maintenance
//
// A background sweep runs every CleanupInterval: it removes expired entries
// (not counted as evictions) and evicts any overflow. Close stops it.
//
// # Compression
//
// With CompressionEnabled, values are marshaled and passed through a
// [Transformer] on write and back on read. The default is a
// transform.Gateway over an in-process zstd helper. A transform that times
// out degrades to storing the raw payload; it never fails a Set or Get.
//
// # Persistence
//
// With PersistToDisk and [WithSnapshotStore], the engine restores the last
// snapshot on start when it is younger than SnapshotMaxAge (24h by default)
// and writes snapshots in the background after mutations, on the optional
// SnapshotSchedule cron expression and on Close. Persistence failures are
// logged, never returned from cache operations.
//
// # Cache Stampede Prevention
//
// [Engine.GetOrSet] computes a missing value once for concurrent callers:
//
//	u, err := c.GetOrSet(ctx, "user:42", func(ctx context.Context) (Profile, error) {
//	    return repo.FindProfile(ctx, 42)
//	}, cache.WithTTL(5*time.Minute))
//
// # Error Handling
//
// The package defines sentinel errors:
//
//   - [ErrNotFound]: key does not exist or has expired
//   - [ErrClosed]: write on a closed engine
//   - [ErrInvalidArgument]: empty key or unknown priority
//   - [ErrPayloadTooLarge]: a single value exceeds MaxSizeBytes
//   - [ErrInvalidConfig]: unusable configuration
//   - [ErrMarshal], [ErrUnmarshal]: value serialization failed
//
// Use [errors.Is] to check:
//
//	v, err := c.Get(ctx, "key")
//	if errors.Is(err, cache.ErrNotFound) {
//	    // handle miss
//	}
package cache
